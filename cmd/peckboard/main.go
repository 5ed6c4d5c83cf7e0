// Command peckboard drives a three-position peck board: each key press
// advances that position's LED color, and activity is published to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sweeney/peckboard/internal/config"
	"github.com/sweeney/peckboard/internal/gpio"
	"github.com/sweeney/peckboard/internal/logic"
	"github.com/sweeney/peckboard/internal/metrics"
	"github.com/sweeney/peckboard/internal/monitor"
	"github.com/sweeney/peckboard/internal/mqtt"
	"github.com/sweeney/peckboard/internal/status"
	"github.com/sweeney/peckboard/internal/web"
)

type options struct {
	configPath   string
	broker       string
	heartbeat    time.Duration
	restartDelay time.Duration
	printState   bool
	httpAddr     string
	verbose      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Board layout YAML file (empty for the built-in layout)")
	flag.StringVar(&opts.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address (empty to disable)")
	flag.DurationVar(&opts.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.DurationVar(&opts.restartDelay, "restart-delay", 5*time.Second, "Delay before restarting a failed monitor (0 to exit instead)")
	flag.BoolVar(&opts.printState, "print-state", false, "Print the key lines and exit")
	flag.StringVar(&opts.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.BoolVar(&opts.verbose, "verbose", false, "Log every interrupt edge")

	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(opts options) error {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		cfg, err = config.Load(opts.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	// Print state mode
	if opts.printState {
		keys, err := gpio.OpenKeys(cfg)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer keys.Close()

		snapshot, err := keys.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Println(formatKeys(snapshot))
		return nil
	}

	// Initialize MQTT
	var publisher mqtt.Publisher = nopPublisher{}
	var mqttStatus mqtt.ConnectionStatus = nopPublisher{}
	if opts.broker != "" {
		p, err := mqtt.NewRealPublisher(opts.broker, cfg.Consumer)
		if err != nil {
			log.Printf("mqtt disabled: %v", err)
		} else {
			publisher, mqttStatus = p, p
		}
	}
	defer publisher.Close()

	board := logic.NewBoard()
	reg := prom.NewRegistry()
	reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(reg)

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		HeartbeatMs:    opts.heartbeat.Milliseconds(),
		RestartDelayMs: opts.restartDelay.Milliseconds(),
		Broker:         opts.broker,
		HTTPAddr:       opts.httpAddr,
		ConfigPath:     opts.configPath,
		PrimaryChip:    cfg.PrimaryChip,
		Interrupt:      gpio.LineSpec{Chip: cfg.Interrupt.Chip, Offset: cfg.Interrupt.Line}.String(),
	}, board)
	tracker.SetMQTTConnected(mqttStatus.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker, recorder.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", opts.httpAddr)
	}

	log.Printf("started: chip=%s interrupt=%s:%d edge=%s broker=%s heartbeat=%v",
		cfg.PrimaryChip, cfg.Interrupt.Chip, cfg.Interrupt.Line, cfg.Interrupt.Edge, opts.broker, opts.heartbeat)

	var heartbeat <-chan time.Time
	if opts.heartbeat > 0 {
		ticker := time.NewTicker(opts.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	d := &daemon{
		open: func(levels [logic.NumPositions][logic.NumChannels]int) (*gpio.Hardware, error) {
			return gpio.OpenHardware(cfg, levels)
		},
		board:        board,
		publisher:    publisher,
		mqttStatus:   mqttStatus,
		tracker:      tracker,
		recorder:     recorder,
		restartDelay: opts.restartDelay,
		verbose:      opts.verbose,
		now:          time.Now,
	}
	return d.runLoop(sigCh, heartbeat)
}

// daemon ties the monitor to its consumers and restarts it after a
// hardware failure.
type daemon struct {
	// open requests every line, rendering the LED groups at the given levels.
	open func(levels [logic.NumPositions][logic.NumChannels]int) (*gpio.Hardware, error)

	board        *logic.Board
	publisher    mqtt.Publisher
	mqttStatus   mqtt.ConnectionStatus
	tracker      *status.Tracker
	recorder     *metrics.Recorder
	restartDelay time.Duration
	verbose      bool
	now          func() time.Time
}

// peckQueue is the observer that hands pecks to the publishing goroutine.
// The monitor never blocks on MQTT: when the queue is full pecks are dropped.
type peckQueue chan logic.Peck

func (q peckQueue) Peck(p logic.Peck) {
	select {
	case q <- p:
	default:
		log.Printf("publish queue full, dropping peck %s %s", p.Position, p.To)
	}
}

func (peckQueue) Spurious([]bool) {}
func (peckQueue) Exception(error) {}

const peckQueueSize = 64

func (d *daemon) runLoop(sig <-chan os.Signal, heartbeat <-chan time.Time) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pecks := make(peckQueue, peckQueueSize)
	observers := monitor.Observers{d.tracker, d.recorder, pecks}

	var (
		done    chan error
		restart <-chan time.Time
	)
	start := func() error {
		hw, err := d.open(d.board.Levels())
		if err != nil {
			return err
		}
		mon := monitor.New(hw, d.board,
			monitor.WithObserver(observers),
			monitor.WithClock(d.now),
			monitor.WithVerbose(d.verbose))
		done = make(chan error, 1)
		go func() { done <- mon.Run(ctx) }()

		d.tracker.MonitorStarted(func() string { return mon.Phase().String() })
		d.recorder.MonitorStarted()
		d.recorder.SetColors(d.board.Snapshot())
		return nil
	}

	if err := start(); err != nil {
		return fmt.Errorf("open hardware: %w", err)
	}
	log.Printf("monitor started")

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			cancel()
			if done != nil {
				if err := <-done; err != nil {
					log.Printf("monitor: %v", err)
				}
				d.tracker.MonitorStopped(nil)
				d.recorder.MonitorStopped()
			}
			d.flush(pecks)

			name := signalName(s)
			event := mqtt.SystemEvent{
				Timestamp: d.now(),
				Event:     "SHUTDOWN",
				Reason:    name,
				Retained:  true,
			}
			d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
			event.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), "SHUTDOWN", name)
			if err := d.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case p := <-pecks:
			d.publish(p)

		case err := <-done:
			done = nil
			d.tracker.MonitorStopped(err)
			d.recorder.MonitorStopped()
			d.flush(pecks)

			reason := "stopped"
			if err != nil {
				reason = err.Error()
			}
			log.Printf("monitor stopped: %s", reason)
			d.publishSystem("MONITOR_STOPPED", reason)

			if d.restartDelay <= 0 {
				return fmt.Errorf("monitor stopped: %s", reason)
			}
			log.Printf("restarting monitor in %v", d.restartDelay)
			restart = time.After(d.restartDelay)

		case <-restart:
			restart = nil
			if err := start(); err != nil {
				log.Printf("restart failed: %v; retrying in %v", err, d.restartDelay)
				restart = time.After(d.restartDelay)
				continue
			}
			log.Printf("monitor restarted")

		case <-heartbeat:
			snap := d.tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v pecks=%d spurious=%d exceptions=%d colors=%v",
				snap.Uptime().Truncate(time.Second), snap.Counts.Total(), snap.Counts.Spurious, snap.Counts.Exceptions, snap.Colors)
			d.publishSystem("HEARTBEAT", "")
		}
	}
}

func (d *daemon) publish(p logic.Peck) {
	log.Printf("peck: %s %s -> %s", p.Position, p.From, p.To)
	if err := d.publisher.Publish(p); err != nil {
		log.Printf("publish error: %v", err)
		// Don't crash on publish failure
	}
	d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
}

// flush publishes pecks still queued when the monitor stops.
func (d *daemon) flush(pecks peckQueue) {
	for {
		select {
		case p := <-pecks:
			d.publish(p)
		default:
			return
		}
	}
}

func (d *daemon) publishSystem(event, reason string) {
	d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	snap := d.tracker.Snapshot()
	se := mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      event,
		Reason:     reason,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.publisher.PublishSystem(se); err != nil {
		log.Printf("%s publish error: %v", strings.ToLower(event), err)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// formatKeys renders a key snapshot for -print-state.
func formatKeys(snapshot []bool) string {
	var b strings.Builder
	for i, p := range logic.Positions {
		active := i < len(snapshot) && snapshot[i]
		fmt.Fprintf(&b, "%s: %s, ", p, stateString(active))
	}
	fmt.Fprintf(&b, "resolves to %s", logic.Resolve(snapshot))
	return b.String()
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// nopPublisher stands in when MQTT is disabled or unreachable at startup.
type nopPublisher struct{}

func (nopPublisher) Publish(logic.Peck) error             { return nil }
func (nopPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (nopPublisher) Close() error                         { return nil }
func (nopPublisher) IsConnected() bool                    { return false }
