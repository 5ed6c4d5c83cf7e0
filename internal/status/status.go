// Package status provides a thread-safe status tracker for the peckboard daemon.
// It is read by the HTTP handlers and the MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/peckboard/internal/logic"
)

// StateReader exposes the rendered board colors. *logic.Board satisfies it.
type StateReader interface {
	Snapshot() logic.Snapshot
}

// Config contains daemon configuration for display.
type Config struct {
	HeartbeatMs    int64
	RestartDelayMs int64
	Broker         string
	HTTPAddr       string
	ConfigPath     string // empty = built-in layout
	PrimaryChip    string
	Interrupt      string // chip:offset
}

// Monitor describes the monitor goroutine as seen by the supervisor.
type Monitor struct {
	Phase     string
	Running   bool
	Restarts  int
	LastError string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type; safe to use after the lock is released.
type Snapshot struct {
	Colors        logic.Snapshot
	Counts        logic.Counts
	LastPeck      *logic.Peck
	Monitor       Monitor
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
// It implements monitor.Observer so counts follow the loop directly.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	board   StateReader
	phase   func() string
	started bool
}

// NewTracker creates a Tracker with the given start time and config.
// board may be nil, in which case every position reads OFF.
func NewTracker(startTime time.Time, cfg Config, board StateReader) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Monitor:   Monitor{Phase: "NEW"},
		},
		board: board,
	}
}

// Peck records a rendered key press.
func (t *Tracker) Peck(p logic.Peck) {
	t.mu.Lock()
	if i, ok := p.Position.Index(); ok {
		t.snap.Counts.Pecks[i]++
	}
	t.snap.LastPeck = &p
	t.mu.Unlock()
}

// Spurious records an edge with no active key.
func (t *Tracker) Spurious([]bool) {
	t.mu.Lock()
	t.snap.Counts.Spurious++
	t.mu.Unlock()
}

// Exception records an exceptional condition on the interrupt line.
func (t *Tracker) Exception(error) {
	t.mu.Lock()
	t.snap.Counts.Exceptions++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// MonitorStarted marks a monitor as running. phase reports its current
// phase name. Every start after the first counts as a restart.
func (t *Tracker) MonitorStarted(phase func() string) {
	t.mu.Lock()
	if t.started {
		t.snap.Monitor.Restarts++
	}
	t.started = true
	t.snap.Monitor.Running = true
	t.phase = phase
	t.mu.Unlock()
}

// MonitorStopped marks the monitor as stopped, recording err if non-nil.
func (t *Tracker) MonitorStopped(err error) {
	t.mu.Lock()
	t.snap.Monitor.Running = false
	if err != nil {
		t.snap.Monitor.LastError = err.Error()
	}
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	phase := t.phase
	t.mu.RUnlock()

	if s.LastPeck != nil {
		p := *s.LastPeck
		s.LastPeck = &p
	}
	if phase != nil {
		s.Monitor.Phase = phase()
	}
	if t.board != nil {
		s.Colors = t.board.Snapshot()
	}
	s.Now = time.Now()
	return s
}
