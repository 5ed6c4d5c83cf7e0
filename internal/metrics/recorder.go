// Package metrics exports peckboard activity as Prometheus metrics.
package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/peckboard/internal/logic"
)

const namespace = "peckboard"

// Recorder counts pecks, spurious edges and exceptions, and tracks the
// rendered color of each position. It implements monitor.Observer.
type Recorder struct {
	reg        *prom.Registry
	pecks      *prom.CounterVec
	spurious   prom.Counter
	exceptions prom.Counter
	ledColor   *prom.GaugeVec
	restarts   prom.Counter
	running    prom.Gauge
	started    bool
}

// NewRecorder constructs the metrics and registers them with reg.
// A nil reg gets a fresh registry.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{
		reg: reg,
		pecks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "pecks_total",
			Help:      "Key presses rendered, by position",
		}, []string{"position"}),
		spurious: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "spurious_edges_total",
			Help:      "Interrupt edges with no active key line",
		}),
		exceptions: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "exceptions_total",
			Help:      "Exceptional conditions on the interrupt line (overruns, lost events)",
		}),
		ledColor: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "led_color",
			Help:      "Rendered color of each position (0=OFF 1=BLUE 2=RED 3=GREEN 4=ALL)",
		}, []string{"position"}),
		restarts: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_restarts_total",
			Help:      "Times the monitor was restarted after stopping",
		}),
		running: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_running",
			Help:      "1 while the monitor loop is running",
		}),
	}
	reg.MustRegister(r.pecks, r.spurious, r.exceptions, r.ledColor, r.restarts, r.running)

	for _, p := range logic.Positions {
		r.pecks.WithLabelValues(p.String())
		r.ledColor.WithLabelValues(p.String()).Set(float64(logic.ColorOff))
	}
	return r
}

// Peck counts a rendered key press and records the new color.
func (r *Recorder) Peck(p logic.Peck) {
	r.pecks.WithLabelValues(p.Position.String()).Inc()
	r.ledColor.WithLabelValues(p.Position.String()).Set(float64(p.To))
}

func (r *Recorder) Spurious([]bool) { r.spurious.Inc() }

func (r *Recorder) Exception(error) { r.exceptions.Inc() }

// SetColors records every position's color, e.g. after a restart.
func (r *Recorder) SetColors(s logic.Snapshot) {
	for i, p := range logic.Positions {
		r.ledColor.WithLabelValues(p.String()).Set(float64(s[i]))
	}
}

// MonitorStarted marks the monitor running. Starts after the first are
// counted as restarts. Called from the supervisor goroutine only.
func (r *Recorder) MonitorStarted() {
	if r.started {
		r.restarts.Inc()
	}
	r.started = true
	r.running.Set(1)
}

// MonitorStopped marks the monitor stopped.
func (r *Recorder) MonitorStopped() {
	r.running.Set(0)
}

// Handler serves the recorder's registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
