// Package monitor runs the peckboard's event loop: wait for the interrupt,
// drain it, snapshot the keys, resolve a position and advance its LED.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/sweeney/peckboard/internal/gpio"
	"github.com/sweeney/peckboard/internal/logic"
)

// ErrAlreadyRun is returned by a second call to Run. A monitor releases
// its lines when Run returns and cannot be restarted; build a new one.
var ErrAlreadyRun = errors.New("monitor already run")

// Phase is the monitor's position in its cycle.
type Phase int32

const (
	PhaseNew Phase = iota
	PhaseIdle
	PhaseDraining
	PhaseResolving
	PhaseAdvancing
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseNew:
		return "NEW"
	case PhaseIdle:
		return "IDLE"
	case PhaseDraining:
		return "DRAINING"
	case PhaseResolving:
		return "RESOLVING"
	case PhaseAdvancing:
		return "ADVANCING"
	case PhaseStopped:
		return "STOPPED"
	}
	return fmt.Sprintf("Phase(%d)", int32(p))
}

// Observer is told about everything the loop does. Calls are made from the
// monitor goroutine and must return quickly.
type Observer interface {
	// Peck reports a key press that was rendered on its LED.
	Peck(p logic.Peck)

	// Spurious reports an edge whose snapshot had no active key.
	Spurious(snapshot []bool)

	// Exception reports an out-of-band condition on the interrupt line.
	Exception(err error)
}

// Observers fans out to several observers in order.
type Observers []Observer

func (o Observers) Peck(p logic.Peck) {
	for _, obs := range o {
		obs.Peck(p)
	}
}

func (o Observers) Spurious(snapshot []bool) {
	for _, obs := range o {
		obs.Spurious(snapshot)
	}
}

func (o Observers) Exception(err error) {
	for _, obs := range o {
		obs.Exception(err)
	}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithObserver sets the observer notified of loop activity.
// A nil observer is ignored.
func WithObserver(obs Observer) Option {
	return func(m *Monitor) {
		if obs != nil {
			m.obs = obs
		}
	}
}

// WithClock overrides the time source used to stamp pecks.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithVerbose logs every edge, including spurious ones.
func WithVerbose(v bool) Option {
	return func(m *Monitor) { m.verbose = v }
}

// Monitor owns the hardware lines and the board while it runs.
type Monitor struct {
	hw      *gpio.Hardware
	board   *logic.Board
	obs     Observer
	now     func() time.Time
	verbose bool

	phase   atomic.Int32
	started atomic.Bool
}

// New creates a monitor. Ownership of hw transfers to the monitor: nothing
// else may touch its lines, and Run closes them on return. The board is
// mutated only from Run; other goroutines read it through Snapshot.
func New(hw *gpio.Hardware, board *logic.Board, opts ...Option) *Monitor {
	m := &Monitor{
		hw:    hw,
		board: board,
		obs:   Observers(nil),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Phase returns the loop's current phase.
func (m *Monitor) Phase() Phase {
	return Phase(m.phase.Load())
}

// CurrentState returns the last rendered color for p.
func (m *Monitor) CurrentState(p logic.Position) logic.Color {
	return m.board.Color(p)
}

// Snapshot returns the last rendered color of every position.
func (m *Monitor) Snapshot() logic.Snapshot {
	return m.board.Snapshot()
}

// Run waits for interrupts and renders feedback until ctx is done or a
// hardware operation fails.
//
// Cancellation returns nil. A wait, read or write failure stops the loop
// and is returned wrapped; it is never retried here. In every case the
// hardware lines are released before Run returns.
func (m *Monitor) Run(ctx context.Context) (err error) {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}

	defer func() {
		m.setPhase(PhaseStopped)
		if cerr := m.hw.Close(); cerr != nil {
			if err == nil {
				err = fmt.Errorf("release lines: %w", cerr)
			} else {
				log.Printf("monitor: release lines: %v", cerr)
			}
		}
	}()

	src := m.hw.Interrupt
	for {
		m.setPhase(PhaseIdle)
		ready, err := gpio.Wait(ctx, 0, src)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("monitor: %w", err)
		}

		for _, r := range ready {
			switch r.Kind {
			case gpio.ReadyException:
				log.Printf("monitor: %s exception: %v", r.Source.Name(), r.Err)
				m.obs.Exception(r.Err)
			case gpio.ReadyEdge:
				if err := m.handleEdge(); err != nil {
					return fmt.Errorf("monitor: %w", err)
				}
			}
		}
	}
}

// handleEdge runs drain, snapshot, resolve and advance for one wakeup.
// The edge is drained before the snapshot so the snapshot postdates it.
func (m *Monitor) handleEdge() error {
	m.setPhase(PhaseDraining)
	edge, ok := m.hw.Interrupt.Drain()
	if !ok {
		return nil
	}

	m.setPhase(PhaseResolving)
	snapshot, err := m.hw.Keys.Read()
	if err != nil {
		return asReadError(err)
	}
	pos := logic.Resolve(snapshot)

	m.setPhase(PhaseAdvancing)
	t, ok := m.board.Advance(pos)
	if !ok {
		if m.verbose {
			log.Printf("monitor: spurious edge seqno=%d keys=%v", edge.Seqno, snapshot)
		}
		m.obs.Spurious(snapshot)
		return nil
	}

	i, _ := pos.Index()
	if err := m.hw.LEDs[i].Set(t.To.Levels()); err != nil {
		return asWriteError(pos, err)
	}
	m.board.Commit(t)

	if m.verbose {
		log.Printf("monitor: peck %s %s -> %s (seqno=%d)", pos, t.From, t.To, edge.Seqno)
	}
	m.obs.Peck(logic.Peck{
		Timestamp: m.now(),
		Position:  pos,
		From:      t.From,
		To:        t.To,
	})
	return nil
}

func (m *Monitor) setPhase(p Phase) {
	m.phase.Store(int32(p))
}

func asReadError(err error) error {
	var rerr *gpio.ReadError
	if errors.As(err, &rerr) {
		return err
	}
	return &gpio.ReadError{Line: "keys", Err: err}
}

func asWriteError(pos logic.Position, err error) error {
	var werr *gpio.WriteError
	if errors.As(err, &werr) {
		return err
	}
	return &gpio.WriteError{Line: pos.String() + " leds", Err: err}
}
