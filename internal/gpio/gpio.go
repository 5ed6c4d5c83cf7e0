// Package gpio provides the peckboard's hardware boundary: edge-triggered
// event sources, the wait multiplexer, key snapshot reading and LED output.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sweeney/peckboard/internal/logic"
)

// Direction is the configured direction of a line.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// Edge selects which level transitions generate events.
type Edge int

const (
	EdgeRising Edge = iota + 1
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	}
	return fmt.Sprintf("Edge(%d)", int(e))
}

// ParseEdge converts a config edge name.
func ParseEdge(s string) (Edge, error) {
	for _, e := range []Edge{EdgeRising, EdgeFalling, EdgeBoth} {
		if e.String() == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown edge %q", s)
}

// LineSpec identifies a single line and how it is to be used.
type LineSpec struct {
	Chip      string
	Offset    int
	Direction Direction
	// ActiveLow makes a low physical level read as active.
	ActiveLow bool
}

func (s LineSpec) String() string {
	return fmt.Sprintf("%s:%d", s.Chip, s.Offset)
}

// Event is a single edge taken from an EventSource.
type Event struct {
	Offset int
	// Type is EdgeRising or EdgeFalling.
	Type Edge
	// Timestamp is the kernel's monotonic event time.
	Timestamp time.Duration
	// Seqno is the per-request sequence number, 0 if unknown.
	Seqno uint32
}

// EventSource is an input line configured to notify on an edge.
//
// At most one undrained edge is held at a time. Ready is signalled once per
// pending edge and Drain consumes it, so an edge is never delivered twice.
type EventSource interface {
	// Name identifies the source in logs and errors.
	Name() string

	// Ready receives a value when an edge becomes pending.
	Ready() <-chan struct{}

	// Exceptions receives out-of-band conditions on the line, such as
	// overruns and events lost by the kernel. These are not key events.
	Exceptions() <-chan error

	// Drain removes and returns the pending edge, if any.
	Drain() (Event, bool)

	// Done is closed once the source is closed.
	Done() <-chan struct{}

	// Close releases the line.
	Close() error
}

// KeyReader reads the instantaneous level of the key lines.
type KeyReader interface {
	// Read returns one value per key line in declared order, true when
	// the line is at its active level. Read never blocks.
	Read() ([]bool, error)

	// Close releases the key lines.
	Close() error
}

// LEDGroup drives the red, blue and green lines of one position.
type LEDGroup interface {
	// Set writes the levels, ordered red, blue, green, in one request.
	Set(levels [logic.NumChannels]int) error

	// Close releases the lines without changing their levels.
	Close() error
}

// Hardware bundles the lines the monitor takes ownership of.
type Hardware struct {
	Interrupt EventSource
	Keys      KeyReader
	LEDs      [logic.NumPositions]LEDGroup

	// extra holds lines held for the monitor's lifetime but never
	// touched by it, such as the IR emitters.
	extra []io.Closer
}

// NewHardware assembles a Hardware from already-opened lines.
func NewHardware(interrupt EventSource, keys KeyReader, leds [logic.NumPositions]LEDGroup, extra ...io.Closer) *Hardware {
	return &Hardware{
		Interrupt: interrupt,
		Keys:      keys,
		LEDs:      leds,
		extra:     extra,
	}
}

// Close releases every line. All lines are closed even if some fail.
func (h *Hardware) Close() error {
	var errs []error
	closeOne := func(name string, c io.Closer) {
		if c == nil {
			return
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}

	closeOne("interrupt", h.Interrupt)
	closeOne("keys", h.Keys)
	for i, l := range h.LEDs {
		closeOne(fmt.Sprintf("%s leds", logic.Positions[i]), l)
	}
	for _, c := range h.extra {
		closeOne("line", c)
	}

	return errors.Join(errs...)
}
