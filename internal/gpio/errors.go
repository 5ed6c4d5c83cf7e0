package gpio

import (
	"errors"
	"fmt"
)

var (
	// ErrOutputLine is returned when an event source is requested on an output.
	ErrOutputLine = errors.New("line is configured as an output")

	// ErrClosed is returned when waiting on a closed event source.
	ErrClosed = errors.New("event source closed")

	// ErrNoSources is returned when Wait is called without sources.
	ErrNoSources = errors.New("no event sources")

	// ErrOverrun is raised when an edge arrives before the previous one was drained.
	ErrOverrun = errors.New("edge overrun")

	// ErrEventsLost is raised when the kernel reports dropped edge events.
	ErrEventsLost = errors.New("edge events lost")
)

// ConfigurationError reports a line that could not be opened or requested.
// It is fatal at startup.
type ConfigurationError struct {
	Line string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configure line %s: %v", e.Line, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// WaitError reports a failure of the wait multiplexer itself.
type WaitError struct {
	Err error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("wait for events: %v", e.Err)
}

func (e *WaitError) Unwrap() error { return e.Err }

// ReadError reports a failed read of input lines.
type ReadError struct {
	Line string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Line, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports a failed write of output lines.
type WriteError struct {
	Line string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Line, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
