package gpio

import (
	"context"
	"fmt"
	"reflect"
	"time"
)

// ReadyKind distinguishes an ordinary edge from an exceptional condition.
type ReadyKind int

const (
	// ReadyEdge means the source holds an edge to Drain.
	ReadyEdge ReadyKind = iota + 1
	// ReadyException means the source raised an out-of-band condition.
	ReadyException
)

func (k ReadyKind) String() string {
	switch k {
	case ReadyEdge:
		return "edge"
	case ReadyException:
		return "exception"
	}
	return fmt.Sprintf("ReadyKind(%d)", int(k))
}

// Readiness reports one source that became ready.
type Readiness struct {
	Source EventSource
	Kind   ReadyKind
	// Err is set for ReadyException.
	Err error
}

// Wait blocks until at least one source is ready, the timeout elapses, or
// ctx is done. A timeout <= 0 waits indefinitely.
//
// It returns every source that is ready at wakeup; edges and exceptions on
// the same source are reported as separate entries. On timeout it returns
// an empty result and a nil error. On cancellation it returns ctx.Err().
// A closed source or an empty source list yields a *WaitError.
//
// Each ready signal is reported once; the caller drains ReadyEdge sources.
func Wait(ctx context.Context, timeout time.Duration, sources ...EventSource) ([]Readiness, error) {
	if len(sources) == 0 {
		return nil, &WaitError{Err: ErrNoSources}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Case layout: [ctx, timer, (ready, exceptions, done) per source].
	const perSource = 3
	cases := make([]reflect.SelectCase, 2, 2+perSource*len(sources))
	cases[0] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())}
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		cases[1] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(timer.C)}
	} else {
		// Zero Chan: the case is never chosen.
		cases[1] = reflect.SelectCase{Dir: reflect.SelectRecv}
	}
	for _, s := range sources {
		cases = append(cases,
			reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(s.Ready())},
			reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(s.Exceptions())},
			reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(s.Done())},
		)
	}

	chosen, recv, _ := reflect.Select(cases)
	switch chosen {
	case 0:
		return nil, ctx.Err()
	case 1:
		return []Readiness{}, nil
	}

	idx := (chosen - 2) / perSource
	src := sources[idx]
	var out []Readiness
	switch (chosen - 2) % perSource {
	case 0:
		out = append(out, Readiness{Source: src, Kind: ReadyEdge})
	case 1:
		err, _ := recv.Interface().(error)
		out = append(out, Readiness{Source: src, Kind: ReadyException, Err: err})
	case 2:
		return nil, &WaitError{Err: fmt.Errorf("%s: %w", src.Name(), ErrClosed)}
	}

	// Collect anything else that is already ready without blocking.
	for i, s := range sources {
		if i != idx || out[0].Kind != ReadyException {
			if err := pollException(s.Exceptions()); err != nil {
				out = append(out, Readiness{Source: s, Kind: ReadyException, Err: err})
			}
		}
		if i != idx || out[0].Kind != ReadyEdge {
			if pollReady(s.Ready()) {
				out = append(out, Readiness{Source: s, Kind: ReadyEdge})
			}
		}
	}

	return out, nil
}

func pollReady(ready <-chan struct{}) bool {
	select {
	case <-ready:
		return true
	default:
		return false
	}
}

// pollException returns a queued exception, or nil. Sources never queue nil.
func pollException(exceptions <-chan error) error {
	select {
	case err := <-exceptions:
		return err
	default:
		return nil
	}
}

// WaitAndDrain blocks until src has an edge, then drains and returns it,
// so an immediate second call blocks until the next edge. Exceptions are
// skipped; use Wait to observe them.
func WaitAndDrain(ctx context.Context, src EventSource) (Event, error) {
	for {
		ready, err := Wait(ctx, 0, src)
		if err != nil {
			return Event{}, err
		}
		for _, r := range ready {
			if r.Kind != ReadyEdge {
				continue
			}
			if e, ok := src.Drain(); ok {
				return e, nil
			}
		}
	}
}
