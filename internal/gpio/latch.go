package gpio

import (
	"fmt"
	"sync"
)

// exceptionBuffer bounds queued exceptions; further ones are dropped
// until the consumer catches up.
const exceptionBuffer = 8

// edgeLatch holds at most one undrained edge and signals its arrival.
// It backs both the real and fake event sources.
type edgeLatch struct {
	name string

	mu      sync.Mutex
	pending Event
	has     bool
	lastSeq uint32
	closed  bool

	ready      chan struct{}
	exceptions chan error
	done       chan struct{}
}

func newEdgeLatch(name string) *edgeLatch {
	return &edgeLatch{
		name:       name,
		ready:      make(chan struct{}, 1),
		exceptions: make(chan error, exceptionBuffer),
		done:       make(chan struct{}),
	}
}

// post records an edge. An undrained edge is replaced by the newer one and
// an overrun is raised. Never blocks.
func (l *edgeLatch) post(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	if l.has {
		l.raise(fmt.Errorf("%s: %w: seqno %d replaced by %d", l.name, ErrOverrun, l.pending.Seqno, e.Seqno))
	}
	if e.Seqno != 0 {
		if l.lastSeq != 0 && e.Seqno > l.lastSeq+1 {
			l.raise(fmt.Errorf("%s: %w: %d missing before seqno %d", l.name, ErrEventsLost, e.Seqno-l.lastSeq-1, e.Seqno))
		}
		l.lastSeq = e.Seqno
	}

	l.pending = e
	l.has = true
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

// raise queues an exception. Caller must hold l.mu.
func (l *edgeLatch) raise(err error) {
	select {
	case l.exceptions <- err:
	default:
	}
}

// exception queues an out-of-band condition for the consumer.
func (l *edgeLatch) exception(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.raise(err)
	}
}

func (l *edgeLatch) Name() string { return l.name }

func (l *edgeLatch) Ready() <-chan struct{} { return l.ready }

func (l *edgeLatch) Exceptions() <-chan error { return l.exceptions }

func (l *edgeLatch) Done() <-chan struct{} { return l.done }

// Drain removes the pending edge and any outstanding ready signal.
func (l *edgeLatch) Drain() (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	select {
	case <-l.ready:
	default:
	}

	if !l.has {
		return Event{}, false
	}
	e := l.pending
	l.pending = Event{}
	l.has = false
	return e, true
}

func (l *edgeLatch) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.done)
}
