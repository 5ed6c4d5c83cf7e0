package logic

import "sync/atomic"

// Snapshot is a point-in-time copy of every position's color.
type Snapshot [NumPositions]Color

// Color returns the color held for p, or ColorOff for PositionNone.
func (s Snapshot) Color(p Position) Color {
	i, ok := p.Index()
	if !ok {
		return ColorOff
	}
	return s[i]
}

// Board holds the feedback state of each position.
//
// Advance and Commit must only be called by the goroutine that owns the
// board (the monitor loop). Snapshot and Color may be called from any
// goroutine; they read an immutable copy published on each Commit.
type Board struct {
	colors    Snapshot
	published atomic.Pointer[Snapshot]
}

// NewBoard creates a board with every position OFF.
func NewBoard() *Board {
	b := &Board{}
	b.publish()
	return b
}

// Advance computes the next transition for p without changing the board.
// It returns false for PositionNone, which is never a feedback trigger.
func (b *Board) Advance(p Position) (Transition, bool) {
	i, ok := p.Index()
	if !ok {
		return Transition{}, false
	}
	from := b.colors[i]
	return Transition{Position: p, From: from, To: from.Next()}, true
}

// Commit applies a transition produced by Advance once its LED levels
// have been rendered.
func (b *Board) Commit(t Transition) {
	i, ok := t.Position.Index()
	if !ok {
		return
	}
	b.colors[i] = t.To
	b.publish()
}

// Snapshot returns the most recently committed colors.
func (b *Board) Snapshot() Snapshot {
	s := b.published.Load()
	if s == nil {
		return Snapshot{}
	}
	return *s
}

// Color returns the most recently committed color for p.
func (b *Board) Color(p Position) Color {
	return b.Snapshot().Color(p)
}

// Levels returns the rendered line values of every LED group,
// in declared position order.
func (b *Board) Levels() [NumPositions][NumChannels]int {
	snap := b.Snapshot()
	var out [NumPositions][NumChannels]int
	for i, c := range snap {
		out[i] = c.Levels()
	}
	return out
}

func (b *Board) publish() {
	s := b.colors
	b.published.Store(&s)
}
