package gpio

import (
	"errors"
	"sync"

	"github.com/sweeney/peckboard/internal/logic"
)

// FakeEventSource is a test double whose edges are injected with Trigger.
type FakeEventSource struct {
	*edgeLatch

	mu     sync.Mutex
	seq    uint32
	closed bool
}

// NewFakeEventSource creates a FakeEventSource with the given name.
func NewFakeEventSource(name string) *FakeEventSource {
	return &FakeEventSource{edgeLatch: newEdgeLatch(name)}
}

// Trigger injects an edge of the given type, as if the kernel reported it.
func (f *FakeEventSource) Trigger(edge Edge) {
	f.mu.Lock()
	f.seq++
	seq := f.seq
	f.mu.Unlock()

	f.post(Event{Type: edge, Seqno: seq})
}

// TriggerEvent injects a fully specified edge.
func (f *FakeEventSource) TriggerEvent(e Event) {
	f.post(e)
}

// Raise injects an exceptional condition.
func (f *FakeEventSource) Raise(err error) {
	f.exception(err)
}

// Close marks the source as closed and wakes any waiter.
func (f *FakeEventSource) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.close()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeEventSource) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// FakeKeyReader is a test double that returns scripted key snapshots.
type FakeKeyReader struct {
	mu sync.Mutex

	// Samples contains scripted snapshots to return.
	// Each call to Read() consumes the next sample.
	Samples [][]bool

	// index is the next unread position in Samples
	index int

	// Reads counts calls to Read.
	Reads int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeKeyReader creates a FakeKeyReader with the given samples.
func NewFakeKeyReader(samples ...[]bool) *FakeKeyReader {
	return &FakeKeyReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeKeyReader) Read() ([]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Reads++
	if f.ReadError != nil {
		return nil, f.ReadError
	}
	if len(f.Samples) == 0 {
		return nil, errors.New("no samples configured")
	}

	sample := f.Samples[len(f.Samples)-1]
	if f.index < len(f.Samples) {
		sample = f.Samples[f.index]
		f.index++
	}

	out := make([]bool, len(sample))
	copy(out, sample)
	return out, nil
}

// Push appends a sample to the script; it is returned once earlier
// samples are consumed.
func (f *FakeKeyReader) Push(sample []bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Samples = append(f.Samples, sample)
}

// Reset rewinds the reader to the first sample.
func (f *FakeKeyReader) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
	f.Reads = 0
	f.Closed = false
}

// SetReadError makes subsequent reads fail with err.
func (f *FakeKeyReader) SetReadError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReadError = err
}

// ReadCount returns the number of Read calls.
func (f *FakeKeyReader) ReadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Reads
}

// Close marks the reader as closed.
func (f *FakeKeyReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// FakeLEDGroup records every write for test assertions.
type FakeLEDGroup struct {
	mu sync.Mutex

	// Writes contains every level set written, in order.
	Writes [][logic.NumChannels]int

	// Levels is the last written value (initial value before any write).
	Levels [logic.NumChannels]int

	// WriteError, if set, will be returned by Set.
	WriteError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeLEDGroup creates a FakeLEDGroup with initial levels.
func NewFakeLEDGroup(initial [logic.NumChannels]int) *FakeLEDGroup {
	return &FakeLEDGroup{Levels: initial}
}

// Set records the levels.
func (f *FakeLEDGroup) Set(levels [logic.NumChannels]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes = append(f.Writes, levels)
	f.Levels = levels
	return nil
}

// SetWriteError makes subsequent writes fail with err.
func (f *FakeLEDGroup) SetWriteError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.WriteError = err
}

// Snapshot returns a copy of the recorded writes and current levels.
func (f *FakeLEDGroup) Snapshot() ([][logic.NumChannels]int, [logic.NumChannels]int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writes := make([][logic.NumChannels]int, len(f.Writes))
	copy(writes, f.Writes)
	return writes, f.Levels
}

// Close marks the group as closed.
func (f *FakeLEDGroup) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// FakeHardware bundles fakes for every line the monitor uses.
type FakeHardware struct {
	*Hardware
	Interrupt *FakeEventSource
	Keys      *FakeKeyReader
	LEDs      [logic.NumPositions]*FakeLEDGroup
}

// NewFakeHardware creates fake hardware whose LED groups start at initial.
func NewFakeHardware(initial [logic.NumPositions][logic.NumChannels]int, samples ...[]bool) *FakeHardware {
	f := &FakeHardware{
		Interrupt: NewFakeEventSource("fake:interrupt"),
		Keys:      NewFakeKeyReader(samples...),
	}
	var leds [logic.NumPositions]LEDGroup
	for i := range f.LEDs {
		f.LEDs[i] = NewFakeLEDGroup(initial[i])
		leds[i] = f.LEDs[i]
	}
	f.Hardware = NewHardware(f.Interrupt, f.Keys, leds)
	return f
}
