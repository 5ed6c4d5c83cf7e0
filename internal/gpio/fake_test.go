package gpio

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/sweeney/peckboard/internal/logic"
)

func TestFakeKeyReaderRead(t *testing.T) {
	f := NewFakeKeyReader(
		[]bool{false, false, false},
		[]bool{false, true, false},
		[]bool{true, false, true},
	)

	want := [][]bool{
		{false, false, false},
		{false, true, false},
		{true, false, true},
		{true, false, true}, // repeat last
	}
	for i, w := range want {
		got, err := f.Read()
		if err != nil {
			t.Fatalf("read %d: unexpected error: %v", i, err)
		}
		if !reflect.DeepEqual(got, w) {
			t.Errorf("read %d: got %v, want %v", i, got, w)
		}
	}
	if f.ReadCount() != 4 {
		t.Errorf("ReadCount: got %d, want 4", f.ReadCount())
	}
}

func TestFakeKeyReaderReturnsCopy(t *testing.T) {
	f := NewFakeKeyReader([]bool{false, true, false})
	got, _ := f.Read()
	got[1] = false

	again, _ := f.Read()
	if !again[1] {
		t.Error("mutating a returned snapshot changed the script")
	}
}

func TestFakeKeyReaderPush(t *testing.T) {
	f := NewFakeKeyReader([]bool{false, false, false})
	f.Read()
	f.Push([]bool{true, false, false})

	got, _ := f.Read()
	if !got[0] {
		t.Errorf("pushed sample not returned: %v", got)
	}
}

func TestFakeKeyReaderNoSamples(t *testing.T) {
	f := NewFakeKeyReader()
	if _, err := f.Read(); err == nil {
		t.Error("expected error with no samples")
	}
}

func TestFakeKeyReaderError(t *testing.T) {
	f := NewFakeKeyReader([]bool{true, false, false})
	f.SetReadError(errors.New("simulated error"))

	_, err := f.Read()
	if err == nil || err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakeKeyReaderReset(t *testing.T) {
	f := NewFakeKeyReader([]bool{true, false, false}, []bool{false, true, false})
	f.Read()
	f.Close()
	f.Reset()

	got, _ := f.Read()
	if !got[0] {
		t.Errorf("after reset: got %v", got)
	}
	if f.Closed {
		t.Error("reset should clear Closed")
	}
}

func TestFakeLEDGroup(t *testing.T) {
	g := NewFakeLEDGroup([logic.NumChannels]int{1, 0, 0})

	_, levels := g.Snapshot()
	if levels != [logic.NumChannels]int{1, 0, 0} {
		t.Errorf("initial levels: got %v", levels)
	}

	if err := g.Set([logic.NumChannels]int{0, 1, 0}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	writes, levels := g.Snapshot()
	if len(writes) != 1 || levels != [logic.NumChannels]int{0, 1, 0} {
		t.Errorf("after set: writes %v, levels %v", writes, levels)
	}

	g.SetWriteError(errors.New("simulated error"))
	if err := g.Set([logic.NumChannels]int{1, 1, 1}); err == nil {
		t.Error("expected write error")
	}
	_, levels = g.Snapshot()
	if levels != [logic.NumChannels]int{0, 1, 0} {
		t.Errorf("failed write changed levels to %v", levels)
	}
}

func TestFakeEventSourceTriggerNumbersEdges(t *testing.T) {
	src := NewFakeEventSource("src")
	src.Trigger(EdgeRising)
	e1, _ := src.Drain()
	src.Trigger(EdgeFalling)
	e2, _ := src.Drain()

	if e1.Seqno != 1 || e2.Seqno != 2 {
		t.Errorf("seqnos: got %d, %d", e1.Seqno, e2.Seqno)
	}
	if e2.Type != EdgeFalling {
		t.Errorf("type: got %s", e2.Type)
	}
}

func TestFakeHardwareClose(t *testing.T) {
	hw := NewFakeHardware([logic.NumPositions][logic.NumChannels]int{})
	if err := hw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !hw.Interrupt.Closed() {
		t.Error("interrupt not closed")
	}
	if !hw.Keys.Closed {
		t.Error("keys not closed")
	}
	for i, g := range hw.LEDs {
		if !g.Closed {
			t.Errorf("LED group %d not closed", i)
		}
	}
}

type failCloser struct{ err error }

func (f failCloser) Close() error { return f.err }

func TestHardwareCloseAggregatesErrors(t *testing.T) {
	src := NewFakeEventSource("src")
	keys := NewFakeKeyReader()
	var leds [logic.NumPositions]LEDGroup
	for i := range leds {
		leds[i] = NewFakeLEDGroup([logic.NumChannels]int{})
	}
	hw := NewHardware(src, keys, leds, failCloser{errors.New("ir stuck")})

	err := hw.Close()
	if err == nil || !strings.Contains(err.Error(), "ir stuck") {
		t.Fatalf("expected aggregated error, got %v", err)
	}
	if !src.Closed() || !keys.Closed {
		t.Error("remaining lines should still be closed")
	}
}

func TestParseEdge(t *testing.T) {
	for _, e := range []Edge{EdgeRising, EdgeFalling, EdgeBoth} {
		got, err := ParseEdge(e.String())
		if err != nil || got != e {
			t.Errorf("ParseEdge(%q): got %v, %v", e.String(), got, err)
		}
	}
	if _, err := ParseEdge("sideways"); err == nil {
		t.Error("expected error for unknown edge")
	}
}

func TestErrorTypesUnwrap(t *testing.T) {
	cause := errors.New("ioctl failed")
	tests := []error{
		&ConfigurationError{Line: "gpiochip2:25", Err: cause},
		&WaitError{Err: cause},
		&ReadError{Line: "gpiochip4:[13 14 15]", Err: cause},
		&WriteError{Line: "gpiochip4:[3 0 6]", Err: cause},
	}
	for _, err := range tests {
		if !errors.Is(err, cause) {
			t.Errorf("%T does not unwrap to its cause", err)
		}
		if !strings.Contains(err.Error(), "ioctl failed") {
			t.Errorf("%T message missing cause: %q", err, err.Error())
		}
	}
}

func TestLineSpecString(t *testing.T) {
	s := LineSpec{Chip: "gpiochip2", Offset: 25}
	if s.String() != "gpiochip2:25" {
		t.Errorf("got %q", s.String())
	}
}
