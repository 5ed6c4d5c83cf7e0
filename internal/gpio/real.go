//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"io"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/peckboard/internal/config"
	"github.com/sweeney/peckboard/internal/logic"
)

// RealEventSource is an input line on a GPIO character device that
// reports edges through the go-gpiocdev event handler.
type RealEventSource struct {
	*edgeLatch
	spec LineSpec
	line *gpiocdev.Line
}

// NewRealEventSource requests spec as an input with edge detection.
// It fails with a *ConfigurationError if spec is an output, if the kernel
// reports the line as an output already in use, or if the request fails.
func NewRealEventSource(spec LineSpec, edge Edge, consumer string) (*RealEventSource, error) {
	if spec.Direction == Output {
		return nil, &ConfigurationError{Line: spec.String(), Err: ErrOutputLine}
	}

	var edgeOpt gpiocdev.LineReqOption
	switch edge {
	case EdgeRising:
		edgeOpt = gpiocdev.WithRisingEdge
	case EdgeFalling:
		edgeOpt = gpiocdev.WithFallingEdge
	case EdgeBoth:
		edgeOpt = gpiocdev.WithBothEdges
	default:
		return nil, &ConfigurationError{Line: spec.String(), Err: fmt.Errorf("unsupported edge %v", edge)}
	}

	chip, err := gpiocdev.NewChip(spec.Chip, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, &ConfigurationError{Line: spec.String(), Err: fmt.Errorf("open chip: %w", err)}
	}
	// Requested lines outlive the chip handle.
	defer chip.Close()

	info, err := chip.LineInfo(spec.Offset)
	if err != nil {
		return nil, &ConfigurationError{Line: spec.String(), Err: fmt.Errorf("line info: %w", err)}
	}
	if info.Used && info.Config.Direction == gpiocdev.LineDirectionOutput {
		return nil, &ConfigurationError{Line: spec.String(), Err: fmt.Errorf("%w (consumer %q)", ErrOutputLine, info.Consumer)}
	}

	s := &RealEventSource{
		edgeLatch: newEdgeLatch(spec.String()),
		spec:      spec,
	}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		edgeOpt,
		gpiocdev.WithEventHandler(s.handle),
	}
	if spec.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := chip.RequestLine(spec.Offset, opts...)
	if err != nil {
		return nil, &ConfigurationError{Line: spec.String(), Err: fmt.Errorf("request edge events: %w", err)}
	}
	s.line = line
	return s, nil
}

// handle runs on the gpiocdev watcher goroutine and must not block.
func (s *RealEventSource) handle(evt gpiocdev.LineEvent) {
	e := Event{
		Offset:    evt.Offset,
		Type:      EdgeRising,
		Timestamp: evt.Timestamp,
		Seqno:     evt.LineSeqno,
	}
	if evt.Type == gpiocdev.LineEventFallingEdge {
		e.Type = EdgeFalling
	}
	s.post(e)
}

// Close releases the line. Any waiter is woken with ErrClosed.
func (s *RealEventSource) Close() error {
	var err error
	if s.line != nil {
		// Waits for a running handler to return.
		err = s.line.Close()
	}
	s.close()
	if err != nil {
		return fmt.Errorf("close %s: %w", s.spec, err)
	}
	return nil
}

// RealKeyReader reads all key lines with a single multi-line request.
type RealKeyReader struct {
	name  string
	lines *gpiocdev.Lines
	n     int
}

// NewRealKeyReader requests offsets on chip as inputs, in scan order.
func NewRealKeyReader(chip string, offsets []int, activeLow bool, consumer string) (*RealKeyReader, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithConsumer(consumer)}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	lines, err := gpiocdev.RequestLines(chip, offsets, opts...)
	if err != nil {
		return nil, &ConfigurationError{Line: fmt.Sprintf("%s:%v", chip, offsets), Err: fmt.Errorf("request keys: %w", err)}
	}
	return &RealKeyReader{name: fmt.Sprintf("%s:%v", chip, offsets), lines: lines, n: len(offsets)}, nil
}

// Read returns the logical level of every key line from one ioctl, so the
// snapshot cannot be torn between lines.
func (r *RealKeyReader) Read() ([]bool, error) {
	values := make([]int, r.n)
	if err := r.lines.Values(values); err != nil {
		return nil, &ReadError{Line: r.name, Err: err}
	}

	out := make([]bool, r.n)
	for i, v := range values {
		out[i] = v == 1
	}
	return out, nil
}

// Close releases the key lines.
func (r *RealKeyReader) Close() error {
	if err := r.lines.Close(); err != nil {
		return fmt.Errorf("close keys: %w", err)
	}
	return nil
}

// RealLEDGroup drives one position's red, blue and green lines.
type RealLEDGroup struct {
	name  string
	lines *gpiocdev.Lines
}

// NewRealLEDGroup requests offsets (red, blue, green) as outputs at initial.
func NewRealLEDGroup(chip string, offsets []int, initial [logic.NumChannels]int, consumer string) (*RealLEDGroup, error) {
	if len(offsets) != logic.NumChannels {
		return nil, &ConfigurationError{Line: fmt.Sprintf("%s:%v", chip, offsets), Err: fmt.Errorf("need %d LED lines, got %d", logic.NumChannels, len(offsets))}
	}

	lines, err := gpiocdev.RequestLines(chip, offsets, gpiocdev.AsOutput(initial[:]...), gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, &ConfigurationError{Line: fmt.Sprintf("%s:%v", chip, offsets), Err: fmt.Errorf("request leds: %w", err)}
	}
	return &RealLEDGroup{name: fmt.Sprintf("%s:%v", chip, offsets), lines: lines}, nil
}

// Set writes all three channels in one request.
func (g *RealLEDGroup) Set(levels [logic.NumChannels]int) error {
	if err := g.lines.SetValues(levels[:]); err != nil {
		return &WriteError{Line: g.name, Err: err}
	}
	return nil
}

// Close releases the lines. Their levels are left as last written so the
// rendered color survives a monitor stop.
func (g *RealLEDGroup) Close() error {
	if err := g.lines.Close(); err != nil {
		return fmt.Errorf("close leds: %w", err)
	}
	return nil
}

// irLines holds the IR emitters high or low for the monitor's lifetime.
type irLines struct {
	lines *gpiocdev.Lines
	n     int
}

// Close drives the emitters low and reverts them to inputs before
// releasing them.
func (l *irLines) Close() error {
	var errs []error
	zeros := make([]int, l.n)
	if err := l.lines.SetValues(zeros); err != nil {
		errs = append(errs, fmt.Errorf("switch off ir: %w", err))
	}
	if err := l.lines.Reconfigure(gpiocdev.AsInput); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure ir: %w", err))
	}
	if err := l.lines.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close ir: %w", err))
	}
	return errors.Join(errs...)
}

// OpenHardware requests every line described by cfg. LED groups start at
// initial so a reopened board keeps its rendered colors. On failure all
// lines opened so far are released.
func OpenHardware(cfg config.Board, initial [logic.NumPositions][logic.NumChannels]int) (hw *Hardware, err error) {
	var opened []io.Closer
	defer func() {
		if err == nil {
			return
		}
		for i := len(opened) - 1; i >= 0; i-- {
			opened[i].Close()
		}
	}()

	edge, err := ParseEdge(cfg.Interrupt.Edge)
	if err != nil {
		return nil, &ConfigurationError{Line: fmt.Sprintf("%s:%d", cfg.Interrupt.Chip, cfg.Interrupt.Line), Err: err}
	}

	interrupt, err := NewRealEventSource(LineSpec{
		Chip:      cfg.Interrupt.Chip,
		Offset:    cfg.Interrupt.Line,
		Direction: Input,
		ActiveLow: cfg.Interrupt.ActiveLow,
	}, edge, cfg.Consumer+"_interrupt")
	if err != nil {
		return nil, err
	}
	opened = append(opened, interrupt)

	keys, err := NewRealKeyReader(cfg.PrimaryChip, cfg.KeyOffsets(), cfg.KeysActiveLow, cfg.Consumer)
	if err != nil {
		return nil, err
	}
	opened = append(opened, keys)

	var leds [logic.NumPositions]LEDGroup
	for i, p := range cfg.Positions.Ordered() {
		g, err := NewRealLEDGroup(cfg.PrimaryChip, p.LEDOffsets(), initial[i], cfg.Consumer)
		if err != nil {
			return nil, err
		}
		opened = append(opened, g)
		leds[i] = g
	}

	irOffsets, irLevels := cfg.IROffsets()
	ir, err := gpiocdev.RequestLines(cfg.PrimaryChip, irOffsets, gpiocdev.AsOutput(irLevels...), gpiocdev.WithConsumer(cfg.Consumer))
	if err != nil {
		return nil, &ConfigurationError{Line: fmt.Sprintf("%s:%v", cfg.PrimaryChip, irOffsets), Err: fmt.Errorf("request ir: %w", err)}
	}
	irl := &irLines{lines: ir, n: len(irOffsets)}
	opened = append(opened, irl)

	return NewHardware(interrupt, keys, leds, irl), nil
}

// OpenKeys requests only the key lines, for one-shot reads.
func OpenKeys(cfg config.Board) (KeyReader, error) {
	keys, err := NewRealKeyReader(cfg.PrimaryChip, cfg.KeyOffsets(), cfg.KeysActiveLow, cfg.Consumer)
	if err != nil {
		return nil, err
	}
	return keys, nil
}
