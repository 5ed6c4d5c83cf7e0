// Package config holds the board layout: which chips and line offsets carry
// the keys, LEDs, IR emitters and the interrupt line.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Edge names accepted for the interrupt line.
const (
	EdgeRising  = "rising"
	EdgeFalling = "falling"
	EdgeBoth    = "both"
)

// Board describes how the peckboard is wired to the GPIO controllers.
type Board struct {
	// Consumer is the label attached to every requested line.
	Consumer string `yaml:"consumer"`

	// PrimaryChip carries the LED, key and IR lines.
	PrimaryChip string `yaml:"primary_chip"`

	// KeysActiveLow inverts the key lines so a low level reads as pressed.
	KeysActiveLow bool `yaml:"keys_active_low"`

	Interrupt Interrupt `yaml:"interrupt"`
	Positions Positions `yaml:"positions"`
}

// Interrupt is the edge-triggered line on the secondary controller.
type Interrupt struct {
	Chip      string `yaml:"chip"`
	Line      int    `yaml:"line"`
	Edge      string `yaml:"edge"`
	ActiveLow bool   `yaml:"active_low"`
}

// Position holds the primary-chip offsets for one response position.
type Position struct {
	Key   int  `yaml:"key"`
	Red   int  `yaml:"red"`
	Blue  int  `yaml:"blue"`
	Green int  `yaml:"green"`
	IR    int  `yaml:"ir"`
	IROn  bool `yaml:"ir_on"`
}

// Positions lists the three response positions.
type Positions struct {
	Right  Position `yaml:"right"`
	Center Position `yaml:"center"`
	Left   Position `yaml:"left"`
}

// Ordered returns the positions in scan order: right, center, left.
func (p Positions) Ordered() [3]Position {
	return [3]Position{p.Right, p.Center, p.Left}
}

// Default returns the layout of the reference peckboard.
func Default() Board {
	return Board{
		Consumer:    "peckboard",
		PrimaryChip: "gpiochip4",
		Interrupt: Interrupt{
			Chip: "gpiochip2",
			Line: 25,
			Edge: EdgeRising,
		},
		Positions: Positions{
			Right:  Position{Key: 13, Blue: 0, Red: 3, Green: 6, IR: 9, IROn: true},
			Center: Position{Key: 14, Blue: 1, Red: 4, Green: 7, IR: 10, IROn: true},
			Left:   Position{Key: 15, Blue: 2, Red: 5, Green: 8, IR: 11, IROn: false},
		},
	}
}

// Load reads a YAML layout file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Board, error) {
	b := Default()
	if path == "" {
		return b, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Board{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		return Board{}, fmt.Errorf("decode config %q: %w", path, err)
	}

	if err := b.Validate(); err != nil {
		return Board{}, fmt.Errorf("config %q: %w", path, err)
	}
	return b, nil
}

// Validate checks that the layout can be requested from the hardware.
func (b Board) Validate() error {
	var errs []error

	if b.PrimaryChip == "" {
		errs = append(errs, errors.New("primary_chip is required"))
	}
	if b.Interrupt.Chip == "" {
		errs = append(errs, errors.New("interrupt.chip is required"))
	}
	if b.Interrupt.Line < 0 {
		errs = append(errs, fmt.Errorf("interrupt.line %d is negative", b.Interrupt.Line))
	}
	switch b.Interrupt.Edge {
	case EdgeRising, EdgeFalling, EdgeBoth:
	default:
		errs = append(errs, fmt.Errorf("interrupt.edge %q must be rising, falling or both", b.Interrupt.Edge))
	}

	seen := map[int]string{}
	claim := func(name string, offset int) {
		if offset < 0 {
			errs = append(errs, fmt.Errorf("%s offset %d is negative", name, offset))
			return
		}
		if prev, ok := seen[offset]; ok {
			errs = append(errs, fmt.Errorf("%s offset %d already used by %s", name, offset, prev))
			return
		}
		seen[offset] = name
	}
	names := [3]string{"right", "center", "left"}
	for i, p := range b.Positions.Ordered() {
		claim(names[i]+".key", p.Key)
		claim(names[i]+".red", p.Red)
		claim(names[i]+".blue", p.Blue)
		claim(names[i]+".green", p.Green)
		claim(names[i]+".ir", p.IR)
	}

	// Same chip for the interrupt is allowed, but not on a claimed line.
	if b.Interrupt.Chip == b.PrimaryChip {
		if prev, ok := seen[b.Interrupt.Line]; ok {
			errs = append(errs, fmt.Errorf("interrupt line %d already used by %s", b.Interrupt.Line, prev))
		}
	}

	return errors.Join(errs...)
}

// KeyOffsets returns the key lines in scan order.
func (b Board) KeyOffsets() []int {
	var out []int
	for _, p := range b.Positions.Ordered() {
		out = append(out, p.Key)
	}
	return out
}

// LEDOffsets returns one position's LED lines ordered red, blue, green.
func (p Position) LEDOffsets() []int {
	return []int{p.Red, p.Blue, p.Green}
}

// IROffsets returns the IR lines and their initial levels in scan order.
func (b Board) IROffsets() (offsets, levels []int) {
	for _, p := range b.Positions.Ordered() {
		offsets = append(offsets, p.IR)
		lv := 0
		if p.IROn {
			lv = 1
		}
		levels = append(levels, lv)
	}
	return offsets, levels
}
