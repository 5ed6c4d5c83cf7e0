package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "peckboard.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestDefaultOffsets(t *testing.T) {
	b := Default()

	if got := b.KeyOffsets(); !reflect.DeepEqual(got, []int{13, 14, 15}) {
		t.Errorf("KeyOffsets: got %v", got)
	}

	wantLEDs := [][]int{{3, 0, 6}, {4, 1, 7}, {5, 2, 8}}
	for i, p := range b.Positions.Ordered() {
		if got := p.LEDOffsets(); !reflect.DeepEqual(got, wantLEDs[i]) {
			t.Errorf("position %d LEDOffsets: got %v, want %v", i, got, wantLEDs[i])
		}
	}

	offsets, levels := b.IROffsets()
	if !reflect.DeepEqual(offsets, []int{9, 10, 11}) {
		t.Errorf("IR offsets: got %v", offsets)
	}
	if !reflect.DeepEqual(levels, []int{1, 1, 0}) {
		t.Errorf("IR levels: got %v", levels)
	}

	if b.Interrupt.Chip != "gpiochip2" || b.Interrupt.Line != 25 || b.Interrupt.Edge != EdgeRising {
		t.Errorf("interrupt: got %+v", b.Interrupt)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	b, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(b, Default()) {
		t.Errorf("expected defaults, got %+v", b)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
primary_chip: gpiochip0
keys_active_low: true
interrupt:
  chip: gpiochip1
  line: 4
  edge: both
positions:
  center:
    key: 20
    red: 21
    blue: 22
    green: 23
    ir: 24
    ir_on: false
`)

	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.PrimaryChip != "gpiochip0" {
		t.Errorf("PrimaryChip: got %q", b.PrimaryChip)
	}
	if !b.KeysActiveLow {
		t.Error("expected KeysActiveLow")
	}
	if b.Interrupt.Edge != EdgeBoth || b.Interrupt.Line != 4 {
		t.Errorf("Interrupt: got %+v", b.Interrupt)
	}
	if b.Positions.Center.Key != 20 || b.Positions.Center.IROn {
		t.Errorf("Center: got %+v", b.Positions.Center)
	}
	// Untouched positions keep their defaults.
	if b.Positions.Right.Key != 13 {
		t.Errorf("Right.Key: got %d, want 13", b.Positions.Right.Key)
	}
	if b.Consumer != "peckboard" {
		t.Errorf("Consumer: got %q", b.Consumer)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadUnknownField(t *testing.T) {
	path := writeConfig(t, "primary_chp: gpiochip0\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestLoadInvalidLayout(t *testing.T) {
	path := writeConfig(t, `
positions:
  left:
    key: 13
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for duplicate offset")
	}
	if !strings.Contains(err.Error(), "already used") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Board)
		want   string
	}{
		{"no primary chip", func(b *Board) { b.PrimaryChip = "" }, "primary_chip"},
		{"no interrupt chip", func(b *Board) { b.Interrupt.Chip = "" }, "interrupt.chip"},
		{"negative interrupt line", func(b *Board) { b.Interrupt.Line = -1 }, "interrupt.line"},
		{"bad edge", func(b *Board) { b.Interrupt.Edge = "up" }, "interrupt.edge"},
		{"negative offset", func(b *Board) { b.Positions.Left.Green = -2 }, "negative"},
		{"duplicate LED", func(b *Board) { b.Positions.Right.Red = 1 }, "already used"},
		{"interrupt collides on primary", func(b *Board) {
			b.Interrupt.Chip = b.PrimaryChip
			b.Interrupt.Line = 14
		}, "interrupt line 14"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Default()
			tt.mutate(&b)
			err := b.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateInterruptSameChipFreeLine(t *testing.T) {
	b := Default()
	b.Interrupt.Chip = b.PrimaryChip
	b.Interrupt.Line = 25
	if err := b.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
