// Package logic contains the pure peckboard rules: key positions, the LED
// color cycle, snapshot resolution and the per-position feedback state.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
package logic

import (
	"fmt"
	"time"
)

// NumPositions is the number of response positions on the board.
const NumPositions = 3

// Position identifies a response position on the board.
// The zero value is PositionNone.
type Position uint8

const (
	PositionNone Position = iota
	PositionRight
	PositionCenter
	PositionLeft
)

// Positions lists the board positions in declared (scan) order.
var Positions = [NumPositions]Position{PositionRight, PositionCenter, PositionLeft}

// Index returns the zero-based slot of p in declared order.
// ok is false for PositionNone and any unknown value.
func (p Position) Index() (int, bool) {
	switch p {
	case PositionRight:
		return 0, true
	case PositionCenter:
		return 1, true
	case PositionLeft:
		return 2, true
	}
	return 0, false
}

func (p Position) String() string {
	switch p {
	case PositionNone:
		return "NONE"
	case PositionRight:
		return "RIGHT"
	case PositionCenter:
		return "CENTER"
	case PositionLeft:
		return "LEFT"
	}
	return fmt.Sprintf("Position(%d)", uint8(p))
}

// ParsePosition converts a name produced by String back to a Position.
func ParsePosition(s string) (Position, error) {
	for _, p := range []Position{PositionNone, PositionRight, PositionCenter, PositionLeft} {
		if p.String() == s {
			return p, nil
		}
	}
	return PositionNone, fmt.Errorf("unknown position %q", s)
}

// Color is the visual state of one position's tri-color LED.
type Color uint8

const (
	ColorOff Color = iota
	ColorBlue
	ColorRed
	ColorGreen
	ColorAll

	numColors = 5
)

func (c Color) String() string {
	switch c {
	case ColorOff:
		return "OFF"
	case ColorBlue:
		return "BLUE"
	case ColorRed:
		return "RED"
	case ColorGreen:
		return "GREEN"
	case ColorAll:
		return "ALL"
	}
	return fmt.Sprintf("Color(%d)", uint8(c))
}

// Next returns the successor of c in the cycle
// OFF -> BLUE -> RED -> GREEN -> ALL -> OFF.
func (c Color) Next() Color {
	if c >= numColors {
		return ColorOff
	}
	return (c + 1) % numColors
}

// Channel indexes into the levels of an LED group.
const (
	ChannelRed = iota
	ChannelBlue
	ChannelGreen

	NumChannels = 3
)

// Levels returns the LED line values for c, ordered red, blue, green.
// Single colors drive exactly one channel; OFF drives none and ALL drives all.
func (c Color) Levels() [NumChannels]int {
	var l [NumChannels]int
	switch c {
	case ColorBlue:
		l[ChannelBlue] = 1
	case ColorRed:
		l[ChannelRed] = 1
	case ColorGreen:
		l[ChannelGreen] = 1
	case ColorAll:
		l[ChannelRed], l[ChannelBlue], l[ChannelGreen] = 1, 1, 1
	}
	return l
}

// Transition describes one feedback step on a single position.
type Transition struct {
	Position Position
	From     Color
	To       Color
}

// Peck is a key press that was resolved to a position and rendered.
type Peck struct {
	Timestamp time.Time
	Position  Position
	From      Color
	To        Color
}

// Counts tracks monitor activity since startup.
type Counts struct {
	Pecks      [NumPositions]int
	Spurious   int
	Exceptions int
}

// Total returns the number of pecks across all positions.
func (c Counts) Total() int {
	n := 0
	for _, v := range c.Pecks {
		n += v
	}
	return n
}
