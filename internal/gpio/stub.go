//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/peckboard/internal/config"
	"github.com/sweeney/peckboard/internal/logic"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// OpenHardware returns a *ConfigurationError on non-Linux platforms.
func OpenHardware(cfg config.Board, initial [logic.NumPositions][logic.NumChannels]int) (*Hardware, error) {
	return nil, &ConfigurationError{Line: cfg.PrimaryChip, Err: errUnsupported}
}

// OpenKeys returns a *ConfigurationError on non-Linux platforms.
func OpenKeys(cfg config.Board) (KeyReader, error) {
	return nil, &ConfigurationError{Line: cfg.PrimaryChip, Err: errUnsupported}
}
