// Package gpio defines the pin driver used by the control handler.
//
// Actual pin actuation lives behind the Driver interface. This package ships
// Journal, a driver that records requested pin modes and levels in SQLite so
// that nodes without real pins (host builds, bench rigs) keep an auditable
// record of what the broker asked for.
package gpio

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Mode is the electrical direction of a pin.
type Mode string

const (
	ModeOutput Mode = "output"
	ModeInput  Mode = "input"
)

// Level is the logical state of an output pin.
type Level string

const (
	LevelOn  Level = "on"
	LevelOff Level = "off"
)

// maxPin bounds pin numbers accepted from control messages.
const maxPin = 255

// Domain errors for GPIO requests.
var (
	// ErrInvalidPin is returned for pin numbers outside 0..255.
	ErrInvalidPin = errors.New("gpio: invalid pin")

	// ErrInvalidMode is returned for unknown pin modes.
	ErrInvalidMode = errors.New("gpio: invalid mode")

	// ErrInvalidLevel is returned for unknown pin levels.
	ErrInvalidLevel = errors.New("gpio: invalid level")

	// ErrPinNotConfigured is returned when reading back a pin never written.
	ErrPinNotConfigured = errors.New("gpio: pin not configured")
)

// Driver actuates pins.
type Driver interface {
	// Configure sets the direction of a pin. Output pins start low.
	Configure(ctx context.Context, pin int, mode Mode) error

	// SetLevel drives an output pin on or off.
	SetLevel(ctx context.Context, pin int, level Level) error
}

// ParseMode converts a control message "type" value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeOutput:
		return ModeOutput, nil
	case ModeInput:
		return ModeInput, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// ParseLevel converts a control message "state" value to a Level.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(s)) {
	case LevelOn:
		return LevelOn, nil
	case LevelOff:
		return LevelOff, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}

// ValidatePin checks that pin is addressable.
func ValidatePin(pin int) error {
	if pin < 0 || pin > maxPin {
		return fmt.Errorf("%w: %d", ErrInvalidPin, pin)
	}
	return nil
}
