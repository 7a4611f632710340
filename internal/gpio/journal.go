package gpio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PinState is the last recorded configuration of a pin.
type PinState struct {
	Pin       int
	Mode      Mode
	Level     Level
	UpdatedAt time.Time
}

// Journal implements Driver by persisting pin requests in the gpio_pins table.
type Journal struct {
	db *sql.DB
}

// NewJournal creates a journal driver over an open, migrated database.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Configure records the pin direction. Output pins are reset to off.
func (j *Journal) Configure(ctx context.Context, pin int, mode Mode) error {
	if err := ValidatePin(pin); err != nil {
		return err
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO gpio_pins (pin, mode, level, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(pin) DO UPDATE SET mode = excluded.mode, level = excluded.level, updated_at = excluded.updated_at`,
		pin,
		string(mode),
		string(LevelOff),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording pin %d mode: %w", pin, err)
	}
	return nil
}

// SetLevel records the pin level. A pin that was never configured is
// recorded as an output, matching how the hardware driver behaves.
func (j *Journal) SetLevel(ctx context.Context, pin int, level Level) error {
	if err := ValidatePin(pin); err != nil {
		return err
	}
	if _, err := ParseLevel(string(level)); err != nil {
		return err
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO gpio_pins (pin, mode, level, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(pin) DO UPDATE SET level = excluded.level, updated_at = excluded.updated_at`,
		pin,
		string(ModeOutput),
		string(level),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording pin %d level: %w", pin, err)
	}
	return nil
}

// Pin returns the recorded state of a pin.
//
// Returns:
//   - PinState: Last recorded mode and level
//   - error: ErrPinNotConfigured if nothing was recorded for the pin
func (j *Journal) Pin(ctx context.Context, pin int) (PinState, error) {
	var st PinState
	var mode, level, updated string

	err := j.db.QueryRowContext(ctx,
		"SELECT pin, mode, level, updated_at FROM gpio_pins WHERE pin = ?",
		pin,
	).Scan(&st.Pin, &mode, &level, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return PinState{}, fmt.Errorf("%w: %d", ErrPinNotConfigured, pin)
	}
	if err != nil {
		return PinState{}, fmt.Errorf("querying pin %d: %w", pin, err)
	}

	st.Mode = Mode(mode)
	st.Level = Level(level)
	if t, parseErr := time.Parse(time.RFC3339Nano, updated); parseErr == nil {
		st.UpdatedAt = t
	}
	return st, nil
}
