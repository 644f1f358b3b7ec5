package clock

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInterval is returned for negative deltas and delays.
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrEnded is returned when scheduling against a stopped clock.
	ErrEnded = errors.New("scheduler ended")
)

// CheckInterval returns ErrInvalidInterval (wrapped with what) if d < 0.
func CheckInterval(what string, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%s %s: %w", what, d, ErrInvalidInterval)
	}
	return nil
}
