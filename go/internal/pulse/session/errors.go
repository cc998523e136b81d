package session

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidColor is returned when a color is not a #RRGGBB hex string
	ErrInvalidColor = errors.New("invalid color format")
	// ErrNotFound is returned when no participant is registered under an id
	ErrNotFound = errors.New("participant not found")
)

// CooldownError is returned when a color change is attempted before the cooldown elapsed
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("color change on cooldown, %ds remaining", e.RemainingSeconds())
}

// RemainingSeconds returns the remaining wait rounded up to whole seconds
func (e *CooldownError) RemainingSeconds() int {
	secs := e.Remaining / time.Second
	if e.Remaining%time.Second != 0 {
		secs++
	}
	return int(secs)
}
