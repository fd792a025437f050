package main

import (
	"context"
	"fmt"
	"time"
)

// Polarity selects which level transitions an EdgeSource subscription reports.
type Polarity int

const (
	PolarityRising Polarity = iota
	PolarityFalling
	PolarityBoth
)

func (p Polarity) String() string {
	switch p {
	case PolarityRising:
		return "rising"
	case PolarityFalling:
		return "falling"
	case PolarityBoth:
		return "both"
	default:
		return fmt.Sprintf("Polarity(%d)", int(p))
	}
}

// PinEvent is a single level-change notification for a monitored pin.
type PinEvent struct {
	Pin string
	At  time.Time
}

// EdgeSource is the pin-level capability the decoders are built on.
//
// Inputs are wired with pull-ups and switches tie them to ground, so a pressed
// button reads low. Close restores every pin the source touched and must be
// safe to call more than once.
type EdgeSource interface {
	// Subscribe configures pin as an input and streams its edges until ctx is done.
	// With debounce > 0 an edge is only reported once the level has held for
	// debounce.
	Subscribe(ctx context.Context, pin string, polarity Polarity, debounce time.Duration) (<-chan PinEvent, error)

	ReadLevel(pin string) (bool, error)
	WriteLevel(pin string, high bool) error

	Close() error
}

// accepts reports whether a pin sampled at level high just after an edge
// matches p. A debounced pin reports both edges, so this filters them.
func (p Polarity) accepts(high bool) bool {
	switch p {
	case PolarityRising:
		return high
	case PolarityFalling:
		return !high
	default:
		return true
	}
}
