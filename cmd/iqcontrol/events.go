package main

import (
	"fmt"
	"time"
)

// ============================================================================
// Events and Actions
// ============================================================================
// Events are the inputs to the daemon reducer. Actions are the subset of
// events that carry user intent (classified button presses, IR keys); the
// decoders produce them and the dispatcher turns them into Commands.
// ============================================================================

// Event is the input to Reduce.
type Event interface {
	eventMarker()
}

// Action is a classified user intent.
type Action interface {
	Event
	fmt.Stringer
}

// Tick is emitted by the daemon loop at volume_loop_hz.
// Count is the live encoder count sampled for this tick.
type Tick struct {
	Now   time.Time
	Count int64
}

func (Tick) eventMarker() {}

// ToggleMute flips the mute state (short press on the mute button, IR KEY_MUTE).
type ToggleMute struct{}

func (ToggleMute) eventMarker()   {}
func (ToggleMute) String() string { return "ToggleMute" }

// HoldMute forces mute on while the mute button is held past hold_mute_s.
type HoldMute struct{}

func (HoldMute) eventMarker()   {}
func (HoldMute) String() string { return "HoldMute" }

// ToggleLED flips LED Index (0-based).
type ToggleLED struct {
	Index int
}

func (ToggleLED) eventMarker()     {}
func (a ToggleLED) String() string { return fmt.Sprintf("ToggleLED(%d)", a.Index) }

// VolumeStep requests one relative mixer step. Direction is +1 or -1.
type VolumeStep struct {
	Direction int
}

func (VolumeStep) eventMarker()     {}
func (a VolumeStep) String() string { return fmt.Sprintf("VolumeStep(%+d)", a.Direction) }

// RebootRequested asks the power controller to reboot the machine.
type RebootRequested struct {
	Source string // button name
}

func (RebootRequested) eventMarker()     {}
func (a RebootRequested) String() string { return fmt.Sprintf("RebootRequested(%s)", a.Source) }

// ShutdownRequested asks the power controller to halt the machine.
type ShutdownRequested struct {
	Source string
}

func (ShutdownRequested) eventMarker()     {}
func (a ShutdownRequested) String() string { return fmt.Sprintf("ShutdownRequested(%s)", a.Source) }
