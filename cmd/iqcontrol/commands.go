package main

import "fmt"

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the effects worker:
// a mixer call, a pin write, or a power-control request.
type Command interface {
	commandMarker()
	String() string
}

// CmdMixerStep changes the mixer volume by one configured step. Direction is +1 or -1.
type CmdMixerStep struct {
	Direction int
}

func (CmdMixerStep) commandMarker() {}
func (c CmdMixerStep) String() string {
	return fmt.Sprintf("CmdMixerStep(direction=%+d)", c.Direction)
}

// CmdMixerToggle toggles the mixer control's mute switch.
type CmdMixerToggle struct{}

func (CmdMixerToggle) commandMarker() {}
func (CmdMixerToggle) String() string { return "CmdMixerToggle()" }

// CmdMixerMute sets the mixer control's mute switch explicitly.
type CmdMixerMute struct {
	Muted bool
}

func (CmdMixerMute) commandMarker()   {}
func (c CmdMixerMute) String() string { return fmt.Sprintf("CmdMixerMute(muted=%v)", c.Muted) }

// CmdWritePin drives an output pin.
type CmdWritePin struct {
	Pin  string
	High bool
}

func (CmdWritePin) commandMarker() {}
func (c CmdWritePin) String() string {
	return fmt.Sprintf("CmdWritePin(pin=%s, high=%v)", c.Pin, c.High)
}

// PowerOp is a power-control operation.
type PowerOp string

const (
	PowerReboot   PowerOp = "reboot"
	PowerShutdown PowerOp = "shutdown"
)

// CmdPower asks the power controller to reboot or halt.
type CmdPower struct {
	Op PowerOp
}

func (CmdPower) commandMarker()   {}
func (c CmdPower) String() string { return fmt.Sprintf("CmdPower(op=%s)", c.Op) }
