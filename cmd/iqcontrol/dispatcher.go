package main

// SemanticOutputs is the user-visible state the buttons act on.
// Only Dispatch produces new values.
type SemanticOutputs struct {
	Mute bool
	LEDs []bool
}

func (s SemanticOutputs) clone() SemanticOutputs {
	out := s
	out.LEDs = append([]bool(nil), s.LEDs...)
	return out
}

// OutputPins maps SemanticOutputs onto physical pins and the mixer.
// An empty MutePin means the mute state only exists in the mixer; MixerMute
// false means it only exists on the pin.
type OutputPins struct {
	MutePin       string
	MuteActiveLow bool
	MixerMute     bool
	LEDPins       []string
}

func (o OutputPins) muteLevel(muted bool) bool {
	if o.MuteActiveLow {
		return !muted
	}
	return muted
}

// Dispatch is the pure action dispatcher: it returns the next outputs and the
// effects to run. It performs no I/O and never mutates s.
//
// The mute flag, the mixer and the mute pin are always changed together, so
// the daemon's view of mute cannot drift from the hardware's.
func Dispatch(s SemanticOutputs, a Action, pins OutputPins) (SemanticOutputs, []Command) {
	var cmds []Command

	switch a := a.(type) {
	case ToggleMute:
		s = s.clone()
		s.Mute = !s.Mute
		if pins.MixerMute {
			cmds = append(cmds, CmdMixerToggle{})
		}
		if pins.MutePin != "" {
			cmds = append(cmds, CmdWritePin{Pin: pins.MutePin, High: pins.muteLevel(s.Mute)})
		}

	case HoldMute:
		if !s.Mute {
			s = s.clone()
			s.Mute = true
			if pins.MixerMute {
				cmds = append(cmds, CmdMixerMute{Muted: true})
			}
		}
		if pins.MutePin != "" {
			cmds = append(cmds, CmdWritePin{Pin: pins.MutePin, High: pins.muteLevel(true)})
		}

	case ToggleLED:
		if a.Index < 0 || a.Index >= len(s.LEDs) {
			return s, nil
		}
		s = s.clone()
		s.LEDs[a.Index] = !s.LEDs[a.Index]
		if a.Index < len(pins.LEDPins) {
			cmds = append(cmds, CmdWritePin{Pin: pins.LEDPins[a.Index], High: s.LEDs[a.Index]})
		}

	case VolumeStep:
		if a.Direction != 0 {
			cmds = append(cmds, CmdMixerStep{Direction: sign(int64(a.Direction))})
		}

	case RebootRequested:
		cmds = append(cmds, CmdPower{Op: PowerReboot})

	case ShutdownRequested:
		cmds = append(cmds, CmdPower{Op: PowerShutdown})
	}

	return s, cmds
}

// InitialCommands drives every output to match s (startup sync). The mixer
// mute switch is set absolutely so later relative toggles stay in step with
// s.Mute.
func InitialCommands(s SemanticOutputs, pins OutputPins) []Command {
	var cmds []Command
	if pins.MixerMute {
		cmds = append(cmds, CmdMixerMute{Muted: s.Mute})
	}
	if pins.MutePin != "" {
		cmds = append(cmds, CmdWritePin{Pin: pins.MutePin, High: pins.muteLevel(s.Mute)})
	}
	for i, pin := range pins.LEDPins {
		on := i < len(s.LEDs) && s.LEDs[i]
		cmds = append(cmds, CmdWritePin{Pin: pin, High: on})
	}
	return cmds
}

func sign(v int64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
