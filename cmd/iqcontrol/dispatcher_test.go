package main

import (
	"reflect"
	"testing"
)

func testOutputPins() OutputPins {
	return OutputPins{
		MutePin:       "GPIO22",
		MuteActiveLow: true,
		MixerMute:     true,
		LEDPins:       []string{"GPIO14", "GPIO15", "GPIO16"},
	}
}

// TestDispatch_ToggleMuteTwice tests that two toggles return to the start and
// that each toggle drives both the mixer and the (active-low) mute pin.
func TestDispatch_ToggleMuteTwice(t *testing.T) {
	pins := testOutputPins()
	s0 := SemanticOutputs{LEDs: make([]bool, 3)}

	s1, cmds := Dispatch(s0, ToggleMute{}, pins)
	if !s1.Mute {
		t.Fatal("expected muted after first toggle")
	}
	want := []Command{CmdMixerToggle{}, CmdWritePin{Pin: "GPIO22", High: false}}
	if !reflect.DeepEqual(cmds, want) {
		t.Fatalf("first toggle commands = %v, want %v", cmds, want)
	}

	s2, cmds := Dispatch(s1, ToggleMute{}, pins)
	if s2.Mute {
		t.Fatal("expected unmuted after second toggle")
	}
	want = []Command{CmdMixerToggle{}, CmdWritePin{Pin: "GPIO22", High: true}}
	if !reflect.DeepEqual(cmds, want) {
		t.Fatalf("second toggle commands = %v, want %v", cmds, want)
	}
	if !reflect.DeepEqual(s0, s2) {
		t.Fatalf("two toggles changed state: %+v -> %+v", s0, s2)
	}
}

// TestDispatch_PinOnlyMute tests mute handled purely by the amp mute line.
func TestDispatch_PinOnlyMute(t *testing.T) {
	pins := testOutputPins()
	pins.MixerMute = false

	_, cmds := Dispatch(SemanticOutputs{}, ToggleMute{}, pins)
	want := []Command{CmdWritePin{Pin: "GPIO22", High: false}}
	if !reflect.DeepEqual(cmds, want) {
		t.Fatalf("commands = %v, want %v", cmds, want)
	}
}

// TestDispatch_HoldMute tests that a hold mutes once and only re-asserts the pin
// when already muted.
func TestDispatch_HoldMute(t *testing.T) {
	pins := testOutputPins()

	s1, cmds := Dispatch(SemanticOutputs{}, HoldMute{}, pins)
	if !s1.Mute {
		t.Fatal("expected muted after HoldMute")
	}
	want := []Command{CmdMixerMute{Muted: true}, CmdWritePin{Pin: "GPIO22", High: false}}
	if !reflect.DeepEqual(cmds, want) {
		t.Fatalf("commands = %v, want %v", cmds, want)
	}

	s2, cmds := Dispatch(s1, HoldMute{}, pins)
	if !s2.Mute {
		t.Fatal("HoldMute unmuted")
	}
	want = []Command{CmdWritePin{Pin: "GPIO22", High: false}}
	if !reflect.DeepEqual(cmds, want) {
		t.Fatalf("already-muted commands = %v, want %v", cmds, want)
	}
}

// TestDispatch_ToggleLED tests LED toggling and that the input state is not mutated.
func TestDispatch_ToggleLED(t *testing.T) {
	pins := testOutputPins()
	s0 := SemanticOutputs{LEDs: []bool{false, false, false}}

	s1, cmds := Dispatch(s0, ToggleLED{Index: 1}, pins)
	if !reflect.DeepEqual(s1.LEDs, []bool{false, true, false}) {
		t.Fatalf("LEDs = %v", s1.LEDs)
	}
	if s0.LEDs[1] {
		t.Fatal("Dispatch mutated its input")
	}
	want := []Command{CmdWritePin{Pin: "GPIO15", High: true}}
	if !reflect.DeepEqual(cmds, want) {
		t.Fatalf("commands = %v, want %v", cmds, want)
	}

	s2, _ := Dispatch(s1, ToggleLED{Index: 1}, pins)
	if s2.LEDs[1] {
		t.Fatal("second toggle did not turn LED off")
	}
}

// TestDispatch_ToggleLEDOutOfRange tests that an unknown LED is a no-op.
func TestDispatch_ToggleLEDOutOfRange(t *testing.T) {
	s0 := SemanticOutputs{LEDs: []bool{false}}
	s1, cmds := Dispatch(s0, ToggleLED{Index: 4}, testOutputPins())
	if len(cmds) != 0 || !reflect.DeepEqual(s0, s1) {
		t.Fatalf("expected no-op, got state %+v commands %v", s1, cmds)
	}
}

// TestDispatch_Power tests that power requests emit one command and touch no outputs.
func TestDispatch_Power(t *testing.T) {
	s0 := SemanticOutputs{Mute: true, LEDs: []bool{true, false, true}}

	s1, cmds := Dispatch(s0, RebootRequested{Source: "power"}, testOutputPins())
	if !reflect.DeepEqual(cmds, []Command{CmdPower{Op: PowerReboot}}) {
		t.Fatalf("reboot commands = %v", cmds)
	}
	if !reflect.DeepEqual(s0, s1) {
		t.Fatal("reboot changed outputs")
	}

	s2, cmds := Dispatch(s0, ShutdownRequested{Source: "mute"}, testOutputPins())
	if !reflect.DeepEqual(cmds, []Command{CmdPower{Op: PowerShutdown}}) {
		t.Fatalf("shutdown commands = %v", cmds)
	}
	if !reflect.DeepEqual(s0, s2) {
		t.Fatal("shutdown changed outputs")
	}
}

// TestDispatch_VolumeStep tests that IR volume keys map to a unit mixer step.
func TestDispatch_VolumeStep(t *testing.T) {
	_, cmds := Dispatch(SemanticOutputs{}, VolumeStep{Direction: -1}, testOutputPins())
	if !reflect.DeepEqual(cmds, []Command{CmdMixerStep{Direction: -1}}) {
		t.Fatalf("commands = %v", cmds)
	}
}

// TestInitialCommands tests startup output sync: mixer and amp unmuted, LEDs off.
func TestInitialCommands(t *testing.T) {
	cmds := InitialCommands(SemanticOutputs{LEDs: make([]bool, 3)}, testOutputPins())
	want := []Command{
		CmdMixerMute{Muted: false},
		CmdWritePin{Pin: "GPIO22", High: true},
		CmdWritePin{Pin: "GPIO14", High: false},
		CmdWritePin{Pin: "GPIO15", High: false},
		CmdWritePin{Pin: "GPIO16", High: false},
	}
	if !reflect.DeepEqual(cmds, want) {
		t.Fatalf("commands = %v, want %v", cmds, want)
	}
}

// TestInitialCommands_PinOnlyMute tests that a mixer without mute handling is
// left alone at startup.
func TestInitialCommands_PinOnlyMute(t *testing.T) {
	pins := testOutputPins()
	pins.MixerMute = false
	pins.LEDPins = nil

	cmds := InitialCommands(SemanticOutputs{}, pins)
	want := []Command{CmdWritePin{Pin: "GPIO22", High: true}}
	if !reflect.DeepEqual(cmds, want) {
		t.Fatalf("commands = %v, want %v", cmds, want)
	}
}

// TestInitialCommands_ThenToggle tests that after startup sync the first
// toggle mutes both the mixer and the amp.
func TestInitialCommands_ThenToggle(t *testing.T) {
	pins := OutputPins{MutePin: "GPIO22", MuteActiveLow: true, MixerMute: true}
	s := NewDaemonState(0, 0).Outputs

	cmds := InitialCommands(s, pins)
	if len(cmds) == 0 || cmds[0] != (CmdMixerMute{Muted: false}) {
		t.Fatalf("startup commands = %v, want an absolute mixer unmute first", cmds)
	}

	s, cmds = Dispatch(s, ToggleMute{}, pins)
	if !s.Mute {
		t.Fatal("expected muted after toggle")
	}
	want := []Command{CmdMixerToggle{}, CmdWritePin{Pin: "GPIO22", High: false}}
	if !reflect.DeepEqual(cmds, want) {
		t.Fatalf("toggle commands = %v, want %v", cmds, want)
	}
}
