package main

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func muteButtonSpec() ButtonSpec {
	return ButtonSpec{
		Name: "mute",
		Pin:  "GPIO27",
		Mode: ClassifyEdge,
		Thresholds: Thresholds{
			Debounce: 30 * time.Millisecond,
			HoldMute: 4 * time.Second,
			HoldOff:  6 * time.Second,
		},
		MuteWhileHeld: true,
		PollInterval:  20 * time.Millisecond,
		Short:         ToggleMute{},
	}
}

func newTestClassifier(spec ButtonSpec) (*PressClassifier, *fakePins, clockwork.FakeClock, chan Action) {
	pins := newFakePins()
	clk := newFakeClock()
	actions := make(chan Action, 16)
	return NewPressClassifier(spec, pins, clk, actions, discardLogger()), pins, clk, actions
}

// press holds pin for d and runs one HandlePress against the fake clock.
func press(t *testing.T, pc *PressClassifier, pins *fakePins, clk clockwork.FakeClock, pin string, d time.Duration) {
	t.Helper()
	holdFor(t, pins, clk, pc.spec.PollInterval, pin, d, func() { pc.HandlePress(context.Background()) })
}

func drainActions(ch chan Action) []Action {
	var out []Action
	for {
		select {
		case a := <-ch:
			out = append(out, a)
		default:
			return out
		}
	}
}

func TestClassifyEdge_Boundaries(t *testing.T) {
	th := Thresholds{Debounce: 30 * time.Millisecond, HoldMute: 4 * time.Second, HoldOff: 6 * time.Second}

	cases := []struct {
		d    time.Duration
		want Classification
	}{
		{10 * time.Millisecond, ClassNoise},
		{30 * time.Millisecond, ClassNoise}, // exactly debounce is still noise
		{31 * time.Millisecond, ClassShort},
		{200 * time.Millisecond, ClassShort},
		{4*time.Second - time.Millisecond, ClassShort},
		{4 * time.Second, ClassHold}, // exactly hold_mute is a hold
		{5 * time.Second, ClassHold},
		{6 * time.Second, ClassHold}, // exactly hold_off does not shut down
		{6*time.Second + time.Millisecond, ClassShutdown},
	}
	for _, c := range cases {
		if got := classifyEdge(c.d, th); got != c.want {
			t.Errorf("classifyEdge(%v) = %v, want %v", c.d, got, c.want)
		}
	}

	// Without hold_off there is no shutdown band.
	th.HoldOff = 0
	if got := classifyEdge(time.Hour, th); got != ClassHold {
		t.Errorf("classifyEdge(1h) without hold_off = %v, want hold", got)
	}
}

func TestClassifyCoarse_Buckets(t *testing.T) {
	cases := []struct {
		n    int
		want CoarseOutcome
	}{
		{0, CoarseIgnored},
		{1, CoarseIgnored},
		{2, CoarseReboot},
		{5, CoarseReboot},
		{6, CoarseShutdown},
		{30, CoarseShutdown},
	}
	for _, c := range cases {
		if got := classifyCoarse(c.n, 1, 5); got != c.want {
			t.Errorf("classifyCoarse(%d) = %v, want %v", c.n, got, c.want)
		}
	}
}

// TestPress_Short tests that a 200 ms press emits the button's toggle action.
func TestPress_Short(t *testing.T) {
	pc, pins, clk, actions := newTestClassifier(muteButtonSpec())
	press(t, pc, pins, clk, "GPIO27", 200*time.Millisecond)

	got := drainActions(actions)
	if len(got) != 1 {
		t.Fatalf("expected 1 action, got %v", got)
	}
	if _, ok := got[0].(ToggleMute); !ok {
		t.Fatalf("expected ToggleMute, got %v", got[0])
	}
}

// TestPress_Noise tests that a bounce shorter than the debounce floor is discarded.
func TestPress_Noise(t *testing.T) {
	pc, pins, clk, actions := newTestClassifier(muteButtonSpec())
	press(t, pc, pins, clk, "GPIO27", 10*time.Millisecond)

	if got := drainActions(actions); len(got) != 0 {
		t.Fatalf("expected no actions for noise, got %v", got)
	}
}

// TestPress_HoldMuteOnce tests a 4.5 s hold: exactly one HoldMute while held,
// and no toggle or shutdown on release.
func TestPress_HoldMuteOnce(t *testing.T) {
	pc, pins, clk, actions := newTestClassifier(muteButtonSpec())
	press(t, pc, pins, clk, "GPIO27", 4500*time.Millisecond)

	got := drainActions(actions)
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 action, got %v", got)
	}
	if _, ok := got[0].(HoldMute); !ok {
		t.Fatalf("expected HoldMute, got %v", got[0])
	}
}

// TestPress_HoldMuteRearms tests that HoldMute fires again on the next press.
func TestPress_HoldMuteRearms(t *testing.T) {
	pc, pins, clk, actions := newTestClassifier(muteButtonSpec())

	press(t, pc, pins, clk, "GPIO27", 4500*time.Millisecond)
	press(t, pc, pins, clk, "GPIO27", 4500*time.Millisecond)

	got := drainActions(actions)
	if len(got) != 2 {
		t.Fatalf("expected 2 HoldMute actions, got %v", got)
	}
}

// TestPress_Shutdown tests a 7 s hold: HoldMute while held, then ShutdownRequested,
// and never the short action.
func TestPress_Shutdown(t *testing.T) {
	pc, pins, clk, actions := newTestClassifier(muteButtonSpec())
	press(t, pc, pins, clk, "GPIO27", 7*time.Second)

	got := drainActions(actions)
	if len(got) != 2 {
		t.Fatalf("expected 2 actions, got %v", got)
	}
	if _, ok := got[0].(HoldMute); !ok {
		t.Errorf("expected HoldMute first, got %v", got[0])
	}
	sd, ok := got[1].(ShutdownRequested)
	if !ok {
		t.Fatalf("expected ShutdownRequested second, got %v", got[1])
	}
	if sd.Source != "mute" {
		t.Errorf("expected source mute, got %q", sd.Source)
	}
}

// TestPress_LEDButtonLongHold tests a button without mute-while-held or hold_off:
// a long hold produces nothing at all.
func TestPress_LEDButtonLongHold(t *testing.T) {
	spec := muteButtonSpec()
	spec.Name = "button1"
	spec.Pin = "GPIO4"
	spec.MuteWhileHeld = false
	spec.Thresholds.HoldOff = 0
	spec.Short = ToggleLED{Index: 0}

	pc, pins, clk, actions := newTestClassifier(spec)
	press(t, pc, pins, clk, "GPIO4", 10*time.Second)
	if got := drainActions(actions); len(got) != 0 {
		t.Fatalf("expected no actions, got %v", got)
	}

	press(t, pc, pins, clk, "GPIO4", 100*time.Millisecond)
	got := drainActions(actions)
	if len(got) != 1 || got[0] != (ToggleLED{Index: 0}) {
		t.Fatalf("expected ToggleLED(0), got %v", got)
	}
}

// TestPress_CancelDuringPoll tests that cancellation ends the poll with no action.
func TestPress_CancelDuringPoll(t *testing.T) {
	pc, pins, clk, actions := newTestClassifier(muteButtonSpec())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := clk.Now()
	pins.set("GPIO27", false)
	drivePress(t, clk, pc.spec.PollInterval, func() { pc.HandlePress(ctx) }, func(next time.Time) {
		if next.Sub(start) >= 100*time.Millisecond {
			cancel()
		}
	})

	if got := drainActions(actions); len(got) != 0 {
		t.Fatalf("expected no actions after cancellation, got %v", got)
	}
}

// TestPress_ReadErrorDropsPress tests that a failing pin read abandons the press.
func TestPress_ReadErrorDropsPress(t *testing.T) {
	pc, pins, _, actions := newTestClassifier(muteButtonSpec())
	pins.readErr["GPIO27"] = context.DeadlineExceeded

	pc.HandlePress(context.Background())

	if got := drainActions(actions); len(got) != 0 {
		t.Fatalf("expected no actions, got %v", got)
	}
}

func coarseSpec() ButtonSpec {
	return ButtonSpec{
		Name:          "power",
		Pin:           "GPIO27",
		Mode:          ClassifyCoarse,
		PollInterval:  time.Second,
		RebootAfter:   1,
		ShutdownAfter: 5,
	}
}

// TestPress_Coarse tests the whole-second counting mode.
func TestPress_Coarse(t *testing.T) {
	cases := []struct {
		held time.Duration
		want Action
	}{
		{500 * time.Millisecond, nil},                                 // n=1
		{1500 * time.Millisecond, RebootRequested{Source: "power"}},   // n=2
		{5 * time.Second, RebootRequested{Source: "power"}},           // n=5
		{5500 * time.Millisecond, ShutdownRequested{Source: "power"}}, // n=6
	}
	for _, c := range cases {
		pc, pins, clk, actions := newTestClassifier(coarseSpec())
		press(t, pc, pins, clk, "GPIO27", c.held)

		got := drainActions(actions)
		if c.want == nil {
			if len(got) != 0 {
				t.Errorf("held %v: expected no action, got %v", c.held, got)
			}
			continue
		}
		if len(got) != 1 || got[0] != c.want {
			t.Errorf("held %v: expected %v, got %v", c.held, c.want, got)
		}
	}
}

// TestPressClassifier_Run tests the edge-driven loop, including that edges
// queued during a press are treated as release bounce.
func TestPressClassifier_Run(t *testing.T) {
	pc, pins, clk, actions := newTestClassifier(muteButtonSpec())
	edges := make(chan PinEvent, 4)
	edges <- PinEvent{Pin: "GPIO27"}
	edges <- PinEvent{Pin: "GPIO27"} // bounce
	close(edges)

	var err error
	holdFor(t, pins, clk, pc.spec.PollInterval, "GPIO27", 200*time.Millisecond, func() {
		err = pc.Run(context.Background(), edges)
	})
	if err != nil {
		t.Fatalf("Run returned %v", err)
	}

	got := drainActions(actions)
	if len(got) != 1 {
		t.Fatalf("expected 1 action, got %v", got)
	}
}
