package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// ClassifyMode selects how a button's press duration is measured.
type ClassifyMode string

const (
	// ClassifyEdge measures from the falling edge to release, polling every few ms.
	ClassifyEdge ClassifyMode = "edge"
	// ClassifyCoarse counts whole pressed seconds (reboot/shutdown buttons).
	ClassifyCoarse ClassifyMode = "coarse"
)

// Thresholds are the per-button timing limits for edge-mode classification.
// Invariant (checked by Config.Validate): 0 < Debounce < HoldMute < HoldOff,
// with HoldOff == 0 meaning the button cannot shut the machine down.
type Thresholds struct {
	Debounce time.Duration
	HoldMute time.Duration
	HoldOff  time.Duration
}

// Classification is the outcome of an edge-mode press.
type Classification int

const (
	ClassNoise    Classification = iota // below the debounce floor
	ClassShort                          // toggle action
	ClassHold                           // between hold_mute and hold_off; no discrete action
	ClassShutdown                       // beyond hold_off
)

func (c Classification) String() string {
	switch c {
	case ClassNoise:
		return "noise"
	case ClassShort:
		return "short"
	case ClassHold:
		return "hold"
	case ClassShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("Classification(%d)", int(c))
	}
}

// classifyEdge buckets a press duration. All bounds are strict: a press of
// exactly HoldMute is a hold, exactly HoldOff is still a hold, exactly
// Debounce is noise.
func classifyEdge(d time.Duration, th Thresholds) Classification {
	switch {
	case th.HoldOff > 0 && d > th.HoldOff:
		return ClassShutdown
	case d > th.Debounce && d < th.HoldMute:
		return ClassShort
	case d <= th.Debounce:
		return ClassNoise
	default:
		return ClassHold
	}
}

// CoarseOutcome is the outcome of a coarse-mode press.
type CoarseOutcome int

const (
	CoarseIgnored CoarseOutcome = iota
	CoarseReboot
	CoarseShutdown
)

// classifyCoarse buckets pressed seconds n: n <= rebootAfter is ignored,
// rebootAfter < n <= shutdownAfter reboots, n > shutdownAfter shuts down.
func classifyCoarse(n, rebootAfter, shutdownAfter int) CoarseOutcome {
	switch {
	case n > shutdownAfter:
		return CoarseShutdown
	case n > rebootAfter:
		return CoarseReboot
	default:
		return CoarseIgnored
	}
}

// ButtonSpec is the validated runtime description of one button.
type ButtonSpec struct {
	Name string
	Pin  string
	Mode ClassifyMode

	Thresholds    Thresholds
	MuteWhileHeld bool
	PollInterval  time.Duration

	// Coarse mode
	RebootAfter   int
	ShutdownAfter int

	// Short is emitted on a short press (edge mode). Nil means none.
	Short Action
}

// ButtonState lives for exactly one press.
type ButtonState struct {
	Pin        string
	PressStart time.Time
	IsHeld     bool // hold_mute crossed and HoldMute emitted
}

// sleepCtx is the poll loop's suspension point. It returns ctx.Err() as soon
// as ctx is done.
func sleepCtx(ctx context.Context, clk clockwork.Clock, d time.Duration) error {
	t := clk.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}

// PressClassifier turns one button's falling edges into Actions.
// Each button gets its own classifier goroutine, so a long poll only blocks
// that button.
type PressClassifier struct {
	spec    ButtonSpec
	pins    levelReader
	clock   clockwork.Clock
	actions chan<- Action
	logger  *slog.Logger
}

// NewPressClassifier uses the real clock when clk is nil. Durations are taken
// from time.Now's monotonic reading, so wall-clock jumps do not skew them.
func NewPressClassifier(spec ButtonSpec, pins levelReader, clk clockwork.Clock, actions chan<- Action, logger *slog.Logger) *PressClassifier {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &PressClassifier{
		spec:    spec,
		pins:    pins,
		clock:   clk,
		actions: actions,
		logger:  logger.With("button", spec.Name),
	}
}

// Run handles presses until ctx is done or edges closes.
func (c *PressClassifier) Run(ctx context.Context, edges <-chan PinEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-edges:
			if !ok {
				return nil
			}
			logTrace(c.logger, "falling edge", "pin", ev.Pin)
			c.HandlePress(ctx)
			// Edges queued while we were polling belong to this press (release bounce).
			drainEdges(edges)
		}
	}
}

// HandlePress measures and classifies a single press starting now.
func (c *PressClassifier) HandlePress(ctx context.Context) {
	switch c.spec.Mode {
	case ClassifyCoarse:
		c.handleCoarse(ctx)
	default:
		c.handleEdge(ctx)
	}
}

func (c *PressClassifier) pressed() (bool, error) {
	high, err := c.pins.ReadLevel(c.spec.Pin)
	if err != nil {
		return false, err
	}
	return !high, nil
}

func (c *PressClassifier) handleEdge(ctx context.Context) {
	th := c.spec.Thresholds
	st := ButtonState{Pin: c.spec.Pin, PressStart: c.clock.Now()}

	for {
		down, err := c.pressed()
		if err != nil {
			c.logger.Warn("button read failed; press dropped", "error", err)
			return
		}
		if !down {
			break
		}
		if c.spec.MuteWhileHeld && !st.IsHeld && c.clock.Since(st.PressStart) > th.HoldMute {
			st.IsHeld = true
			c.logger.Info("muting amplifier due to button hold")
			c.emit(ctx, HoldMute{})
		}
		if err := sleepCtx(ctx, c.clock, c.spec.PollInterval); err != nil {
			return
		}
	}

	d := c.clock.Since(st.PressStart)
	class := classifyEdge(d, th)
	c.logger.Debug("button released", "duration", d, "class", class.String())

	switch class {
	case ClassShutdown:
		c.logger.Info("system shutdown due to button hold", "duration", d)
		c.emit(ctx, ShutdownRequested{Source: c.spec.Name})
	case ClassShort:
		if c.spec.Short != nil {
			c.emit(ctx, c.spec.Short)
		}
	}
}

func (c *PressClassifier) handleCoarse(ctx context.Context) {
	n := 0
	for {
		down, err := c.pressed()
		if err != nil {
			c.logger.Warn("button read failed; press dropped", "error", err)
			return
		}
		if !down {
			break
		}
		n++
		if err := sleepCtx(ctx, c.clock, c.spec.PollInterval); err != nil {
			return
		}
	}

	c.logger.Debug("button released", "pressed_seconds", n)

	switch classifyCoarse(n, c.spec.RebootAfter, c.spec.ShutdownAfter) {
	case CoarseShutdown:
		c.logger.Info("long press; shutting down", "pressed_seconds", n)
		c.emit(ctx, ShutdownRequested{Source: c.spec.Name})
	case CoarseReboot:
		c.logger.Info("short press; rebooting", "pressed_seconds", n)
		c.emit(ctx, RebootRequested{Source: c.spec.Name})
	}
}

func (c *PressClassifier) emit(ctx context.Context, a Action) {
	select {
	case c.actions <- a:
	case <-ctx.Done():
	}
}

func drainEdges(edges <-chan PinEvent) {
	for {
		select {
		case _, ok := <-edges:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
