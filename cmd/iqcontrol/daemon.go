package main

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// Design rules enforced here:
//   - The reducer performs no I/O and computes: next state + commands.
//   - Commands are handed to the effects worker; the loop never blocks on a
//     mixer or power call.
//   - Ticks sample the encoder count; the reducer turns the difference into at
//     most one volume step.
//
// ============================================================================

// counter is the live encoder count the loop reconciles against.
type counter interface {
	Count() int64
}

// DaemonConfig holds the loop's fixed inputs.
type DaemonConfig struct {
	LoopHz int
	Pins   OutputPins
}

// runDaemon is the main daemon loop that:
//   - Receives Actions from the button classifiers and the IR reader
//   - Emits Tick events at LoopHz carrying the live encoder count
//   - Reduces events into (state, commands)
//   - Forwards commands to the effects worker
//
// Shutdown semantics:
//   - Returns nil when ctx is canceled or the actions channel is closed
func runDaemon(
	ctx context.Context,
	actions <-chan Action,
	enc counter,
	state DaemonState,
	cfg DaemonConfig,
	cmds chan<- Command,
	logger *slog.Logger,
) error {
	if cfg.LoopHz <= 0 {
		return errors.New("daemon: loop rate must be > 0")
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.LoopHz))
	defer ticker.Stop()

	send := func(out []Command) bool {
		for _, c := range out {
			select {
			case cmds <- c:
			case <-ctx.Done():
				return false
			}
		}
		return true
	}

	// Drive every output to the startup state before handling input.
	if !send(InitialCommands(state.Outputs, cfg.Pins)) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return nil

		case act, ok := <-actions:
			if !ok {
				logger.Info("daemon stopping (actions channel closed)")
				return nil
			}
			rr := Reduce(state, act, cfg.Pins)
			if !outputsEqual(state.Outputs, rr.State.Outputs) {
				logger.Info("outputs changed", "action", act.String(), "mute", rr.State.Outputs.Mute, "leds", rr.State.Outputs.LEDs)
			} else {
				logger.Debug("action", "action", act.String())
			}
			state = rr.State
			if !send(rr.Commands) {
				return nil
			}

		case now := <-ticker.C:
			rr := Reduce(state, Tick{Now: now, Count: enc.Count()}, cfg.Pins)
			if len(rr.Commands) > 0 {
				logger.Debug("encoder count change", "from", state.LastObservedCount, "to", rr.State.LastObservedCount)
			}
			state = rr.State
			if !send(rr.Commands) {
				return nil
			}
		}
	}
}

func outputsEqual(a, b SemanticOutputs) bool {
	return a.Mute == b.Mute && slices.Equal(a.LEDs, b.LEDs)
}
