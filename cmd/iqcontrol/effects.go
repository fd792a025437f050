package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// pinWriter is the part of EdgeSource the effects worker needs.
type pinWriter interface {
	WriteLevel(pin string, high bool) error
}

// Effects bundles the external collaborators a Command can touch.
type Effects struct {
	Mixer   Mixer
	Pins    pinWriter
	Power   PowerController
	Timeout time.Duration // per-command bound; zero means none
	Logger  *slog.Logger
}

// runEffect executes a single dispatcher-emitted Command.
//
// Failures are returned for logging only; nothing is retried and nothing is
// reported back into daemon state.
func runEffect(ctx context.Context, fx *Effects, cmd Command) error {
	if fx.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, fx.Timeout)
		defer cancel()
	}

	switch c := cmd.(type) {
	case CmdMixerStep:
		if fx.Mixer == nil {
			return errNoMixer
		}
		return fx.Mixer.Step(ctx, c.Direction)

	case CmdMixerToggle:
		if fx.Mixer == nil {
			return errNoMixer
		}
		return fx.Mixer.ToggleMute(ctx)

	case CmdMixerMute:
		if fx.Mixer == nil {
			return errNoMixer
		}
		return fx.Mixer.SetMute(ctx, c.Muted)

	case CmdWritePin:
		if fx.Pins == nil {
			return fmt.Errorf("no pin writer for %s", c.Pin)
		}
		return fx.Pins.WriteLevel(c.Pin, c.High)

	case CmdPower:
		if fx.Power == nil {
			return fmt.Errorf("%s: no power controller", c.Op)
		}
		switch c.Op {
		case PowerReboot:
			return fx.Power.Reboot(ctx)
		case PowerShutdown:
			return fx.Power.Shutdown(ctx)
		default:
			return fmt.Errorf("%w: %q", errUnknownPowerOp, c.Op)
		}

	default:
		return errUnknownCommand{cmd: cmd}
	}
}

// runEffectsWorker drains cmds until ctx is done or cmds is closed.
// Commands still queued at cancellation are dropped.
func runEffectsWorker(ctx context.Context, fx *Effects, cmds <-chan Command) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-cmds:
			if !ok {
				return nil
			}
			fx.Logger.Debug("effect", "command", cmd.String())
			if err := runEffect(ctx, fx, cmd); err != nil {
				fx.Logger.Error("effect failed", "command", cmd.String(), "error", err)
			}
		}
	}
}

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }
