package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// Mixer is the volume-mixer effect. Calls are fire-and-forget from the
// daemon's point of view: errors are logged by the effects worker, never fed back.
type Mixer interface {
	Step(ctx context.Context, direction int) error
	ToggleMute(ctx context.Context) error
	SetMute(ctx context.Context, muted bool) error
	Close() error
}

// commandRunner runs an external program. It exists so tests can record argv.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// ==============================
// amixer backend
// ==============================

// AmixerMixer drives an ALSA simple control through the amixer binary:
//
//	amixer [-q] [-M|-R] sset <control> <N>%+|<N>%-|toggle|mute|unmute
type AmixerMixer struct {
	path    string
	control string
	mapping string // "-M", "-R" or ""
	step    float64
	quiet   bool
	runner  commandRunner
	logger  *slog.Logger
}

// NewAmixerMixer builds an amixer backend. quiet adds -q.
func NewAmixerMixer(path, control, mapping string, stepPercent float64, quiet bool, runner commandRunner, logger *slog.Logger) *AmixerMixer {
	if runner == nil {
		runner = execRunner{}
	}
	return &AmixerMixer{
		path:    path,
		control: control,
		mapping: mapping,
		step:    stepPercent,
		quiet:   quiet,
		runner:  runner,
		logger:  logger,
	}
}

func (m *AmixerMixer) args(value string) []string {
	args := make([]string, 0, 5)
	if m.quiet {
		args = append(args, "-q")
	}
	if m.mapping != "" {
		args = append(args, m.mapping)
	}
	return append(args, "sset", m.control, value)
}

func (m *AmixerMixer) run(ctx context.Context, value string) error {
	args := m.args(value)
	m.logger.Debug("amixer", "args", strings.Join(args, " "))
	return m.runner.Run(ctx, m.path, args...)
}

// Step moves the control by the configured percentage.
func (m *AmixerMixer) Step(ctx context.Context, direction int) error {
	sign := "+"
	if direction < 0 {
		sign = "-"
	}
	return m.run(ctx, strconv.FormatFloat(m.step, 'f', -1, 64)+"%"+sign)
}

func (m *AmixerMixer) ToggleMute(ctx context.Context) error {
	return m.run(ctx, "toggle")
}

func (m *AmixerMixer) SetMute(ctx context.Context, muted bool) error {
	if muted {
		return m.run(ctx, "mute")
	}
	return m.run(ctx, "unmute")
}

func (m *AmixerMixer) Close() error { return nil }

// ==============================
// none backend
// ==============================

// nullMixer logs mixer calls and does nothing else.
type nullMixer struct {
	logger *slog.Logger
}

func (m nullMixer) Step(_ context.Context, direction int) error {
	m.logger.Info("mixer step (no mixer configured)", "direction", direction)
	return nil
}

func (m nullMixer) ToggleMute(context.Context) error {
	m.logger.Info("mixer toggle mute (no mixer configured)")
	return nil
}

func (m nullMixer) SetMute(_ context.Context, muted bool) error {
	m.logger.Info("mixer set mute (no mixer configured)", "muted", muted)
	return nil
}

func (nullMixer) Close() error { return nil }
