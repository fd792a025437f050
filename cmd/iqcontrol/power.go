package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// PowerController is the power-control effect.
type PowerController interface {
	Reboot(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// execPower runs configured commands, e.g. `shutdown -h now "..."` and `reboot`.
type execPower struct {
	rebootArgv   []string
	shutdownArgv []string
	runner       commandRunner
	logger       *slog.Logger
}

func newExecPower(rebootArgv, shutdownArgv []string, runner commandRunner, logger *slog.Logger) *execPower {
	if runner == nil {
		runner = execRunner{}
	}
	return &execPower{
		rebootArgv:   rebootArgv,
		shutdownArgv: shutdownArgv,
		runner:       runner,
		logger:       logger,
	}
}

func (p *execPower) Reboot(ctx context.Context) error {
	return p.run(ctx, "reboot", p.rebootArgv)
}

func (p *execPower) Shutdown(ctx context.Context) error {
	return p.run(ctx, "shutdown", p.shutdownArgv)
}

func (p *execPower) run(ctx context.Context, op string, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("%s: no command configured", op)
	}
	p.logger.Info("power command", "op", op, "argv", argv)
	// The command must outlive daemon shutdown, which the request itself triggers.
	return p.runner.Run(context.WithoutCancel(ctx), argv[0], argv[1:]...)
}

// nullPower logs requests only.
type nullPower struct {
	logger *slog.Logger
}

func (p nullPower) Reboot(context.Context) error {
	p.logger.Warn("reboot requested but power control is disabled")
	return nil
}

func (p nullPower) Shutdown(context.Context) error {
	p.logger.Warn("shutdown requested but power control is disabled")
	return nil
}

var errUnknownPowerOp = errors.New("unknown power operation")
