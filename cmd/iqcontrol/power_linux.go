//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"
)

// syscallPower syncs filesystems and calls reboot(2) directly.
// Requires CAP_SYS_BOOT.
type syscallPower struct {
	logger *slog.Logger
	reboot func(cmd int) error
}

func newSyscallPower(logger *slog.Logger) *syscallPower {
	return &syscallPower{logger: logger, reboot: unix.Reboot}
}

func (p *syscallPower) Reboot(context.Context) error {
	return p.do("reboot", unix.LINUX_REBOOT_CMD_RESTART)
}

func (p *syscallPower) Shutdown(context.Context) error {
	return p.do("shutdown", unix.LINUX_REBOOT_CMD_POWER_OFF)
}

func (p *syscallPower) do(op string, cmd int) error {
	p.logger.Info("power syscall", "op", op)
	unix.Sync()
	if err := p.reboot(cmd); err != nil {
		return fmt.Errorf("%s: reboot(2): %w", op, err)
	}
	return nil
}
