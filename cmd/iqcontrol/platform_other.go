//go:build !linux

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
)

var errLinuxOnly = errors.New("only supported on linux")

func readInputEventsEpoll(context.Context, []*os.File, func(inputEvent) bool) error {
	return errLinuxOnly
}

type syscallPower struct{}

func newSyscallPower(*slog.Logger) *syscallPower { return &syscallPower{} }

func (*syscallPower) Reboot(context.Context) error   { return errLinuxOnly }
func (*syscallPower) Shutdown(context.Context) error { return errLinuxOnly }
