package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// inputEvent is a decoded Linux input event:
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
// The timeval fields are C longs, so the layout depends on the word size.
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// inputEventSize is the kernel's event size for this build: 24 bytes on
// 64-bit, 16 on 32-bit Raspberry Pi OS.
var inputEventSize = inputEventSizeFor(strconv.IntSize / 8)

func inputEventSizeFor(wordSize int) int { return 2*wordSize + 8 }

func decodeInputEvent(buf []byte) (inputEvent, error) {
	return decodeInputEventWord(buf, strconv.IntSize/8)
}

func decodeInputEventWord(buf []byte, wordSize int) (inputEvent, error) {
	if len(buf) < inputEventSizeFor(wordSize) {
		return inputEvent{}, fmt.Errorf("short input event: %d bytes, want %d", len(buf), inputEventSizeFor(wordSize))
	}
	word := func(b []byte) int64 {
		if wordSize == 4 {
			return int64(int32(binary.NativeEndian.Uint32(b)))
		}
		return int64(binary.NativeEndian.Uint64(b))
	}
	rest := buf[2*wordSize:]
	return inputEvent{
		Sec:   word(buf),
		Usec:  word(buf[wordSize:]),
		Type:  binary.NativeEndian.Uint16(rest),
		Code:  binary.NativeEndian.Uint16(rest[2:]),
		Value: int32(binary.NativeEndian.Uint32(rest[4:])),
	}, nil
}

// translateKey maps an IR remote key event to an Action.
// Volume keys step once per press and once per auto-repeat; mute toggles on press only.
func translateKey(ev inputEvent) (Action, bool) {
	if ev.Type != EV_KEY {
		return nil, false
	}
	switch ev.Code {
	case KEY_VOLUMEUP:
		if ev.Value == evValuePress || ev.Value == evValueRepeat {
			return VolumeStep{Direction: 1}, true
		}
	case KEY_VOLUMEDOWN:
		if ev.Value == evValuePress || ev.Value == evValueRepeat {
			return VolumeStep{Direction: -1}, true
		}
	case KEY_MUTE:
		if ev.Value == evValuePress {
			return ToggleMute{}, true
		}
	}
	return nil, false
}

// runIRReader opens the IR input devices and forwards translated key presses
// as Actions until ctx is done or a device fails.
func runIRReader(ctx context.Context, devices []string, actions chan<- Action, logger *slog.Logger) error {
	files := make([]*os.File, 0, len(devices))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, dev := range devices {
		f, err := os.Open(dev)
		if err != nil {
			return fmt.Errorf("open input device %s: %w (run as root or add user to 'input' group)", dev, err)
		}
		files = append(files, f)
	}

	logger.Info("listening for IR remote", "devices", devices)

	return readInputEventsEpoll(ctx, files, func(ev inputEvent) bool {
		act, ok := translateKey(ev)
		if !ok {
			return true
		}
		logger.Debug("ir key", "code", ev.Code, "value", ev.Value, "action", act.String())
		select {
		case actions <- act:
			return true
		case <-ctx.Done():
			return false
		}
	})
}
