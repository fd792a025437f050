package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// fakePins is an in-memory EdgeSource. Levels default to high (pulled up).
type fakePins struct {
	mu      sync.Mutex
	levels  map[string]bool
	readErr map[string]error
	writes  []CmdWritePin
	subs    map[string]chan PinEvent
	closes  int

	// Called outside the lock, when set.
	onSubscribe func(pin string)
	onRead      func(pin string)
}

func newFakePins() *fakePins {
	return &fakePins{
		levels:  make(map[string]bool),
		readErr: make(map[string]error),
		subs:    make(map[string]chan PinEvent),
	}
}

func (f *fakePins) set(pin string, high bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[pin] = high
}

func (f *fakePins) Subscribe(ctx context.Context, pin string, _ Polarity, _ time.Duration) (<-chan PinEvent, error) {
	f.mu.Lock()
	hook := f.onSubscribe
	f.mu.Unlock()
	if hook != nil {
		hook(pin)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[pin]; ok {
		return nil, errors.New("already subscribed: " + pin)
	}
	ch := make(chan PinEvent, edgeQueueSize)
	f.subs[pin] = ch
	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		close(ch)
		delete(f.subs, pin)
	}()
	return ch, nil
}

// edge delivers one edge on pin, if anybody is subscribed.
func (f *fakePins) edge(pin string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.subs[pin]
	if !ok {
		return false
	}
	ch <- PinEvent{Pin: pin, At: time.Now()}
	return true
}

func (f *fakePins) subscribed(pin string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subs[pin]
	return ok
}

func (f *fakePins) ReadLevel(pin string) (bool, error) {
	f.mu.Lock()
	hook := f.onRead
	f.mu.Unlock()
	if hook != nil {
		hook(pin)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readErr[pin]; err != nil {
		return false, err
	}
	high, ok := f.levels[pin]
	if !ok {
		return true, nil
	}
	return high, nil
}

func (f *fakePins) WriteLevel(pin string, high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[pin] = high
	f.writes = append(f.writes, CmdWritePin{Pin: pin, High: high})
	return nil
}

func (f *fakePins) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakePins) writesSnapshot() []CmdWritePin {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CmdWritePin(nil), f.writes...)
}

func (f *fakePins) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func newFakeClock() clockwork.FakeClock {
	return clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
}

// drivePress runs press (a HandlePress or Run call) against clk. Each time
// press is waiting on the clock, beforeTick is told the time the clock is
// about to reach, then the clock advances by step. It returns once press
// has returned.
func drivePress(t *testing.T, clk clockwork.FakeClock, step time.Duration, press func(), beforeTick func(next time.Time)) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		press()
	}()

	waitCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-done
		cancel()
	}()

	blocker := clk.(interface {
		BlockUntilContext(ctx context.Context, n int) error
	})
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := blocker.BlockUntilContext(waitCtx, 1); err != nil {
			return
		}
		if beforeTick != nil {
			beforeTick(clk.Now().Add(step))
		}
		clk.Advance(step)
	}
	t.Fatal("press did not finish")
}

// holdFor presses pin, runs press and releases the pin once the clock has
// advanced by d.
func holdFor(t *testing.T, pins *fakePins, clk clockwork.FakeClock, step time.Duration, pin string, d time.Duration, press func()) {
	t.Helper()
	start := clk.Now()
	pins.set(pin, false)
	drivePress(t, clk, step, press, func(next time.Time) {
		if next.Sub(start) >= d {
			pins.set(pin, true)
		}
	})
}

// recordingRunner records argv instead of executing anything.
type recordingRunner struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.err
}

// fakeMixer records mixer calls.
type fakeMixer struct {
	mu      sync.Mutex
	steps   []int
	toggles int
	mutes   []bool
	closed  int
	err     error
}

func (m *fakeMixer) Step(_ context.Context, direction int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, direction)
	return m.err
}

func (m *fakeMixer) ToggleMute(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toggles++
	return m.err
}

func (m *fakeMixer) SetMute(_ context.Context, muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutes = append(m.mutes, muted)
	return m.err
}

func (m *fakeMixer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *fakeMixer) stepsSnapshot() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.steps...)
}

// fakePower records power requests.
type fakePower struct {
	mu        sync.Mutex
	reboots   int
	shutdowns int
}

func (p *fakePower) Reboot(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reboots++
	return nil
}

func (p *fakePower) Shutdown(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shutdowns++
	return nil
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
