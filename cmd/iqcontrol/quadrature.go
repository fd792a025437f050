package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// levelReader is the part of EdgeSource the decoder needs.
type levelReader interface {
	ReadLevel(pin string) (bool, error)
}

// Transition codes are (lastPhase<<2)|phase with phase = (A<<1)|B.
// Only single-bit Gray-code transitions count; no-change and double-bit
// (skipped sample) codes map to 0.
//
//	         +-----+     +-----+
//	A        |     |     |     |
//	    -----+     +-----+     +--
//	      +-----+     +-----+
//	B     |     |     |     |
//	    --+     +-----+     +-----
var quadratureTable = [16]int8{
	0b1101: +1, 0b0100: +1, 0b0010: +1, 0b1011: +1,
	0b1110: -1, 0b0111: -1, 0b0001: -1, 0b1000: -1,
}

// QuadratureDecoder turns encoder phase edges into a signed detent count.
//
// Edges for A and B are serialized by mu; count is atomic so the reconciliation
// loop can read it without taking the lock.
type QuadratureDecoder struct {
	pinA, pinB string
	pins       levelReader
	logger     *slog.Logger

	mu        sync.Mutex
	lastPhase uint8

	count atomic.Int64
}

func NewQuadratureDecoder(pins levelReader, pinA, pinB string, logger *slog.Logger) *QuadratureDecoder {
	return &QuadratureDecoder{
		pinA:   pinA,
		pinB:   pinB,
		pins:   pins,
		logger: logger,
	}
}

// Count returns the live detent count.
func (d *QuadratureDecoder) Count() int64 {
	return d.count.Load()
}

// Prime records the resting phase without counting, so the first real edge
// is decoded against the true starting position rather than 00.
func (d *QuadratureDecoder) Prime() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, err := d.pins.ReadLevel(d.pinA)
	if err != nil {
		return fmt.Errorf("read encoder A: %w", err)
	}
	b, err := d.pins.ReadLevel(d.pinB)
	if err != nil {
		return fmt.Errorf("read encoder B: %w", err)
	}
	d.lastPhase = phaseOf(a, b)
	return nil
}

// OnEdge samples both phase pins and applies the resulting transition.
func (d *QuadratureDecoder) OnEdge() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, err := d.pins.ReadLevel(d.pinA)
	if err != nil {
		return fmt.Errorf("read encoder A: %w", err)
	}
	b, err := d.pins.ReadLevel(d.pinB)
	if err != nil {
		return fmt.Errorf("read encoder B: %w", err)
	}
	d.applyLocked(phaseOf(a, b))
	return nil
}

// Apply feeds an already-sampled phase (0..3) into the decoder and returns the
// count change (-1, 0 or +1).
func (d *QuadratureDecoder) Apply(phase uint8) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.applyLocked(phase)
}

func (d *QuadratureDecoder) applyLocked(phase uint8) int {
	phase &= 0b11
	code := d.lastPhase<<2 | phase
	step := int(quadratureTable[code])

	if step != 0 {
		n := d.count.Add(int64(step))
		logTrace(d.logger, "encoder step", "code", fmt.Sprintf("%04b", code), "count", n)
	} else {
		logTrace(d.logger, "encoder transition discarded", "code", fmt.Sprintf("%04b", code))
	}

	d.lastPhase = phase
	return step
}

func phaseOf(a, b bool) uint8 {
	var p uint8
	if a {
		p |= 0b10
	}
	if b {
		p |= 0b01
	}
	return p
}

// runEncoder consumes merged A/B edges on a single goroutine until ctx is done
// or the edge streams close.
func runEncoder(ctx context.Context, d *QuadratureDecoder, edges <-chan PinEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-edges:
			if !ok {
				return nil
			}
			if err := d.OnEdge(); err != nil {
				d.logger.Warn("encoder sample failed", "error", err)
			}
		}
	}
}

// mergeEdges fans several edge streams into one, closing the result once every
// input has closed.
func mergeEdges(ctx context.Context, streams ...<-chan PinEvent) <-chan PinEvent {
	out := make(chan PinEvent, edgeQueueSize)
	var wg sync.WaitGroup
	for _, s := range streams {
		wg.Add(1)
		go func(s <-chan PinEvent) {
			defer wg.Done()
			for ev := range s {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}(s)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
