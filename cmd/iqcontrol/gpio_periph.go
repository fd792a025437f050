package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpioutil"
	"periph.io/x/host/v3"
)

// edgeWaitTimeout bounds each WaitForEdge so watcher goroutines notice cancellation.
const edgeWaitTimeout = 100 * time.Millisecond

// periphSource is the EdgeSource backed by periph.io (GPIO character device / sysfs
// on a Raspberry Pi). Pins are addressed by periph names such as "GPIO23".
type periphSource struct {
	logger *slog.Logger

	mu   sync.Mutex
	pins map[string]gpio.PinIO

	closeOnce sync.Once
	closeErr  error
}

func newPeriphSource(logger *slog.Logger) (*periphSource, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	for _, d := range state.Failed {
		logger.Debug("periph driver failed to load", "driver", d.D.String(), "error", d.Err)
	}
	return &periphSource{
		logger: logger,
		pins:   make(map[string]gpio.PinIO),
	}, nil
}

func (s *periphSource) lookup(name string) (gpio.PinIO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pins[name]; ok {
		return p, nil
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("unknown pin %q", name)
	}
	s.pins[name] = p
	return p, nil
}

func periphEdge(p Polarity) gpio.Edge {
	switch p {
	case PolarityRising:
		return gpio.RisingEdge
	case PolarityFalling:
		return gpio.FallingEdge
	default:
		return gpio.BothEdges
	}
}

func (s *periphSource) Subscribe(ctx context.Context, name string, polarity Polarity, debounce time.Duration) (<-chan PinEvent, error) {
	p, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if err := p.In(gpio.PullUp, periphEdge(polarity)); err != nil {
		return nil, fmt.Errorf("configure %s as input: %w", name, err)
	}

	// gpioutil.Debounce reports both edges; polarity is re-checked on the
	// settled level below.
	src, err := gpioutil.Debounce(p, debounce, 0, periphEdge(polarity))
	if err != nil {
		return nil, fmt.Errorf("debounce %s: %w", name, err)
	}

	out := make(chan PinEvent, edgeQueueSize)
	go func() {
		defer close(out)
		for ctx.Err() == nil {
			if !src.WaitForEdge(edgeWaitTimeout) {
				continue
			}
			if !polarity.accepts(src.Read() == gpio.High) {
				continue
			}
			select {
			case out <- PinEvent{Pin: name, At: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}()

	s.logger.Debug("watching pin", "pin", name, "polarity", polarity.String(), "debounce", debounce)
	return out, nil
}

func (s *periphSource) ReadLevel(name string) (bool, error) {
	p, err := s.lookup(name)
	if err != nil {
		return false, err
	}
	return p.Read() == gpio.High, nil
}

func (s *periphSource) WriteLevel(name string, high bool) error {
	p, err := s.lookup(name)
	if err != nil {
		return err
	}
	if err := p.Out(gpio.Level(high)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Close returns every used pin to a floating input with edge detection off.
func (s *periphSource) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		var errs []error
		for name, p := range s.pins {
			if err := p.Halt(); err != nil {
				errs = append(errs, fmt.Errorf("halt %s: %w", name, err))
			}
			if err := p.In(gpio.Float, gpio.NoEdge); err != nil {
				errs = append(errs, fmt.Errorf("release %s: %w", name, err))
			}
		}
		s.closeErr = errors.Join(errs...)
		s.logger.Debug("pins released", "count", len(s.pins))
	})
	return s.closeErr
}
