// Command gpio_listen prints level changes on a set of pins, and optionally
// the running quadrature count of an encoder pair. It is a wiring check for
// boards driven by iqcontrol and never writes to a pin.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

func main() {
	var (
		pinList  = flag.String("pins", "GPIO23,GPIO24,GPIO27", "Comma-separated pins to watch")
		encoder  = flag.String("encoder", "", "Encoder phase pins as A,B (e.g. GPIO23,GPIO24); prints the decoded count")
		interval = flag.Int("interval", 0, "Also print all levels every N milliseconds (0 disables)")
	)
	flag.Parse()

	if _, err := host.Init(); err != nil {
		log.Fatalf("periph host init: %v", err)
	}

	names := splitPins(*pinList)
	var encA, encB string
	if *encoder != "" {
		ab := splitPins(*encoder)
		if len(ab) != 2 {
			log.Fatalf("invalid -encoder %q: want A,B", *encoder)
		}
		encA, encB = ab[0], ab[1]
		names = appendMissing(names, encA, encB)
	}
	if len(names) == 0 {
		log.Fatal("no pins to watch")
	}

	pins := make(map[string]gpio.PinIO, len(names))
	for _, n := range names {
		p := gpioreg.ByName(n)
		if p == nil {
			log.Fatalf("unknown pin %q", n)
		}
		if err := p.In(gpio.PullUp, gpio.BothEdges); err != nil {
			log.Fatalf("configure %s: %v", n, err)
		}
		pins[n] = p
	}
	defer func() {
		for _, p := range pins {
			p.Halt()
			p.In(gpio.Float, gpio.NoEdge)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	var outMu sync.Mutex
	printf := func(format string, args ...any) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Printf(format, args...)
	}

	enc := &quadCount{}
	if encA != "" {
		enc.prime(pins[encA], pins[encB])
	}

	var wg sync.WaitGroup
	for _, n := range names {
		wg.Add(1)
		go func(name string, p gpio.PinIO) {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if !p.WaitForEdge(100 * time.Millisecond) {
					continue
				}
				printf("[EDGE] %s %s %s\n", time.Now().Format("15:04:05.000"), name, p.Read())
				if name == encA || name == encB {
					if n, changed := enc.sample(pins[encA], pins[encB]); changed {
						printf("[COUNT] %d\n", n)
					}
				}
			}
		}(n, pins[n])
	}

	if *interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t := time.NewTicker(time.Duration(*interval) * time.Millisecond)
			defer t.Stop()
			for {
				select {
				case <-done:
					return
				case <-t.C:
					var b strings.Builder
					for _, n := range names {
						fmt.Fprintf(&b, " %s=%s", n, pins[n].Read())
					}
					printf("[LEVELS]%s\n", b.String())
				}
			}
		}()
	}

	log.Printf("watching %s (press Ctrl+C to exit)", strings.Join(names, ", "))
	<-sigc
	log.Printf("shutting down...")
	close(done)
	wg.Wait()
}

// quadCount is a minimal Gray-code counter for the -encoder readout.
type quadCount struct {
	mu    sync.Mutex
	last  uint8
	count int64
}

func (q *quadCount) prime(a, b gpio.PinIO) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.last = phase(a, b)
}

// sample reads both phases and applies them under one lock, so the A and B
// watchers cannot apply their readings out of order.
func (q *quadCount) sample(a, b gpio.PinIO) (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.applyLocked(phase(a, b))
}

func (q *quadCount) applyLocked(p uint8) (int64, bool) {
	switch q.last<<2 | p {
	case 0b1101, 0b0100, 0b0010, 0b1011:
		q.count++
	case 0b1110, 0b0111, 0b0001, 0b1000:
		q.count--
	default:
		q.last = p
		return q.count, false
	}
	q.last = p
	return q.count, true
}

func phase(a, b gpio.PinIO) uint8 {
	var p uint8
	if a.Read() == gpio.High {
		p |= 0b10
	}
	if b.Read() == gpio.High {
		p |= 0b01
	}
	return p
}

func splitPins(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func appendMissing(names []string, extra ...string) []string {
	for _, e := range extra {
		if !slices.Contains(names, e) {
			names = append(names, e)
		}
	}
	return names
}
