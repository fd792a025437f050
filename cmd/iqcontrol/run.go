package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// effectTimeout bounds a single mixer or pin effect.
const effectTimeout = 5 * time.Second

// buildEffects constructs the mixer and power backends named in cfg.
func buildEffects(ctx context.Context, cfg Config, pins pinWriter, logger *slog.Logger) (*Effects, error) {
	fx := &Effects{
		Pins:    pins,
		Timeout: effectTimeout,
		Logger:  logger.With("component", "effects"),
	}

	mixLog := logger.With("component", "mixer")
	switch cfg.Mixer.Backend {
	case "amixer":
		lvl := cfg.EffectiveLogLevel()
		quiet := lvl != LogLevelDebug && lvl != LogLevelTrace
		a := cfg.Mixer.Amixer
		fx.Mixer = NewAmixerMixer(a.Path, a.Control, a.Mapping, cfg.Volume.StepSize, quiet, nil, mixLog)
	case "camilladsp":
		cd := cfg.Mixer.CamillaDSP
		client, err := NewCamillaDSPClient(cd.WsURL, time.Duration(cd.TimeoutMS)*time.Millisecond, mixLog)
		if err != nil {
			return nil, err
		}
		// Not fatal: the first effect redials.
		if err := client.Connect(ctx); err != nil {
			mixLog.Warn("camilladsp not reachable yet", "error", err)
		}
		fx.Mixer = NewCamillaMixer(client, cd.StepDB, cd.MinDB, cd.MaxDB)
	case "none":
		fx.Mixer = nullMixer{logger: mixLog}
	default:
		return nil, fmt.Errorf("unknown mixer backend %q", cfg.Mixer.Backend)
	}

	powLog := logger.With("component", "power")
	switch cfg.Power.Backend {
	case "exec":
		fx.Power = newExecPower(cfg.Power.RebootCommand, cfg.Power.ShutdownCommand, nil, powLog)
	case "syscall":
		fx.Power = newSyscallPower(powLog)
	case "none":
		fx.Power = nullPower{logger: powLog}
	default:
		return nil, fmt.Errorf("unknown power backend %q", cfg.Power.Backend)
	}

	return fx, nil
}

// noEncoder stands in when no encoder is wired.
type noEncoder struct{}

func (noEncoder) Count() int64 { return 0 }

// run wires decoders, classifiers, the daemon loop and the effects worker
// together and blocks until ctx is done or a component fails. The edge
// source and the mixer are closed exactly once before run returns.
func run(ctx context.Context, cfg Config, src EdgeSource, fx *Effects, logger *slog.Logger) error {
	var cleanupOnce sync.Once
	cleanup := func() {
		cleanupOnce.Do(func() {
			if err := src.Close(); err != nil {
				logger.Warn("pin cleanup failed", "error", err)
			}
			if fx.Mixer != nil {
				fx.Mixer.Close()
			}
			logger.Debug("cleanup done")
		})
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	// abort stops goroutines already started so cleanup never races them.
	abort := func(err error) error {
		cancel()
		g.Wait()
		return err
	}

	actions := make(chan Action, actionQueueSize)
	cmds := make(chan Command, commandQueueSize)

	var enc counter = noEncoder{}
	if cfg.Encoder.PinA != "" {
		dec := NewQuadratureDecoder(src, cfg.Encoder.PinA, cfg.Encoder.PinB, logger.With("component", "encoder"))
		ea, err := src.Subscribe(gctx, cfg.Encoder.PinA, PolarityBoth, 0)
		if err != nil {
			return abort(fmt.Errorf("encoder: %w", err))
		}
		eb, err := src.Subscribe(gctx, cfg.Encoder.PinB, PolarityBoth, 0)
		if err != nil {
			return abort(fmt.Errorf("encoder: %w", err))
		}
		if err := dec.Prime(); err != nil {
			logger.Warn("could not read encoder resting phase", "error", err)
		}
		edges := mergeEdges(gctx, ea, eb)
		goSafe(g, "encoder", func() error { return runEncoder(gctx, dec, edges) })
		enc = dec
	}

	for _, spec := range cfg.ButtonSpecs() {
		edges, err := src.Subscribe(gctx, spec.Pin, PolarityFalling, spec.Thresholds.Debounce)
		if err != nil {
			return abort(fmt.Errorf("button %s: %w", spec.Name, err))
		}
		pc := NewPressClassifier(spec, src, clockwork.NewRealClock(), actions, logger.With("component", "button"))
		goSafe(g, "button "+spec.Name, func() error { return pc.Run(gctx, edges) })
	}

	if len(cfg.IR.Devices) > 0 {
		irLog := logger.With("component", "ir")
		goSafe(g, "ir", func() error {
			// A lost remote is not worth stopping the knob for.
			if err := runIRReader(gctx, cfg.IR.Devices, actions, irLog); err != nil {
				irLog.Error("ir reader stopped", "error", err)
			}
			return nil
		})
	}

	goSafe(g, "effects", func() error { return runEffectsWorker(gctx, fx, cmds) })

	state := NewDaemonState(len(cfg.Outputs.LEDs), enc.Count())
	dcfg := DaemonConfig{LoopHz: cfg.Volume.LoopHz, Pins: cfg.OutputPins()}
	goSafe(g, "daemon", func() error {
		return runDaemon(gctx, actions, enc, state, dcfg, cmds, logger.With("component", "daemon"))
	})

	logger.Info("running",
		"encoder", cfg.Encoder.PinA != "",
		"buttons", len(cfg.Buttons),
		"mixer", cfg.Mixer.Backend,
		"power", cfg.Power.Backend,
		"volume_loop_hz", cfg.Volume.LoopHz)

	err := g.Wait()
	cleanup()
	return err
}

// goSafe runs fn in g, turning a panic into an error so the group cancels
// and the deferred pin cleanup still runs.
func goSafe(g *errgroup.Group, name string, fn func() error) {
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s: panic: %v", name, r)
			}
		}()
		return fn()
	})
}
