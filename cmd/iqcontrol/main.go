package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("iqcontrol v%s\n", version)
	fmt.Println("Rotary encoder and button daemon for ALSA / CamillaDSP volume control")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  iqcontrol [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Daemon that decodes a rotary quadrature encoder and momentary buttons on")
	fmt.Println("  GPIO pins into volume steps, mute toggles, LED toggles, reboot and shutdown.")
	fmt.Println("  Volume changes are coalesced to at most one step per loop tick.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (default: built-in Pi-DAC layout)")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug, trace (overrides -debug)")
	fmt.Println()
	fmt.Println("  -log-format string")
	fmt.Println("        Log format: text, pretty (default \"text\")")
	fmt.Println()
	fmt.Println("  -debug int")
	fmt.Println("        Debug verbosity 0-3: 0=warnings 1=standard 2=verbose 3=extreme (default 1)")
	fmt.Println()
	fmt.Println("  -mixer string")
	fmt.Println("        Mixer backend: amixer, camilladsp, none (default \"amixer\")")
	fmt.Println()
	fmt.Println("  -power string")
	fmt.Println("        Power backend: exec, syscall, none (default \"exec\")")
	fmt.Println()
	fmt.Println("  -volume-loop-hz int")
	fmt.Printf("        Maximum volume steps per second (default %d)\n", defaultVolumeLoopHz)
	fmt.Println()
	fmt.Println("  -volume-step-size float")
	fmt.Printf("        Volume change per step in percent of full span (default %g)\n", defaultVolumeStepSize)
	fmt.Println()
	fmt.Println("  -check-config")
	fmt.Println("        Validate the configuration, print the effective config and exit")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start daemon with the built-in layout")
	fmt.Println("  iqcontrol")
	fmt.Println()
	fmt.Println("  # Cosmic Controller board, verbose logs")
	fmt.Println("  iqcontrol -config /etc/iqcontrol/cosmiccontroller.yaml -debug 2")
	fmt.Println()
	fmt.Println("  # Check a config without touching any pins")
	fmt.Println("  iqcontrol -config ./iqcontrol.yaml -check-config")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires GPIO access (run as root or add user to the 'gpio' group)")
	fmt.Println("  - Buttons and encoder pins are pulled up; a pressed switch reads low")
	fmt.Println("  - All pins are released on exit (SIGINT / SIGTERM)")
	fmt.Println()
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath     = flag.String("config", "", "Path to YAML config file")
		logLevel       = flag.String("log-level", "", "Log level: error, warn, info, debug, trace")
		logFormat      = flag.String("log-format", string(LogFormatText), "Log format: text, pretty")
		debug          = flag.Int("debug", 1, "Debug verbosity 0-3")
		mixerBackend   = flag.String("mixer", "amixer", "Mixer backend: amixer, camilladsp, none")
		powerBackend   = flag.String("power", "exec", "Power backend: exec, syscall, none")
		volumeLoopHz   = flag.Int("volume-loop-hz", defaultVolumeLoopHz, "Maximum volume steps per second")
		volumeStepSize = flag.Float64("volume-step-size", defaultVolumeStepSize, "Volume change per step in percent")
		checkConfig    = flag.Bool("check-config", false, "Validate config and exit")
		showVersion    = flag.Bool("version", false, "Print version and exit")
		showHelp       = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	// Only flags given on the command line override the file.
	var ov FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			ov.LogLevel = logLevel
		case "log-format":
			ov.LogFormat = logFormat
		case "debug":
			ov.Debug = debug
		case "mixer":
			ov.MixerBackend = mixerBackend
		case "power":
			ov.PowerBackend = powerBackend
		case "volume-loop-hz":
			ov.VolumeLoopHz = volumeLoopHz
		case "volume-step-size":
			ov.VolumeStepSize = volumeStepSize
		}
	})

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}
	ov.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid config:", err)
		os.Exit(1)
	}

	if *checkConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	format, _ := parseLogFormat(cfg.Logging.Format)
	logger := setupLogger(os.Stdout, cfg.EffectiveLogLevel(), format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	src, err := newPeriphSource(logger)
	if err != nil {
		logger.Error("failed to initialise GPIO", "error", err)
		stop()
		os.Exit(1)
	}

	fx, err := buildEffects(ctx, cfg, src, logger)
	if err != nil {
		logger.Error("failed to set up effects", "error", err)
		src.Close()
		stop()
		os.Exit(1)
	}

	logger.Debug("starting iqcontrol", "version", version)
	logger.Debug("configuration",
		"config", *configPath,
		"encoder_a", cfg.Encoder.PinA,
		"encoder_b", cfg.Encoder.PinB,
		"buttons", len(cfg.Buttons),
		"mute_pin", cfg.Outputs.MutePin,
		"leds", cfg.Outputs.LEDs,
		"mixer", cfg.Mixer.Backend,
		"power", cfg.Power.Backend,
		"volume_loop_hz", cfg.Volume.LoopHz,
		"volume_step_size", cfg.Volume.StepSize,
		"ir_devices", cfg.IR.Devices)

	err = run(ctx, cfg, src, fx, logger)
	stop()
	if err != nil {
		logger.Error("iqcontrol stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("iqcontrol exiting")
}
