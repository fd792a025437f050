package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the iqcontrol daemon.
//
// Keep defaults and validation centralized so the rest of the code can assume
// a well-formed config.
type Config struct {
	Encoder EncoderConfig  `yaml:"encoder"`
	Buttons []ButtonConfig `yaml:"buttons"`
	Outputs OutputsConfig  `yaml:"outputs"`
	Volume  VolumeConfig   `yaml:"volume"`
	Mixer   MixerConfig    `yaml:"mixer"`
	Power   PowerConfig    `yaml:"power"`
	IR      IRConfig       `yaml:"ir"`
	Logging LoggingConfig  `yaml:"logging"`
}

// EncoderConfig names the two quadrature phase pins. Leaving both empty
// disables the encoder.
type EncoderConfig struct {
	PinA string `yaml:"pin_a"`
	PinB string `yaml:"pin_b"`
}

// ButtonConfig describes one momentary switch wired between a pin and ground.
type ButtonConfig struct {
	Name string `yaml:"name"`
	Pin  string `yaml:"pin"`
	Mode string `yaml:"mode"` // "edge" or "coarse"

	// Edge mode: short-press action, "mute", "led" or "none".
	Action string `yaml:"action,omitempty"`
	LED    int    `yaml:"led,omitempty"` // index into outputs.leds when action is "led"

	// Pointer fields are nil when the file omits them, so Normalize only
	// fills what is missing and an explicit 0 reaches Validate.
	DebounceMS     *int     `yaml:"debounce_ms,omitempty"`
	PollIntervalMS *int     `yaml:"poll_interval_ms,omitempty"`
	HoldTimeMuteS  *float64 `yaml:"hold_time_mute_s,omitempty"`
	HoldTimeOffS   float64  `yaml:"hold_time_off_s,omitempty"` // 0 disables hold-to-shutdown
	MuteWhileHeld  bool     `yaml:"mute_while_held,omitempty"`

	// Coarse mode: whole pressed seconds.
	RebootAfterS   *int `yaml:"reboot_after_s,omitempty"`
	ShutdownAfterS *int `yaml:"shutdown_after_s,omitempty"`
}

type OutputsConfig struct {
	MutePin       string   `yaml:"mute_pin"`
	MuteActiveLow bool     `yaml:"mute_active_low"`
	LEDs          []string `yaml:"leds,omitempty"`
}

type VolumeConfig struct {
	LoopHz   int     `yaml:"loop_hz"`
	StepSize float64 `yaml:"step_size"` // percent of full span per detent (amixer)
}

type MixerConfig struct {
	Backend string `yaml:"backend"` // "amixer", "camilladsp" or "none"

	// HandlesMute routes mute toggles to the mixer as well as the mute pin.
	HandlesMute bool `yaml:"handles_mute"`

	Amixer     AmixerConfig     `yaml:"amixer"`
	CamillaDSP CamillaDSPConfig `yaml:"camilladsp"`
}

type AmixerConfig struct {
	Path    string `yaml:"path"`
	Control string `yaml:"control"`
	Mapping string `yaml:"mapping"` // "-M", "-R" or ""
}

type CamillaDSPConfig struct {
	WsURL     string  `yaml:"ws_url"`
	TimeoutMS int     `yaml:"timeout_ms"`
	StepDB    float64 `yaml:"step_db"`
	MinDB     float64 `yaml:"min_db"`
	MaxDB     float64 `yaml:"max_db"`
}

type PowerConfig struct {
	Backend         string   `yaml:"backend"` // "exec", "syscall" or "none"
	RebootCommand   []string `yaml:"reboot_command,omitempty"`
	ShutdownCommand []string `yaml:"shutdown_command,omitempty"`
}

type IRConfig struct {
	Devices []string `yaml:"devices,omitempty"`
}

type LoggingConfig struct {
	// Level wins over Debug when set.
	Level  string `yaml:"level,omitempty"`
	Debug  int    `yaml:"debug"` // 0=none 1=standard 2=verbose 3=extreme
	Format string `yaml:"format"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// It matches configs/volcontrol.yaml: encoder on GPIO23/24, one mute/shutdown
// button on GPIO27 and the amp mute line on GPIO22 as the only mute.
func DefaultConfig() Config {
	return Config{
		Encoder: EncoderConfig{
			PinA: defaultEncoderPinA,
			PinB: defaultEncoderPinB,
		},
		Buttons: []ButtonConfig{
			{
				Name:           "mute",
				Pin:            defaultButtonPin,
				Mode:           string(ClassifyEdge),
				Action:         "mute",
				DebounceMS:     ptr(defaultSwitchDebounce),
				PollIntervalMS: ptr(defaultButtonPollMS),
				HoldTimeMuteS:  ptr(defaultHoldTimeMuteS),
				HoldTimeOffS:   defaultHoldTimeOffS,
				MuteWhileHeld:  true,
			},
		},
		Outputs: OutputsConfig{
			MutePin:       defaultMutePin,
			MuteActiveLow: true,
		},
		Volume: VolumeConfig{
			LoopHz:   defaultVolumeLoopHz,
			StepSize: defaultVolumeStepSize,
		},
		Mixer: MixerConfig{
			Backend:     "amixer",
			HandlesMute: false,
			Amixer: AmixerConfig{
				Path:    defaultAmixerPath,
				Control: defaultMixerControl,
				Mapping: defaultMixerMapping,
			},
			CamillaDSP: CamillaDSPConfig{
				WsURL:     "ws://127.0.0.1:1234",
				TimeoutMS: defaultReadTimeoutMS,
				StepDB:    defaultCamillaDBStep,
				MinDB:     defaultCamillaMinDB,
				MaxDB:     defaultCamillaMaxDB,
			},
		},
		Power: PowerConfig{
			Backend:         "exec",
			RebootCommand:   []string{"reboot"},
			ShutdownCommand: []string{"shutdown", "-h", "now", defaultShutdownMessage},
		},
		Logging: LoggingConfig{
			Debug:  1,
			Format: string(LogFormatText),
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Notes:
//   - Unknown fields are rejected (helps catch typos) via KnownFields(true).
//   - A buttons list in the file replaces the default list entirely; fields a
//     button omits are filled from the defaults for its mode by Normalize.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Ensure there's no trailing garbage (only whitespace/comments are allowed after the document).
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err != nil {
			return Config{}, fmt.Errorf("decode config yaml: %w", err)
		}
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}

	cfg.Normalize()
	return cfg, nil
}

// Normalize fills unset per-button fields with the defaults for their mode.
func (c *Config) Normalize() {
	for i := range c.Buttons {
		b := &c.Buttons[i]
		if b.Mode == "" {
			b.Mode = string(ClassifyEdge)
		}
		if b.Name == "" {
			b.Name = fmt.Sprintf("button%d", i+1)
		}
		switch ClassifyMode(b.Mode) {
		case ClassifyCoarse:
			if b.PollIntervalMS == nil {
				b.PollIntervalMS = ptr(defaultCoarsePollMS)
			}
			if b.DebounceMS == nil {
				b.DebounceMS = ptr(defaultCoarseDebounce)
			}
			if b.RebootAfterS == nil {
				b.RebootAfterS = ptr(defaultRebootAfterS)
			}
			if b.ShutdownAfterS == nil {
				b.ShutdownAfterS = ptr(defaultShutdownAfterS)
			}
		case ClassifyEdge:
			if b.Action == "" {
				b.Action = "none"
			}
			if b.PollIntervalMS == nil {
				b.PollIntervalMS = ptr(defaultButtonPollMS)
			}
			if b.DebounceMS == nil {
				b.DebounceMS = ptr(defaultSwitchDebounce)
			}
			if b.HoldTimeMuteS == nil {
				b.HoldTimeMuteS = ptr(defaultHoldTimeMuteS)
			}
		}
	}
}

// FlagOverrides applies overrides from flags on top of a loaded config.
// Each override is only applied if its pointer is non-nil.
type FlagOverrides struct {
	LogLevel  *string
	LogFormat *string
	Debug     *int

	MixerBackend *string
	PowerBackend *string

	VolumeLoopHz   *int
	VolumeStepSize *float64
}

// Apply merges the overrides into cfg. If an override pointer is nil, it is ignored.
// If the pointer is non-nil, the value is applied (even if it is a "zero value").
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		cfg.Logging.Format = *o.LogFormat
	}
	if o.Debug != nil {
		cfg.Logging.Debug = *o.Debug
		// -debug on the command line beats a level from the file.
		if o.LogLevel == nil {
			cfg.Logging.Level = ""
		}
	}
	if o.MixerBackend != nil {
		cfg.Mixer.Backend = *o.MixerBackend
	}
	if o.PowerBackend != nil {
		cfg.Power.Backend = *o.PowerBackend
	}
	if o.VolumeLoopHz != nil {
		cfg.Volume.LoopHz = *o.VolumeLoopHz
	}
	if o.VolumeStepSize != nil {
		cfg.Volume.StepSize = *o.VolumeStepSize
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	pins := map[string]string{} // pin -> owner
	claim := func(pin, owner string) error {
		if prev, ok := pins[pin]; ok {
			return fmt.Errorf("%s: pin %s already used by %s", owner, pin, prev)
		}
		pins[pin] = owner
		return nil
	}

	// Encoder
	if (c.Encoder.PinA == "") != (c.Encoder.PinB == "") {
		return errors.New("encoder.pin_a and encoder.pin_b must both be set or both be empty")
	}
	if c.Encoder.PinA != "" {
		if err := claim(c.Encoder.PinA, "encoder.pin_a"); err != nil {
			return err
		}
		if err := claim(c.Encoder.PinB, "encoder.pin_b"); err != nil {
			return err
		}
	}

	// Outputs
	if c.Outputs.MutePin != "" {
		if err := claim(c.Outputs.MutePin, "outputs.mute_pin"); err != nil {
			return err
		}
	}
	for i, p := range c.Outputs.LEDs {
		if p == "" {
			return fmt.Errorf("outputs.leds[%d] is empty", i)
		}
		if err := claim(p, fmt.Sprintf("outputs.leds[%d]", i)); err != nil {
			return err
		}
	}

	// Buttons
	names := map[string]bool{}
	for i, b := range c.Buttons {
		field := fmt.Sprintf("buttons[%d]", i)
		if b.Pin == "" {
			return fmt.Errorf("%s.pin must not be empty", field)
		}
		if names[b.Name] {
			return fmt.Errorf("%s.name %q is not unique", field, b.Name)
		}
		names[b.Name] = true
		if err := claim(b.Pin, field+".pin"); err != nil {
			return err
		}
		if err := b.validate(field, len(c.Outputs.LEDs)); err != nil {
			return err
		}
		if (b.Action == "mute" || b.MuteWhileHeld) && !c.canMute() {
			return fmt.Errorf("%s: mute needs outputs.mute_pin or mixer.handles_mute with a mixer backend", field)
		}
	}

	// Volume
	if c.Volume.LoopHz <= 0 || c.Volume.LoopHz > maxVolumeLoopHz {
		return fmt.Errorf("volume.loop_hz must be between 1 and %d", maxVolumeLoopHz)
	}
	if c.Volume.StepSize <= 0 {
		return errors.New("volume.step_size must be > 0")
	}

	// Mixer
	switch c.Mixer.Backend {
	case "amixer":
		if c.Mixer.Amixer.Path == "" {
			return errors.New("mixer.amixer.path must not be empty")
		}
		if c.Mixer.Amixer.Control == "" {
			return errors.New("mixer.amixer.control must not be empty")
		}
		switch c.Mixer.Amixer.Mapping {
		case "", "-M", "-R":
		default:
			return fmt.Errorf("mixer.amixer.mapping must be \"-M\", \"-R\" or empty, got %q", c.Mixer.Amixer.Mapping)
		}
	case "camilladsp":
		cd := c.Mixer.CamillaDSP
		if cd.WsURL == "" {
			return errors.New("mixer.camilladsp.ws_url must not be empty")
		}
		if cd.TimeoutMS <= 0 {
			return errors.New("mixer.camilladsp.timeout_ms must be > 0")
		}
		if cd.StepDB <= 0 {
			return errors.New("mixer.camilladsp.step_db must be > 0")
		}
		if cd.MinDB > cd.MaxDB {
			return errors.New("mixer.camilladsp.min_db must be <= mixer.camilladsp.max_db")
		}
	case "none":
	default:
		return fmt.Errorf("mixer.backend must be amixer, camilladsp or none, got %q", c.Mixer.Backend)
	}

	// Power
	switch c.Power.Backend {
	case "exec":
		if len(c.Power.RebootCommand) == 0 || c.Power.RebootCommand[0] == "" {
			return errors.New("power.reboot_command must not be empty")
		}
		if len(c.Power.ShutdownCommand) == 0 || c.Power.ShutdownCommand[0] == "" {
			return errors.New("power.shutdown_command must not be empty")
		}
	case "syscall", "none":
	default:
		return fmt.Errorf("power.backend must be exec, syscall or none, got %q", c.Power.Backend)
	}

	// IR
	for i, dev := range c.IR.Devices {
		if dev == "" {
			return fmt.Errorf("ir.devices[%d] is empty", i)
		}
	}

	// Logging
	if c.Logging.Level != "" {
		if _, err := parseLogLevel(c.Logging.Level); err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
	}
	if c.Logging.Debug < 0 || c.Logging.Debug > 3 {
		return errors.New("logging.debug must be between 0 and 3")
	}
	if _, err := parseLogFormat(c.Logging.Format); err != nil {
		return fmt.Errorf("logging.format: %w", err)
	}

	return nil
}

// canMute reports whether a mute action has anything to drive.
func (c *Config) canMute() bool {
	return c.Outputs.MutePin != "" || c.OutputPins().MixerMute
}

func (b ButtonConfig) validate(field string, ledCount int) error {
	if deref(b.PollIntervalMS) <= 0 {
		return fmt.Errorf("%s.poll_interval_ms must be > 0", field)
	}
	if deref(b.DebounceMS) < 0 {
		return fmt.Errorf("%s.debounce_ms must be >= 0", field)
	}

	switch ClassifyMode(b.Mode) {
	case ClassifyEdge:
		debounceMS, holdMute := deref(b.DebounceMS), deref(b.HoldTimeMuteS)
		debounceS := float64(debounceMS) / 1000
		if debounceMS <= 0 {
			return fmt.Errorf("%s.debounce_ms must be > 0", field)
		}
		if holdMute <= debounceS {
			return fmt.Errorf("%s: hold_time_mute_s (%g) must be greater than debounce_ms/1000 (%g)", field, holdMute, debounceS)
		}
		if b.HoldTimeOffS < 0 {
			return fmt.Errorf("%s.hold_time_off_s must be >= 0", field)
		}
		if b.HoldTimeOffS > 0 && b.HoldTimeOffS <= holdMute {
			return fmt.Errorf("%s: hold_time_off_s (%g) must be greater than hold_time_mute_s (%g)", field, b.HoldTimeOffS, holdMute)
		}
		switch b.Action {
		case "mute", "none":
		case "led":
			if b.LED < 0 || b.LED >= ledCount {
				return fmt.Errorf("%s.led %d out of range (outputs.leds has %d entries)", field, b.LED, ledCount)
			}
		default:
			return fmt.Errorf("%s.action must be mute, led or none, got %q", field, b.Action)
		}

	case ClassifyCoarse:
		if b.Action != "" && b.Action != "power" {
			return fmt.Errorf("%s.action must be power or empty in coarse mode, got %q", field, b.Action)
		}
		if b.MuteWhileHeld {
			return fmt.Errorf("%s.mute_while_held is not supported in coarse mode", field)
		}
		reboot, shutdown := deref(b.RebootAfterS), deref(b.ShutdownAfterS)
		if reboot < 0 || shutdown <= reboot {
			return fmt.Errorf("%s: need 0 <= reboot_after_s (%d) < shutdown_after_s (%d)", field, reboot, shutdown)
		}

	default:
		return fmt.Errorf("%s.mode must be edge or coarse, got %q", field, b.Mode)
	}
	return nil
}

// EffectiveLogLevel resolves logging.level, falling back to the debug verbosity.
func (c *Config) EffectiveLogLevel() LogLevel {
	if c.Logging.Level != "" {
		if lvl, err := parseLogLevel(c.Logging.Level); err == nil {
			return lvl
		}
	}
	return levelForDebug(c.Logging.Debug)
}

// ButtonSpecs converts the validated button list into runtime specs.
func (c *Config) ButtonSpecs() []ButtonSpec {
	specs := make([]ButtonSpec, 0, len(c.Buttons))
	for _, b := range c.Buttons {
		spec := ButtonSpec{
			Name:         b.Name,
			Pin:          b.Pin,
			Mode:         ClassifyMode(b.Mode),
			PollInterval: time.Duration(deref(b.PollIntervalMS)) * time.Millisecond,
			Thresholds: Thresholds{
				Debounce: time.Duration(deref(b.DebounceMS)) * time.Millisecond,
				HoldMute: seconds(deref(b.HoldTimeMuteS)),
				HoldOff:  seconds(b.HoldTimeOffS),
			},
			MuteWhileHeld: b.MuteWhileHeld,
			RebootAfter:   deref(b.RebootAfterS),
			ShutdownAfter: deref(b.ShutdownAfterS),
		}
		switch b.Action {
		case "mute":
			spec.Short = ToggleMute{}
		case "led":
			spec.Short = ToggleLED{Index: b.LED}
		}
		specs = append(specs, spec)
	}
	return specs
}

// OutputPins returns the dispatcher's view of the output wiring.
func (c *Config) OutputPins() OutputPins {
	return OutputPins{
		MutePin:       c.Outputs.MutePin,
		MuteActiveLow: c.Outputs.MuteActiveLow,
		MixerMute:     c.Mixer.HandlesMute && c.Mixer.Backend != "none",
		LEDPins:       append([]string(nil), c.Outputs.LEDs...),
	}
}

func ptr[T any](v T) *T { return &v }

// deref returns the zero value for a nil pointer.
func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
