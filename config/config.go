// Package config provides configuration loading and access for the haptic service.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all haptic service configuration parameters.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Loop      LoopConfig      `yaml:"loop"`
	Surface   SurfaceConfig   `yaml:"surface"`
	Pyramid   PyramidConfig   `yaml:"pyramid"`
	Channel   ChannelConfig   `yaml:"channel"`
	Terrain   TerrainConfig   `yaml:"terrain"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Server    ServerConfig    `yaml:"server"`
	Viewer    ViewerConfig    `yaml:"viewer"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// DeviceConfig selects and configures the force device.
type DeviceConfig struct {
	Kind   string       `yaml:"kind"` // simulated, serial or none
	Serial SerialConfig `yaml:"serial"`
}

// SerialConfig holds the serial line parameters for a serial-attached device.
type SerialConfig struct {
	Port       string  `yaml:"port"`
	BaudRate   int     `yaml:"baud_rate"`
	DataBits   int     `yaml:"data_bits"`
	StopBits   int     `yaml:"stop_bits"`
	Parity     string  `yaml:"parity"`
	StaleAfter float64 `yaml:"stale_after"` // Seconds without a position report before reads fail
}

// LoopConfig holds real-time loop parameters.
type LoopConfig struct {
	TickHz        float64 `yaml:"tick_hz"`        // 0 = paced by the device call
	MaxForce      float64 `yaml:"max_force"`      // Safety clamp on force magnitude
	EnableEpsilon float64 `yaml:"enable_epsilon"` // Force must be below this to arm
	ForceButton   int     `yaml:"force_button"`   // Device button id reported in telemetry
	PerfWindow    int     `yaml:"perf_window"`    // Ticks per perf window
}

// SurfaceConfig holds the initial values of the live tunables.
type SurfaceConfig struct {
	BoundsScale       float64 `yaml:"bounds_scale"`
	Force             float64 `yaml:"force"`
	Softness          float64 `yaml:"softness"`
	MinForce          float64 `yaml:"min_force"`
	StaticFriction    float64 `yaml:"static_friction"`
	KineticFriction   float64 `yaml:"kinetic_friction"`
	FrictionStiffness float64 `yaml:"friction_stiffness"`
	FrictionMode      string  `yaml:"friction_mode"` // off, stick_slip, kinetic
	MipLevel          int     `yaml:"mip_level"`
	Gravity           float64 `yaml:"gravity"` // 0 = off
	VolumeLayers      int     `yaml:"volume_layers"`
	LayerThickness    float64 `yaml:"layer_thickness"`
	InputSpace        string  `yaml:"input_space"` // z_up or y_up
	Aspect            float64 `yaml:"aspect"`
}

// PyramidConfig holds height texture parameters.
type PyramidConfig struct {
	Size int `yaml:"size"` // Level 0 texture edge in texels
}

// ChannelConfig holds snapshot channel parameters.
type ChannelConfig struct {
	BufferCount int `yaml:"buffer_count"`
}

// TerrainConfig holds synthetic height field generation parameters.
type TerrainConfig struct {
	Seed       int64   `yaml:"seed"`
	Scale      float64 `yaml:"scale"`
	Octaves    int     `yaml:"octaves"`
	Lacunarity float64 `yaml:"lacunarity"`
	Gain       float64 `yaml:"gain"`
	Amplitude  float64 `yaml:"amplitude"`  // Height range of the generated surface
	Holes      int     `yaml:"holes"`      // Number of missing-data patches
	TimeSpeed  float64 `yaml:"time_speed"` // Drift speed (0 = static)
	UpdateHz   float64 `yaml:"update_hz"`  // Republish rate when drifting
}

// TelemetryConfig holds recording parameters.
type TelemetryConfig struct {
	OutputDir  string `yaml:"output_dir"`  // Empty disables recording
	QueueSize  int    `yaml:"queue_size"`  // Recorder buffer in ticks
	BatchSize  int    `yaml:"batch_size"`  // Records per CSV write
	RecordEach int    `yaml:"record_each"` // Record every Nth tick
}

// ServerConfig holds the websocket bridge parameters.
type ServerConfig struct {
	Listen string  `yaml:"listen"` // Empty disables the bridge
	RateHz float64 `yaml:"rate_hz"`
}

// ViewerConfig holds display settings for the interactive viewer.
type ViewerConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	TickPeriod   time.Duration // 0 when device paced
	StaleAfter   time.Duration
	ServerPeriod time.Duration
	TerrainEvery time.Duration
}

// Validation errors.
var (
	ErrFrictionOrder = errors.New("kinetic friction must be below static friction")
	ErrBufferCount   = errors.New("channel buffer_count must be at least 2")
)

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Defaults returns a fresh copy of the embedded defaults.
func Defaults() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate checks invariants the runtime relies on.
func (c *Config) Validate() error {
	if c.Surface.KineticFriction >= c.Surface.StaticFriction {
		return fmt.Errorf("%w: kinetic=%g static=%g", ErrFrictionOrder,
			c.Surface.KineticFriction, c.Surface.StaticFriction)
	}
	if c.Channel.BufferCount < 2 {
		return fmt.Errorf("%w: got %d", ErrBufferCount, c.Channel.BufferCount)
	}
	if c.Loop.TickHz < 0 {
		return fmt.Errorf("loop.tick_hz must not be negative: %g", c.Loop.TickHz)
	}
	if c.Loop.MaxForce <= 0 {
		return fmt.Errorf("loop.max_force must be positive: %g", c.Loop.MaxForce)
	}
	if c.Surface.BoundsScale <= 0 {
		return fmt.Errorf("surface.bounds_scale must be positive: %g", c.Surface.BoundsScale)
	}
	switch c.Device.Kind {
	case "simulated", "serial", "none":
	default:
		return fmt.Errorf("unknown device.kind %q", c.Device.Kind)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.TickPeriod = hzToPeriod(c.Loop.TickHz)
	c.Derived.ServerPeriod = hzToPeriod(c.Server.RateHz)
	c.Derived.TerrainEvery = hzToPeriod(c.Terrain.UpdateHz)
	c.Derived.StaleAfter = time.Duration(c.Device.Serial.StaleAfter * float64(time.Second))

	if c.Surface.Aspect <= 0 {
		c.Surface.Aspect = 1
	}
	if c.Loop.PerfWindow < 1 {
		c.Loop.PerfWindow = 1000
	}
	if c.Telemetry.RecordEach < 1 {
		c.Telemetry.RecordEach = 1
	}
}

func hzToPeriod(hz float64) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / hz)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
