package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix namespaces environment overrides, e.g. CYMATICS_SIMULATION_DAMPING.
const EnvPrefix = "CYMATICS"

// Config holds the whole application configuration.
type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation" yaml:"simulation"`
	Forcing    ForcingConfig    `mapstructure:"forcing" yaml:"forcing"`
	Render     RenderConfig     `mapstructure:"render" yaml:"render"`
	Audio      AudioConfig      `mapstructure:"audio" yaml:"audio"`
	Runtime    RuntimeConfig    `mapstructure:"runtime" yaml:"runtime"`
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
}

// SimulationConfig configures the wave integrator. Lengths are in domain
// units (the plate spans [0,1]), times in seconds.
type SimulationConfig struct {
	WaveSpeed           float64        `mapstructure:"wave_speed" yaml:"wave_speed"`
	Damping             float64        `mapstructure:"damping" yaml:"damping"`
	Dt                  float64        `mapstructure:"dt" yaml:"dt"`
	Dx                  float64        `mapstructure:"dx" yaml:"dx"` // 0 derives 1/(resolution-1)
	ContainerRadius     float64        `mapstructure:"container_radius" yaml:"container_radius"`
	BoundaryMode        string         `mapstructure:"boundary_mode" yaml:"boundary_mode"`
	EdgeDamping         float64        `mapstructure:"edge_damping" yaml:"edge_damping"`
	BoundarySectors     []SectorConfig `mapstructure:"boundary_sectors" yaml:"boundary_sectors"`
	BoundaryFallback    float64        `mapstructure:"boundary_fallback" yaml:"boundary_fallback"`
	DivergenceThreshold float64        `mapstructure:"divergence_threshold" yaml:"divergence_threshold"`
	Resolution          int            `mapstructure:"resolution" yaml:"resolution"`
	Workers             int            `mapstructure:"workers" yaml:"workers"`
	Backend             string         `mapstructure:"backend" yaml:"backend"`
}

// SectorConfig assigns a wall hardness to an angular range in degrees.
type SectorConfig struct {
	From     float64 `mapstructure:"from" yaml:"from"`
	To       float64 `mapstructure:"to" yaml:"to"`
	Hardness float64 `mapstructure:"hardness" yaml:"hardness"`
}

// ForcingConfig configures the audio to force mapping.
type ForcingConfig struct {
	Mode            string         `mapstructure:"mode" yaml:"mode"`
	ForceStrength   float64        `mapstructure:"force_strength" yaml:"force_strength"`
	SpeakerRadius   float64        `mapstructure:"speaker_radius" yaml:"speaker_radius"`
	ForceLimit      float64        `mapstructure:"force_limit" yaml:"force_limit"`
	StaleDecayTicks int            `mapstructure:"stale_decay_ticks" yaml:"stale_decay_ticks"`
	BaseWavelength  float64        `mapstructure:"base_wavelength" yaml:"base_wavelength"`
	ReferenceHz     float64        `mapstructure:"reference_hz" yaml:"reference_hz"`
	Sources         []SourceConfig `mapstructure:"sources" yaml:"sources"`
}

// SourceConfig places one speaker. Radius 0 uses forcing.speaker_radius.
type SourceConfig struct {
	Position []float64 `mapstructure:"position" yaml:"position"`
	Radius   float64   `mapstructure:"radius" yaml:"radius"`
	Channel  int       `mapstructure:"channel" yaml:"channel"`
}

// RenderConfig configures the surface shader.
type RenderConfig struct {
	VisualizationMode string     `mapstructure:"visualization_mode" yaml:"visualization_mode"`
	CameraDirection   []float64  `mapstructure:"camera_direction" yaml:"camera_direction"`
	SlopeScale        float64    `mapstructure:"slope_scale" yaml:"slope_scale"`
	HeightRange       float64    `mapstructure:"height_range" yaml:"height_range"`
	Environment       string     `mapstructure:"environment" yaml:"environment"`
	ConstantColor     string     `mapstructure:"constant_color" yaml:"constant_color"`
	Ring              RingConfig `mapstructure:"ring" yaml:"ring"`
	Workers           int        `mapstructure:"workers" yaml:"workers"`
}

// RingConfig describes the procedural ring light environment.
type RingConfig struct {
	AngleDeg float64 `mapstructure:"angle_deg" yaml:"angle_deg"`
	WidthDeg float64 `mapstructure:"width_deg" yaml:"width_deg"`
	Color    string  `mapstructure:"color" yaml:"color"`
	Sky      string  `mapstructure:"sky" yaml:"sky"`
	Ground   string  `mapstructure:"ground" yaml:"ground"`
}

// AudioConfig selects and analyses the driving signal. An empty File uses
// the built-in tone sweep.
type AudioConfig struct {
	File         string  `mapstructure:"file" yaml:"file"`
	SampleRate   int     `mapstructure:"sample_rate" yaml:"sample_rate"`
	FFTSize      int     `mapstructure:"fft_size" yaml:"fft_size"`
	Bands        int     `mapstructure:"bands" yaml:"bands"`
	MinHz        float64 `mapstructure:"min_hz" yaml:"min_hz"`
	MaxHz        float64 `mapstructure:"max_hz" yaml:"max_hz"`
	AnalysisRate float64 `mapstructure:"analysis_rate" yaml:"analysis_rate"`
	Playback     bool    `mapstructure:"playback" yaml:"playback"`
}

// RuntimeConfig holds process level settings.
type RuntimeConfig struct {
	TPS           int           `mapstructure:"tps" yaml:"tps"`
	WindowScale   int           `mapstructure:"window_scale" yaml:"window_scale"`
	Debug         bool          `mapstructure:"debug" yaml:"debug"`
	CPUProfile    string        `mapstructure:"cpu_profile" yaml:"cpu_profile"`
	StatsInterval time.Duration `mapstructure:"stats_interval" yaml:"stats_interval"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Simulation --
	v.SetDefault("simulation.wave_speed", 0.12)
	v.SetDefault("simulation.damping", 0.992)
	v.SetDefault("simulation.dt", 1.0/60)
	v.SetDefault("simulation.dx", 0.0)
	v.SetDefault("simulation.container_radius", 0.46)
	v.SetDefault("simulation.boundary_mode", "hard")
	v.SetDefault("simulation.edge_damping", 0.85)
	v.SetDefault("simulation.boundary_sectors", []map[string]any{})
	v.SetDefault("simulation.boundary_fallback", 0.0)
	v.SetDefault("simulation.divergence_threshold", 1e4)
	v.SetDefault("simulation.resolution", 256)
	v.SetDefault("simulation.workers", 0)
	v.SetDefault("simulation.backend", "cpu")

	// -- Forcing --
	v.SetDefault("forcing.mode", "amplitude")
	v.SetDefault("forcing.force_strength", 0.004)
	v.SetDefault("forcing.speaker_radius", 0.05)
	v.SetDefault("forcing.force_limit", 0.02)
	v.SetDefault("forcing.stale_decay_ticks", 12)
	v.SetDefault("forcing.base_wavelength", 0.08)
	v.SetDefault("forcing.reference_hz", 220.0)
	v.SetDefault("forcing.sources", []map[string]any{
		{"position": []float64{0.5, 0.5}, "radius": 0.0, "channel": 0},
	})

	// -- Render --
	v.SetDefault("render.visualization_mode", "reflection")
	v.SetDefault("render.camera_direction", []float64{0, 0.35, -1})
	v.SetDefault("render.slope_scale", 6.0)
	v.SetDefault("render.height_range", 0.3)
	v.SetDefault("render.environment", "ring")
	v.SetDefault("render.constant_color", "#808080")
	v.SetDefault("render.ring.angle_deg", 20.0)
	v.SetDefault("render.ring.width_deg", 3.5)
	v.SetDefault("render.ring.color", "#f5faff")
	v.SetDefault("render.ring.sky", "#16223a")
	v.SetDefault("render.ring.ground", "#04060a")
	v.SetDefault("render.workers", 0)

	// -- Audio --
	v.SetDefault("audio.file", "")
	v.SetDefault("audio.sample_rate", 48000)
	v.SetDefault("audio.fft_size", 2048)
	v.SetDefault("audio.bands", 24)
	v.SetDefault("audio.min_hz", 40.0)
	v.SetDefault("audio.max_hz", 4000.0)
	v.SetDefault("audio.analysis_rate", 60.0)
	v.SetDefault("audio.playback", false)

	// -- Runtime --
	v.SetDefault("runtime.tps", 60)
	v.SetDefault("runtime.window_scale", 3)
	v.SetDefault("runtime.debug", false)
	v.SetDefault("runtime.cpu_profile", "")
	v.SetDefault("runtime.stats_interval", "10s")

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "cymatics")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")
}

// NewViper returns a viper instance with defaults and CYMATICS_* environment
// overrides, reading path when it is non-empty.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %q: %w", path, err)
		}
	}
	return v, nil
}

// NewDefaultConfig returns the configuration produced by the defaults alone.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper unmarshals and validates v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
