// Package config loads and saves the arf application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/thesyncim/arf/pkg/arf"
)

// Config is the complete application configuration.
type Config struct {
	Filter   FilterConfig   `toml:"filter"`
	Sampler  SamplerConfig  `toml:"sampler"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Logger   LoggerConfig   `toml:"logger"`
	Source   SourceConfig   `toml:"source"`
}

// FilterConfig is the TOML form of arf.FilterConfig. Durations are stored in
// milliseconds.
type FilterConfig struct {
	Type string `toml:"type"`

	XDivisor                float64 `toml:"x_divisor"`
	ReportDivisor           float64 `toml:"report_divisor"`
	OuterRadius             float64 `toml:"outer_radius"`
	InnerRadius             float64 `toml:"inner_radius"`
	SmoothingCoefficient    float64 `toml:"smoothing_coefficient"`
	SoftKneeScale           float64 `toml:"soft_knee_scale"`
	SmoothingLeak           float64 `toml:"smoothing_leak"`
	VelocityDivisor         float64 `toml:"velocity_divisor"`
	MinimumRadiusMultiplier float64 `toml:"minimum_radius_multiplier"`
	RadialMultPower         float64 `toml:"radial_mult_power"`
	MinimumSmoothingDivisor float64 `toml:"minimum_smoothing_divisor"`
	RawAccelThreshold       float64 `toml:"raw_accel_threshold"`
	AccelMultPower          float64 `toml:"accel_mult_power"`

	Advanced                  bool    `toml:"advanced"`
	RawVelocityThreshold      float64 `toml:"raw_velocity_threshold"`
	AngleIndexConfidence      float64 `toml:"angle_index_confidence"`
	AngleIndexDecelConfidence float64 `toml:"angle_index_decel_confidence"`
	AccelMultVelocityOverride float64 `toml:"accel_mult_velocity_override"`
	SpinCheckConfidence       float64 `toml:"spin_check_confidence"`
	GroundedRadius            bool    `toml:"grounded_radius"`
	CompressAccelMult         bool    `toml:"compress_accel_mult"`
	AccelMultCompression      float64 `toml:"accel_mult_compression"`

	DecelLerpMargin     float64 `toml:"decel_lerp_margin"`
	AngleLerpMargin     float64 `toml:"angle_lerp_margin"`
	SnapAccelThreshold  float64 `toml:"snap_accel_threshold"`
	SnapJerkThreshold   float64 `toml:"snap_jerk_threshold"`
	SnapSnapThreshold   float64 `toml:"snap_snap_threshold"`
	AngleIndexFloor     float64 `toml:"angle_index_floor"`
	JerkEscapeThreshold float64 `toml:"jerk_escape_threshold"`
	JerkEscapeMargin    float64 `toml:"jerk_escape_margin"`
	SnapEscapeThreshold float64 `toml:"snap_escape_threshold"`
	SnapEscapeMargin    float64 `toml:"snap_escape_margin"`
	SnapAccelRatio      float64 `toml:"snap_accel_ratio"`
	SnapVelocityRatio   float64 `toml:"snap_velocity_ratio"`

	Weights                WeightsConfig `toml:"weights"`
	DecelWeightFloor       float64       `toml:"decel_weight_floor"`
	AccelWeightCompression float64       `toml:"accel_weight_compression"`

	RedetectThresholdMs float64 `toml:"redetect_threshold_ms"`
	MMScaleX            float64 `toml:"mm_scale_x"`
	MMScaleY            float64 `toml:"mm_scale_y"`
}

// WeightsConfig holds the output EMA weights.
type WeightsConfig struct {
	Normal float64 `toml:"normal"`
	Decel  float64 `toml:"decel"`
	Accel  float64 `toml:"accel"`
}

// SamplerConfig is the TOML form of arf.SamplerConfig.
type SamplerConfig struct {
	OutputFrequency         float64 `toml:"output_frequency"`
	InitialReportIntervalMs float64 `toml:"initial_report_interval_ms"`
	StaleGapThresholdMs     float64 `toml:"stale_gap_threshold_ms"`
	ProximityTimeoutMs      float64 `toml:"proximity_timeout_ms"`
}

// PipelineConfig configures the host pipeline.
type PipelineConfig struct {
	// BufferSize is the capacity of the sample channel.
	BufferSize int `toml:"buffer_size"`
	// ReportRateWindowMs is the report rate measurement window.
	ReportRateWindowMs int `toml:"report_rate_window_ms"`
	// StatsIntervalMs is how often pipeline statistics are logged.
	StatsIntervalMs int `toml:"stats_interval_ms"`
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level       string      `toml:"level"`
	Format      string      `toml:"format"`
	AddSource   bool        `toml:"add_source"`
	ServiceName string      `toml:"service_name"`
	LogFile     string      `toml:"log_file"`
	MaxSize     int         `toml:"max_size"`
	MaxBackups  int         `toml:"max_backups"`
	MaxAge      int         `toml:"max_age"`
	Compress    bool        `toml:"compress"`
	Colors      ColorConfig `toml:"colors"`
}

// ColorConfig names the console color of each log level.
type ColorConfig struct {
	Debug  string `toml:"debug"`
	Info   string `toml:"info"`
	Warn   string `toml:"warn"`
	Error  string `toml:"error"`
	DPanic string `toml:"dpanic"`
	Panic  string `toml:"panic"`
	Fatal  string `toml:"fatal"`
}

// SourceConfig selects where digitizer reports come from.
type SourceConfig struct {
	// Kind is "serial", "file" or "stdin".
	Kind string `toml:"kind"`
	// Path is the input file for kind "file".
	Path string `toml:"path"`

	Port     string `toml:"port"`
	BaudRate int    `toml:"baud_rate"`
	DataBits int    `toml:"data_bits"`
	StopBits int    `toml:"stop_bits"`
	// Parity is "none", "odd" or "even".
	Parity string `toml:"parity"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Filter:  FromFilterConfig(arf.DefaultFilterConfig()),
		Sampler: FromSamplerConfig(arf.DefaultSamplerConfig()),
		Pipeline: PipelineConfig{
			BufferSize:         256,
			ReportRateWindowMs: 1000,
			StatsIntervalMs:    10000,
		},
		Logger: LoggerConfig{
			Level:       "info",
			Format:      "console",
			ServiceName: "arf",
			MaxSize:     10,
			MaxBackups:  3,
			MaxAge:      28,
			Colors: ColorConfig{
				Debug:  "cyan",
				Info:   "green",
				Warn:   "yellow",
				Error:  "red",
				DPanic: "magenta",
				Panic:  "magenta",
				Fatal:  "magenta",
			},
		},
		Source: SourceConfig{
			Kind:     "stdin",
			BaudRate: 115200,
			DataBits: 8,
			StopBits: 1,
			Parity:   "none",
		},
	}
}

// FromFilterConfig converts a filter configuration to its TOML form.
func FromFilterConfig(c arf.FilterConfig) FilterConfig {
	return FilterConfig{
		Type:                      c.Type.String(),
		XDivisor:                  c.XDivisor,
		ReportDivisor:             c.ReportDivisor,
		OuterRadius:               c.OuterRadius,
		InnerRadius:               c.InnerRadius,
		SmoothingCoefficient:      c.SmoothingCoefficient,
		SoftKneeScale:             c.SoftKneeScale,
		SmoothingLeak:             c.SmoothingLeak,
		VelocityDivisor:           c.VelocityDivisor,
		MinimumRadiusMultiplier:   c.MinimumRadiusMultiplier,
		RadialMultPower:           c.RadialMultPower,
		MinimumSmoothingDivisor:   c.MinimumSmoothingDivisor,
		RawAccelThreshold:         c.RawAccelThreshold,
		AccelMultPower:            c.AccelMultPower,
		Advanced:                  c.Advanced,
		RawVelocityThreshold:      c.RawVelocityThreshold,
		AngleIndexConfidence:      c.AngleIndexConfidence,
		AngleIndexDecelConfidence: c.AngleIndexDecelConfidence,
		AccelMultVelocityOverride: c.AccelMultVelocityOverride,
		SpinCheckConfidence:       c.SpinCheckConfidence,
		GroundedRadius:            c.GroundedRadius,
		CompressAccelMult:         c.CompressAccelMult,
		AccelMultCompression:      c.AccelMultCompression,
		DecelLerpMargin:           c.DecelLerpMargin,
		AngleLerpMargin:           c.AngleLerpMargin,
		SnapAccelThreshold:        c.SnapAccelThreshold,
		SnapJerkThreshold:         c.SnapJerkThreshold,
		SnapSnapThreshold:         c.SnapSnapThreshold,
		AngleIndexFloor:           c.AngleIndexFloor,
		JerkEscapeThreshold:       c.JerkEscapeThreshold,
		JerkEscapeMargin:          c.JerkEscapeMargin,
		SnapEscapeThreshold:       c.SnapEscapeThreshold,
		SnapEscapeMargin:          c.SnapEscapeMargin,
		SnapAccelRatio:            c.SnapAccelRatio,
		SnapVelocityRatio:         c.SnapVelocityRatio,
		Weights: WeightsConfig{
			Normal: c.Weights.Normal,
			Decel:  c.Weights.Decel,
			Accel:  c.Weights.Accel,
		},
		DecelWeightFloor:       c.DecelWeightFloor,
		AccelWeightCompression: c.AccelWeightCompression,
		RedetectThresholdMs:    durationToMs(c.RedetectThreshold),
		MMScaleX:               c.MMScale.X,
		MMScaleY:               c.MMScale.Y,
	}
}

// ToFilterConfig converts the TOML form to a normalized arf.FilterConfig.
// Out-of-range values are clamped; only an unknown filter type is an error.
func (c FilterConfig) ToFilterConfig() (arf.FilterConfig, error) {
	ft, err := arf.ParseFilterType(c.Type)
	if err != nil {
		return arf.FilterConfig{}, fmt.Errorf("filter.type: %w", err)
	}
	return arf.FilterConfig{
		Type:                      ft,
		XDivisor:                  c.XDivisor,
		ReportDivisor:             c.ReportDivisor,
		OuterRadius:               c.OuterRadius,
		InnerRadius:               c.InnerRadius,
		SmoothingCoefficient:      c.SmoothingCoefficient,
		SoftKneeScale:             c.SoftKneeScale,
		SmoothingLeak:             c.SmoothingLeak,
		VelocityDivisor:           c.VelocityDivisor,
		MinimumRadiusMultiplier:   c.MinimumRadiusMultiplier,
		RadialMultPower:           c.RadialMultPower,
		MinimumSmoothingDivisor:   c.MinimumSmoothingDivisor,
		RawAccelThreshold:         c.RawAccelThreshold,
		AccelMultPower:            c.AccelMultPower,
		Advanced:                  c.Advanced,
		RawVelocityThreshold:      c.RawVelocityThreshold,
		AngleIndexConfidence:      c.AngleIndexConfidence,
		AngleIndexDecelConfidence: c.AngleIndexDecelConfidence,
		AccelMultVelocityOverride: c.AccelMultVelocityOverride,
		SpinCheckConfidence:       c.SpinCheckConfidence,
		GroundedRadius:            c.GroundedRadius,
		CompressAccelMult:         c.CompressAccelMult,
		AccelMultCompression:      c.AccelMultCompression,
		DecelLerpMargin:           c.DecelLerpMargin,
		AngleLerpMargin:           c.AngleLerpMargin,
		SnapAccelThreshold:        c.SnapAccelThreshold,
		SnapJerkThreshold:         c.SnapJerkThreshold,
		SnapSnapThreshold:         c.SnapSnapThreshold,
		AngleIndexFloor:           c.AngleIndexFloor,
		JerkEscapeThreshold:       c.JerkEscapeThreshold,
		JerkEscapeMargin:          c.JerkEscapeMargin,
		SnapEscapeThreshold:       c.SnapEscapeThreshold,
		SnapEscapeMargin:          c.SnapEscapeMargin,
		SnapAccelRatio:            c.SnapAccelRatio,
		SnapVelocityRatio:         c.SnapVelocityRatio,
		Weights: arf.EMAWeights{
			Normal: c.Weights.Normal,
			Decel:  c.Weights.Decel,
			Accel:  c.Weights.Accel,
		},
		DecelWeightFloor:       c.DecelWeightFloor,
		AccelWeightCompression: c.AccelWeightCompression,
		RedetectThreshold:      msToDuration(c.RedetectThresholdMs),
		MMScale:                arf.Vec2{X: c.MMScaleX, Y: c.MMScaleY},
	}.Normalize(), nil
}

// FromSamplerConfig converts a sampler configuration to its TOML form.
func FromSamplerConfig(c arf.SamplerConfig) SamplerConfig {
	return SamplerConfig{
		OutputFrequency:         c.OutputFrequency,
		InitialReportIntervalMs: durationToMs(c.InitialReportInterval),
		StaleGapThresholdMs:     durationToMs(c.StaleGapThreshold),
		ProximityTimeoutMs:      durationToMs(c.ProximityTimeout),
	}
}

// ToSamplerConfig converts the TOML form to a normalized arf.SamplerConfig.
func (c SamplerConfig) ToSamplerConfig() arf.SamplerConfig {
	return arf.SamplerConfig{
		OutputFrequency:       c.OutputFrequency,
		InitialReportInterval: msToDuration(c.InitialReportIntervalMs),
		StaleGapThreshold:     msToDuration(c.StaleGapThresholdMs),
		ProximityTimeout:      msToDuration(c.ProximityTimeoutMs),
	}.Normalize()
}

// Validate checks the fields that cannot be clamped into range.
func (c *Config) Validate() error {
	if _, err := arf.ParseFilterType(c.Filter.Type); err != nil {
		return fmt.Errorf("filter.type: %w", err)
	}
	if c.Pipeline.BufferSize <= 0 {
		return fmt.Errorf("pipeline.buffer_size must be positive, got %d", c.Pipeline.BufferSize)
	}
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	switch c.Source.Kind {
	case "serial":
		if c.Source.Port == "" {
			return errors.New("source.port is required for a serial source")
		}
	case "file":
		if c.Source.Path == "" {
			return errors.New("source.path is required for a file source")
		}
	case "stdin":
	default:
		return fmt.Errorf("source.kind must be serial, file or stdin, got %q", c.Source.Kind)
	}
	switch strings.ToLower(c.Source.Parity) {
	case "", "none", "odd", "even":
	default:
		return fmt.Errorf("source.parity must be none, odd or even, got %q", c.Source.Parity)
	}
	return nil
}

// LoadConfig reads the configuration file at configPath. A missing file is
// created with the defaults. Keys missing from the file keep their default
// values; unknown keys are an error.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveConfig(configPath, config); err != nil {
			return config, err
		}
		return config, nil
	}

	meta, err := toml.DecodeFile(configPath, config)
	if err != nil {
		return config, fmt.Errorf("failed to parse config %s: %w", configPath, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return config, fmt.Errorf("config %s: unknown keys: %s", configPath, strings.Join(keys, ", "))
	}
	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("config %s: %w", configPath, err)
	}
	return config, nil
}

// SaveConfig writes config to configPath as TOML, creating the directory.
func SaveConfig(configPath string, config *Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config %s: %w", configPath, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to write config %s: %w", configPath, err)
	}
	return nil
}

func durationToMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
