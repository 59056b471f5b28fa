package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/platescan/internal/batch"
	"github.com/MeKo-Tech/platescan/internal/pipeline"
	"github.com/MeKo-Tech/platescan/internal/preprocess"
	"github.com/MeKo-Tech/platescan/internal/rectify"
	"github.com/MeKo-Tech/platescan/internal/segment"
	"github.com/MeKo-Tech/platescan/internal/server"
	"github.com/MeKo-Tech/platescan/internal/validate"
)

// Config represents the complete configuration of platescan. It covers every
// command (image, batch, watch, serve) and is loaded from a config file,
// PLATESCAN_* environment variables and command-line flags.
type Config struct {
	LogLevel    string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose     bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`
	TessdataDir string `mapstructure:"tessdata_dir" yaml:"tessdata_dir" json:"tessdata_dir"`

	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch" json:"batch"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
}

// PipelineConfig selects a tuning profile and optional overrides on top of it.
// Zero values leave the profile's setting untouched.
type PipelineConfig struct {
	Profile       string          `mapstructure:"profile" yaml:"profile" json:"profile"`
	Selector      string          `mapstructure:"selector" yaml:"selector,omitempty" json:"selector,omitempty"`
	HueLow        uint8           `mapstructure:"hue_low" yaml:"hue_low,omitempty" json:"hue_low,omitempty"`
	HueHigh       uint8           `mapstructure:"hue_high" yaml:"hue_high,omitempty" json:"hue_high,omitempty"`
	Interpolation string          `mapstructure:"interpolation" yaml:"interpolation,omitempty" json:"interpolation,omitempty"`
	Scale         float64         `mapstructure:"scale" yaml:"scale,omitempty" json:"scale,omitempty"`
	UpperMargin   *MarginSettings `mapstructure:"upper_margin" yaml:"upper_margin,omitempty" json:"upper_margin,omitempty"`
	SuccessPolicy string          `mapstructure:"success_policy" yaml:"success_policy,omitempty" json:"success_policy,omitempty"`
	Separator     *string         `mapstructure:"separator" yaml:"separator,omitempty" json:"separator,omitempty"`
	LowerMode     string          `mapstructure:"lower_mode" yaml:"lower_mode,omitempty" json:"lower_mode,omitempty"`
	ImageTimeout  time.Duration   `mapstructure:"image_timeout" yaml:"image_timeout" json:"image_timeout"`
	Workers       int             `mapstructure:"workers" yaml:"workers" json:"workers"`
	// Debug writes numbered intermediate frames into the batch output directory.
	Debug bool `mapstructure:"debug" yaml:"debug" json:"debug"`
	// Segmentation and split overrides; zero keeps the profile's value.
	SatLow     uint8   `mapstructure:"sat_low" yaml:"sat_low,omitempty" json:"sat_low,omitempty"`
	ValLow     uint8   `mapstructure:"val_low" yaml:"val_low,omitempty" json:"val_low,omitempty"`
	MinArea    float64 `mapstructure:"min_area" yaml:"min_area,omitempty" json:"min_area,omitempty"`
	UpperRatio float64 `mapstructure:"upper_ratio" yaml:"upper_ratio,omitempty" json:"upper_ratio,omitempty"`
	LowerStart float64 `mapstructure:"lower_start" yaml:"lower_start,omitempty" json:"lower_start,omitempty"`
}

// MarginSettings are the masked side fractions of the upper band.
type MarginSettings struct {
	Left  float64 `mapstructure:"left" yaml:"left" json:"left"`
	Right float64 `mapstructure:"right" yaml:"right" json:"right"`
}

// BatchConfig contains batch and watch settings.
type BatchConfig struct {
	OutputDir    string   `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	Clean        bool     `mapstructure:"clean" yaml:"clean" json:"clean"`
	Report       string   `mapstructure:"report" yaml:"report,omitempty" json:"report,omitempty"`
	Format       string   `mapstructure:"format" yaml:"format" json:"format"`
	Recursive    bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include      []string `mapstructure:"include" yaml:"include,omitempty" json:"include,omitempty"`
	Exclude      []string `mapstructure:"exclude" yaml:"exclude,omitempty" json:"exclude,omitempty"`
	ShowProgress bool     `mapstructure:"show_progress" yaml:"show_progress" json:"show_progress"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	// RequestsPerMinute limits requests per client IP; 0 disables the limit.
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	b := batch.DefaultConfig()
	s := server.DefaultConfig()
	return Config{
		LogLevel: "info",
		Pipeline: PipelineConfig{
			Profile:      pipeline.ProfileDefault,
			ImageTimeout: 30 * time.Second,
		},
		Batch: BatchConfig{
			OutputDir:    b.OutputDir,
			Clean:        b.Clean,
			Format:       b.Format,
			ShowProgress: true,
		},
		Server: ServerConfig{
			Host:            s.Host,
			Port:            s.Port,
			CORSOrigin:      s.CORSOrigin,
			MaxUploadMB:     int(s.MaxUploadMB),
			TimeoutSec:      int(s.Timeout / time.Second),
			ShutdownTimeout: 10,
		},
	}
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks values that can be verified without touching the filesystem.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if !pipeline.IsProfile(c.Pipeline.Profile) {
		return fmt.Errorf("invalid profile: %s (must be one of: %s)", c.Pipeline.Profile, strings.Join(pipeline.ProfileNames(), ", "))
	}
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("invalid pipeline workers: %d (must not be negative)", c.Pipeline.Workers)
	}
	if !batch.IsFormat(c.Batch.Format) {
		return fmt.Errorf("invalid report format: %s (must be one of: json, yaml, csv, text)", c.Batch.Format)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RequestsPerMinute < 0 {
		return fmt.Errorf("invalid requests per minute: %d (must not be negative)", c.Server.RequestsPerMinute)
	}
	// Overrides are checked by building the pipeline configuration.
	if _, err := c.ToPipelineConfig(); err != nil {
		return err
	}
	return nil
}

// ToPipelineConfig resolves the profile and applies the overrides.
func (c *Config) ToPipelineConfig() (pipeline.Config, error) {
	p := c.Pipeline
	cfg, err := pipeline.ProfileConfig(p.Profile)
	if err != nil {
		return pipeline.Config{}, err
	}
	if p.Selector != "" {
		cfg.Segment.Selector = p.Selector
	}
	if p.HueLow != 0 || p.HueHigh != 0 {
		cfg.Segment.Color.HueLow = p.HueLow
		cfg.Segment.Color.HueHigh = p.HueHigh
	}
	if p.SatLow != 0 {
		cfg.Segment.Color.SatLow = p.SatLow
	}
	if p.ValLow != 0 {
		cfg.Segment.Color.ValLow = p.ValLow
	}
	if p.MinArea > 0 {
		cfg.Segment.MinArea = p.MinArea
	}
	if p.UpperRatio > 0 {
		cfg.Split.UpperRatio = p.UpperRatio
	}
	if p.LowerStart > 0 {
		cfg.Split.LowerStart = p.LowerStart
	}
	if p.Interpolation != "" {
		cfg.Rectify.Interpolation = p.Interpolation
	}
	if p.Scale > 0 {
		cfg.UpperPrep.Scale = p.Scale
		cfg.LowerPrep.Scale = p.Scale
	}
	if p.UpperMargin != nil {
		cfg.UpperMargin = preprocess.MarginConfig{Left: p.UpperMargin.Left, Right: p.UpperMargin.Right}
	}
	if p.SuccessPolicy != "" {
		cfg.Validation.SuccessPolicy = validate.SuccessPolicy(p.SuccessPolicy)
	}
	if p.Separator != nil {
		cfg.Validation.Separator = *p.Separator
	}
	if p.LowerMode != "" {
		cfg.Validation.LowerMode = validate.LowerMode(p.LowerMode)
	}
	cfg.ImageTimeout = p.ImageTimeout
	if p.Workers > 0 {
		cfg.Workers = p.Workers
	}
	if p.Debug {
		cfg.DebugDir = c.Batch.OutputDir
	}
	if err := cfg.Validate(); err != nil {
		return pipeline.Config{}, fmt.Errorf("invalid pipeline settings: %w", err)
	}
	return cfg, nil
}

// ToBatchConfig converts to batch.Config for the given input directory.
func (c *Config) ToBatchConfig(inputDir string) batch.Config {
	return batch.Config{
		InputDir:        inputDir,
		OutputDir:       c.Batch.OutputDir,
		Clean:           c.Batch.Clean,
		ReportPath:      c.Batch.Report,
		Format:          c.Batch.Format,
		Recursive:       c.Batch.Recursive,
		IncludePatterns: c.Batch.Include,
		ExcludePatterns: c.Batch.Exclude,
		Workers:         c.Pipeline.Workers,
		ShowProgress:    c.Batch.ShowProgress,
	}
}

// ToServerConfig converts to server.Config.
func (c *Config) ToServerConfig() server.Config {
	return server.Config{
		Host:              c.Server.Host,
		Port:              c.Server.Port,
		CORSOrigin:        c.Server.CORSOrigin,
		MaxUploadMB:       int64(c.Server.MaxUploadMB),
		Timeout:           time.Duration(c.Server.TimeoutSec) * time.Second,
		RequestsPerMinute: c.Server.RequestsPerMinute,
		PoolSize:          c.Pipeline.Workers,
	}
}

// ShutdownTimeout returns the graceful shutdown budget of the server.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeout) * time.Second
}

// SegmentSelectors lists the accepted candidate selectors.
func SegmentSelectors() []string {
	return []string{segment.SelectorFirstMatch, segment.SelectorBestFit}
}

// Interpolations lists the accepted rectification interpolation modes.
func Interpolations() []string {
	return []string{rectify.InterpCubic, rectify.InterpLinear}
}
