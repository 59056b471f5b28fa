// Package pipeline wires segmentation, rectification, preprocessing, OCR and
// validation into the per-image plate recognition flow, and runs it over
// batches of images on a worker pool.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/MeKo-Tech/platescan/internal/preprocess"
	"github.com/MeKo-Tech/platescan/internal/recognizer"
	"github.com/MeKo-Tech/platescan/internal/rectify"
	"github.com/MeKo-Tech/platescan/internal/segment"
	"github.com/MeKo-Tech/platescan/internal/validate"
)

// Config holds every tuning constant of the pipeline.
type Config struct {
	Profile string `json:"profile"`

	Segment     segment.Config          `json:"segment"`
	Rectify     rectify.Config          `json:"rectify"`
	Split       preprocess.SplitConfig  `json:"split"`
	UpperPrep   preprocess.Config       `json:"upper_preprocess"`
	LowerPrep   preprocess.Config       `json:"lower_preprocess"`
	UpperMargin preprocess.MarginConfig `json:"upper_margin"`
	UpperOCR    recognizer.Profile      `json:"upper_ocr"`
	LowerOCR    recognizer.Profile      `json:"lower_ocr"`
	Validation  validate.Config         `json:"validate"`

	// DebugDir receives numbered intermediate frames when set.
	DebugDir string `json:"debug_dir,omitempty"`
	// ImageTimeout bounds the processing of one image; 0 disables it.
	ImageTimeout time.Duration `json:"image_timeout"`
	// Workers is the number of parallel workers, each owning one OCR engine.
	Workers int `json:"workers"`
}

// DefaultConfig returns the default profile.
func DefaultConfig() Config {
	return Config{
		Profile:      ProfileDefault,
		Segment:      segment.DefaultConfig(),
		Rectify:      rectify.DefaultConfig(),
		Split:        preprocess.DefaultSplitConfig(),
		UpperPrep:    preprocess.DefaultConfig(),
		LowerPrep:    preprocess.DefaultConfig(),
		UpperOCR:     recognizer.UpperProfile(),
		LowerOCR:     recognizer.LowerProfile(),
		Validation:   validate.DefaultConfig(),
		ImageTimeout: 30 * time.Second,
		Workers:      runtime.NumCPU(),
	}
}

// Validate checks every component configuration.
func (c Config) Validate() error {
	var errs []error
	if err := c.Segment.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("segment: %w", err))
	}
	if err := c.Rectify.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("rectify: %w", err))
	}
	if err := c.Split.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("split: %w", err))
	}
	if err := c.UpperPrep.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("upper preprocess: %w", err))
	}
	if err := c.LowerPrep.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("lower preprocess: %w", err))
	}
	if err := c.UpperMargin.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("upper margin: %w", err))
	}
	if len(c.UpperOCR.Languages) == 0 || len(c.LowerOCR.Languages) == 0 {
		errs = append(errs, errors.New("ocr profiles need at least one language"))
	}
	if err := c.Validation.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("validate: %w", err))
	}
	if c.ImageTimeout < 0 {
		errs = append(errs, fmt.Errorf("image timeout must not be negative, got %s", c.ImageTimeout))
	}
	return errors.Join(errs...)
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg    Config
	logger *slog.Logger
	err    error
}

// NewBuilder creates a builder starting from the default profile.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithProfile resets the configuration to a named profile. Options applied
// after it override the profile's values.
func (b *Builder) WithProfile(name string) *Builder {
	cfg, err := ProfileConfig(name)
	if err != nil {
		b.err = err
		return b
	}
	cfg.DebugDir = b.cfg.DebugDir
	cfg.ImageTimeout = b.cfg.ImageTimeout
	cfg.Workers = b.cfg.Workers
	b.cfg = cfg
	return b
}

// WithSelector sets the candidate selection policy ("first-match" or "best-fit").
func (b *Builder) WithSelector(name string) *Builder {
	if name != "" {
		b.cfg.Segment.Selector = name
	}
	return b
}

// WithHueRange overrides the plate hue range.
func (b *Builder) WithHueRange(low, high uint8) *Builder {
	b.cfg.Segment.Color.HueLow = low
	b.cfg.Segment.Color.HueHigh = high
	return b
}

// WithScale sets the band upscale factor for both bands.
func (b *Builder) WithScale(scale float64) *Builder {
	if scale > 0 {
		b.cfg.UpperPrep.Scale = scale
		b.cfg.LowerPrep.Scale = scale
	}
	return b
}

// WithUpperMargins sets the masked side margins of the upper band.
func (b *Builder) WithUpperMargins(left, right float64) *Builder {
	b.cfg.UpperMargin = preprocess.MarginConfig{Left: left, Right: right}
	return b
}

// WithSuccessPolicy sets which reliability levels count as success.
func (b *Builder) WithSuccessPolicy(p validate.SuccessPolicy) *Builder {
	if p != "" {
		b.cfg.Validation.SuccessPolicy = p
	}
	return b
}

// WithSeparator sets the string placed between the band texts.
func (b *Builder) WithSeparator(sep string) *Builder {
	b.cfg.Validation.Separator = sep
	return b
}

// WithDebugDir enables numbered intermediate frame dumps into dir.
func (b *Builder) WithDebugDir(dir string) *Builder {
	b.cfg.DebugDir = dir
	return b
}

// WithImageTimeout bounds per-image processing.
func (b *Builder) WithImageTimeout(d time.Duration) *Builder {
	if d >= 0 {
		b.cfg.ImageTimeout = d
	}
	return b
}

// WithWorkers sets the worker count (<=0 means runtime.NumCPU()).
func (b *Builder) WithWorkers(n int) *Builder {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	b.cfg.Workers = n
	return b
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Config returns the configuration built so far.
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration and creates the Pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if b.err != nil {
		return nil, b.err
	}
	p, err := New(b.cfg)
	if err != nil {
		return nil, err
	}
	if b.logger != nil {
		p.logger = b.logger
	}
	return p, nil
}

// Pipeline runs the plate recognition flow. It holds no per-image state and
// may be shared by concurrent workers, each passing its own OCR engine.
type Pipeline struct {
	cfg       Config
	segmenter *segment.Segmentator
	rectifier *rectify.Rectifier
	validator *validate.Validator
	logger    *slog.Logger
	stats     *Profiler
}

// New creates a Pipeline from cfg.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	seg, err := segment.New(cfg.Segment)
	if err != nil {
		return nil, err
	}
	rect, err := rectify.New(cfg.Rectify)
	if err != nil {
		return nil, err
	}
	val, err := validate.New(cfg.Validation)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:       cfg,
		segmenter: seg,
		rectifier: rect,
		validator: val,
		logger:    slog.Default(),
		stats:     &Profiler{},
	}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Stats returns the cumulative processing counters.
func (p *Pipeline) Stats() *Profiler { return p.stats }
