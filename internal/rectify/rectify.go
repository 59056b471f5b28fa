// Package rectify maps a plate quadrilateral onto an axis-aligned rectangle.
package rectify

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/MeKo-Tech/platescan/internal/utils"
)

var (
	// ErrDegenerateQuad reports corners whose target rectangle has no area.
	ErrDegenerateQuad = errors.New("degenerate plate corners")
	// ErrSingularHomography reports corners that admit no perspective transform.
	ErrSingularHomography = errors.New("singular homography")
)

// Interpolation modes.
const (
	InterpCubic  = "cubic"
	InterpLinear = "linear"
)

// Config controls rectification.
type Config struct {
	Interpolation string `json:"interpolation"`
}

// DefaultConfig returns cubic interpolation.
func DefaultConfig() Config {
	return Config{Interpolation: InterpCubic}
}

// Validate checks the interpolation mode.
func (c Config) Validate() error {
	switch strings.ToLower(c.Interpolation) {
	case "", InterpCubic, InterpLinear:
		return nil
	default:
		return fmt.Errorf("unknown interpolation %q (must be %s or %s)", c.Interpolation, InterpCubic, InterpLinear)
	}
}

// Rectifier resamples plate regions. It is stateless and safe for concurrent use.
type Rectifier struct {
	cfg    Config
	sample sampler
}

// New creates a Rectifier.
func New(cfg Config) (*Rectifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Rectifier{cfg: cfg, sample: sampleBicubic}
	if strings.EqualFold(cfg.Interpolation, InterpLinear) {
		r.sample = sampleBilinear
	}
	return r, nil
}

// TargetSize returns the rectified width and height for corners q: the longer
// of each pair of opposing edges, rounded to whole pixels.
func TargetSize(q utils.Quad) (int, int) {
	top, right, bottom, left := q.Edges()
	w := int(math.Round(math.Max(bottom, top)))
	h := int(math.Round(math.Max(right, left)))
	return w, h
}

// Rectify warps the region bounded by q (TL, TR, BR, BL) from img into a new
// image of TargetSize(q). The result never shares pixels with img.
func (r *Rectifier) Rectify(img image.Image, q utils.Quad) (*image.NRGBA, error) {
	if img == nil {
		return nil, &utils.ImageProcessingError{Operation: "rectify", Err: errors.New("input image is nil")}
	}
	w, h := TargetSize(q)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: target size %dx%d", ErrDegenerateQuad, w, h)
	}

	dst := utils.Quad{
		{X: 0, Y: 0},
		{X: float64(w - 1), Y: 0},
		{X: float64(w - 1), Y: float64(h - 1)},
		{X: 0, Y: float64(h - 1)},
	}
	// Shift corners into the source's zero-based pixel space.
	b := img.Bounds()
	src := q
	for i := range src {
		src[i] = utils.Point{X: q[i].X - float64(b.Min.X), Y: q[i].Y - float64(b.Min.Y)}
	}

	fwd, err := ComputeHomography(src, dst)
	if err != nil {
		return nil, err
	}
	inv, err := fwd.Inverse()
	if err != nil {
		return nil, err
	}

	return warpPerspective(utils.ToNRGBA(img), inv, w, h, r.sample), nil
}
