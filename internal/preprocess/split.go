package preprocess

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ErrEmptyPlate reports a plate image with no rows or columns.
var ErrEmptyPlate = errors.New("plate image is empty")

// SplitConfig positions the two bands as fractions of the plate height.
type SplitConfig struct {
	UpperRatio float64 `json:"upper_ratio"` // upper band ends at floor(UpperRatio*h)
	LowerStart float64 `json:"lower_start"` // lower band starts at floor(LowerStart*h)
}

// DefaultSplitConfig returns the 0.4 / 0.3 split.
func DefaultSplitConfig() SplitConfig {
	return SplitConfig{UpperRatio: 0.4, LowerStart: 0.3}
}

// Validate requires 0 <= LowerStart < UpperRatio <= 1 so the bands overlap.
func (c SplitConfig) Validate() error {
	if c.UpperRatio <= 0 || c.UpperRatio > 1 {
		return fmt.Errorf("upper ratio must be in (0,1], got %.3f", c.UpperRatio)
	}
	if c.LowerStart < 0 || c.LowerStart >= c.UpperRatio {
		return fmt.Errorf("lower start %.3f must be in [0, upper ratio %.3f)", c.LowerStart, c.UpperRatio)
	}
	return nil
}

// Ranges returns the half-open row ranges [0, upperEnd) and [lowerStart, h).
// For any h > 0 the ranges are non-empty and lowerStart < upperEnd.
func (c SplitConfig) Ranges(h int) (upperEnd, lowerStart int) {
	if h <= 0 {
		return 0, 0
	}
	upperEnd = int(math.Floor(c.UpperRatio * float64(h)))
	lowerStart = int(math.Floor(c.LowerStart * float64(h)))
	lowerStart = min(max(lowerStart, 0), h-1)
	if upperEnd <= lowerStart {
		upperEnd = lowerStart + 1
	}
	return min(upperEnd, h), lowerStart
}

// Split crops the upper and lower bands out of a rectified plate.
// Both bands are fresh images that do not share pixels with plate.
func Split(plate image.Image, cfg SplitConfig) (upper, lower *image.NRGBA, err error) {
	if plate == nil || plate.Bounds().Empty() {
		return nil, nil, ErrEmptyPlate
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	b := plate.Bounds()
	upperEnd, lowerStart := cfg.Ranges(b.Dy())

	upper = imaging.Crop(plate, image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+upperEnd))
	lower = imaging.Crop(plate, image.Rect(b.Min.X, b.Min.Y+lowerStart, b.Max.X, b.Max.Y))
	return upper, lower, nil
}
