// Package preprocess splits a rectified plate into its two printed bands and
// turns each band into a black-on-white binary suited to line OCR.
package preprocess

import (
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/platescan/internal/utils"
	"github.com/disintegration/imaging"
)

// Config controls OCR preprocessing of one band.
type Config struct {
	Scale            float64 `json:"scale"`             // upscale factor before binarization
	Normalize        bool    `json:"normalize"`         // subtract a closed background estimate first
	BackgroundKernel int     `json:"background_kernel"` // close kernel size used by Normalize
	Dilate           bool    `json:"dilate"`            // thicken black strokes with a 3×3 cross
}

// DefaultConfig returns shading-corrected preprocessing at ×2.7.
func DefaultConfig() Config {
	return Config{Scale: 2.7, Normalize: true, BackgroundKernel: 15, Dilate: true}
}

// LegacyConfig returns the plain resize-threshold-dilate chain at ×3.
func LegacyConfig() Config {
	return Config{Scale: 3.0, Normalize: false, BackgroundKernel: 15, Dilate: true}
}

// Validate checks the scale and kernel size.
func (c Config) Validate() error {
	if c.Scale <= 0 || c.Scale > 10 {
		return fmt.Errorf("scale must be in (0,10], got %.2f", c.Scale)
	}
	if c.Normalize && (c.BackgroundKernel < 3 || c.BackgroundKernel%2 == 0) {
		return fmt.Errorf("background kernel must be odd and >= 3, got %d", c.BackgroundKernel)
	}
	return nil
}

// Prepare converts band into a binary image with black text on a white background.
func Prepare(band image.Image, cfg Config) (*image.Gray, error) {
	if band == nil || band.Bounds().Empty() {
		return nil, &utils.ImageProcessingError{Operation: "preprocess", Err: ErrEmptyPlate}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gray := utils.ToGray(band)
	b := gray.Bounds()
	w := max(int(math.Round(float64(b.Dx())*cfg.Scale)), 1)
	h := max(int(math.Round(float64(b.Dy())*cfg.Scale)), 1)
	resized := utils.ToGray(imaging.Resize(gray, w, h, imaging.CatmullRom))

	if cfg.Normalize {
		resized = normalizeIllumination(resized, cfg.BackgroundKernel)
	}

	binary := Binarize(resized, OtsuThreshold(resized))
	if cfg.Dilate {
		binary = thickenInk(binary)
	}
	return binary, nil
}

// normalizeIllumination returns 255 - sat(background - img) where background is
// the morphological close of img, flattening uneven lighting while keeping dark
// strokes dark.
func normalizeIllumination(img *image.Gray, k int) *image.Gray {
	bg := closeRect(img, k)
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			diff := int(bg.Pix[y*bg.Stride+x]) - int(img.Pix[y*img.Stride+x])
			diff = max(diff, 0)
			out.Pix[y*out.Stride+x] = uint8(255 - diff)
		}
	}
	return out
}

// OtsuThreshold returns the gray level that maximises between-class variance.
// Pixels strictly above the threshold belong to the bright class.
func OtsuThreshold(img *image.Gray) uint8 {
	const bins = 256
	var histogram [bins]int
	w, h := img.Rect.Dx(), img.Rect.Dy()
	total := w * h
	if total == 0 {
		return 0
	}
	for y := range h {
		for _, v := range img.Pix[y*img.Stride : y*img.Stride+w] {
			histogram[v]++
		}
	}

	var sumAll float64
	for i, n := range histogram {
		sumAll += float64(i) * float64(n)
	}

	var (
		sumB        float64
		wB          int
		maxVariance float64
		best        int
	)
	for t := range bins {
		wB += histogram[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(histogram[t])
		meanB := sumB / float64(wB)
		meanF := (sumAll - sumB) / float64(wF)
		variance := float64(wB) * float64(wF) * (meanB - meanF) * (meanB - meanF)
		if variance > maxVariance {
			maxVariance = variance
			best = t
		}
	}
	return uint8(best)
}

// Binarize maps pixels above t to white and the rest to black.
func Binarize(img *image.Gray, t uint8) *image.Gray {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		src := img.Pix[y*img.Stride : y*img.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x, v := range src {
			if v > t {
				dst[x] = 255
			}
		}
	}
	return out
}
