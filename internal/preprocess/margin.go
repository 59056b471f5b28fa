package preprocess

import (
	"fmt"
	"image"
	"math"
)

// MarginConfig whitens vertical strips at the left and right edges of a band,
// given as fractions of the band width. It is used on the upper band to erase
// bolt holes and the regional stamp.
type MarginConfig struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// LegacyMargin is the proportional margin of 70 mm on a 335 mm plate, on both sides.
const LegacyMargin = 70.0 / 335.0

// Validate checks that the margins are fractions that leave some columns untouched.
func (m MarginConfig) Validate() error {
	if m.Left < 0 || m.Right < 0 {
		return fmt.Errorf("margins must not be negative (left %.3f, right %.3f)", m.Left, m.Right)
	}
	if m.Left+m.Right >= 1 {
		return fmt.Errorf("margins cover the whole band (left %.3f + right %.3f >= 1)", m.Left, m.Right)
	}
	return nil
}

// Enabled reports whether any margin is masked.
func (m MarginConfig) Enabled() bool { return m.Left > 0 || m.Right > 0 }

// MaskMargins paints floor(left*w) columns on the left and floor(right*w)
// columns on the right of img white, in place.
func MaskMargins(img *image.Gray, left, right float64) {
	if img == nil {
		return
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	l := min(int(math.Floor(left*float64(w))), w)
	r := min(int(math.Floor(right*float64(w))), w)
	for y := range h {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for x := range l {
			row[x] = 255
		}
		for x := w - r; x < w; x++ {
			row[x] = 255
		}
	}
}
