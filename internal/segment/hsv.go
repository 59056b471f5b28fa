package segment

import (
	"image"
	"image/color"

	"github.com/MeKo-Tech/platescan/internal/utils"
)

// HSVRange selects plate-coloured pixels. Hue uses the 8-bit half-degree scale
// [0,180); saturation and value are [0,255] and open-ended at the top.
type HSVRange struct {
	HueLow  uint8 `json:"hue_low"`
	HueHigh uint8 `json:"hue_high"`
	SatLow  uint8 `json:"sat_low"`
	ValLow  uint8 `json:"val_low"`
}

// Contains reports whether an HSV triple lies in the range.
func (r HSVRange) Contains(h, s, v uint8) bool {
	return h >= r.HueLow && h <= r.HueHigh && s >= r.SatLow && v >= r.ValLow
}

// rgbToHSV converts 8-bit RGB to 8-bit HSV with hue halved to fit in a byte.
func rgbToHSV(r, g, b uint8) (h, s, v uint8) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	vmax := max(rf, gf, bf)
	vmin := min(rf, gf, bf)
	delta := vmax - vmin

	v = r
	if g > v {
		v = g
	}
	if b > v {
		v = b
	}
	if vmax == 0 {
		return 0, 0, v
	}
	s = uint8(255*delta/vmax + 0.5)
	if delta == 0 {
		return 0, s, v
	}

	var hf float64
	switch vmax {
	case rf:
		hf = 60 * (gf - bf) / delta
	case gf:
		hf = 120 + 60*(bf-rf)/delta
	default:
		hf = 240 + 60*(rf-gf)/delta
	}
	if hf < 0 {
		hf += 360
	}
	hh := int(hf/2 + 0.5)
	if hh >= 180 {
		hh -= 180
	}
	return uint8(hh), s, v
}

// ColorMask returns a {0,255} mask of pixels whose HSV value lies in rng.
func ColorMask(img image.Image, rng HSVRange) *image.Gray {
	src := utils.ToNRGBA(img)
	b := src.Bounds()
	mask := image.NewGray(b)
	for y := range b.Dy() {
		row := src.Pix[y*src.Stride:]
		out := mask.Pix[y*mask.Stride:]
		for x := range b.Dx() {
			h, s, v := rgbToHSV(row[x*4], row[x*4+1], row[x*4+2])
			if rng.Contains(h, s, v) {
				out[x] = 255
			}
		}
	}
	return mask
}

// ApplyMask copies img keeping only pixels where mask is non-zero; the rest are black.
func ApplyMask(img image.Image, mask *image.Gray) *image.NRGBA {
	src := utils.ToNRGBA(img)
	b := src.Bounds()
	out := image.NewNRGBA(b)
	black := color.NRGBA{A: 255}
	for y := range b.Dy() {
		for x := range b.Dx() {
			if mask.GrayAt(x, y).Y != 0 {
				i := y*src.Stride + x*4
				copy(out.Pix[i:i+4], src.Pix[i:i+4])
				continue
			}
			out.SetNRGBA(x, y, black)
		}
	}
	return out
}
