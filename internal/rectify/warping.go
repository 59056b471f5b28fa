package rectify

import (
	"image"
	"math"
)

// cubicA is the cubic convolution coefficient; -0.75 matches the common
// INTER_CUBIC behaviour of image libraries.
const cubicA = -0.75

// sampler reads an interpolated colour at a fractional source position into px.
type sampler func(src *image.NRGBA, x, y float64, px []uint8)

// warpPerspective fills a dstW×dstH image by mapping every destination pixel
// through inv (destination -> source) and sampling src. Samples falling outside
// the source are black.
func warpPerspective(src *image.NRGBA, inv Homography, dstW, dstH int, sample sampler) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, dstW, dstH))
	for y := range dstH {
		for x := range dstW {
			i := y*out.Stride + x*4
			px := out.Pix[i : i+4 : i+4]
			sx, sy, ok := inv.Apply(float64(x), float64(y))
			if !ok {
				px[3] = 255
				continue
			}
			sample(src, sx, sy, px)
		}
	}
	return out
}

// pixelOrBlack returns the RGBA channels at (x, y) or opaque black outside src.
func pixelOrBlack(src *image.NRGBA, x, y int) (r, g, b, a float64) {
	if x < 0 || y < 0 || x >= src.Rect.Dx() || y >= src.Rect.Dy() {
		return 0, 0, 0, 255
	}
	i := y*src.Stride + x*4
	p := src.Pix[i : i+4 : i+4]
	return float64(p[0]), float64(p[1]), float64(p[2]), float64(p[3])
}

// sampleBilinear interpolates the 2×2 neighbourhood.
func sampleBilinear(src *image.NRGBA, x, y float64, px []uint8) {
	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	fx, fy := x-float64(x0), y-float64(y0)
	var acc [4]float64
	for j := range 2 {
		wy := 1 - fy
		if j == 1 {
			wy = fy
		}
		for i := range 2 {
			wx := 1 - fx
			if i == 1 {
				wx = fx
			}
			r, g, b, a := pixelOrBlack(src, x0+i, y0+j)
			w := wx * wy
			acc[0] += r * w
			acc[1] += g * w
			acc[2] += b * w
			acc[3] += a * w
		}
	}
	store(px, acc)
}

// sampleBicubic interpolates the 4×4 neighbourhood with a cubic convolution kernel.
func sampleBicubic(src *image.NRGBA, x, y float64, px []uint8) {
	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	fx, fy := x-float64(x0), y-float64(y0)
	wx := cubicWeights(fx)
	wy := cubicWeights(fy)

	var acc [4]float64
	for j := range 4 {
		for i := range 4 {
			w := wx[i] * wy[j]
			if w == 0 {
				continue
			}
			r, g, b, a := pixelOrBlack(src, x0-1+i, y0-1+j)
			acc[0] += r * w
			acc[1] += g * w
			acc[2] += b * w
			acc[3] += a * w
		}
	}
	store(px, acc)
}

// cubicWeights returns the kernel weights for the taps at offsets -1, 0, 1, 2.
func cubicWeights(t float64) [4]float64 {
	k := func(d float64) float64 {
		d = math.Abs(d)
		switch {
		case d <= 1:
			return ((cubicA+2)*d-(cubicA+3))*d*d + 1
		case d < 2:
			return ((cubicA*d-5*cubicA)*d+8*cubicA)*d - 4*cubicA
		default:
			return 0
		}
	}
	return [4]float64{k(t + 1), k(t), k(1 - t), k(2 - t)}
}

func store(px []uint8, acc [4]float64) {
	for c := range 4 {
		px[c] = clamp8(acc[c])
	}
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}

