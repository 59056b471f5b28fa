package segment

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// gaussianSigma derives the sigma used for a k×k kernel when none is given,
// following the usual 0.3*((k-1)*0.5-1)+0.8 rule.
func gaussianSigma(k int) float64 {
	return 0.3*(float64(k-1)*0.5-1) + 0.8
}

// Blur smooths a grayscale image with a Gaussian of the given kernel size.
func Blur(gray *image.Gray, kernel int) *image.Gray {
	if kernel <= 1 {
		return gray
	}
	blurred := imaging.Blur(gray, gaussianSigma(kernel))
	b := blurred.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		for x := range b.Dx() {
			out.Pix[y*out.Stride+x] = blurred.Pix[y*blurred.Stride+x*4]
		}
	}
	return out
}

// Canny runs a dual-threshold edge detector on gray and returns a {0,255} edge map.
// Gradient magnitude is |gx|+|gy| from 3×3 Sobel kernels with replicated borders.
func Canny(gray *image.Gray, low, high float64) *image.Gray {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	edges := image.NewGray(image.Rect(0, 0, w, h))
	if w < 3 || h < 3 {
		return edges
	}
	if low > high {
		low, high = high, low
	}

	at := func(x, y int) float64 {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return float64(gray.Pix[y*gray.Stride+x])
	}

	gx := make([]float64, w*h)
	gy := make([]float64, w*h)
	mag := make([]float64, w*h)
	for y := range h {
		for x := range w {
			dx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			dy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			i := y*w + x
			gx[i], gy[i] = dx, dy
			mag[i] = math.Abs(dx) + math.Abs(dy)
		}
	}

	const (
		none   = 0
		weak   = 1
		strong = 2
	)
	tan22 := math.Tan(22.5 * math.Pi / 180)
	tan67 := math.Tan(67.5 * math.Pi / 180)

	state := make([]uint8, w*h)
	stack := make([]int, 0, 256)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if m <= low {
				continue
			}
			ax, ay := math.Abs(gx[i]), math.Abs(gy[i])
			var n1, n2 float64
			switch {
			case ay <= ax*tan22:
				n1, n2 = mag[i-1], mag[i+1]
			case ay >= ax*tan67:
				n1, n2 = mag[i-w], mag[i+w]
			case (gx[i] < 0) != (gy[i] < 0):
				n1, n2 = mag[i-w+1], mag[i+w-1]
			default:
				n1, n2 = mag[i-w-1], mag[i+w+1]
			}
			// Strict on one side so plateaus yield a single-pixel ridge.
			if m <= n1 || m < n2 {
				continue
			}
			if m > high {
				state[i] = strong
				stack = append(stack, i)
			} else {
				state[i] = weak
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		edges.Pix[(i/w)*edges.Stride+i%w] = 255
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if state[j] == weak {
					state[j] = strong
					stack = append(stack, j)
				}
			}
		}
	}

	return edges
}
