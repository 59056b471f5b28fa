package rectify

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/platescan/internal/utils"
	"gonum.org/v1/gonum/mat"
)

// Homography is a 3×3 projective transform in row-major order.
type Homography [9]float64

// Apply maps (x, y) through h. The second result is false when the point maps to infinity.
func (h Homography) Apply(x, y float64) (float64, float64, bool) {
	denom := h[6]*x + h[7]*y + h[8]
	if math.Abs(denom) < 1e-12 {
		return 0, 0, false
	}
	return (h[0]*x + h[1]*y + h[2]) / denom, (h[3]*x + h[4]*y + h[5]) / denom, true
}

// Inverse returns the inverse transform.
func (h Homography) Inverse() (Homography, error) {
	m := mat.NewDense(3, 3, h[:])
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return Homography{}, fmt.Errorf("%w: %w", ErrSingularHomography, err)
	}
	var out Homography
	for r := range 3 {
		for c := range 3 {
			out[r*3+c] = inv.At(r, c)
		}
	}
	if out[8] != 0 {
		s := out[8]
		for i := range out {
			out[i] /= s
		}
	}
	return out, nil
}

// ComputeHomography solves the direct linear transform mapping src[i] to dst[i]
// for four correspondences, fixing h22 = 1.
func ComputeHomography(src, dst utils.Quad) (Homography, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := range 4 {
		X, Y := src[i].X, src[i].Y
		x, y := dst[i].X, dst[i].Y
		r := 2 * i
		// x = (h00 X + h01 Y + h02) / (h20 X + h21 Y + 1)
		a.SetRow(r, []float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x})
		b.SetVec(r, x)
		// y = (h10 X + h11 Y + h12) / (h20 X + h21 Y + 1)
		a.SetRow(r+1, []float64{0, 0, 0, X, Y, 1, -X * y, -Y * y})
		b.SetVec(r+1, y)
	}

	if cond := mat.Cond(a, 1); math.IsInf(cond, 1) || cond > 1e14 {
		return Homography{}, ErrSingularHomography
	}

	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return Homography{}, fmt.Errorf("%w: %w", ErrSingularHomography, err)
	}

	var out Homography
	for i := range 8 {
		v := h.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Homography{}, ErrSingularHomography
		}
		out[i] = v
	}
	out[8] = 1
	return out, nil
}
