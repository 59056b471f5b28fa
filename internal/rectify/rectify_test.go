package rectify

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/MeKo-Tech/platescan/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var yellow = color.NRGBA{R: 250, G: 200, B: 20, A: 255}

func rectQuad(x0, y0, x1, y1 float64) utils.Quad {
	return utils.Quad{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

func TestComputeHomography_MapsCorners(t *testing.T) {
	src := utils.Quad{{X: 12, Y: 8}, {X: 118, Y: 20}, {X: 110, Y: 70}, {X: 6, Y: 60}}
	dst := rectQuad(0, 0, 99, 49)

	h, err := ComputeHomography(src, dst)
	require.NoError(t, err)
	for i := range src {
		x, y, ok := h.Apply(src[i].X, src[i].Y)
		require.True(t, ok)
		assert.InDelta(t, dst[i].X, x, 1e-6)
		assert.InDelta(t, dst[i].Y, y, 1e-6)
	}

	inv, err := h.Inverse()
	require.NoError(t, err)
	for i := range dst {
		x, y, ok := inv.Apply(dst[i].X, dst[i].Y)
		require.True(t, ok)
		assert.InDelta(t, src[i].X, x, 1e-6)
		assert.InDelta(t, src[i].Y, y, 1e-6)
	}
}

func TestComputeHomography_Collinear(t *testing.T) {
	src := utils.Quad{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}
	_, err := ComputeHomography(src, rectQuad(0, 0, 10, 10))
	require.ErrorIs(t, err, ErrSingularHomography)
}

func TestTargetSize(t *testing.T) {
	tests := []struct {
		name string
		q    utils.Quad
		w, h int
	}{
		{"axis aligned", rectQuad(10, 10, 110, 60), 100, 50},
		{"keystone takes longer edges", utils.Quad{{X: 20, Y: 0}, {X: 80, Y: 0}, {X: 100, Y: 40}, {X: 0, Y: 40}}, 100, 45},
		{"point", rectQuad(5, 5, 5, 5), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := TargetSize(tt.q)
			assert.Equal(t, tt.w, w)
			assert.Equal(t, tt.h, h)
		})
	}
}

func TestRectify_AxisAligned(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 200, 120))
	draw.Draw(img, image.Rect(40, 30, 160, 90), &image.Uniform{C: yellow}, image.Point{}, draw.Src)

	for _, mode := range []string{InterpCubic, InterpLinear} {
		t.Run(mode, func(t *testing.T) {
			r, err := New(Config{Interpolation: mode})
			require.NoError(t, err)

			out, err := r.Rectify(img, rectQuad(40, 30, 159, 89))
			require.NoError(t, err)
			assert.InDelta(t, 119, out.Bounds().Dx(), 1)
			assert.InDelta(t, 59, out.Bounds().Dy(), 1)
			assert.Equal(t, yellow, out.NRGBAAt(out.Bounds().Dx()/2, out.Bounds().Dy()/2))
			assert.Equal(t, yellow, out.NRGBAAt(3, 3))
		})
	}
}

func TestRectify_DoesNotAliasInput(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 50, 50))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: yellow}, image.Point{}, draw.Src)

	r, err := New(DefaultConfig())
	require.NoError(t, err)
	out, err := r.Rectify(img, rectQuad(0, 0, 49, 49))
	require.NoError(t, err)

	out.SetNRGBA(0, 0, color.NRGBA{A: 255})
	assert.Equal(t, yellow, img.NRGBAAt(0, 0))
}

func TestRectify_OutsideIsBlack(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: yellow}, image.Point{}, draw.Src)

	r, err := New(Config{Interpolation: InterpLinear})
	require.NoError(t, err)
	out, err := r.Rectify(img, rectQuad(-40, -40, 10, 10))
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{A: 255}, out.NRGBAAt(2, 2))
	assert.Equal(t, yellow, out.NRGBAAt(out.Bounds().Dx()-2, out.Bounds().Dy()-2))
}

func TestRectify_Errors(t *testing.T) {
	r, err := New(DefaultConfig())
	require.NoError(t, err)

	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	_, err = r.Rectify(img, rectQuad(3, 3, 3, 3))
	require.ErrorIs(t, err, ErrDegenerateQuad)

	_, err = r.Rectify(nil, rectQuad(0, 0, 5, 5))
	require.Error(t, err)

	_, err = New(Config{Interpolation: "lanczos"})
	require.Error(t, err)
}

func TestCubicWeightsSumToOne(t *testing.T) {
	for _, f := range []float64{0, 0.25, 0.5, 0.9} {
		w := cubicWeights(f)
		assert.InDelta(t, 1.0, w[0]+w[1]+w[2]+w[3], 1e-9)
	}
	w := cubicWeights(0)
	assert.InDelta(t, 1.0, w[1], 1e-12)
}
