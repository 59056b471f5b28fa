package preprocess

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	plateYellow = color.NRGBA{R: 250, G: 200, B: 20, A: 255}
	ink         = color.NRGBA{R: 20, G: 20, B: 20, A: 255}
)

// band renders a 40×20 yellow band with a thin vertical stroke at x 10-13.
func band() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: plateYellow}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(10, 4, 14, 16), &image.Uniform{C: ink}, image.Point{}, draw.Src)
	return img
}

func TestSplit(t *testing.T) {
	plate := image.NewNRGBA(image.Rect(0, 0, 50, 100))
	for y := range 100 {
		for x := range 50 {
			plate.SetNRGBA(x, y, color.NRGBA{R: uint8(y), A: 255})
		}
	}

	upper, lower, err := Split(plate, DefaultSplitConfig())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 50, 40), upper.Bounds())
	assert.Equal(t, image.Rect(0, 0, 50, 70), lower.Bounds())
	assert.Equal(t, uint8(0), upper.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(39), upper.NRGBAAt(0, 39).R)
	assert.Equal(t, uint8(30), lower.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(99), lower.NRGBAAt(0, 69).R)

	upper.SetNRGBA(0, 0, ink)
	assert.Equal(t, uint8(0), plate.NRGBAAt(0, 0).R, "bands must not alias the plate")
}

func TestSplit_Errors(t *testing.T) {
	_, _, err := Split(nil, DefaultSplitConfig())
	require.ErrorIs(t, err, ErrEmptyPlate)

	_, _, err = Split(image.NewNRGBA(image.Rect(0, 0, 10, 10)), SplitConfig{UpperRatio: 0.3, LowerStart: 0.4})
	require.Error(t, err)
}

func TestSplitConfig_Ranges(t *testing.T) {
	cfg := DefaultSplitConfig()
	tests := []struct {
		h                    int
		upperEnd, lowerStart int
	}{
		{100, 40, 30},
		{10, 4, 3},
		{3, 1, 0},
		{1, 1, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		u, l := cfg.Ranges(tt.h)
		assert.Equal(t, tt.upperEnd, u, "upper end for h=%d", tt.h)
		assert.Equal(t, tt.lowerStart, l, "lower start for h=%d", tt.h)
	}
}

func TestPrepare(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"default", DefaultConfig()},
		{"legacy", LegacyConfig()},
		{"no dilate", Config{Scale: 2, Normalize: true, BackgroundKernel: 15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Prepare(band(), tt.cfg)
			require.NoError(t, err)

			s := tt.cfg.Scale
			assert.InDelta(t, 40*s, float64(out.Bounds().Dx()), 1)
			assert.InDelta(t, 20*s, float64(out.Bounds().Dy()), 1)

			for _, v := range out.Pix {
				require.True(t, v == 0 || v == 255, "output must be binary, got %d", v)
			}
			assert.Equal(t, uint8(0), out.GrayAt(int(12*s), int(10*s)).Y, "stroke is black")
			assert.Equal(t, uint8(255), out.GrayAt(int(30*s), int(10*s)).Y, "background is white")
		})
	}
}

func TestPrepare_DilateThickensInk(t *testing.T) {
	ink := func(img *image.Gray) int {
		n := 0
		for _, v := range img.Pix {
			if v == 0 {
				n++
			}
		}
		return n
	}
	thin, err := Prepare(band(), Config{Scale: 2, Normalize: true, BackgroundKernel: 15})
	require.NoError(t, err)
	thick, err := Prepare(band(), Config{Scale: 2, Normalize: true, BackgroundKernel: 15, Dilate: true})
	require.NoError(t, err)

	assert.Greater(t, ink(thick), ink(thin))
	for i, v := range thin.Pix {
		if v == 0 {
			require.Equal(t, uint8(0), thick.Pix[i], "ink never turns white")
		}
	}
}

func TestPrepare_UniformBandIsWhite(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 30, 10))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: plateYellow}, image.Point{}, draw.Src)

	out, err := Prepare(img, DefaultConfig())
	require.NoError(t, err)
	for _, v := range out.Pix {
		require.Equal(t, uint8(255), v)
	}
}

func TestPrepare_Errors(t *testing.T) {
	_, err := Prepare(nil, DefaultConfig())
	require.Error(t, err)

	_, err = Prepare(band(), Config{Scale: 0})
	require.Error(t, err)

	_, err = Prepare(band(), Config{Scale: 2, Normalize: true, BackgroundKernel: 4})
	require.Error(t, err)
}

func TestOtsuThreshold(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range img.Pix {
		if i < 50 {
			img.Pix[i] = 30
		} else {
			img.Pix[i] = 220
		}
	}
	th := OtsuThreshold(img)
	assert.GreaterOrEqual(t, th, uint8(30))
	assert.Less(t, th, uint8(220))

	bin := Binarize(img, th)
	assert.Equal(t, uint8(0), bin.Pix[0])
	assert.Equal(t, uint8(255), bin.Pix[99])
}

func TestMorphology(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 9, 9))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetGray(4, 4, color.Gray{Y: 0})

	thick := thickenInk(img)
	assert.Equal(t, uint8(0), thick.GrayAt(4, 3).Y)
	assert.Equal(t, uint8(0), thick.GrayAt(5, 4).Y)
	assert.Equal(t, uint8(255), thick.GrayAt(5, 5).Y, "diagonal is outside the cross")

	closed := closeRect(img, 3)
	assert.Equal(t, uint8(255), closed.GrayAt(4, 4).Y, "close removes a dark speck")

	grown := maxFilterRect(img, 3)
	assert.Equal(t, uint8(255), grown.GrayAt(4, 4).Y)
	shrunk := minFilterRect(img, 3)
	assert.Equal(t, uint8(0), shrunk.GrayAt(5, 5).Y)
	assert.Equal(t, uint8(255), shrunk.GrayAt(7, 7).Y)
}

func TestMaskMargins(t *testing.T) {
	tests := []struct {
		name        string
		left, right float64
		white       func(x int) bool
	}{
		{"strict", 0.5, 0, func(x int) bool { return x < 50 }},
		{"legacy", LegacyMargin, LegacyMargin, func(x int) bool { return x < 20 || x >= 80 }},
		{"none", 0, 0, func(int) bool { return false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewGray(image.Rect(0, 0, 100, 4))
			MaskMargins(img, tt.left, tt.right)
			for x := range 100 {
				want := uint8(0)
				if tt.white(x) {
					want = 255
				}
				assert.Equal(t, want, img.GrayAt(x, 2).Y, "column %d", x)
			}
		})
	}
}

func TestMarginConfig_Validate(t *testing.T) {
	require.NoError(t, MarginConfig{Left: 0.5}.Validate())
	require.NoError(t, MarginConfig{Left: LegacyMargin, Right: LegacyMargin}.Validate())
	require.Error(t, MarginConfig{Left: -0.1}.Validate())
	require.Error(t, MarginConfig{Left: 0.6, Right: 0.4}.Validate())
	assert.False(t, MarginConfig{}.Enabled())
	assert.True(t, MarginConfig{Right: 0.1}.Enabled())
}
