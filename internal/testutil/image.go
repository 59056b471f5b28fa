// Package testutil provides synthetic plate images and scripted OCR engines for tests.
package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/platescan/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	// PlateYellow is a typical plate background (hue ~24 on the half-degree scale).
	PlateYellow = color.NRGBA{R: 250, G: 200, B: 20, A: 255}
	// Asphalt is a neutral background with no saturation.
	Asphalt = color.NRGBA{R: 90, G: 90, B: 90, A: 255}
	// Ink is the plate's print colour.
	Ink = color.NRGBA{R: 20, G: 20, B: 20, A: 255}
)

// PlateSpec describes a synthetic photograph of a plate.
type PlateSpec struct {
	Width, Height int
	Background    color.Color
	Plate         image.Rectangle // axis-aligned plate area
	Upper         string          // ASCII text printed on the upper band
	Lower         string          // ASCII text printed on the lower band
}

// DefaultPlateSpec returns a 320×240 frame with a 200×100 plate and printed digits.
func DefaultPlateSpec() PlateSpec {
	return PlateSpec{
		Width:      320,
		Height:     240,
		Background: Asphalt,
		Plate:      image.Rect(60, 70, 260, 170),
		Upper:      "07",
		Lower:      "1234",
	}
}

// Blank creates a uniformly coloured frame.
func Blank(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

// RenderPlate draws the plate described by spec.
func RenderPlate(spec PlateSpec) *image.NRGBA {
	img := Blank(spec.Width, spec.Height, spec.Background)
	draw.Draw(img, spec.Plate, &image.Uniform{C: PlateYellow}, image.Point{}, draw.Src)

	ph := spec.Plate.Dy()
	upper := image.Rect(spec.Plate.Min.X, spec.Plate.Min.Y, spec.Plate.Max.X, spec.Plate.Min.Y+ph*4/10)
	lower := image.Rect(spec.Plate.Min.X, spec.Plate.Min.Y+ph*4/10, spec.Plate.Max.X, spec.Plate.Max.Y)
	drawText(img, shrink(upper, 4), spec.Upper)
	drawText(img, shrink(lower, 6), spec.Lower)
	return img
}

// FillQuad paints the quadrilateral q (any vertex order) with c.
func FillQuad(img *image.NRGBA, q []utils.Point, c color.Color) {
	box := utils.BoundingBox(q).ToRect().Intersect(img.Bounds())
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			if utils.PointInPolygon(utils.Point{X: float64(x) + 0.5, Y: float64(y) + 0.5}, q) {
				img.Set(x, y, c)
			}
		}
	}
}

// SavePlate writes img as name.png under dir and returns the path.
func SavePlate(t *testing.T, img image.Image, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name+".png")
	require.NoError(t, utils.SavePNG(img, path))
	return path
}

func shrink(r image.Rectangle, n int) image.Rectangle {
	return image.Rect(r.Min.X+n, r.Min.Y+n, r.Max.X-n, r.Max.Y-n)
}

// drawText renders s with the 7×13 bitmap face and stretches it into dst.
func drawText(img *image.NRGBA, dst image.Rectangle, s string) {
	if s == "" || dst.Empty() {
		return
	}
	face := basicfont.Face7x13
	w := font.MeasureString(face, s).Ceil()
	h := face.Metrics().Height.Ceil()
	glyphs := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(glyphs, glyphs.Bounds(), &image.Uniform{C: PlateYellow}, image.Point{}, draw.Src)
	d := &font.Drawer{Dst: glyphs, Src: &image.Uniform{C: Ink}, Face: face, Dot: fixed.P(0, face.Metrics().Ascent.Ceil())}
	d.DrawString(s)

	scaled := imaging.Resize(glyphs, dst.Dx(), dst.Dy(), imaging.NearestNeighbor)
	draw.Draw(img, dst, scaled, image.Point{}, draw.Src)
}
