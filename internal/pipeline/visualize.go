package pipeline

import (
	"image"
	"image/color"

	"github.com/MeKo-Tech/platescan/internal/utils"
)

var (
	outlineColor = color.RGBA{R: 255, A: 255}
	cornerColor  = color.RGBA{G: 255, A: 255}
)

// RenderCorners returns an RGBA copy of img with the plate outline and its
// four corners drawn on it.
func RenderCorners(img image.Image, q utils.Quad) *image.RGBA {
	if img == nil {
		return nil
	}
	dst := utils.ToRGBA(img)
	b := img.Bounds()
	pts := make([]utils.Point, 0, 4)
	for _, p := range q.Points() {
		pts = append(pts, utils.Point{X: p.X - float64(b.Min.X), Y: p.Y - float64(b.Min.Y)})
	}
	utils.DrawPolygon(dst, pts, outlineColor, 2)
	for _, p := range pts {
		utils.DrawMarker(dst, p, cornerColor, 5)
	}
	return dst
}
