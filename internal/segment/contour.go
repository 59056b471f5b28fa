package segment

import (
	"image"

	"github.com/MeKo-Tech/platescan/internal/utils"
)

// 8-neighbourhood in clockwise order (y grows downwards): E, SE, S, SW, W, NW, N, NE.
var (
	ndx = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	ndy = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

// FindExternalContours returns the outer boundary of every 8-connected group of
// non-zero pixels that is not enclosed by an earlier boundary. Contours are
// reported in raster order of their first pixel; points are pixel coordinates.
func FindExternalContours(edges *image.Gray) [][]utils.Point {
	b := edges.Bounds()
	w, h := b.Dx(), b.Dy()
	labels := make([]int, w*h)
	isSet := func(x, y int) bool {
		return edges.Pix[(y)*edges.Stride+x] != 0
	}

	var contours [][]utils.Point
	label := 0
	for y := range h {
		for x := range w {
			if !isSet(x, y) || labels[y*w+x] != 0 {
				continue
			}
			label++
			labelComponent(edges, labels, w, h, x, y, label)

			start := utils.Point{X: float64(x), Y: float64(y)}
			if enclosed(start, contours) {
				continue
			}
			contours = append(contours, traceBoundary(labels, w, h, x, y, label))
		}
	}
	return contours
}

// labelComponent flood-fills the 8-connected component containing (sx, sy).
func labelComponent(edges *image.Gray, labels []int, w, h, sx, sy, label int) {
	stack := []int{sy*w + sx}
	labels[sy*w+sx] = label
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cx, cy := i%w, i/w
		for k := range 8 {
			nx, ny := cx+ndx[k], cy+ndy[k]
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			j := ny*w + nx
			if labels[j] == 0 && edges.Pix[ny*edges.Stride+nx] != 0 {
				labels[j] = label
				stack = append(stack, j)
			}
		}
	}
}

func enclosed(p utils.Point, contours [][]utils.Point) bool {
	for _, c := range contours {
		if len(c) >= 3 && utils.PointInPolygon(p, c) {
			return true
		}
	}
	return false
}

// traceBoundary follows the outer boundary of a labelled component with
// Moore-neighbour tracing. (sx, sy) must be the component's first pixel in
// raster order, so its west neighbour is guaranteed to be background.
func traceBoundary(labels []int, w, h, sx, sy, label int) []utils.Point {
	inside := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && labels[y*w+x] == label
	}

	pts := []utils.Point{{X: float64(sx), Y: float64(sy)}}
	cx, cy := sx, sy
	bx, by := sx-1, sy
	startBx, startBy := bx, by
	maxSteps := 4*w*h + 8

	for range maxSteps {
		nx, ny, nbx, nby, ok := nextBoundaryPixel(inside, cx, cy, bx, by)
		if !ok {
			break // isolated pixel
		}
		if nx == sx && ny == sy && nbx == startBx && nby == startBy {
			break
		}
		cx, cy, bx, by = nx, ny, nbx, nby
		if cx == sx && cy == sy {
			// Entered the start from a different side: keep going but do not duplicate.
			continue
		}
		pts = appendBoundaryPoint(pts, cx, cy)
	}
	return pts
}

// nextBoundaryPixel scans the Moore neighbourhood of (cx, cy) clockwise starting
// after the backtrack pixel and returns the first component pixel together with
// the background pixel examined just before it.
func nextBoundaryPixel(inside func(x, y int) bool, cx, cy, bx, by int) (int, int, int, int, bool) {
	start := 0
	for i := range 8 {
		if cx+ndx[i] == bx && cy+ndy[i] == by {
			start = i
			break
		}
	}
	px, py := bx, by
	for k := 1; k <= 8; k++ {
		i := (start + k) % 8
		tx, ty := cx+ndx[i], cy+ndy[i]
		if inside(tx, ty) {
			return tx, ty, px, py, true
		}
		px, py = tx, ty
	}
	return 0, 0, 0, 0, false
}

// appendBoundaryPoint appends (x, y) unless it repeats the previous point.
func appendBoundaryPoint(pts []utils.Point, x, y int) []utils.Point {
	p := utils.Point{X: float64(x), Y: float64(y)}
	if n := len(pts); n > 0 && pts[n-1] == p {
		return pts
	}
	return append(pts, p)
}
