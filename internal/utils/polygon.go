package utils

import (
	"image"
	"math"
	"slices"
)

// Box represents an axis-aligned bounding box in float coordinates.
type Box struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Width returns the box width.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Area returns the box area.
func (b Box) Area() float64 { return b.Width() * b.Height() }

// ToRect converts a Box to an image.Rectangle covering it.
func (b Box) ToRect() image.Rectangle {
	return image.Rect(
		int(math.Floor(b.MinX)), int(math.Floor(b.MinY)),
		int(math.Ceil(b.MaxX)), int(math.Ceil(b.MaxY)),
	)
}

// BoundingBox returns the axis-aligned bounding box for a set of points.
func BoundingBox(pts []Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Box{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// PolygonArea returns the absolute area of a simple polygon (shoelace formula).
func PolygonArea(pts []Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(sum) / 2
}

// PolygonPerimeter returns the length of the polyline through pts. When closed
// is set the segment from the last point back to the first is included.
func PolygonPerimeter(pts []Point, closed bool) float64 {
	if len(pts) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(pts); i++ {
		sum += Distance(pts[i-1], pts[i])
	}
	if closed {
		sum += Distance(pts[len(pts)-1], pts[0])
	}
	return sum
}

// PointInPolygon reports whether p lies strictly inside the polygon using ray casting.
func PointInPolygon(p Point, poly []Point) bool {
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// ApproxPolygon simplifies a closed contour with the Douglas-Peucker algorithm.
//
// No contour point is pinned as a vertex: the ring is split at an
// approximately farthest pair of points (three alternating farthest-point
// searches), both arcs are simplified, and a final pass drops every vertex that
// lies within epsilon of the chord between its neighbours. Output keeps the
// contour's orientation.
func ApproxPolygon(contour []Point, epsilon float64) []Point {
	idx := approxIndices(contour, epsilon)
	out := make([]Point, len(idx))
	for i, k := range idx {
		out[i] = contour[k]
	}
	return out
}

// approxIndices returns the indices of the kept contour points in contour order.
func approxIndices(contour []Point, epsilon float64) []int {
	n := len(contour)
	if n <= 3 || epsilon <= 0 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	a, b := 0, 0
	for range 3 {
		f := farthestFrom(contour, a)
		a, b = f, a
	}
	if Distance(contour[a], contour[b]) == 0 {
		return []int{0}
	}
	lo, hi := min(a, b), max(a, b)

	// Walk the closed ring as an open polyline lo..hi..lo+n.
	ring := make([]Point, n+1)
	for i := range n + 1 {
		ring[i] = contour[(lo+i)%n]
	}
	mid := hi - lo
	keep := make([]bool, n+1)
	keep[0], keep[mid], keep[n] = true, true, true
	dpSimplify(ring, 0, mid, epsilon, keep)
	dpSimplify(ring, mid, n, epsilon, keep)

	idx := make([]int, 0, 8)
	for i := range n {
		if keep[i] {
			idx = append(idx, (lo+i)%n)
		}
	}
	idx = dropCollinear(contour, idx, epsilon)
	slices.Sort(idx)
	return idx
}

func farthestFrom(pts []Point, from int) int {
	far, maxD := from, -1.0
	for i, p := range pts {
		if d := Distance(pts[from], p); d > maxD {
			maxD, far = d, i
		}
	}
	return far
}

// dropCollinear removes vertices within eps of the chord joining their
// neighbours until none is left or only three vertices remain.
func dropCollinear(pts []Point, idx []int, eps float64) []int {
	for changed := true; changed && len(idx) > 3; {
		changed = false
		for i := 0; i < len(idx) && len(idx) > 3; i++ {
			prev := pts[idx[(i+len(idx)-1)%len(idx)]]
			next := pts[idx[(i+1)%len(idx)]]
			if perpendicularDistance(pts[idx[i]], prev, next) <= eps {
				idx = slices.Delete(idx, i, i+1)
				changed = true
				i--
			}
		}
	}
	return idx
}

func dpSimplify(pts []Point, start, end int, eps float64, keep []bool) {
	if end <= start+1 {
		return
	}
	maxDist := -1.0
	index := -1
	a := pts[start]
	b := pts[end]
	for i := start + 1; i < end; i++ {
		d := perpendicularDistance(pts[i], a, b)
		if d > maxDist {
			maxDist = d
			index = i
		}
	}
	if maxDist > eps {
		keep[index] = true
		dpSimplify(pts, start, index, eps, keep)
		dpSimplify(pts, index, end, eps, keep)
	}
}

// perpendicularDistance returns the distance from p to the line through a and b.
func perpendicularDistance(p, a, b Point) float64 {
	vx, vy := b.X-a.X, b.Y-a.Y
	if vx == 0 && vy == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	num := math.Abs((p.X-a.X)*vy - (p.Y-a.Y)*vx)
	return num / math.Hypot(vx, vy)
}
