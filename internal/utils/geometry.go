package utils

import (
	"errors"
	"math"
)

// ErrTooFewPoints is returned when a corner ordering needs more points than provided.
var ErrTooFewPoints = errors.New("at least 4 points are required")

// Point represents a 2D coordinate in float space.
type Point struct {
	X float64
	Y float64
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Corner indices of a Quad.
const (
	TopLeft = iota
	TopRight
	BottomRight
	BottomLeft
)

// Quad holds four corners in TL, TR, BR, BL order.
type Quad [4]Point

// TL returns the top-left corner.
func (q Quad) TL() Point { return q[TopLeft] }

// TR returns the top-right corner.
func (q Quad) TR() Point { return q[TopRight] }

// BR returns the bottom-right corner.
func (q Quad) BR() Point { return q[BottomRight] }

// BL returns the bottom-left corner.
func (q Quad) BL() Point { return q[BottomLeft] }

// Points returns the corners as a slice, suitable for polygon helpers.
func (q Quad) Points() []Point {
	return []Point{q[0], q[1], q[2], q[3]}
}

// Edges returns the lengths of the top, right, bottom and left edges.
func (q Quad) Edges() (top, right, bottom, left float64) {
	top = Distance(q.TR(), q.TL())
	right = Distance(q.TR(), q.BR())
	bottom = Distance(q.BR(), q.BL())
	left = Distance(q.TL(), q.BL())
	return top, right, bottom, left
}

// OrderCorners labels four corners of a roughly axis-aligned quadrilateral.
//
// For each point s = x+y and d = y-x are computed: TL has the smallest s,
// BR the largest s, TR the smallest d and BL the largest d. Ties keep the
// first occurrence. More than four points are accepted; every point takes
// part in the min/max selection. Degenerate input is not rejected.
func OrderCorners(pts []Point) (Quad, error) {
	if len(pts) < 4 {
		return Quad{}, ErrTooFewPoints
	}

	minS, maxS, minD, maxD := 0, 0, 0, 0
	for i := 1; i < len(pts); i++ {
		s := pts[i].X + pts[i].Y
		d := pts[i].Y - pts[i].X
		if s < pts[minS].X+pts[minS].Y {
			minS = i
		}
		if s > pts[maxS].X+pts[maxS].Y {
			maxS = i
		}
		if d < pts[minD].Y-pts[minD].X {
			minD = i
		}
		if d > pts[maxD].Y-pts[maxD].X {
			maxD = i
		}
	}

	return Quad{pts[minS], pts[minD], pts[maxS], pts[maxD]}, nil
}
