// Package segment isolates the plate's background colour and extracts a
// quadrilateral plate candidate from a photograph.
package segment

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/platescan/internal/utils"
)

// Config holds the segmentation tuning constants.
type Config struct {
	Color        HSVRange `json:"color"`
	BlurKernel   int      `json:"blur_kernel"`
	CannyLow     float64  `json:"canny_low"`
	CannyHigh    float64  `json:"canny_high"`
	ApproxFactor float64  `json:"approx_factor"` // tolerance as a fraction of the contour perimeter
	MinArea      float64  `json:"min_area"`
	Selector     string   `json:"selector"`
}

// DefaultConfig returns the reference segmentation settings.
func DefaultConfig() Config {
	return Config{
		Color:        HSVRange{HueLow: 10, HueHigh: 40, SatLow: 50, ValLow: 50},
		BlurKernel:   5,
		CannyLow:     50,
		CannyHigh:    150,
		ApproxFactor: 0.02,
		MinArea:      500,
		Selector:     SelectorFirstMatch,
	}
}

// StrictColor is the narrower colour range used under tightly controlled lighting.
func StrictColor() HSVRange {
	return HSVRange{HueLow: 15, HueHigh: 35, SatLow: 100, ValLow: 100}
}

// Validate checks the configuration for impossible values.
func (c Config) Validate() error {
	if c.Color.HueLow > c.Color.HueHigh {
		return fmt.Errorf("hue range inverted: %d > %d", c.Color.HueLow, c.Color.HueHigh)
	}
	if c.Color.HueHigh >= 180 {
		return fmt.Errorf("hue high %d out of range (0-179)", c.Color.HueHigh)
	}
	if c.BlurKernel < 0 || (c.BlurKernel > 1 && c.BlurKernel%2 == 0) {
		return fmt.Errorf("blur kernel must be odd, got %d", c.BlurKernel)
	}
	if c.CannyLow < 0 || c.CannyHigh <= 0 {
		return errors.New("canny thresholds must be positive")
	}
	if c.ApproxFactor <= 0 || c.ApproxFactor >= 1 {
		return fmt.Errorf("approx factor must be in (0,1), got %.3f", c.ApproxFactor)
	}
	if c.MinArea < 0 {
		return fmt.Errorf("min area must not be negative, got %.1f", c.MinArea)
	}
	_, err := SelectorByName(c.Selector)
	return err
}

// Detection carries the intermediate frames of one segmentation pass and,
// when found, the selected candidate and its ordered corners. The frames are
// anchored at (0,0); the candidate and corners use the input image's coordinates.
type Detection struct {
	Mask      *image.Gray
	Masked    *image.NRGBA
	Edges     *image.Gray
	Contours  int
	Candidate Candidate
	Corners   utils.Quad
}

// Segmentator finds plate candidates. It holds no per-image state and is safe
// for concurrent use.
type Segmentator struct {
	cfg      Config
	selector CandidateSelector
}

// New creates a Segmentator from cfg.
func New(cfg Config) (*Segmentator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sel, err := SelectorByName(cfg.Selector)
	if err != nil {
		return nil, err
	}
	return &Segmentator{cfg: cfg, selector: sel}, nil
}

// Config returns the segmentation settings in use.
func (s *Segmentator) Config() Config { return s.cfg }

// Find runs colour masking, edge detection and contour search on img.
// The boolean is false when no contour qualifies; that is a normal outcome and the
// returned Detection still carries the intermediate frames.
func (s *Segmentator) Find(img image.Image) (Detection, bool) {
	var det Detection
	if img == nil || img.Bounds().Empty() {
		return det, false
	}

	det.Mask = ColorMask(img, s.cfg.Color)
	det.Masked = ApplyMask(img, det.Mask)
	gray := Blur(utils.ToGray(det.Masked), s.cfg.BlurKernel)
	det.Edges = Canny(gray, s.cfg.CannyLow, s.cfg.CannyHigh)

	contours := FindExternalContours(det.Edges)
	det.Contours = len(contours)

	cand, ok := s.selector.Select(contours, s.approximate)
	if !ok {
		return det, false
	}
	// Contours are traced on zero-based frames; report the polygon in img's space.
	if off := img.Bounds().Min; off != (image.Point{}) {
		for i := range cand.Polygon {
			cand.Polygon[i].X += float64(off.X)
			cand.Polygon[i].Y += float64(off.Y)
		}
	}
	corners, err := utils.OrderCorners(cand.Polygon)
	if err != nil {
		return det, false
	}
	det.Candidate = cand
	det.Corners = corners
	return det, true
}

// approximate simplifies a contour and reports whether it is a plate candidate:
// exactly four vertices enclosing more than MinArea.
func (s *Segmentator) approximate(contour []utils.Point) (Candidate, bool) {
	eps := s.cfg.ApproxFactor * utils.PolygonPerimeter(contour, true)
	poly := utils.ApproxPolygon(contour, eps)
	if len(poly) != 4 {
		return Candidate{}, false
	}
	area := utils.PolygonArea(poly)
	if area <= s.cfg.MinArea {
		return Candidate{}, false
	}
	return Candidate{Polygon: poly, Area: area}, true
}

