package segment

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/platescan/internal/utils"
)

// Selector names accepted by SelectorByName.
const (
	SelectorFirstMatch = "first-match"
	SelectorBestFit    = "best-fit"
)

// Candidate is a contour that simplified to a plate-shaped quadrilateral.
type Candidate struct {
	Index   int           // position of the source contour in discovery order
	Polygon []utils.Point // simplified polygon, 4 vertices
	Area    float64
}

// CandidateSelector picks at most one plate candidate from contours in discovery order.
type CandidateSelector interface {
	Name() string
	Select(contours [][]utils.Point, approx func([]utils.Point) (Candidate, bool)) (Candidate, bool)
}

// FirstMatch accepts the first qualifying contour and stops searching.
type FirstMatch struct{}

// Name implements CandidateSelector.
func (FirstMatch) Name() string { return SelectorFirstMatch }

// Select implements CandidateSelector.
func (FirstMatch) Select(contours [][]utils.Point, approx func([]utils.Point) (Candidate, bool)) (Candidate, bool) {
	for i, c := range contours {
		if cand, ok := approx(c); ok {
			cand.Index = i
			return cand, true
		}
	}
	return Candidate{}, false
}

// BestFit evaluates every qualifying contour and keeps the one with the highest
// area weighted by rectangularity (polygon area over bounding-box area).
// Ties keep the earlier contour.
type BestFit struct{}

// Name implements CandidateSelector.
func (BestFit) Name() string { return SelectorBestFit }

// Select implements CandidateSelector.
func (BestFit) Select(contours [][]utils.Point, approx func([]utils.Point) (Candidate, bool)) (Candidate, bool) {
	var best Candidate
	bestScore := -1.0
	for i, c := range contours {
		cand, ok := approx(c)
		if !ok {
			continue
		}
		cand.Index = i
		if s := fitScore(cand); s > bestScore {
			best, bestScore = cand, s
		}
	}
	return best, bestScore >= 0
}

func fitScore(c Candidate) float64 {
	boxArea := utils.BoundingBox(c.Polygon).Area()
	if boxArea <= 0 {
		return 0
	}
	return c.Area * (c.Area / boxArea)
}

// SelectorByName resolves a selection policy. An empty name means first-match.
func SelectorByName(name string) (CandidateSelector, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SelectorFirstMatch:
		return FirstMatch{}, nil
	case SelectorBestFit:
		return BestFit{}, nil
	default:
		return nil, fmt.Errorf("unknown candidate selector %q (must be %s or %s)",
			name, SelectorFirstMatch, SelectorBestFit)
	}
}
