package preprocess

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestRanges_AlwaysOverlap(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("lower start precedes upper end for every height", prop.ForAll(
		func(h int, upper, lowerFrac float64) bool {
			cfg := SplitConfig{UpperRatio: upper, LowerStart: upper * lowerFrac}
			if cfg.Validate() != nil {
				return true
			}
			u, l := cfg.Ranges(h)
			return l >= 0 && l < u && u <= h
		},
		gen.IntRange(1, 5000),
		gen.Float64Range(0.05, 1),
		gen.Float64Range(0, 0.99),
	))

	properties.Property("default split bands cover every row", prop.ForAll(
		func(h int) bool {
			u, l := DefaultSplitConfig().Ranges(h)
			return l < u && u <= h
		},
		gen.IntRange(1, 5000),
	))

	properties.TestingRun(t)
}
