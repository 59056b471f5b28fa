package pipeline

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/platescan/internal/preprocess"
	"github.com/MeKo-Tech/platescan/internal/recognizer"
	"github.com/MeKo-Tech/platescan/internal/segment"
	"github.com/MeKo-Tech/platescan/internal/validate"
)

// Named tuning profiles.
const (
	ProfileDefault = "default"
	ProfileStrict  = "strict"
	ProfileLegacy  = "legacy"
)

// ProfileNames lists the built-in profiles.
func ProfileNames() []string {
	return []string{ProfileDefault, ProfileStrict, ProfileLegacy}
}

// ProfileConfig returns the configuration of a built-in profile.
//
//   - default: wide hue range 10-40, shading-corrected ×2.7 bands, no margins,
//     full-match-only success.
//   - strict: hue 15-35 with saturation and value from 100, the left half of the
//     upper band masked out.
//   - legacy: strict colours, plain ×3 threshold chain, 70/335 margins on both
//     sides of the upper band, both bands read with the Korean profile, full or
//     partial matches count as success and the bands are joined with a space.
func ProfileConfig(name string) (Config, error) {
	cfg := DefaultConfig()
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProfileDefault:
	case ProfileStrict:
		cfg.Profile = ProfileStrict
		cfg.Segment.Color = segment.StrictColor()
		cfg.UpperMargin = preprocess.MarginConfig{Left: 0.5}
	case ProfileLegacy:
		cfg.Profile = ProfileLegacy
		cfg.Segment.Color = segment.StrictColor()
		cfg.UpperPrep = preprocess.LegacyConfig()
		cfg.LowerPrep = preprocess.LegacyConfig()
		cfg.UpperMargin = preprocess.MarginConfig{Left: preprocess.LegacyMargin, Right: preprocess.LegacyMargin}
		upper := recognizer.LowerProfile()
		upper.Name = recognizer.UpperProfile().Name
		cfg.UpperOCR = upper
		cfg.Validation = validate.Config{
			Separator:     " ",
			SuccessPolicy: validate.FullOrPartial,
			LowerMode:     validate.LowerKeepMultibyte,
		}
	default:
		return Config{}, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(ProfileNames(), ", "))
	}
	return cfg, nil
}

// IsProfile reports whether name is a built-in profile.
func IsProfile(name string) bool {
	return slices.Contains(ProfileNames(), strings.ToLower(strings.TrimSpace(name)))
}
