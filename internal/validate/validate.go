// Package validate cleans raw OCR output for the two plate bands, checks it
// against the plate layout and scores the result.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// LowerMode selects how the lower band text is cleaned.
type LowerMode string

// Lower band cleaning modes.
const (
	// LowerKeepMultibyte keeps ASCII digits and every non-ASCII rune.
	LowerKeepMultibyte LowerMode = "keep-multibyte"
	// LowerRaw keeps the text as returned by the engine, minus line breaks.
	LowerRaw LowerMode = "raw"
)

// Config holds the text validation settings.
type Config struct {
	Separator     string        `json:"separator"`
	SuccessPolicy SuccessPolicy `json:"success_policy"`
	LowerMode     LowerMode     `json:"lower_mode"`
}

// DefaultConfig returns full-match-only scoring with no separator.
func DefaultConfig() Config {
	return Config{Separator: "", SuccessPolicy: FullOnly, LowerMode: LowerKeepMultibyte}
}

// Validate checks the policy and cleaning mode names.
func (c Config) Validate() error {
	switch c.SuccessPolicy {
	case FullOnly, FullOrPartial:
	default:
		return fmt.Errorf("unknown success policy %q (must be %s or %s)", c.SuccessPolicy, FullOnly, FullOrPartial)
	}
	switch c.LowerMode {
	case LowerKeepMultibyte, LowerRaw:
	default:
		return fmt.Errorf("unknown lower mode %q (must be %s or %s)", c.LowerMode, LowerKeepMultibyte, LowerRaw)
	}
	return nil
}

var upperPattern = regexp.MustCompile(`^[0-9]{2}$`)

// Hangul syllable block.
const (
	hangulFirst = '가'
	hangulLast  = '힣'
)

var lineBreaks = strings.NewReplacer("\r", "", "\n", "")

// normalize strips line breaks, composes Hangul jamo sequences into syllables
// and folds full-width forms to their ASCII equivalents.
func normalize(raw string) string {
	s := lineBreaks.Replace(raw)
	s = norm.NFC.String(s)
	return width.Fold.String(s)
}

// CleanUpper keeps only the ASCII digits of raw.
func CleanUpper(raw string) string {
	s := normalize(raw)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CleanLower cleans the lower band text according to mode.
func CleanLower(raw string, mode LowerMode) string {
	s := normalize(raw)
	if mode == LowerRaw {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isDigit(r) || (r >= utf8.RuneSelf && !unicode.IsSpace(r) && r != utf8.RuneError) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidUpper reports whether s is exactly two ASCII digits.
func ValidUpper(s string) bool {
	return upperPattern.MatchString(s)
}

// ValidLower reports whether s is one Hangul syllable followed by four ASCII digits.
func ValidLower(s string) bool {
	if utf8.RuneCountInString(s) != 5 {
		return false
	}
	for i, r := range []rune(s) {
		if i == 0 {
			if r < hangulFirst || r > hangulLast {
				return false
			}
			continue
		}
		if !isDigit(r) {
			return false
		}
	}
	return true
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
