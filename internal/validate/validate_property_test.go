package validate

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCleaning_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("cleaned upper text is all ASCII digits", prop.ForAll(
		func(s string) bool {
			for _, r := range CleanUpper(s) {
				if r < '0' || r > '9' {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.Property("cleaned lower text has no ASCII letters, spaces or line breaks", prop.ForAll(
		func(s string) bool {
			for _, r := range CleanLower(s, LowerKeepMultibyte) {
				if r < 0x80 && (r < '0' || r > '9') {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.Property("any syllable plus four digits is a valid lower band", prop.ForAll(
		func(syllable rune, n int) bool {
			return ValidLower(fmt.Sprintf("%c%04d", syllable, n))
		},
		gen.Int32Range(hangulFirst, hangulLast),
		gen.IntRange(0, 9999),
	))

	properties.Property("two digits are always a valid upper band", prop.ForAll(
		func(n int) bool {
			return ValidUpper(fmt.Sprintf("%02d", n)) && !ValidUpper(fmt.Sprintf("%03d", n))
		},
		gen.IntRange(0, 99),
	))

	properties.TestingRun(t)
}
