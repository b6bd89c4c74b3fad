// Package naming turns database identifiers into C# type and member names.
package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jinzhu/inflection"
)

// ToPascalCase splits s on underscores and upper-cases the first letter of each
// segment. The remaining letters of a segment keep their case.
func ToPascalCase(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, segment := range strings.Split(s, "_") {
		if segment == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(segment)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(segment[size:])
	}
	return b.String()
}

// Pluralize applies the English suffix rules used for collection names:
// consonant+y becomes ies, words ending in s, x, z, sh or ch take es, everything
// else takes s. Plural input is not detected, so Pluralize("Orders") is "Orderses".
func Pluralize(s string) string {
	if s == "" {
		return ""
	}

	upper := isUpper(s)
	suffix := func(v string) string {
		if upper {
			return strings.ToUpper(v)
		}
		return v
	}

	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "y") && len(lower) > 1 && !isVowel(lower[len(lower)-2]):
		return s[:len(s)-1] + suffix("ies")
	case strings.HasSuffix(lower, "s"),
		strings.HasSuffix(lower, "x"),
		strings.HasSuffix(lower, "z"),
		strings.HasSuffix(lower, "sh"),
		strings.HasSuffix(lower, "ch"):
		return s + suffix("es")
	default:
		return s + suffix("s")
	}
}

// Singularize returns the singular form of an English noun, e.g. "Categories" to "Category".
func Singularize(s string) string {
	if s == "" {
		return ""
	}
	return inflection.Singular(s)
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

func isUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter && utf8.RuneCountInString(s) > 1
}
