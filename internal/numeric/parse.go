// Package numeric interprets free-text decimal values whose separators follow
// either the comma-decimal or the dot-decimal convention. Form input reaches the
// scoring configuration as text typed by users in different locales, so "1.234,56"
// and "1,234.56" must both resolve to the same number.
package numeric

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Parse resolves v to a finite float64.
// The boolean result is false when v is nil, blank, malformed, or not finite;
// callers treat that as "no value".
//
// Accepted inputs are Go numeric kinds, json.Number, string, and *string.
// Any other type is rejected.
func Parse(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		return ParseString(string(n))
	case string:
		return ParseString(n)
	case *string:
		if n == nil {
			return 0, false
		}
		return ParseString(*n)
	default:
		return 0, false
	}
}

// decimal is the plain decimal syntax accepted after normalization. It keeps
// strconv's Go literal forms (hex floats, underscores, Inf, NaN) out.
var decimal = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ParseString resolves decimal text to a finite float64.
//
// Whitespace (including non-breaking and narrow no-break spaces used as digit
// grouping) is removed first. When both ',' and '.' appear, whichever occurs
// last is the decimal separator and every occurrence of the other is dropped.
// A lone ',' is a decimal separator. A lone '.' or no separator is left as is.
func ParseString(s string) (float64, bool) {
	normalized := Normalize(s)
	if normalized == "" {
		return 0, false
	}
	if !decimal.MatchString(normalized) {
		return 0, false
	}
	f, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

// Normalize rewrites s into dot-decimal form without grouping separators.
// It does not validate the result; ParseString does.
func Normalize(s string) string {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || isGroupingSpace(r) {
			return -1
		}
		return r
	}, s)
	if compact == "" {
		return ""
	}

	lastComma := strings.LastIndexByte(compact, ',')
	lastDot := strings.LastIndexByte(compact, '.')

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			compact = strings.ReplaceAll(compact, ".", "")
			return strings.Replace(compact, ",", ".", 1)
		}
		return strings.ReplaceAll(compact, ",", "")
	case lastComma >= 0:
		return strings.ReplaceAll(compact, ",", ".")
	default:
		return compact
	}
}

// Format renders f in the canonical dot-decimal form accepted by ParseString.
func Format(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// isGroupingSpace reports the space characters unicode.IsSpace does not cover
// but that locales use as thousands separators.
func isGroupingSpace(r rune) bool {
	switch r {
	case '\u00a0', '\u2007', '\u2009', '\u202f':
		return true
	default:
		return false
	}
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
