package models

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Rules narrows how CoerceScalar interprets a raw token.
type Rules struct {
	// NullTokens are matched after trimming. Matching honours CaseInsensitive.
	NullTokens []string
	// CaseInsensitive applies to both null tokens and true/false.
	CaseInsensitive bool
	// Booleans enables true/false recognition.
	Booleans bool
	// Numbers enables finite decimal recognition.
	Numbers bool
	// StripQuotes turns "x" and 'x' into the string x.
	StripQuotes bool
	// TrimSpace returns the trimmed text for plain strings.
	TrimSpace bool
}

var (
	// DefaultRules is the full precedence: null/~, booleans, numbers, quoted strings.
	DefaultRules = Rules{
		NullTokens:      []string{"null", "~"},
		CaseInsensitive: true,
		Booleans:        true,
		Numbers:         true,
		StripQuotes:     true,
		TrimSpace:       true,
	}

	// CSVRules applies to unquoted and quoted cells alike; quotes were already
	// consumed by the scanner.
	CSVRules = Rules{
		NullTokens:      []string{"null"},
		CaseInsensitive: true,
		Booleans:        true,
		Numbers:         true,
	}

	// INIRules recognises quoted values, which are then never coerced further.
	INIRules = Rules{
		NullTokens:      []string{"null"},
		CaseInsensitive: true,
		Booleans:        true,
		Numbers:         true,
		StripQuotes:     true,
		TrimSpace:       true,
	}

	// YAMLRules leaves quoting to the YAML scanner, which handles escapes.
	YAMLRules = Rules{
		NullTokens:      []string{"null", "~"},
		CaseInsensitive: true,
		Booleans:        true,
		Numbers:         true,
		TrimSpace:       true,
	}

	// SQLRules only knows NULL, TRUE, FALSE and numeric literals.
	SQLRules = Rules{
		NullTokens:      []string{"NULL"},
		CaseInsensitive: true,
		Booleans:        true,
		Numbers:         true,
		TrimSpace:       true,
	}
)

var decimalRegex = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// ParseNumber parses a finite decimal literal. Hex, Inf, NaN, leading plus
// signs and zero-padded integers such as 007 are rejected.
func ParseNumber(text string) (float64, bool) {
	if !decimalRegex.MatchString(text) {
		return 0, false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// CoerceScalar turns a raw token into a Value using the fixed precedence
// null, bool, number, quoted string, plain string.
func CoerceScalar(text string, rules Rules) Value {
	trimmed := strings.TrimSpace(text)

	for _, tok := range rules.NullTokens {
		if trimmed == tok || (rules.CaseInsensitive && strings.EqualFold(trimmed, tok)) {
			return Null()
		}
	}

	if rules.Booleans {
		switch {
		case trimmed == "true" || (rules.CaseInsensitive && strings.EqualFold(trimmed, "true")):
			return Bool(true)
		case trimmed == "false" || (rules.CaseInsensitive && strings.EqualFold(trimmed, "false")):
			return Bool(false)
		}
	}

	if rules.Numbers {
		if f, ok := ParseNumber(trimmed); ok {
			return Number(f)
		}
	}

	if rules.StripQuotes && len(trimmed) >= 2 {
		first, last := trimmed[0], trimmed[len(trimmed)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return String(trimmed[1 : len(trimmed)-1])
		}
	}

	if rules.TrimSpace {
		return String(trimmed)
	}
	return String(text)
}

// FormatNumber renders a number the way JavaScript's String(n) would for the
// common range: integers without a fraction, no exponent between 1e-6 and 1e21.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n) || math.IsInf(n, 0):
		return "null"
	case n == 0:
		return "0"
	}
	abs := math.Abs(n)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// ScalarText renders a scalar as plain text: "" for null, true/false, the
// number, or the string itself. Containers render as compact JSON.
func ScalarText(v Value) string {
	switch v.Kind() {
	case KindNull:
		return ""
	case KindBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case KindNumber:
		return FormatNumber(v.AsNumber())
	case KindString:
		return v.AsString()
	default:
		return EncodeJSON(v, 0)
	}
}
