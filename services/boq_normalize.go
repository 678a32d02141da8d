package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/currency"
)

// ErrUnparseableNumber is returned by NormalizeNumeric for non-empty cells
// that do not hold a number.
var ErrUnparseableNumber = eris.New("unparseable numeric value")

// currencyMarkers maps explicit currency markers to ISO 4217 codes. Longer
// markers are listed first so "US$" wins over "$".
var currencyMarkers = []struct {
	marker string
	code   string
}{
	{"US$", "USD"},
	{"A$", "AUD"},
	{"C$", "CAD"},
	{"S$", "SGD"},
	{"Rs.", "INR"},
	{"Rs", "INR"},
	{"₹", "INR"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"$", "USD"},
	{"د.إ", "AED"},
	{"Dhs", "AED"},
	{"SAR", "SAR"},
}

var (
	numberShapeRe = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
	rsMarkerRe    = regexp.MustCompile(`(?i)\brs\.?`)
	isoMarkerRe   = regexp.MustCompile(`(?i)\b(inr|usd|eur|gbp|aed|sar|qar|omr|kwd|bhd|jpy|cny|aud|cad|sgd|myr|npr|lkr|bdt|zar|kes|ngn)\b`)
	dashOnlyRe    = regexp.MustCompile(`^[-–—_.]+$`)
)

var emptyNumericTokens = map[string]bool{
	"nil": true, "n/a": true, "na": true, "none": true, "--": true,
}

// NormalizeNumeric converts a cell into a number. Empty cells and
// placeholders yield (nil, nil); text that is not a number yields
// (nil, ErrUnparseableNumber). Currency markers, thousands separators,
// whitespace, the "/-" suffix and parenthesised negatives are accepted.
func NormalizeNumeric(cell string) (*float64, error) {
	s := strings.TrimSpace(cell)
	if s == "" || emptyNumericTokens[strings.ToLower(s)] || dashOnlyRe.MatchString(s) {
		return nil, nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = stripCurrencyMarkers(s)
	s = strings.TrimSuffix(s, "/-")
	s = strings.TrimSuffix(s, "/=")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\u2009', '\t', '\'', '\u2019':
			return -1
		}
		return r
	}, s)

	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = !negative
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return nil, nil
	}

	s = normalizeSeparators(s)
	if !numberShapeRe.MatchString(s) {
		return nil, ErrUnparseableNumber
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, ErrUnparseableNumber
	}
	if negative {
		v = -v
	}
	return &v, nil
}

// stripCurrencyMarkers removes currency symbols, "Rs." style prefixes and
// ISO codes from a numeric cell.
func stripCurrencyMarkers(s string) string {
	for _, cm := range currencyMarkers {
		if cm.marker == "Rs" || cm.marker == "Rs." {
			continue
		}
		s = strings.ReplaceAll(s, cm.marker, "")
	}
	s = rsMarkerRe.ReplaceAllString(s, "")
	s = isoMarkerRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// normalizeSeparators rewrites thousands and decimal separators so that the
// result uses "." as the only decimal mark. When both "," and "." appear the
// last one is the decimal mark. A lone comma followed by anything other than
// exactly three digits is treated as a decimal comma.
func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// DetectCurrency returns the ISO 4217 code of an explicit currency marker in
// the cell, if any.
func DetectCurrency(cell string) (string, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return "", false
	}
	for _, cm := range currencyMarkers {
		switch cm.marker {
		case "Rs", "Rs.":
			if rsMarkerRe.MatchString(s) {
				return cm.code, true
			}
			continue
		}
		if strings.Contains(s, cm.marker) {
			return cm.code, true
		}
	}
	if code := isoMarkerRe.FindString(s); code != "" {
		if unit, err := currency.ParseISO(strings.ToUpper(code)); err == nil {
			return unit.String(), true
		}
	}
	return "", false
}

// NormalizeCurrency returns the explicit currency of the cell, or fallback
// when the cell carries no marker.
func NormalizeCurrency(cell, fallback string) string {
	if code, ok := DetectCurrency(cell); ok {
		return code
	}
	return fallback
}

// canonicalCurrency validates a configured currency code, defaulting to INR.
func canonicalCurrency(code string) string {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return "INR"
	}
	return unit.String()
}
