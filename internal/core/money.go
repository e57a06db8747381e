// Package core provides the transaction model and value normalization.
//
// This file contains functions for parsing monetary amounts written in either
// the Brazilian (1.234,56) or the international (1,234.56) convention.
package core

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// currencySymbols are stripped before parsing. Longer symbols come first so
// "R$" is not left as "R".
var currencySymbols = []string{"R$", "US$", "$", "€", "£"}

// commaDecimal matches a trailing comma followed by exactly two digits.
var commaDecimal = regexp.MustCompile(`,\d{2}$`)

// ParseAmount converts a currency-like string into a signed float.
//
// Parenthesis-wrapped values are accounting negatives and always come out
// negative. A string ending in ",dd" uses comma as the decimal separator and
// dot for thousands; anything else uses dot for decimals.
//
// Examples:
//
//	ParseAmount("R$ -1.234,56") -> -1234.56
//	ParseAmount("(1,234.56)")   -> -1234.56
//	ParseAmount("-45,50")       -> -45.5
//	ParseAmount("100")          -> 100
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	raw := s

	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)

	negative := false
	if len(s) >= 2 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
		for _, sym := range currencySymbols {
			s = strings.ReplaceAll(s, sym, "")
		}
	}
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	if commaDecimal.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if negative {
		d = d.Abs().Neg()
	}

	v := d.InexactFloat64()
	if !IsFinite(v) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return v, nil
}

// FormatAmount renders v with two decimals in the Brazilian convention
// (1.234,56) when brazilian is true, otherwise in the international one
// (1,234.56).
func FormatAmount(v float64, brazilian bool) string {
	d := decimal.NewFromFloat(v).Round(2)
	neg := d.IsNegative()
	digits := d.Abs().StringFixed(2)

	intPart, frac, _ := strings.Cut(digits, ".")
	thousands, dec := ",", "."
	if brazilian {
		thousands, dec = ".", ","
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(thousands)
		}
		b.WriteRune(r)
	}
	b.WriteString(dec)
	b.WriteString(frac)
	return b.String()
}

// Cents returns the amount as an integer number of cents, rounded half away
// from zero.
func Cents(v float64) int64 {
	return decimal.NewFromFloat(v).Shift(2).Round(0).IntPart()
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
