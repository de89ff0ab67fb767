// Package core provides money parsing and handling utilities.
//
// Amounts are stored as integer cents so aggregate identities hold exactly;
// floats appear only at the presentation edge (percentages, JSON numbers).
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// Money is a monetary amount in integer cents.
type Money struct {
	Cents int64
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return NewValidationError("amount", "must be positive")
	}
	return nil
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

// Sub returns m − other. The result may be negative (net flows, equity).
func (m Money) Sub(other Money) Money {
	return Money{Cents: m.Cents - other.Cents}
}

// Units returns the amount in currency units for display purposes.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) String() string {
	return formatCents(m.Cents)
}

// MarshalJSON renders the amount as a plain decimal number (1234 cents ->
// 12.34). The cents-to-units conversion is exact for two decimal places.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(formatCents(m.Cents)), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string. Zero is
// accepted here; positivity is enforced by Validate so report artifacts can
// round-trip zero totals.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		m.Cents = 0
		return nil
	}
	cents, err := parseCents(s)
	if err != nil {
		return err
	}
	m.Cents = cents
	return nil
}

func formatCents(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	units := cents / 100
	rem := cents % 100
	s := strconv.FormatInt(units, 10)
	switch {
	case rem == 0:
		// integer amounts stay integers
	case rem%10 == 0:
		s += "." + strconv.FormatInt(rem/10, 10)
	default:
		s += "." + twoDigits(rem)
	}
	if neg {
		return "-" + s
	}
	return s
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// ParseDecimalToCents converts a decimal string to cents with proper
// rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// performs half-up rounding on the third decimal place. The result is
// always positive cents; zero and negative values are rejected.
func ParseDecimalToCents(s string) (int64, error) {
	cents, err := parseCents(s)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, NewValidationError("amount", "must be positive")
	}
	return cents, nil
}

// parseCents parses a non-negative decimal into cents. Signs are rejected.
func parseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, NewValidationError("amount", "must not be empty")
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, NewValidationError("amount", "must not carry a sign")
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, NewValidationError("amount", "not a decimal number")
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, NewValidationError("amount", "not a decimal number")
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, NewValidationError("amount", "not a decimal number")
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, NewValidationError("amount", "not a decimal number")
	}
	// Prevent overflow when multiplying by 100; leave headroom for the
	// rounded fractional cents.
	const maxSafeInt64 = ((1<<63 - 1) - 100) / 100
	if iv > maxSafeInt64 {
		return 0, NewValidationError("amount", "too large")
	}
	// Take first two fractional digits; then half-up rounding on third
	var fracCents int64
	if len(fracPart) > 0 {
		d1 := int64(fracPart[0] - '0')
		fracCents = d1 * 10
		if len(fracPart) > 1 {
			d2 := int64(fracPart[1] - '0')
			fracCents += d2
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return iv*100 + fracCents, nil
}
