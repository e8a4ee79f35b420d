package indi

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Sexagesimal is a Number value as found on the wire: either a plain decimal
// or up to three base-60 components separated by ':' or spaces, with the sign
// carried by the hour component only. The original component split is kept so
// serializing reproduces the value losslessly.
type Sexagesimal struct {
	Hour   float64
	Minute float64
	Second float64
	// Parts is how many components were present: 1 (plain decimal),
	// 2 (H:M) or 3 (H:M:S).
	Parts int
}

// Decimal wraps a plain decimal value.
func Decimal(v float64) Sexagesimal {
	return Sexagesimal{Hour: v, Parts: 1}
}

// Value returns the canonical decimal value:
// hour + sign(hour)*minute/60 + sign(hour)*second/3600.
func (s Sexagesimal) Value() float64 {
	sign := 1.0
	if math.Signbit(s.Hour) {
		sign = -1.0
	}
	v := s.Hour
	if s.Parts >= 2 {
		v += sign * s.Minute / 60.0
	}
	if s.Parts >= 3 {
		v += sign * s.Second / 3600.0
	}
	return v
}

// String renders the value in its original component form. Re-parsing the
// result yields the same canonical value.
func (s Sexagesimal) String() string {
	switch s.Parts {
	case 2:
		return formatFloat(s.Hour) + ":" + formatFloat(s.Minute)
	case 3:
		return formatFloat(s.Hour) + ":" + formatFloat(s.Minute) + ":" + formatFloat(s.Second)
	default:
		return formatFloat(s.Hour)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseSexagesimal parses a plain decimal or an `H[[:M]:S]` form. Components
// may be separated by ':' or spaces.
func ParseSexagesimal(text string) (Sexagesimal, error) {
	fields := strings.FieldsFunc(strings.TrimSpace(text), func(r rune) bool {
		return r == ':' || r == ' '
	})
	if len(fields) == 0 || len(fields) > 3 {
		return Sexagesimal{}, fmt.Errorf("indi: invalid number %q", text)
	}

	var s Sexagesimal
	s.Parts = len(fields)
	parts := []*float64{&s.Hour, &s.Minute, &s.Second}
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return Sexagesimal{}, fmt.Errorf("indi: invalid number %q: %w", text, err)
		}
		*parts[i] = v
	}
	return s, nil
}
