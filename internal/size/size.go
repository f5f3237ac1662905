// Package size converts the human-readable size annotations found in
// disk-usage reports into exact byte counts.
package size

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Unit multipliers. Reports use binary units.
const (
	Byte     int64 = 1
	Kilobyte       = Byte << 10
	Megabyte       = Kilobyte << 10
	Gigabyte       = Megabyte << 10
	Terabyte       = Gigabyte << 10
)

// maxMantissaDigits keeps the digit accumulator inside uint64.
const maxMantissaDigits = 19

// Parse converts a token such as "12.5 GB", "3,2 MB", "940" or "1 K" into
// a byte count. Either '.' or ',' marks the start of the fractional part.
// The first run of letters after the digits is the unit; unknown or missing
// units mean bytes. Tokens without digits yield 0. The result is truncated
// toward zero.
func Parse(token string) int64 {
	var (
		mantissa  uint64
		digits    int
		decimals  int
		fraction  bool
		overflow  bool
		unitStart = -1
		unitEnd   = -1
		raw       strings.Builder
	)

	for i, r := range token {
		if unicode.IsLetter(r) {
			if unitStart < 0 {
				unitStart = i
			}
			unitEnd = i + utf8.RuneLen(r)
			continue
		}
		if unitStart >= 0 {
			// anything after the unit run is ignored
			break
		}
		switch {
		case r >= '0' && r <= '9':
			if digits >= maxMantissaDigits {
				overflow = true
			} else {
				mantissa = mantissa*10 + uint64(r-'0')
			}
			digits++
			if fraction {
				decimals++
			}
			raw.WriteRune(r)
		case r == '.' || r == ',':
			if !fraction {
				fraction = true
				raw.WriteByte('.')
			}
		}
	}

	if digits == 0 {
		return 0
	}

	unit := ""
	if unitStart >= 0 {
		unit = token[unitStart:unitEnd]
	}
	mult := Multiplier(unit)

	if !overflow && decimals <= maxMantissaDigits {
		if v, ok := scaleExact(mantissa, mult, decimals); ok {
			return v
		}
	}

	f, err := strconv.ParseFloat(raw.String(), 64)
	if err != nil {
		return 0
	}
	v := f * float64(mult)
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// Multiplier returns the byte multiplier for a unit suffix. Matching is
// case-insensitive; unrecognized units (including "") map to 1.
func Multiplier(unit string) int64 {
	switch strings.ToUpper(strings.TrimSpace(unit)) {
	case "TB", "T":
		return Terabyte
	case "GB", "G":
		return Gigabyte
	case "MB", "M":
		return Megabyte
	case "KB", "K":
		return Kilobyte
	default:
		return Byte
	}
}

// Format renders n in the given unit the way reports write it, e.g.
// Format(12, "GB") == "12 GB". An empty unit renders bare digits.
func Format(n int64, unit string) string {
	if unit == "" {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprintf("%d %s", n, unit)
}

// scaleExact computes mantissa*mult/10^decimals in integer arithmetic,
// reporting false when an intermediate value does not fit.
func scaleExact(mantissa uint64, mult int64, decimals int) (int64, bool) {
	hi, lo := bits.Mul64(mantissa, uint64(mult))
	div := uint64(1)
	for i := 0; i < decimals; i++ {
		div *= 10
	}
	if hi >= div {
		return 0, false
	}
	q, _ := bits.Div64(hi, lo, div)
	if q > math.MaxInt64 {
		return 0, false
	}
	return int64(q), true
}
