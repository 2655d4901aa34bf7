package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/coastertools/buildscale/internal/rules"
)

// splitToken separates a raw field value into surrounding whitespace and
// the value token, so rewrites keep the original spacing intact.
func splitToken(raw string) (prefix, token, suffix string) {
	token = strings.TrimLeft(raw, " \t\r\n")
	prefix = raw[:len(raw)-len(token)]
	trimmed := strings.TrimRight(token, " \t\r\n")
	suffix = token[len(trimmed):]
	return prefix, trimmed, suffix
}

// scaleToken multiplies (or divides) a numeric token by the factor and
// re-renders it at the token's own decimal precision, rounding half away
// from zero. "10" doubles to "20", "10.0" to "20.0"; the precision of the
// input decides the precision of the output, so repeated scaling carries
// no systematic bias and untouched digits never reformat.
func scaleToken(raw string, f rules.Factor, inverse bool) (string, error) {
	prefix, token, suffix := splitToken(raw)
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return "", fmt.Errorf("value %q is not numeric", token)
	}
	if inverse {
		v /= f.Value()
	} else {
		v *= f.Value()
	}
	return prefix + formatRounded(v, decimals(token)) + suffix, nil
}

// decimals returns the count of fractional digits in a plain decimal
// token, or -1 for exponent notation.
func decimals(token string) int {
	if strings.ContainsAny(token, "eE") {
		return -1
	}
	if i := strings.IndexByte(token, '.'); i >= 0 {
		return len(token) - i - 1
	}
	return 0
}

// formatRounded rounds half away from zero at the given number of
// fractional digits. math.Round implements exactly that tie-break.
func formatRounded(v float64, places int) string {
	if places < 0 {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	pow := math.Pow(10, float64(places))
	return strconv.FormatFloat(math.Round(v*pow)/pow, 'f', places, 64)
}
