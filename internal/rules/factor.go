package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// Factor is one supported scale ratio, always >= 1 and stored reduced.
// The set of supported factors is fixed at startup from the templates and
// never grows at runtime.
type Factor struct {
	Num int
	Den int
}

// ParseFactor reads a factor token: an integer like "2" or a ratio like
// "3:2".
func ParseFactor(s string) (Factor, error) {
	num, den := s, "1"
	if i := strings.IndexByte(s, ':'); i >= 0 {
		num, den = s[:i], s[i+1:]
	}
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return Factor{}, fmt.Errorf("invalid scale factor %q", s)
	}
	d, err := strconv.Atoi(strings.TrimSpace(den))
	if err != nil {
		return Factor{}, fmt.Errorf("invalid scale factor %q", s)
	}
	if n <= 0 || d <= 0 || n < d {
		return Factor{}, fmt.Errorf("scale factor %q must be a ratio >= 1", s)
	}
	g := gcd(n, d)
	return Factor{Num: n / g, Den: d / g}, nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Value returns the factor as a float64 multiplier.
func (f Factor) Value() float64 {
	return float64(f.Num) / float64(f.Den)
}

// IsCanonical reports whether this is the unscaled 1:1 factor.
func (f Factor) IsCanonical() bool {
	return f.Num == f.Den
}

// Tag returns the path-safe partition name, e.g. "x2" or "x3-2".
func (f Factor) Tag() string {
	if f.Den == 1 {
		return "x" + strconv.Itoa(f.Num)
	}
	return fmt.Sprintf("x%d-%d", f.Num, f.Den)
}

// String returns the template token form, e.g. "2" or "3:2".
func (f Factor) String() string {
	if f.Den == 1 {
		return strconv.Itoa(f.Num)
	}
	return fmt.Sprintf("%d:%d", f.Num, f.Den)
}

// UnsupportedScaleError reports a factor outside the supported set.
type UnsupportedScaleError struct {
	Factor Factor
}

func (e *UnsupportedScaleError) Error() string {
	return fmt.Sprintf("scale factor %s is not in the supported set", e.Factor)
}
