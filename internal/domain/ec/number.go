// Package ec models Enzyme Commission numbers and the ranked, multi-valued
// EC predictions emitted by enzyme-function prediction tools.
package ec

import (
	"strconv"
	"strings"

	errs "github.com/turtacn/enzbench/pkg/errors"
)

// MaxDepth is the number of levels in a full EC number.
const MaxDepth = 4

// ClassNames maps the first EC level to the enzyme class name.
var ClassNames = map[string]string{
	"1": "Oxidoreductases",
	"2": "Transferases",
	"3": "Hydrolases",
	"4": "Lyases",
	"5": "Isomerases",
	"6": "Ligases",
	"7": "Translocases",
}

// ClassOrder lists the class keys in numeric order.
var ClassOrder = []string{"1", "2", "3", "4", "5", "6", "7"}

// LevelName returns "EC1".."EC4" for depth 1..4.
func LevelName(depth int) string {
	return "EC" + strconv.Itoa(depth)
}

// Number is a parsed EC number. Components are kept as written so that
// placeholders ("-") and preliminary numbers ("n12") survive a round trip.
type Number struct {
	parts []string
}

// Parse parses "a.b.c.d" (one to four components). An "EC:" or "EC "
// prefix is accepted. Each component must be digits, "-" or "n<digits>".
func Parse(s string) (Number, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "EC:")
	s = strings.TrimPrefix(s, "EC ")
	s = strings.TrimSpace(s)
	if s == "" {
		return Number{}, errs.New(errs.ErrCodeECInvalid, "empty EC number")
	}
	parts := strings.Split(s, ".")
	if len(parts) > MaxDepth {
		return Number{}, errs.New(errs.ErrCodeECInvalid, "too many EC components").WithDetail(s)
	}
	for _, p := range parts {
		if !validComponent(p) {
			return Number{}, errs.New(errs.ErrCodeECInvalid, "invalid EC component").WithDetail(s)
		}
	}
	return Number{parts: parts}, nil
}

func validComponent(p string) bool {
	switch {
	case p == "-":
		return true
	case IsDigits(p):
		return true
	case len(p) > 1 && p[0] == 'n' && IsDigits(p[1:]):
		return true
	}
	return false
}

// IsDigits reports whether s is a non-empty run of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Depth returns the count of leading numeric components.
func (n Number) Depth() int {
	d := 0
	for _, p := range n.parts {
		if !IsDigits(p) {
			break
		}
		d++
	}
	return d
}

// Class returns the first component, or "" for the zero Number.
func (n Number) Class() string {
	if len(n.parts) == 0 {
		return ""
	}
	return n.parts[0]
}

// ClassName returns the enzyme class name, or "" when unknown.
func (n Number) ClassName() string {
	return ClassNames[n.Class()]
}

// IsComplete reports whether the first depth components are numeric.
func (n Number) IsComplete(depth int) bool {
	return n.Depth() >= depth
}

// Truncate keeps at most depth components.
func (n Number) Truncate(depth int) Number {
	if depth >= len(n.parts) {
		return n
	}
	if depth < 0 {
		depth = 0
	}
	return Number{parts: append([]string(nil), n.parts[:depth]...)}
}

// Components returns a copy of the components.
func (n Number) Components() []string {
	return append([]string(nil), n.parts...)
}

func (n Number) String() string {
	return strings.Join(n.parts, ".")
}

// Truncate keeps the first depth dot-separated components of s without
// validating them.
func Truncate(s string, depth int) string {
	parts := strings.Split(s, ".")
	if depth < len(parts) {
		parts = parts[:depth]
	}
	return strings.Join(parts, ".")
}

// NumericPrefix returns the first depth components of s when s has at least
// depth components and each of them is numeric.
func NumericPrefix(s string, depth int) (string, bool) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if depth < 1 || len(parts) < depth {
		return "", false
	}
	for _, p := range parts[:depth] {
		if !IsDigits(p) {
			return "", false
		}
	}
	return strings.Join(parts[:depth], "."), true
}
