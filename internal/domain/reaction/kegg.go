package reaction

import (
	"regexp"
	"sort"
	"strings"
)

var (
	keggCompoundRe = regexp.MustCompile(`^[CG]\d{5}$`)
	keggFindRe     = regexp.MustCompile(`\b[CG]\d{5}\b`)
	variableStoich = regexp.MustCompile(`\([nm][+-]?\d*\)`)
	coefficient    = regexp.MustCompile(`^\(\d+\)`)
)

// FormatKEGGEquation rewrites a KEGG equation for the BridgIT system file:
// numeric coefficients become "(n)", compound ids and arrows are kept, and any
// other token is returned in unexpected.
func FormatKEGGEquation(equation string) (formatted string, unexpected []string) {
	var out []string
	for _, part := range strings.Fields(equation) {
		main := part
		if i := strings.IndexByte(part, '('); i >= 0 {
			main = part[:i]
		}
		switch {
		case main != "" && isAllDigits(main):
			out = append(out, "("+main+")")
		case keggCompoundRe.MatchString(main):
			out = append(out, part)
		case part == "+" || part == "<=>" || part == "=>":
			out = append(out, part)
		default:
			unexpected = append(unexpected, part)
		}
	}
	return strings.Join(out, " "), unexpected
}

func isAllDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

// KEGGCompounds returns the sorted distinct compound and glycan ids in an
// equation.
func KEGGCompounds(equation string) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range keggFindRe.FindAllString(equation, -1) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// CleanEquation strips variable stoichiometry labels such as (n), (m+1) or
// (n-1) and removes every space.
func CleanEquation(equation string) string {
	return strings.ReplaceAll(variableStoich.ReplaceAllString(equation, ""), " ", "")
}

// EquationMolecules lists the distinct compound tokens on both sides of a
// cleaned equation, with parenthesized coefficients removed.
func EquationMolecules(cleaned string) []string {
	seen := map[string]bool{}
	var out []string
	sides := strings.NewReplacer("<=>", "+", "=>", "+").Replace(cleaned)
	for _, tok := range strings.Split(sides, "+") {
		tok = strings.TrimSpace(coefficient.ReplaceAllString(tok, ""))
		if tok == "" || !isAlnum(tok) || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

func isAlnum(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isDigit(c) && !isUpper(c) && !isLower(c) {
			return false
		}
	}
	return true
}
