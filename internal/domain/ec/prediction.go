package ec

import (
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Separators used in prediction strings.
const (
	GroupSep       = ";"
	AlternativeSep = "|"
)

// missingValues are the sentinel strings tools emit instead of a prediction.
var missingValues = map[string]struct{}{
	"":                  {},
	"No Significant EC": {},
	"No EC Prediction":  {},
	"No|EC|Prediction":  {},
	"nan|":              {},
	"|nan":              {},
	"No EC":             {},
}

// IsMissing reports whether value is one of the sentinel "no prediction"
// strings. "nan" is matched case-insensitively.
func IsMissing(value string) bool {
	v := strings.TrimSpace(value)
	if strings.EqualFold(v, "nan") {
		return true
	}
	_, ok := missingValues[v]
	return ok
}

// Clean returns "" for sentinel values and the trimmed value otherwise.
func Clean(value string) string {
	if IsMissing(value) {
		return ""
	}
	return strings.TrimSpace(value)
}

// Group is a set of alternative ECs sharing one rank.
type Group []string

// Prediction is a ranked list of groups. "1.1.1.1|1.1.1.2;2.7.1.1" holds two
// groups, the first with two alternatives.
type Prediction []Group

// ParsePrediction splits s into groups and alternatives. Surrounding
// whitespace and empty alternatives are dropped; empty groups keep their rank.
// Missing values parse to nil.
func ParsePrediction(s string) Prediction {
	if IsMissing(s) {
		return nil
	}
	raw := strings.Split(s, GroupSep)
	p := make(Prediction, 0, len(raw))
	for _, g := range raw {
		var group Group
		for _, alt := range strings.Split(g, AlternativeSep) {
			if alt = strings.TrimSpace(alt); alt != "" {
				group = append(group, alt)
			}
		}
		p = append(p, group)
	}
	return p
}

// IsEmpty reports whether p holds no EC at all.
func (p Prediction) IsEmpty() bool {
	for _, g := range p {
		if len(g) > 0 {
			return false
		}
	}
	return true
}

// Collapse truncates every EC to depth and dedupes and sorts each group.
func (p Prediction) Collapse(depth int) Prediction {
	if p == nil {
		return nil
	}
	out := make(Prediction, len(p))
	for i, g := range p {
		group := lo.Uniq(lo.Map(g, func(e string, _ int) string { return Truncate(e, depth) }))
		sort.Strings(group)
		out[i] = group
	}
	return out
}

// Top1 returns the alternatives of the first group.
func (p Prediction) Top1() []string {
	if len(p) == 0 {
		return nil
	}
	return append([]string(nil), p[0]...)
}

// TopK flattens groups in rank order, stopping at the first group boundary
// where at least k ECs were collected, and returns at most k ECs.
func (p Prediction) TopK(k int) []string {
	var out []string
	for _, g := range p {
		out = append(out, g...)
		if len(out) >= k {
			break
		}
	}
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// Labels returns the sorted set of first-group ECs that are numeric to depth,
// truncated to depth.
func (p Prediction) Labels(depth int) []string {
	if len(p) == 0 {
		return nil
	}
	out := lo.Uniq(lo.FilterMap(p[0], func(e string, _ int) (string, bool) {
		return NumericPrefix(e, depth)
	}))
	sort.Strings(out)
	return out
}

func (p Prediction) String() string {
	groups := make([]string, len(p))
	for i, g := range p {
		groups[i] = strings.Join(g, AlternativeSep)
	}
	return strings.Join(groups, GroupSep)
}

// Labels parses s and returns its first-group labels at depth.
func Labels(s string, depth int) []string {
	return ParsePrediction(s).Labels(depth)
}

// HasScorableTruth reports whether the first group of value holds an EC that
// is numeric to depth and whose class is not excluded.
func HasScorableTruth(value string, depth int, excludedClasses []int) bool {
	excluded := make(map[string]struct{}, len(excludedClasses))
	for _, c := range excludedClasses {
		excluded[strconv.Itoa(c)] = struct{}{}
	}
	for _, label := range Labels(value, depth) {
		class := strings.SplitN(label, ".", 2)[0]
		if _, skip := excluded[class]; !skip {
			return true
		}
	}
	return false
}

// JoinUnique joins the distinct non-empty values in first-seen order.
func JoinUnique(values []string, sep string) string {
	return strings.Join(lo.Uniq(lo.Compact(values)), sep)
}
