package enrichment

import "sort"

// Prediction messages.
const (
	MessageSignificant    = "a significant EC class prediction"
	MessageNoSubclass     = ", but no significant sub-class"
	MessageNotSignificant = "no significant EC prediction"
)

// DefaultAlpha is the significance threshold for PredictHierarchical.
const DefaultAlpha = 0.05

// Prediction is the hierarchical result for one query: significant categories
// at EC1, then EC2 and EC3, each level ordered by where its maximum occurs.
type Prediction struct {
	Results []Result
	Message string
}

// ECs returns the predicted categories in result order.
func (p Prediction) ECs() []string {
	out := make([]string, len(p.Results))
	for i, r := range p.Results {
		out[i] = r.EC
	}
	return out
}

// significant scores candidates against the full label column and keeps the
// ones with p below alpha and a positive score, sorted by where.
func significant(level string, labels, candidates []string, null []float64, alpha float64) []Result {
	var out []Result
	for _, cat := range candidates {
		if Ignored(cat) {
			continue
		}
		e := Score(labels, cat)
		p := PValueFromNull(e.Score, null)
		if p < alpha && e.Score > 0 {
			out = append(out, Result{Level: level, EC: cat, Score: e.Score, PValue: p, Where: e.Where})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Where < out[j].Where })
	return out
}

// subCategories returns the distinct labels at the finer level among rows
// whose coarser label is in parents, in first-seen order.
func subCategories(coarse, fine []string, parents []Result) []string {
	keep := make(map[string]bool, len(parents))
	for _, r := range parents {
		keep[r.EC] = true
	}
	var sub []string
	for i := range coarse {
		if keep[coarse[i]] {
			sub = append(sub, fine[i])
		}
	}
	return Categories(sub)
}

// PredictHierarchical runs the enrichment test down the EC hierarchy for a
// list of full EC labels ordered from most to least similar reaction. The
// walk always covers the whole list; only the candidate set narrows.
func PredictHierarchical(ranked []string, null Null, alpha float64) Prediction {
	if alpha <= 0 {
		alpha = DefaultAlpha
	}
	ec1 := LevelLabels(ranked, 1)
	ec2 := LevelLabels(ranked, 2)
	ec3 := LevelLabels(ranked, 3)

	sig1 := significant("EC1", ec1, Categories(ec1), null["EC1"], alpha)
	if len(sig1) == 0 {
		return Prediction{Message: MessageNotSignificant}
	}
	results := sig1
	message := MessageSignificant

	sig2 := significant("EC2", ec2, subCategories(ec1, ec2, sig1), null["EC2"], alpha)
	if len(sig2) == 0 {
		return Prediction{Results: results, Message: message + MessageNoSubclass}
	}
	results = append(results, sig2...)

	sig3 := significant("EC3", ec3, subCategories(ec2, ec3, sig2), null["EC3"], alpha)
	results = append(results, sig3...)
	return Prediction{Results: results, Message: message}
}
