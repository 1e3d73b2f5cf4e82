// Package evaluate scores EC predictions against ground-truth labels with
// support-weighted multi-label metrics at several EC depths.
package evaluate

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/turtacn/enzbench/internal/domain/ec"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// Summary columns.
var SummaryHeader = []string{
	"depth", "method", "ec_class", "class_mcc", "overall_mcc",
	"overall_precision", "overall_recall", "coverage", "total_support",
}

// Options configures an evaluation.
type Options struct {
	IDColumn        string
	TruthColumn     string
	Methods         []string // empty means every other column
	Depths          []int
	ExcludedClasses []int
}

// MethodScore holds the metrics of one method at one depth.
type MethodScore struct {
	Depth     int
	Method    string
	MCC       float64
	Precision float64
	Recall    float64
	Coverage  float64
	Support   int
	// ClassMCC is keyed by EC class; NaN when the class has no support.
	ClassMCC map[string]float64
	Classes  []string
}

// Removed describes a row dropped because its truth cannot be scored.
type Removed struct {
	ID    string
	Truth string
}

// Report is the outcome of Evaluate for one depth.
type Report struct {
	Depth   int
	Rows    int
	Removed []Removed
	Scores  []MethodScore
}

// Methods returns the prediction columns of t under opts.
func Methods(t *table.Table, opts Options) ([]string, error) {
	if len(opts.Methods) > 0 {
		for _, m := range opts.Methods {
			if _, err := t.MustIndex(m); err != nil {
				return nil, err
			}
		}
		return opts.Methods, nil
	}
	return lo.Filter(t.Header, func(h string, _ int) bool {
		return h != opts.IDColumn && h != opts.TruthColumn
	}), nil
}

// Evaluate scores every method column of t at every requested depth.
func Evaluate(t *table.Table, opts Options) ([]Report, error) {
	if _, err := t.MustIndex(opts.TruthColumn); err != nil {
		return nil, err
	}
	methods, err := Methods(t, opts)
	if err != nil {
		return nil, err
	}
	if len(opts.Depths) == 0 {
		opts.Depths = []int{1, 2, 3}
	}
	reports := make([]Report, 0, len(opts.Depths))
	for _, depth := range opts.Depths {
		if depth < 1 || depth > ec.MaxDepth {
			return nil, errs.Newf(errs.ErrCodeECDepthInvalid, "depth %d is out of range [1, %d]", depth, ec.MaxDepth)
		}
		rep, err := evaluateDepth(t, methods, depth, opts)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func evaluateDepth(t *table.Table, methods []string, depth int, opts Options) (Report, error) {
	rep := Report{Depth: depth}

	var kept []int
	for r := range t.Rows {
		truth := t.Get(r, opts.TruthColumn)
		if !ec.HasScorableTruth(truth, depth, opts.ExcludedClasses) {
			rep.Removed = append(rep.Removed, Removed{ID: t.Get(r, opts.IDColumn), Truth: truth})
			continue
		}
		kept = append(kept, r)
	}
	rep.Rows = len(kept)
	if len(kept) == 0 {
		return rep, errs.Newf(errs.ErrCodeNoScorableRows, "no rows with a scorable ground truth at depth %d", depth)
	}

	truths := make([][]string, len(kept))
	for i, r := range kept {
		truths[i] = ec.Labels(t.Get(r, opts.TruthColumn), depth)
	}
	preds := make(map[string][][]string, len(methods))
	for _, m := range methods {
		sets := make([][]string, len(kept))
		for i, r := range kept {
			sets[i] = ec.Labels(t.Get(r, m), depth)
		}
		preds[m] = sets
	}

	labels := labelSpace(truths, preds)
	for _, m := range methods {
		rep.Scores = append(rep.Scores, scoreMethod(m, depth, labels, truths, preds[m]))
	}
	return rep, nil
}

// labelSpace is the sorted union of every truth and prediction label.
func labelSpace(truths [][]string, preds map[string][][]string) []string {
	all := lo.Flatten(truths)
	for _, sets := range preds {
		all = append(all, lo.Flatten(sets)...)
	}
	labels := lo.Uniq(all)
	sort.Strings(labels)
	return labels
}

func scoreMethod(method string, depth int, labels []string, truths, preds [][]string) MethodScore {
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}
	conf := make([]Confusion, len(labels))
	covered := 0
	for row := range truths {
		inTruth := make([]bool, len(labels))
		inPred := make([]bool, len(labels))
		for _, l := range truths[row] {
			inTruth[index[l]] = true
		}
		for _, l := range preds[row] {
			inPred[index[l]] = true
		}
		if len(preds[row]) > 0 {
			covered++
		}
		for i := range labels {
			switch {
			case inTruth[i] && inPred[i]:
				conf[i].TP++
			case inPred[i]:
				conf[i].FP++
			case inTruth[i]:
				conf[i].FN++
			default:
				conf[i].TN++
			}
		}
	}

	mcc := make([]float64, len(labels))
	prec := make([]float64, len(labels))
	rec := make([]float64, len(labels))
	support := make([]int, len(labels))
	for i, c := range conf {
		mcc[i], prec[i], rec[i], support[i] = c.MCC(), c.Precision(), c.Recall(), c.Support()
	}

	score := MethodScore{
		Depth:     depth,
		Method:    method,
		MCC:       weightedAverage(mcc, support),
		Precision: weightedAverage(prec, support),
		Recall:    weightedAverage(rec, support),
		Coverage:  float64(covered) / float64(len(truths)),
		Support:   lo.Sum(support),
		ClassMCC:  make(map[string]float64),
	}

	byClass := lo.GroupBy(lo.Range(len(labels)), func(i int) string {
		return strings.SplitN(labels[i], ".", 2)[0]
	})
	score.Classes = lo.Keys(byClass)
	sortClasses(score.Classes)
	for cls, idx := range byClass {
		score.ClassMCC[cls] = weightedAverage(
			lo.Map(idx, func(i int, _ int) float64 { return mcc[i] }),
			lo.Map(idx, func(i int, _ int) int { return support[i] }),
		)
	}
	return score
}

func sortClasses(classes []string) {
	sort.Slice(classes, func(i, j int) bool {
		a, errA := strconv.Atoi(classes[i])
		b, errB := strconv.Atoi(classes[j])
		if errA == nil && errB == nil && a != b {
			return a < b
		}
		return classes[i] < classes[j]
	})
}

// FormatFloat renders v for the summary table; NaN becomes "".
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SummaryTable renders reports as one row per depth, method and EC class.
func SummaryTable(reports []Report) *table.Table {
	out := table.New(SummaryHeader...)
	for _, rep := range reports {
		for _, s := range rep.Scores {
			for _, cls := range s.Classes {
				out.Append([]string{
					strconv.Itoa(s.Depth),
					s.Method,
					cls,
					FormatFloat(s.ClassMCC[cls]),
					FormatFloat(s.MCC),
					FormatFloat(s.Precision),
					FormatFloat(s.Recall),
					FormatFloat(s.Coverage),
					strconv.Itoa(s.Support),
				})
			}
		}
	}
	return out
}
