// Package vote computes consensus EC predictions across prediction methods.
package vote

import (
	"strings"

	"github.com/samber/lo"

	"github.com/turtacn/enzbench/internal/domain/ec"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// Output column names.
const (
	ColumnEntity = "entity"
	ColumnTop1   = "majority_vote_top1"
	ColumnTop5   = "majority_vote_top5"
)

// Result is the consensus for one entity. Empty strings mean no vote.
type Result struct {
	Entity string
	Top1   string
	Top5   string
}

// Voter collapses method predictions to Depth and votes over them.
type Voter struct {
	Depth int
	TopK  int
}

// NewVoter returns a Voter. Non-positive arguments fall back to depth 3 and
// top 5.
func NewVoter(depth, topK int) *Voter {
	if depth <= 0 {
		depth = 3
	}
	if topK <= 0 {
		topK = 5
	}
	return &Voter{Depth: depth, TopK: topK}
}

// tally counts votes and remembers first-seen order so that ties resolve to
// the earliest candidate.
type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(label string, weight int) {
	if _, ok := t.counts[label]; !ok {
		t.order = append(t.order, label)
	}
	t.counts[label] += weight
}

func (t *tally) winner() string {
	best, bestCount := "", 0
	for _, label := range t.order {
		if c := t.counts[label]; c > bestCount {
			best, bestCount = label, c
		}
	}
	return best
}

// Vote returns the top-1 and weighted top-k consensus over one prediction
// string per method, in method order.
//
// Top-1 counts every alternative of each method's first group once. Top-k
// flattens each method's first TopK ECs and weights rank r (0-based) by
// max(TopK-r, 1).
func (v *Voter) Vote(predictions []string) (top1, topK string) {
	t1, tk := newTally(), newTally()
	for _, raw := range predictions {
		p := ec.ParsePrediction(raw).Collapse(v.Depth)
		for _, label := range p.Top1() {
			t1.add(label, 1)
		}
		for rank, label := range p.TopK(v.TopK) {
			tk.add(label, lo.Max([]int{v.TopK - rank, 1}))
		}
	}
	return t1.winner(), tk.winner()
}

// SelectMethods picks the method columns of header. With useAll every column
// except idCol, "reaction" and "rxn" (case-insensitive) is used; otherwise the
// requested columns that exist are used, in request order.
func SelectMethods(header []string, idCol string, requested []string, useAll bool) ([]string, error) {
	excluded := map[string]struct{}{strings.ToLower(idCol): {}, "reaction": {}, "rxn": {}}
	candidates := lo.Filter(header, func(h string, _ int) bool {
		_, skip := excluded[strings.ToLower(h)]
		return !skip
	})

	var methods []string
	switch {
	case useAll:
		methods = candidates
	case len(requested) > 0:
		methods = lo.Filter(requested, func(m string, _ int) bool { return lo.Contains(candidates, m) })
	default:
		return nil, errs.InvalidParam("no methods provided; pass method columns or use all columns")
	}
	if len(methods) == 0 {
		return nil, errs.InvalidParam("no valid method columns found").WithDetail(strings.Join(requested, ", "))
	}
	return methods, nil
}

func (v *Voter) voteRow(t *table.Table, r int, methods []string) (string, string) {
	preds := make([]string, len(methods))
	for i, m := range methods {
		preds[i] = t.Get(r, m)
	}
	return v.Vote(preds)
}

// VoteAll votes every row of t and returns a table with the columns
// idCol, majority_vote_top1 and majority_vote_top5.
func (v *Voter) VoteAll(t *table.Table, idCol string, methods []string) (*table.Table, error) {
	idx, err := t.MustIndex(idCol)
	if err != nil {
		return nil, err
	}
	out := table.New(idCol, ColumnTop1, ColumnTop5)
	for r, row := range t.Rows {
		top1, topK := v.voteRow(t, r, methods)
		out.Append([]string{row[idx], top1, topK})
	}
	return out, nil
}

// VoteEntity votes the first row whose idCol matches entity case-insensitively.
func (v *Voter) VoteEntity(t *table.Table, idCol, entity string, methods []string) (Result, error) {
	idx, err := t.MustIndex(idCol)
	if err != nil {
		return Result{}, err
	}
	for r, row := range t.Rows {
		if strings.EqualFold(row[idx], entity) {
			top1, topK := v.voteRow(t, r, methods)
			return Result{Entity: row[idx], Top1: top1, Top5: topK}, nil
		}
	}
	return Result{}, errs.NotFound("no data found for entity").WithDetail(entity)
}
