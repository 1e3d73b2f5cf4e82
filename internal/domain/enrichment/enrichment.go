// Package enrichment implements the running-sum enrichment statistics used by
// SIMMER to decide which EC classes are over-represented at the top of a list
// of reactions ranked by similarity to a query.
package enrichment

import (
	"context"
	"math/rand"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	errs "github.com/turtacn/enzbench/pkg/errors"
)

// Placeholder labels. NIL marks a reaction without EC annotation and DM a
// query reaction; neither moves the walk.
const (
	NIL = "NIL"
	DM  = "DM"
)

// Levels are the EC hierarchy columns, coarsest first.
var Levels = []string{"EC1", "EC2", "EC3", "EC4"}

// Ignored reports whether label is a placeholder.
func Ignored(label string) bool {
	return label == NIL || label == DM
}

// LevelLabel truncates an EC string to its first depth dot components.
// Placeholders pass through unchanged.
func LevelLabel(ec string, depth int) string {
	parts := strings.Split(ec, ".")
	if depth < len(parts) {
		parts = parts[:depth]
	}
	return strings.Join(parts, ".")
}

// LevelLabels applies LevelLabel to every entry.
func LevelLabels(ecs []string, depth int) []string {
	out := make([]string, len(ecs))
	for i, e := range ecs {
		out[i] = LevelLabel(e, depth)
	}
	return out
}

// Categories returns the distinct non-placeholder labels in first-seen order.
func Categories(labels []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range labels {
		if Ignored(l) || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// Walk returns the running tally over labels: +1 for category, unchanged for
// placeholders and -1 for anything else.
func Walk(labels []string, category string) []int {
	tally := make([]int, len(labels))
	i := 0
	for k, l := range labels {
		switch {
		case l == category:
			i++
		case Ignored(l):
		default:
			i--
		}
		tally[k] = i
	}
	return tally
}

// Enrichment is the walk summary for one category.
type Enrichment struct {
	Category string
	Max      int
	Where    int
	Score    float64
}

func count(labels []string, category string) int {
	n := 0
	for _, l := range labels {
		if l == category {
			n++
		}
	}
	return n
}

// Score walks labels for category and normalizes the maximum by the number of
// times the category occurs (1 when absent). Where is the first index of the
// maximum. An empty list scores zero at index -1.
func Score(labels []string, category string) Enrichment {
	e := Enrichment{Category: category, Where: -1}
	walk := Walk(labels, category)
	for i, v := range walk {
		if e.Where < 0 || v > e.Max {
			e.Max, e.Where = v, i
		}
	}
	denom := count(labels, category)
	if denom == 0 {
		denom = 1
	}
	e.Score = float64(e.Max) / float64(denom)
	return e
}

// PermutationScores returns n normalized scores of category over shuffled
// copies of labels.
func PermutationScores(labels []string, category string, n int, rng *rand.Rand) []float64 {
	denom := count(labels, category)
	if denom == 0 {
		denom = 1
	}
	shuffled := append([]string(nil), labels...)
	scores := make([]float64, n)
	for k := 0; k < n; k++ {
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		walk := Walk(shuffled, category)
		best := 0
		for i, v := range walk {
			if i == 0 || v > best {
				best = v
			}
		}
		scores[k] = float64(best) / float64(denom)
	}
	return scores
}

// PValueFromNull ranks score within the null distribution with the score
// itself inserted: one plus the number of strictly larger null values, over
// the null size plus one.
func PValueFromNull(score float64, null []float64) float64 {
	greater := 0
	for _, v := range null {
		if v > score {
			greater++
		}
	}
	return float64(greater+1) / float64(len(null)+1)
}

// ExceedanceFraction is the share of permuted scores at least as large as
// score. An empty sample gives 1.
func ExceedanceFraction(score float64, perms []float64) float64 {
	if len(perms) == 0 {
		return 1
	}
	n := 0
	for _, v := range perms {
		if v >= score {
			n++
		}
	}
	return float64(n) / float64(len(perms))
}

// Result is one category at one level.
type Result struct {
	Level  string
	EC     string
	Score  float64
	PValue float64
	Where  int
}

// PValueOptions controls PValues.
type PValueOptions struct {
	Permutations int
	Seed         int64
	Workers      int
}

// PValues scores every category at levels EC1..EC4 of the given EC list and
// estimates its p-value from label permutations. Categories are processed
// concurrently; each draws from its own generator seeded from Seed and its
// position so results do not depend on scheduling.
func PValues(ctx context.Context, ecs []string, opts PValueOptions) ([]Result, error) {
	if opts.Permutations <= 0 {
		return nil, errs.New(errs.ErrCodeValidation, "permutations must be positive")
	}
	type job struct {
		level  string
		labels []string
		cat    string
	}
	var jobs []job
	for d, level := range Levels {
		labels := LevelLabels(ecs, d+1)
		for _, cat := range Categories(labels) {
			jobs = append(jobs, job{level: level, labels: labels, cat: cat})
		}
	}

	results := make([]Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(opts.Seed + int64(i)))
			e := Score(j.labels, j.cat)
			perms := PermutationScores(j.labels, j.cat, opts.Permutations, rng)
			results[i] = Result{
				Level:  j.level,
				EC:     j.cat,
				Score:  e.Score,
				PValue: ExceedanceFraction(e.Score, perms),
				Where:  e.Where,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ExplodeAlternatives splits every '|' separated entry into its trimmed
// alternatives.
func ExplodeAlternatives(ecs []string) []string {
	var out []string
	for _, e := range ecs {
		for _, alt := range strings.Split(e, "|") {
			out = append(out, strings.TrimSpace(alt))
		}
	}
	return out
}

// RepresentativeCategories returns the most frequent non-placeholder label at
// each level, ties going to the lexically smallest. Levels without any label
// are empty.
func RepresentativeCategories(ecs []string) []string {
	reps := make([]string, len(Levels))
	for d := range Levels {
		counts := make(map[string]int)
		for _, l := range LevelLabels(ecs, d+1) {
			if !Ignored(l) {
				counts[l]++
			}
		}
		cats := make([]string, 0, len(counts))
		for c := range counts {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		for _, c := range cats {
			if reps[d] == "" || counts[c] > counts[reps[d]] {
				reps[d] = c
			}
		}
	}
	return reps
}

// Null holds per-level permutation scores of the representative categories.
type Null map[string][]float64

// NullTable builds the permutation null from a reaction EC list: alternatives
// are exploded, a representative category is chosen per level and its
// normalized score is computed over n shuffles.
func NullTable(ecs []string, n int, rng *rand.Rand) Null {
	exploded := ExplodeAlternatives(ecs)
	reps := RepresentativeCategories(exploded)
	labels := make([][]string, len(Levels))
	for d := range Levels {
		labels[d] = LevelLabels(exploded, d+1)
	}
	null := make(Null, len(Levels))
	for k := 0; k < n; k++ {
		for d, level := range Levels {
			if reps[d] == "" {
				continue
			}
			null[level] = append(null[level], PermutationScores(labels[d], reps[d], 1, rng)[0])
		}
	}
	return null
}
