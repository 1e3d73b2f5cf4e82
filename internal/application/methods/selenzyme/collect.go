package selenzyme

import (
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// Result table columns.
const (
	DefaultECColumn = "EC Number"
	ColSim          = "Rxn Sim."
	ColSimRF        = "Rxn Sim RF."
)

// CollectHeader is the layout of the collected Selenzyme table.
var CollectHeader = []string{"Reaction", "All ECs"}

var reactionNumber = regexp.MustCompile(`R(\d+)`)

// CombinedScore merges the two similarity scores: their mean when both are
// positive, otherwise whichever is positive, otherwise 0.
func CombinedScore(sim, simRF float64) float64 {
	switch {
	case sim > 0 && simRF > 0:
		return 0.5*sim + 0.5*simRF
	case sim > 0:
		return sim
	case simRF > 0:
		return simRF
	}
	return 0
}

// ECGroup normalises one EC cell: its ';' separated entries sorted, unique
// and joined by '|'. Empty cells and "-" give "".
func ECGroup(cell string) string {
	cell = strings.TrimSpace(cell)
	if cell == "" || cell == "-" {
		return ""
	}
	var ecs []string
	for _, e := range strings.Split(cell, ";") {
		if e = strings.TrimSpace(e); e != "" {
			ecs = append(ecs, e)
		}
	}
	ecs = lo.Uniq(ecs)
	sort.Strings(ecs)
	return strings.Join(ecs, "|")
}

func score(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) {
		return 0
	}
	return f
}

// RankECs orders the rows of one result table by combined score, highest
// first with ties in file order, and returns the distinct non-empty EC
// groups in that order joined by ';'.
func RankECs(t *table.Table, ecColumn string) (string, error) {
	if _, err := t.MustIndex(ecColumn); err != nil {
		return "", err
	}
	order := make([]int, t.Len())
	scores := make([]float64, t.Len())
	for r := range t.Rows {
		order[r] = r
		scores[r] = CombinedScore(score(t.Get(r, ColSim)), score(t.Get(r, ColSimRF)))
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	var groups []string
	seen := map[string]bool{}
	for _, r := range order {
		g := ECGroup(t.Get(r, ecColumn))
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		groups = append(groups, g)
	}
	return strings.Join(groups, ";"), nil
}

// resultFiles lists the CSV files in dir ordered by the number following
// 'R' in their names. Files without such a number come last by name.
func resultFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "list Selenzyme results").WithDetail(dir)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			files = append(files, e.Name())
		}
	}
	number := func(name string) (int, bool) {
		m := reactionNumber.FindStringSubmatch(name)
		if m == nil {
			return 0, false
		}
		n, err := strconv.Atoi(m[1])
		return n, err == nil
	}
	sort.SliceStable(files, func(i, j int) bool {
		ni, oki := number(files[i])
		nj, okj := number(files[j])
		switch {
		case oki && okj && ni != nj:
			return ni < nj
		case oki != okj:
			return oki
		}
		return files[i] < files[j]
	})
	for i, f := range files {
		files[i] = filepath.Join(dir, f)
	}
	return files, nil
}

// Collect aggregates every result table in dir into one row per reaction.
// Tables without the EC column yield an empty prediction.
func Collect(dir, ecColumn string, log logging.Logger) (*table.Table, error) {
	if ecColumn == "" {
		ecColumn = DefaultECColumn
	}
	files, err := resultFiles(dir)
	if err != nil {
		return nil, err
	}
	out := table.New(CollectHeader...)
	for _, f := range files {
		reaction := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		t, err := table.Read(f, table.WithSeparator(','), table.WithTrimmedHeader())
		if err != nil {
			return nil, err
		}
		ecs, err := RankECs(t, ecColumn)
		if err != nil {
			log.Warn("no EC column in Selenzyme result", logging.String("file", f))
		}
		out.Append([]string{reaction, ecs})
	}
	log.Info("collected Selenzyme results", logging.Int("files", len(files)))
	return out, nil
}
