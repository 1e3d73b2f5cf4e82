package simmer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/enzbench/internal/domain/enrichment"
	"github.com/turtacn/enzbench/internal/domain/reaction"
	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// PredictionHeader is the layout of a per query prediction file.
var PredictionHeader = []string{"EC", "enrich_score", "p_val", "where"}

// PredictionSuffix is appended to the query id to name its output file.
const PredictionSuffix = "_EC_predictions.tsv"

// PredictOptions configures Predict.
type PredictOptions struct {
	OutDir  string
	Alpha   float64
	Bins    int
	Workers int
	// Overwrite recomputes queries whose output file already exists.
	Overwrite bool
}

// QueryResult reports what happened to one query.
type QueryResult struct {
	Reaction string
	Path     string
	Skipped  bool
	Message  string
	ECs      []string
}

// Query is one row of a query file.
type Query struct {
	Reaction    string
	LeftSMILES  string
	RightSMILES string
}

// ReadQueries reads the five column query layout by position.
func ReadQueries(t *table.Table) ([]Query, error) {
	if len(t.Header) < len(QueryHeader) {
		return nil, errs.Newf(errs.ErrCodeValidation, "query table needs %d columns, has %d", len(QueryHeader), len(t.Header))
	}
	out := make([]Query, 0, t.Len())
	for _, row := range t.Rows {
		if len(row) < len(QueryHeader) {
			continue
		}
		out = append(out, Query{
			Reaction:    strings.TrimSpace(row[0]),
			LeftSMILES:  strings.TrimSpace(row[3]),
			RightSMILES: strings.TrimSpace(row[4]),
		})
	}
	return out, nil
}

// PredictionPath is where the predictions of reaction id are written.
func PredictionPath(dir, id string) string {
	return filepath.Join(dir, id+PredictionSuffix)
}

// Predict ranks the database reactions for every query and writes the
// hierarchical enrichment prediction of each one. Queries and database
// reactions are compared through their similarity profiles: each profile
// holds the Tanimoto similarity to every database reaction followed by the
// similarity to every query, and reactions are ranked by the euclidean
// distance between profiles. Queries never appear in a ranked list.
func Predict(ctx context.Context, db *Database, queries []Query, opts PredictOptions, log logging.Logger) ([]QueryResult, error) {
	if opts.Bins <= 0 {
		opts.Bins = reaction.DefaultBins
	}
	if opts.Alpha <= 0 {
		opts.Alpha = enrichment.DefaultAlpha
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if db == nil || db.Len() == 0 {
		return nil, errs.New(errs.ErrCodeValidation, "empty SIMMER database")
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "create output directory").WithDetail(opts.OutDir)
	}

	// Every parseable query takes part in the profiles, whether or not its
	// output is written, so a resumed run ranks like a fresh one.
	results := make([]QueryResult, len(queries))
	var parsed []int
	var fps [][]int
	write := 0
	for i, q := range queries {
		results[i] = QueryResult{Reaction: q.Reaction, Path: PredictionPath(opts.OutDir, q.Reaction)}
		fp, err := reaction.DifferenceFingerprint(q.LeftSMILES+reaction.Separator+q.RightSMILES, opts.Bins)
		if err != nil {
			log.Warn("skipping query without fingerprint", logging.String("reaction", q.Reaction), logging.Err(err))
			results[i].Skipped = true
			results[i].Message = err.Error()
			continue
		}
		parsed = append(parsed, i)
		fps = append(fps, fp)
		if !opts.Overwrite {
			if _, err := os.Stat(results[i].Path); err == nil {
				results[i].Skipped = true
				results[i].Message = "output exists"
				continue
			}
		}
		write++
	}
	if write == 0 {
		return results, nil
	}

	toDB, err := SimilarityMatrix(ctx, fps, db.Fingerprints, opts.Workers)
	if err != nil {
		return nil, err
	}
	toQueries, err := SimilarityMatrix(ctx, fps, fps, opts.Workers)
	if err != nil {
		return nil, err
	}
	profiles := extendedProfiles(db, toDB, toQueries)
	labels := make([]string, db.Len())
	for i, e := range db.ECs {
		if strings.TrimSpace(e) == "" {
			e = enrichment.NIL
		}
		labels[i] = e
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for k, i := range parsed {
		if results[i].Skipped {
			continue
		}
		k, i := k, i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			query := profiles[db.Len()+k]
			order := RankByDistance(query, profiles[:db.Len()])
			ranked := make([]string, len(order))
			for r, idx := range order {
				ranked[r] = labels[idx]
			}
			pred := enrichment.PredictHierarchical(ranked, db.Null, opts.Alpha)
			if err := PredictionTable(pred).WriteSep(results[i].Path, '\t'); err != nil {
				return err
			}
			results[i].Message = pred.Message
			results[i].ECs = pred.ECs()
			log.Debug("SIMMER prediction written",
				logging.String("reaction", results[i].Reaction),
				logging.String("message", pred.Message),
				logging.Int("significant", len(pred.Results)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Info("SIMMER predictions complete", logging.Int("queries", len(queries)), logging.Int("computed", write))
	return results, nil
}

// extendedProfiles returns one row per database reaction followed by one row
// per query, each with n+q similarity entries.
func extendedProfiles(db *Database, toDB, toQueries [][]float64) [][]float64 {
	n, q := db.Len(), len(toDB)
	out := make([][]float64, 0, n+q)
	for i := 0; i < n; i++ {
		row := make([]float64, 0, n+q)
		row = append(row, db.Tanimoto[i]...)
		for k := 0; k < q; k++ {
			row = append(row, toDB[k][i])
		}
		out = append(out, row)
	}
	for k := 0; k < q; k++ {
		row := make([]float64, 0, n+q)
		row = append(row, toDB[k]...)
		row = append(row, toQueries[k]...)
		out = append(out, row)
	}
	return out
}

// RankByDistance returns the indexes of rows ordered by euclidean distance to
// query, nearest first. Ties keep index order.
func RankByDistance(query []float64, rows [][]float64) []int {
	dist := make([]float64, len(rows))
	order := make([]int, len(rows))
	for i, r := range rows {
		dist[i] = reaction.Euclidean(query, r)
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return dist[order[a]] < dist[order[b]] })
	return order
}

// PredictionTable renders a prediction in the per query file layout.
func PredictionTable(p enrichment.Prediction) *table.Table {
	t := table.New(PredictionHeader...)
	for _, r := range p.Results {
		t.Append([]string{r.EC, formatFloat(r.Score), formatFloat(r.PValue), strconv.Itoa(r.Where)})
	}
	return t
}
