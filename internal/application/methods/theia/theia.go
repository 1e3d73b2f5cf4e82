// Package theia runs the Theia command line predictor over a query file and
// normalises its probability output into ranked EC predictions.
package theia

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// PredictionColumn holds the raw or normalised Theia output.
const PredictionColumn = "Prediction"

// ErrorPrefix marks a query the predictor failed on.
const ErrorPrefix = "Error: "

// Runner executes a command and returns its standard output and error.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands on the host.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Options configures Query.
type Options struct {
	Binary      string
	Model       string
	IDColumn    string
	Concurrency int
}

// ReadQueries returns the non-empty trimmed lines of a query file.
func ReadQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "open query file").WithDetail(path)
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			out = append(out, l)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "read query file").WithDetail(path)
	}
	return out, nil
}

// Query runs the predictor once per query and pairs each output with the id
// at the same position of ids. A failed run is recorded as ErrorPrefix
// followed by its standard error. A missing binary fails the whole query.
func Query(ctx context.Context, runner Runner, queries, ids []string, opts Options, log logging.Logger) (*table.Table, error) {
	if len(queries) != len(ids) {
		return nil, errs.Newf(errs.ErrCodeRowMismatch, "%d queries for %d reaction ids", len(queries), len(ids))
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	preds := make([]string, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			stdout, stderr, err := runner.Run(gctx, opts.Binary, opts.Model, q, "--probs")
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				if errors.Is(err, exec.ErrNotFound) {
					return errs.Wrap(err, errs.ErrCodeToolUnavailable, "theia binary not found").WithDetail(opts.Binary)
				}
				log.Warn("Theia query failed", logging.String("reaction", ids[i]), logging.Err(err))
				preds[i] = ErrorPrefix + strings.TrimSpace(string(stderr))
				return nil
			}
			preds[i] = strings.TrimSpace(string(stdout))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := table.New(opts.IDColumn, PredictionColumn)
	for i, id := range ids {
		out.Append([]string{id, preds[i]})
	}
	return out, nil
}

// Scored is one EC with its probability.
type Scored struct {
	EC   string
	Prob float64
}

// ParseProbabilities reads predictor output either as a JSON style object
// mapping EC to probability, with single or double quotes, or as lines of
// "EC probability". The result is sorted by probability, highest first, with
// ties in EC order.
func ParseProbabilities(output string) ([]Scored, error) {
	output = strings.TrimSpace(output)
	if output == "" || strings.HasPrefix(output, ErrorPrefix) {
		return nil, nil
	}
	var out []Scored
	if strings.HasPrefix(output, "{") {
		m := map[string]float64{}
		if err := json.Unmarshal([]byte(strings.ReplaceAll(output, "'", `"`)), &m); err != nil {
			return nil, errs.Wrap(err, errs.ErrCodeToolParseError, "parse Theia probabilities")
		}
		for ec, p := range m {
			out = append(out, Scored{EC: cleanEC(ec), Prob: p})
		}
	} else {
		for _, line := range strings.Split(output, "\n") {
			fields := strings.FieldsFunc(line, func(r rune) bool {
				return r == ' ' || r == '\t' || r == ','
			})
			if len(fields) == 0 {
				continue
			}
			if len(fields) < 2 {
				return nil, errs.New(errs.ErrCodeToolParseError, "malformed Theia line").WithDetail(line)
			}
			p, err := strconv.ParseFloat(fields[len(fields)-1], 64)
			if err != nil {
				return nil, errs.Wrap(err, errs.ErrCodeToolParseError, "parse Theia probability").WithDetail(line)
			}
			out = append(out, Scored{EC: cleanEC(fields[0]), Prob: p})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Prob != out[j].Prob {
			return out[i].Prob > out[j].Prob
		}
		return out[i].EC < out[j].EC
	})
	return out, nil
}

func cleanEC(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "EC:")
	return strings.TrimSpace(s)
}

// Normalize turns raw predictor output into ranked ECs joined by ';'.
func Normalize(output string) (string, error) {
	scored, err := ParseProbabilities(output)
	if err != nil {
		return "", err
	}
	ecs := make([]string, len(scored))
	for i, s := range scored {
		ecs[i] = s.EC
	}
	return strings.Join(ecs, ";"), nil
}

// Collect normalises the prediction column of a Query result. Rows whose
// output cannot be parsed get an empty prediction.
func Collect(t *table.Table, idColumn string, log logging.Logger) (*table.Table, error) {
	if _, err := t.MustIndex(idColumn); err != nil {
		return nil, err
	}
	if _, err := t.MustIndex(PredictionColumn); err != nil {
		return nil, err
	}
	out := table.New(idColumn, PredictionColumn)
	for r := range t.Rows {
		pred, err := Normalize(t.Get(r, PredictionColumn))
		if err != nil {
			log.Warn("unparseable Theia output", logging.String("reaction", t.Get(r, idColumn)), logging.Err(err))
		}
		out.Append([]string{t.Get(r, idColumn), pred})
	}
	return out, nil
}
