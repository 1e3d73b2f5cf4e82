package bridgit

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// DefaultECColumn is the BridgIT result column holding EC predictions.
const DefaultECColumn = "reactionsA/ECA"

// PredictedColumn names the collected prediction column.
const PredictedColumn = "EC_number_predicted"

// CollectOptions configures CollectResults.
type CollectOptions struct {
	ResultsDir string
	ECColumn   string
	// Reference is the dataset the predictions are matched against; only
	// reactions present in its RefIDColumn are kept.
	Reference   *table.Table
	RefIDColumn string
}

// Prediction is the parsed content of one result file.
type Prediction struct {
	Reaction string
	ECs      string
}

// ExtractECs reads BridgIT EC cells of the form "a/b/EC1,EC2;" and returns
// the ECs joined by ';', keeping only the first EC of every third level
// prefix.
func ExtractECs(values []string) string {
	seen := map[string]bool{}
	var out []string
	for _, v := range values {
		s := strings.Trim(strings.TrimSpace(v), ";")
		parts := strings.Split(s, "/")
		if len(parts) < 3 {
			continue
		}
		for _, e := range strings.Split(strings.TrimSpace(parts[2]), ",") {
			e = strings.TrimSpace(e)
			if e == "" {
				continue
			}
			prefix := strings.Join(firstN(strings.Split(e, "."), 3), ".")
			if seen[prefix] {
				continue
			}
			seen[prefix] = true
			out = append(out, e)
		}
	}
	return strings.Join(out, ";")
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// ResultReaction derives the reaction id from a result file name: the fourth
// '_' separated token when present, else the name without extension, cut at
// the first '.'.
func ResultReaction(name string) string {
	name = path.Base(filepath.ToSlash(name))
	parts := strings.Split(name, "_")
	r := name
	if len(parts) >= 4 {
		r = parts[3]
	}
	before, _, _ := strings.Cut(r, ".")
	return before
}

// ReadArchive parses every .txt member of a result archive.
func ReadArchive(zipPath, ecColumn string, log logging.Logger) ([]Prediction, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeToolParseError, "open BridgIT archive").WithDetail(zipPath)
	}
	defer zr.Close()

	var out []Prediction
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, ".txt") {
			continue
		}
		p := Prediction{Reaction: ResultReaction(f.Name)}
		rc, err := f.Open()
		if err != nil {
			return nil, errs.Wrap(err, errs.ErrCodeToolParseError, "open archive member").WithDetail(f.Name)
		}
		t, perr := table.Parse(rc, table.WithSeparator('\t'))
		rc.Close()
		switch {
		case perr != nil:
			log.Warn("unreadable BridgIT result", logging.String("file", f.Name), logging.Err(perr))
		case !t.Has(ecColumn) || t.Len() == 0:
			log.Warn("BridgIT result without predictions", logging.String("file", f.Name), logging.Strings("columns", t.Header))
		default:
			col, _ := t.Column(ecColumn)
			p.ECs = ExtractECs(col)
		}
		out = append(out, p)
	}
	return out, nil
}

// CollectResults reads every result archive in opts.ResultsDir and keeps the
// predictions of reactions present in the reference table, without
// duplicates.
func CollectResults(opts CollectOptions, log logging.Logger) (*table.Table, error) {
	if opts.ECColumn == "" {
		opts.ECColumn = DefaultECColumn
	}
	if opts.Reference == nil {
		return nil, errs.New(errs.ErrCodeValidation, "reference table is required")
	}
	refIDs, err := opts.Reference.Column(opts.RefIDColumn)
	if err != nil {
		return nil, err
	}
	known := map[string]bool{}
	for _, id := range refIDs {
		known[id] = true
	}

	entries, err := os.ReadDir(opts.ResultsDir)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "list BridgIT results").WithDetail(opts.ResultsDir)
	}
	var archives []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".zip") {
			archives = append(archives, filepath.Join(opts.ResultsDir, e.Name()))
		}
	}
	sort.Strings(archives)

	out := table.New(opts.RefIDColumn, PredictedColumn)
	seen := map[Prediction]bool{}
	unmatched := 0
	for _, a := range archives {
		preds, err := ReadArchive(a, opts.ECColumn, log)
		if err != nil {
			return nil, err
		}
		for _, p := range preds {
			if !known[p.Reaction] {
				unmatched++
				continue
			}
			if seen[p] {
				continue
			}
			seen[p] = true
			out.Append([]string{p.Reaction, p.ECs})
		}
	}
	log.Info("collected BridgIT results",
		logging.Int("archives", len(archives)),
		logging.Int("rows", out.Len()),
		logging.Int("unmatched", unmatched))
	return out, nil
}
