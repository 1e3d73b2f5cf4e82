// Package selenzyme drives a Selenzyme server: it filters the reference
// database against a test set, submits reactions through the web form and
// aggregates the ranked enzyme tables it returns.
package selenzyme

import (
	"os"
	"path/filepath"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// ReadTestIDs returns the set of values in column of the test reaction file.
func ReadTestIDs(path, column string) (map[string]bool, error) {
	t, err := table.Read(path)
	if err != nil {
		return nil, err
	}
	col, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(col))
	for _, id := range col {
		ids[id] = true
	}
	return ids, nil
}

// FilterDatabase copies every database file into outDir without the rows
// whose first column is one of the test ids. Each file keeps its separator.
// It returns the number of rows removed per file.
func FilterDatabase(files []string, testIDs map[string]bool, outDir string, log logging.Logger) (map[string]int, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "create output directory").WithDetail(outDir)
	}
	removed := make(map[string]int, len(files))
	for _, f := range files {
		sep := table.SeparatorFor(f)
		t, err := table.Read(f, table.WithSeparator(sep))
		if err != nil {
			return nil, err
		}
		kept := t.Filter(func(row []string) bool {
			return len(row) == 0 || !testIDs[row[0]]
		})
		out := filepath.Join(outDir, filepath.Base(f))
		if err := kept.WriteSep(out, sep); err != nil {
			return nil, err
		}
		removed[filepath.Base(f)] = t.Len() - kept.Len()
		log.Info("filtered database file",
			logging.String("file", f),
			logging.String("output", out),
			logging.Int("removed", t.Len()-kept.Len()))
	}
	return removed, nil
}
