package simmer

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// CollectHeader is the layout of the collected SIMMER table.
var CollectHeader = []string{"Reaction name", "SIMMER pred"}

// specificEC reports whether a predicted EC reaches the third level.
func specificEC(v string) bool {
	parts := strings.Split(strings.TrimSpace(v), ".")
	if len(parts) < 3 {
		return false
	}
	switch parts[2] {
	case "", "-", "None":
		return false
	}
	return true
}

// ReactionName is the part of a prediction file name before the first '_'.
func ReactionName(file string) string {
	name, _, _ := strings.Cut(filepath.Base(file), "_")
	return name
}

// Collect gathers every prediction file in dir into one row per reaction
// holding its third level or finer predictions joined by ';'.
func Collect(dir string, log logging.Logger) (*table.Table, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "list SIMMER output").WithDetail(dir)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".tsv") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, errs.New(errs.ErrCodeNotFound, "no SIMMER prediction files").WithDetail(dir)
	}
	sort.Strings(files)

	out := table.New(CollectHeader...)
	for _, f := range files {
		t, err := table.Read(f, table.WithSeparator('\t'))
		if err != nil {
			return nil, err
		}
		col, err := t.Column("EC")
		if err != nil {
			return nil, errs.Wrap(err, errs.ErrCodeColumnNotFound, "SIMMER file without EC column").WithDetail(f)
		}
		var keep []string
		for _, v := range col {
			if specificEC(v) {
				keep = append(keep, strings.TrimSpace(v))
			}
		}
		out.Append([]string{ReactionName(f), strings.Join(keep, ";")})
	}
	log.Info("collected SIMMER predictions", logging.Int("files", len(files)))
	return out, nil
}
