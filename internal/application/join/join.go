// Package join merges the per-tool prediction tables into one wide table keyed
// by reaction identifier, with the ground truth attached.
package join

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/turtacn/enzbench/internal/domain/ec"
	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// DefaultIDColumn is the join key when none is given.
const DefaultIDColumn = "reaction_id"

// Input describes a merge job.
type Input struct {
	// Dir holds one CSV per tool.
	Dir      string
	IDColumn string
	// Prefix renames every non-key column to "<file stem>_<column>".
	Prefix bool
	// TruthPath is optional. Its first column is the key.
	TruthPath   string
	TruthColumn string
	// TruthRename renames the truth column in the output when set.
	TruthRename string
}

// Result summarises a merge.
type Result struct {
	Table      *table.Table
	Files      []string
	Duplicates int
}

// Merge reads every *.csv in in.Dir in name order and outer joins them.
func Merge(in Input, log logging.Logger) (*Result, error) {
	if in.IDColumn == "" {
		in.IDColumn = DefaultIDColumn
	}
	files, err := csvFiles(in.Dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errs.New(errs.ErrCodeNotFound, "no CSV files to merge").WithDetail(in.Dir)
	}

	res := &Result{Files: files}
	var tables []*table.Table
	for _, f := range files {
		t, err := table.Read(f, table.WithSeparator(','))
		if err != nil {
			return nil, err
		}
		if len(t.Header) == 0 {
			log.Warn("skipping empty table", logging.String("file", f))
			continue
		}
		t.Header[0] = in.IDColumn
		if in.Prefix {
			stem := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
			for i := 1; i < len(t.Header); i++ {
				t.Header[i] = stem + "_" + t.Header[i]
			}
		}
		tables = append(tables, t)
		log.Debug("loaded tool table", logging.String("file", f), logging.Int("rows", t.Len()))
	}

	merged, dups := OuterJoin(tables, in.IDColumn)
	res.Duplicates = dups
	CleanMissing(merged, in.IDColumn)

	if in.TruthPath != "" {
		truth, err := readTruth(in)
		if err != nil {
			return nil, err
		}
		var d int
		merged, d = OuterJoin([]*table.Table{merged, truth}, in.IDColumn)
		res.Duplicates += d
	}
	if res.Duplicates > 0 {
		log.Warn("duplicate ids ignored, first occurrence kept", logging.Int("duplicates", res.Duplicates))
	}
	res.Table = merged
	return res, nil
}

func csvFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "list result directory").WithDetail(dir)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func readTruth(in Input) (*table.Table, error) {
	t, err := table.Read(in.TruthPath)
	if err != nil {
		return nil, err
	}
	if len(t.Header) == 0 {
		return nil, errs.New(errs.ErrCodeTableRead, "empty truth table").WithDetail(in.TruthPath)
	}
	t.Header[0] = in.IDColumn
	if in.TruthColumn == in.IDColumn {
		return nil, errs.New(errs.ErrCodeValidation, "truth column must differ from the id column")
	}
	truth, err := t.Select(in.IDColumn, in.TruthColumn)
	if err != nil {
		return nil, err
	}
	CleanMissing(truth, in.IDColumn)
	if in.TruthRename != "" {
		truth.Header[1] = in.TruthRename
	}
	return truth, nil
}

// CleanMissing blanks every sentinel value outside the key column.
func CleanMissing(t *table.Table, idColumn string) {
	key := t.Index(idColumn)
	for _, row := range t.Rows {
		for i := range row {
			if i != key {
				row[i] = ec.Clean(row[i])
			}
		}
	}
}

// OuterJoin joins tables on idColumn. Rows are sorted by id; a table that
// lacks an id leaves its columns empty. Within one table only the first row
// of a repeated id is kept; the number of ignored rows is returned. Column
// names that collide with an earlier table get a numeric suffix.
func OuterJoin(tables []*table.Table, idColumn string) (*table.Table, int) {
	header := []string{idColumn}
	taken := map[string]bool{idColumn: true}
	type source struct {
		t    *table.Table
		key  int
		cols []int
		byID map[string]int
	}
	var sources []source
	ids := map[string]bool{}
	dups := 0

	for _, t := range tables {
		key := t.Index(idColumn)
		if key < 0 {
			continue
		}
		s := source{t: t, key: key, byID: map[string]int{}}
		for i, h := range t.Header {
			if i == key {
				continue
			}
			name := h
			for n := 2; taken[name]; n++ {
				name = h + "_" + strconv.Itoa(n)
			}
			taken[name] = true
			header = append(header, name)
			s.cols = append(s.cols, i)
		}
		for r, row := range t.Rows {
			id := row[key]
			if _, seen := s.byID[id]; seen {
				dups++
				continue
			}
			s.byID[id] = r
			ids[id] = true
		}
		sources = append(sources, s)
	}

	out := table.New(header...)
	keys := lo.Keys(ids)
	sort.Strings(keys)
	for _, id := range keys {
		row := make([]string, 0, len(header))
		row = append(row, id)
		for _, s := range sources {
			r, ok := s.byID[id]
			for _, c := range s.cols {
				if ok {
					row = append(row, s.t.Rows[r][c])
				} else {
					row = append(row, "")
				}
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out, dups
}
