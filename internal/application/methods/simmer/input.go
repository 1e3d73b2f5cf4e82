// Package simmer prepares SIMMER inputs, builds its similarity database,
// runs the enrichment based EC prediction and collects the per query output.
package simmer

import (
	"strings"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
)

// Query table columns.
const (
	ColReaction    = "reaction"
	ColLeftComp    = "left_comp"
	ColRightComp   = "right_comp"
	ColLeftSMILES  = "left_smiles"
	ColRightSMILES = "right_smiles"
)

// QueryHeader is the column layout of a SIMMER query file.
var QueryHeader = []string{ColReaction, ColLeftComp, ColRightComp, ColLeftSMILES, ColRightSMILES}

// InputOptions names the dataset columns read by PrepareInput.
type InputOptions struct {
	IDColumn     string
	NamesColumn  string
	SMILESColumn string
	ECColumn     string
	// ReactionSep separates substrate and product names.
	ReactionSep string
	IncludeEC   bool
}

func (o *InputOptions) defaults() {
	if o.IDColumn == "" {
		o.IDColumn = "reaction_id"
	}
	if o.NamesColumn == "" {
		o.NamesColumn = "substrates_products"
	}
	if o.SMILESColumn == "" {
		o.SMILESColumn = "reaction_smiles"
	}
	if o.ECColumn == "" {
		o.ECColumn = "EC_number"
	}
	if o.ReactionSep == "" {
		o.ReactionSep = ">>"
	}
}

func compoundNames(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ".", "//")
	s = strings.ReplaceAll(s, `"`, "")
	return strings.TrimSpace(s)
}

// PrepareInput converts a reaction dataset into SIMMER's five column query
// layout. Rows without both sides in the names or SMILES column, or with any
// empty output field, are skipped.
func PrepareInput(src *table.Table, opts InputOptions, log logging.Logger) (*table.Table, error) {
	opts.defaults()
	cols := []string{opts.IDColumn, opts.NamesColumn, opts.SMILESColumn}
	if opts.IncludeEC {
		cols = append(cols, opts.ECColumn)
	}
	for _, c := range cols {
		if _, err := src.MustIndex(c); err != nil {
			return nil, err
		}
	}

	header := append([]string(nil), QueryHeader...)
	if opts.IncludeEC {
		header = append(header, opts.ECColumn)
	}
	out := table.New(header...)
	for r := range src.Rows {
		id := src.Get(r, opts.IDColumn)
		names := strings.Split(src.Get(r, opts.NamesColumn), opts.ReactionSep)
		smiles := strings.Split(src.Get(r, opts.SMILESColumn), ">>")
		if len(names) < 2 || len(smiles) != 2 {
			log.Warn("skipping reaction with malformed sides", logging.String("reaction", id))
			continue
		}
		row := []string{
			id,
			compoundNames(names[0]),
			compoundNames(names[1]),
			strings.TrimSpace(smiles[0]),
			strings.TrimSpace(smiles[1]),
		}
		empty := false
		for _, v := range row[1:] {
			if v == "" {
				empty = true
			}
		}
		if empty {
			log.Debug("skipping reaction with empty field", logging.String("reaction", id))
			continue
		}
		if opts.IncludeEC {
			row = append(row, src.Get(r, opts.ECColumn))
		}
		out.Append(row)
	}
	return out, nil
}
