// Package bridgit prepares BridgIT system files and molfile batches and reads
// back the result archives returned by the BridgIT server.
package bridgit

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/enzbench/internal/domain/reaction"
	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// System file headers.
const (
	KEGGHeader   = "ENTRY;KEGG;EQUATION;OPERATORS"
	SMILESHeader = "ENTRY;REACTION;"
)

// MolfileSource downloads compound structures. scrape.KEGG implements it.
type MolfileSource interface {
	GetMolfile(ctx context.Context, id string) ([]byte, error)
}

// KEGGOptions configures PrepareKEGG.
type KEGGOptions struct {
	EquationColumn string
	MolfileDir     string
	// Delay is waited after each download.
	Delay time.Duration
}

// KEGGResult summarises PrepareKEGG.
type KEGGResult struct {
	Entries    []string
	Saved      []string
	Failed     []string
	Unexpected []string
}

// PrepareKEGG formats every KEGG equation of src as a BridgIT system file
// entry numbered from 1 and downloads the molfile of each compound it
// mentions. Compounds whose molfile is already on disk are not fetched again.
func PrepareKEGG(ctx context.Context, src *table.Table, source MolfileSource, opts KEGGOptions, log logging.Logger) (*KEGGResult, error) {
	if opts.EquationColumn == "" {
		opts.EquationColumn = "Equation"
	}
	col, err := src.Column(opts.EquationColumn)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.MolfileDir, 0o755); err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "create molfile directory").WithDetail(opts.MolfileDir)
	}

	res := &KEGGResult{}
	done := map[string]bool{}
	for i, eq := range col {
		formatted, unexpected := reaction.FormatKEGGEquation(eq)
		for _, u := range unexpected {
			log.Warn("unexpected element in equation", logging.Int("entry", i+1), logging.String("element", u))
		}
		res.Unexpected = append(res.Unexpected, unexpected...)
		for _, id := range reaction.KEGGCompounds(eq) {
			if done[id] {
				continue
			}
			done[id] = true
			path := filepath.Join(opts.MolfileDir, id+".mol")
			if _, err := os.Stat(path); err == nil {
				continue
			}
			if err := fetchMolfile(ctx, source, id, path); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				log.Warn("molfile download failed", logging.String("compound", id), logging.Err(err))
				res.Failed = append(res.Failed, id)
			} else {
				log.Debug("saved molfile", logging.String("compound", id))
				res.Saved = append(res.Saved, id)
			}
			if err := sleep(ctx, opts.Delay); err != nil {
				return nil, err
			}
		}
		res.Entries = append(res.Entries, strconv.Itoa(i+1)+";;"+formatted+";")
	}
	log.Info("prepared KEGG system file",
		logging.Int("entries", len(res.Entries)),
		logging.Int("molfiles", len(res.Saved)),
		logging.Int("failed", len(res.Failed)))
	return res, nil
}

func fetchMolfile(ctx context.Context, source MolfileSource, id, path string) error {
	body, err := source.GetMolfile(ctx, id)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return errs.Wrap(err, errs.ErrCodeIO, "write molfile").WithDetail(path)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SMILESOptions configures PrepareSMILES.
type SMILESOptions struct {
	IDColumn     string
	SMILESColumn string
	MolfileDir   string
}

// SMILESResult summarises PrepareSMILES.
type SMILESResult struct {
	Entries []string
	// Compounds maps each distinct compound SMILES to its label.
	Compounds map[string]string
	Invalid   []string
}

// PrepareSMILES converts reaction SMILES into BridgIT entries over invented
// compound labels c1, c2, ... shared by every reaction, writing one molfile
// per label. Compounds that cannot be parsed keep their label but get no
// molfile. Reactions without exactly one ">>" are skipped.
func PrepareSMILES(src *table.Table, opts SMILESOptions, log logging.Logger) (*SMILESResult, error) {
	if opts.IDColumn == "" {
		opts.IDColumn = "drug"
	}
	if opts.SMILESColumn == "" {
		opts.SMILESColumn = "reaction_smiles"
	}
	for _, c := range []string{opts.IDColumn, opts.SMILESColumn} {
		if _, err := src.MustIndex(c); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(opts.MolfileDir, 0o755); err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "create molfile directory").WithDetail(opts.MolfileDir)
	}

	res := &SMILESResult{Compounds: map[string]string{}}
	label := func(smi, id string) (string, error) {
		if l, ok := res.Compounds[smi]; ok {
			return l, nil
		}
		l := "c" + strconv.Itoa(len(res.Compounds)+1)
		res.Compounds[smi] = l
		mol, err := reaction.ParseSMILES(smi)
		if err != nil {
			log.Warn("could not convert SMILES", logging.String("reaction", id), logging.String("smiles", smi), logging.Err(err))
			res.Invalid = append(res.Invalid, smi)
			return l, nil
		}
		path := filepath.Join(opts.MolfileDir, l+".mol")
		if err := os.WriteFile(path, []byte(mol.MolBlock(l)), 0o644); err != nil {
			return "", errs.Wrap(err, errs.ErrCodeIO, "write molfile").WithDetail(path)
		}
		return l, nil
	}
	side := func(s, id string) ([]string, error) {
		var labels []string
		for _, smi := range strings.Split(s, ".") {
			smi = strings.TrimSpace(smi)
			if smi == "" {
				continue
			}
			l, err := label(smi, id)
			if err != nil {
				return nil, err
			}
			labels = append(labels, l)
		}
		return labels, nil
	}

	for r := range src.Rows {
		id := src.Get(r, opts.IDColumn)
		parts := strings.Split(src.Get(r, opts.SMILESColumn), ">>")
		if len(parts) != 2 {
			log.Warn("reaction has unexpected format", logging.String("reaction", id))
			continue
		}
		left, err := side(parts[0], id)
		if err != nil {
			return nil, err
		}
		right, err := side(parts[1], id)
		if err != nil {
			return nil, err
		}
		res.Entries = append(res.Entries, id+";;"+strings.Join(left, "+")+"<=>"+strings.Join(right, "+")+";")
	}
	log.Info("prepared SMILES system file", logging.Int("entries", len(res.Entries)), logging.Int("compounds", len(res.Compounds)))
	return res, nil
}

// WriteSystemFile writes header followed by one entry per line.
func WriteSystemFile(path, header string, entries []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(err, errs.ErrCodeIO, "create output directory").WithDetail(path)
	}
	content := header + "\n" + strings.Join(entries, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errs.Wrap(err, errs.ErrCodeIO, "write system file").WithDetail(path)
	}
	return nil
}
