package bridgit

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/turtacn/enzbench/internal/domain/reaction"
	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// Batch archive layout.
const (
	ReducedSystemFile = "reduced_systemfile.txt"
	systemPreamble    = "COMPOUNDS\nENTRY\nreactionsS\n"
	DefaultBatches    = 20
)

// SplitOptions configures SplitBatches.
type SplitOptions struct {
	MolfileDir string
	OutDir     string
	Batches    int
	// HeaderLines is the number of leading system file lines copied into
	// every batch.
	HeaderLines int
}

// SplitBatches cuts a system file into at most opts.Batches archives named
// reducedinput<i>.zip. Every batch holds the same header lines, its share of
// entries with cleaned equations and the molfiles those equations reference.
func SplitBatches(systemFile string, opts SplitOptions, log logging.Logger) ([]string, error) {
	if opts.Batches <= 0 {
		opts.Batches = DefaultBatches
	}
	if opts.HeaderLines <= 0 {
		opts.HeaderLines = 1
	}
	lines, err := readLines(systemFile)
	if err != nil {
		return nil, err
	}
	if len(lines) < opts.HeaderLines {
		return nil, errs.Newf(errs.ErrCodeValidation, "system file has %d lines, expected %d header lines", len(lines), opts.HeaderLines).WithDetail(systemFile)
	}
	header := lines[:opts.HeaderLines]
	var entries []string
	for _, l := range lines[opts.HeaderLines:] {
		if strings.TrimSpace(l) != "" {
			entries = append(entries, l)
		}
	}
	if len(entries) == 0 {
		return nil, errs.New(errs.ErrCodeValidation, "system file has no entries").WithDetail(systemFile)
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "create output directory").WithDetail(opts.OutDir)
	}

	size := (len(entries) + opts.Batches - 1) / opts.Batches
	var out []string
	for i := 0; i*size < len(entries) && i < opts.Batches; i++ {
		batch := entries[i*size : min((i+1)*size, len(entries))]
		path := filepath.Join(opts.OutDir, "reducedinput"+strconv.Itoa(i+1)+".zip")
		missing, err := writeBatch(path, header, batch, opts.MolfileDir)
		if err != nil {
			return nil, err
		}
		for _, m := range missing {
			log.Debug("molfile not found for batch", logging.String("compound", m), logging.String("batch", path))
		}
		out = append(out, path)
	}
	log.Info("split system file", logging.Int("entries", len(entries)), logging.Int("batches", len(out)))
	return out, nil
}

// CleanEntry applies reaction.CleanEquation to the equation field of a
// system file line and returns the line with the molecule ids it uses.
func CleanEntry(line string) (string, []string) {
	parts := strings.Split(strings.TrimSpace(line), ";")
	if len(parts) < 3 {
		return strings.Join(parts, ";"), nil
	}
	parts[2] = reaction.CleanEquation(parts[2])
	return strings.Join(parts, ";"), reaction.EquationMolecules(parts[2])
}

func writeBatch(path string, header, entries []string, molDir string) (missing []string, err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "create batch archive").WithDetail(path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errs.Wrap(cerr, errs.ErrCodeIO, "close batch archive").WithDetail(path)
		}
	}()

	var sb strings.Builder
	sb.WriteString(systemPreamble)
	for _, h := range header {
		sb.WriteString(h + "\n")
	}
	seen := map[string]bool{}
	var molecules []string
	for _, e := range entries {
		line, mols := CleanEntry(e)
		sb.WriteString(line + "\n")
		for _, m := range mols {
			if !seen[m] {
				seen[m] = true
				molecules = append(molecules, m)
			}
		}
	}

	zw := zip.NewWriter(f)
	w, err := zw.Create(ReducedSystemFile)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "add system file to archive").WithDetail(path)
	}
	if _, err := w.Write([]byte(sb.String())); err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "write system file to archive").WithDetail(path)
	}
	for _, m := range molecules {
		data, rerr := os.ReadFile(filepath.Join(molDir, m+".mol"))
		if rerr != nil {
			missing = append(missing, m)
			continue
		}
		w, err := zw.Create("molfiles/" + m + ".mol")
		if err != nil {
			return nil, errs.Wrap(err, errs.ErrCodeIO, "add molfile to archive").WithDetail(m)
		}
		if _, err := w.Write(data); err != nil {
			return nil, errs.Wrap(err, errs.ErrCodeIO, "write molfile to archive").WithDetail(m)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "finish batch archive").WithDetail(path)
	}
	return missing, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "open system file").WithDetail(path)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "read system file").WithDetail(path)
	}
	return lines, nil
}
