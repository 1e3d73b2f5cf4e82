package simmer

import (
	"context"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/enzbench/internal/domain/enrichment"
	"github.com/turtacn/enzbench/internal/domain/reaction"
	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// Database file names inside a database directory.
const (
	FileReactions    = "reactions.csv"
	FileFingerprints = "fingerprints.tsv.gz"
	FileTanimoto     = "tanimoto.csv.gz"
	FileNull         = "ec_perm.csv"
	FilePValues      = "ec_pvals.csv"
)

// PValueHeader is the column layout of the database p-value table.
var PValueHeader = []string{"Level", "EC", "enrich_score", "p_val", "where"}

// Database is the precomputed reference set: one difference fingerprint and
// first EC per reaction, their pairwise Tanimoto matrix and the permutation
// null used to judge enrichment.
type Database struct {
	Reactions    []string
	ECs          []string
	Fingerprints [][]int
	Tanimoto     [][]float64
	Null         enrichment.Null
}

// Len returns the number of reactions.
func (db *Database) Len() int { return len(db.Reactions) }

// BuildOptions configures BuildDatabase.
type BuildOptions struct {
	ReactionColumn    string
	LeftSMILESColumn  string
	RightSMILESColumn string
	ECColumn          string
	Bins              int
	Permutations      int
	Seed              int64
	Workers           int
}

func (o *BuildOptions) defaults() {
	if o.ReactionColumn == "" {
		o.ReactionColumn = ColReaction
	}
	if o.LeftSMILESColumn == "" {
		o.LeftSMILESColumn = ColLeftSMILES
	}
	if o.RightSMILESColumn == "" {
		o.RightSMILESColumn = ColRightSMILES
	}
	if o.ECColumn == "" {
		o.ECColumn = "EC_number"
	}
	if o.Bins <= 0 {
		o.Bins = reaction.DefaultBins
	}
	if o.Permutations <= 0 {
		o.Permutations = 1000
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
}

func hasEC(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && strings.ToLower(v) != "nan"
}

// FirstEC returns the first entry of a comma separated EC list.
func FirstEC(v string) string {
	return strings.TrimSpace(strings.Split(v, ",")[0])
}

// BuildDatabase fingerprints every reaction of src that has an EC and
// computes the similarity matrix and permutation null. Reactions whose
// SMILES cannot be fingerprinted are skipped.
func BuildDatabase(ctx context.Context, src *table.Table, opts BuildOptions, log logging.Logger) (*Database, error) {
	opts.defaults()
	for _, c := range []string{opts.ReactionColumn, opts.LeftSMILESColumn, opts.RightSMILESColumn, opts.ECColumn} {
		if _, err := src.MustIndex(c); err != nil {
			return nil, err
		}
	}

	db := &Database{}
	for r := range src.Rows {
		ecValue := src.Get(r, opts.ECColumn)
		if !hasEC(ecValue) {
			continue
		}
		id := src.Get(r, opts.ReactionColumn)
		rxn := src.Get(r, opts.LeftSMILESColumn) + reaction.Separator + src.Get(r, opts.RightSMILESColumn)
		fp, err := reaction.DifferenceFingerprint(rxn, opts.Bins)
		if err != nil {
			log.Warn("skipping reaction without fingerprint", logging.String("reaction", id), logging.Err(err))
			continue
		}
		db.Reactions = append(db.Reactions, id)
		db.ECs = append(db.ECs, FirstEC(ecValue))
		db.Fingerprints = append(db.Fingerprints, fp)
	}
	if db.Len() == 0 {
		return nil, errs.New(errs.ErrCodeNoScorableRows, "no reaction with an EC number could be fingerprinted")
	}

	matrix, err := SimilarityMatrix(ctx, db.Fingerprints, db.Fingerprints, opts.Workers)
	if err != nil {
		return nil, err
	}
	db.Tanimoto = matrix
	db.Null = enrichment.NullTable(db.ECs, opts.Permutations, rand.New(rand.NewSource(opts.Seed)))
	log.Info("built SIMMER database", logging.Int("reactions", db.Len()), logging.Int("permutations", opts.Permutations))
	return db, nil
}

// SimilarityMatrix returns the Tanimoto similarity of every row fingerprint
// against every column fingerprint, computing rows concurrently.
func SimilarityMatrix(ctx context.Context, rows, cols [][]int, workers int) ([][]float64, error) {
	out := make([][]float64, len(rows))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range rows {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			row := make([]float64, len(cols))
			for j := range cols {
				row[j] = reaction.Tanimoto(rows[i], cols[j])
			}
			out[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Save writes the database files into dir.
func (db *Database) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(err, errs.ErrCodeIO, "create database directory").WithDetail(dir)
	}
	rx := table.New(ColReaction, "EC")
	for i, id := range db.Reactions {
		rx.Append([]string{id, db.ECs[i]})
	}
	if err := rx.Write(filepath.Join(dir, FileReactions)); err != nil {
		return err
	}

	fps := table.New(ColReaction, "bins", "fingerprint")
	for i, id := range db.Reactions {
		fps.Append([]string{id, strconv.Itoa(len(db.Fingerprints[i])), encodeSparse(db.Fingerprints[i])})
	}
	if err := writeGzip(filepath.Join(dir, FileFingerprints), fps, '\t'); err != nil {
		return err
	}

	n := db.Len()
	header := make([]string, n)
	for i := range header {
		header[i] = strconv.Itoa(i)
	}
	tm := table.New(header...)
	for _, row := range db.Tanimoto {
		cells := make([]string, n)
		for j, v := range row {
			cells[j] = formatFloat(v)
		}
		tm.Rows = append(tm.Rows, cells)
	}
	if err := writeGzip(filepath.Join(dir, FileTanimoto), tm, ','); err != nil {
		return err
	}
	return NullTableOf(db.Null).Write(filepath.Join(dir, FileNull))
}

// NullTableOf renders the null with one column per level and one row per
// permutation.
func NullTableOf(null enrichment.Null) *table.Table {
	t := table.New(enrichment.Levels...)
	rows := 0
	for _, l := range enrichment.Levels {
		rows = max(rows, len(null[l]))
	}
	for r := 0; r < rows; r++ {
		cells := make([]string, len(enrichment.Levels))
		for c, l := range enrichment.Levels {
			if r < len(null[l]) {
				cells[c] = formatFloat(null[l][r])
			}
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// LoadDatabase reads a database written by Save.
func LoadDatabase(dir string) (*Database, error) {
	rx, err := table.Read(filepath.Join(dir, FileReactions))
	if err != nil {
		return nil, err
	}
	db := &Database{}
	for r := range rx.Rows {
		db.Reactions = append(db.Reactions, rx.Get(r, ColReaction))
		db.ECs = append(db.ECs, rx.Get(r, "EC"))
	}

	fps, err := readGzip(filepath.Join(dir, FileFingerprints), '\t')
	if err != nil {
		return nil, err
	}
	if fps.Len() != db.Len() {
		return nil, errs.Newf(errs.ErrCodeRowMismatch, "%d fingerprints for %d reactions", fps.Len(), db.Len())
	}
	for r := range fps.Rows {
		bins, err := strconv.Atoi(fps.Get(r, "bins"))
		if err != nil || bins <= 0 {
			return nil, errs.New(errs.ErrCodeSerialization, "malformed fingerprint size").WithDetail(fps.Get(r, "bins"))
		}
		fp, err := decodeSparse(fps.Get(r, "fingerprint"), bins)
		if err != nil {
			return nil, err
		}
		db.Fingerprints = append(db.Fingerprints, fp)
	}

	tm, err := readGzip(filepath.Join(dir, FileTanimoto), ',')
	if err != nil {
		return nil, err
	}
	if tm.Len() != db.Len() {
		return nil, errs.Newf(errs.ErrCodeRowMismatch, "tanimoto matrix has %d rows for %d reactions", tm.Len(), db.Len())
	}
	for _, row := range tm.Rows {
		vals, err := parseFloats(row)
		if err != nil {
			return nil, err
		}
		db.Tanimoto = append(db.Tanimoto, vals)
	}

	nt, err := table.Read(filepath.Join(dir, FileNull))
	if err != nil {
		return nil, err
	}
	db.Null = enrichment.Null{}
	for _, l := range enrichment.Levels {
		col, err := nt.Column(l)
		if err != nil {
			continue
		}
		for _, v := range col {
			if v == "" {
				continue
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, errs.Wrap(err, errs.ErrCodeSerialization, "parse null score").WithDetail(v)
			}
			db.Null[l] = append(db.Null[l], f)
		}
	}
	return db, nil
}

// PValueTable computes database wide enrichment p-values for every EC
// category at every level.
func PValueTable(ctx context.Context, db *Database, opts enrichment.PValueOptions) (*table.Table, error) {
	res, err := enrichment.PValues(ctx, db.ECs, opts)
	if err != nil {
		return nil, err
	}
	t := table.New(PValueHeader...)
	for _, r := range res {
		t.Append([]string{r.Level, r.EC, formatFloat(r.Score), formatFloat(r.PValue), strconv.Itoa(r.Where)})
	}
	return t, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloats(cells []string) ([]float64, error) {
	out := make([]float64, len(cells))
	for i, c := range cells {
		f, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return nil, errs.Wrap(err, errs.ErrCodeSerialization, "parse similarity").WithDetail(c)
		}
		out[i] = f
	}
	return out, nil
}

// encodeSparse writes the non-zero bins as "bin:count" pairs.
func encodeSparse(fp []int) string {
	var b strings.Builder
	for i, v := range fp {
		if v == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(i))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

func decodeSparse(s string, bins int) ([]int, error) {
	fp := make([]int, bins)
	for _, pair := range strings.Fields(s) {
		k, v, ok := strings.Cut(pair, ":")
		i, err1 := strconv.Atoi(k)
		c, err2 := strconv.Atoi(v)
		if !ok || err1 != nil || err2 != nil || i < 0 || i >= bins {
			return nil, errs.New(errs.ErrCodeSerialization, "malformed fingerprint entry").WithDetail(pair)
		}
		fp[i] = c
	}
	return fp, nil
}

func writeGzip(path string, t *table.Table, sep rune) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(err, errs.ErrCodeTableWrite, "create file").WithDetail(path)
	}
	zw := gzip.NewWriter(f)
	if err := t.Encode(zw, sep); err != nil {
		f.Close()
		return errs.Wrap(err, errs.ErrCodeTableWrite, "write compressed table").WithDetail(path)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return errs.Wrap(err, errs.ErrCodeTableWrite, "finish compressed table").WithDetail(path)
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(err, errs.ErrCodeTableWrite, "close file").WithDetail(path)
	}
	return nil
}

func readGzip(path string, sep rune) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeTableRead, "open file").WithDetail(path)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeTableRead, "open compressed table").WithDetail(path)
	}
	defer zr.Close()
	return table.Parse(io.Reader(zr), table.WithSeparator(sep))
}
