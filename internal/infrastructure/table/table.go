// Package table reads and writes the delimited text tables exchanged between
// prediction tools and the scoring pipeline.
package table

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	errs "github.com/turtacn/enzbench/pkg/errors"
)

const utf8BOM = "\ufeff"

// Table is an in-memory delimited table. Every row has len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// New returns an empty table with the given header.
func New(header ...string) *Table {
	return &Table{Header: append([]string(nil), header...)}
}

type readOptions struct {
	sep        rune
	trimHeader bool
	noHeader   bool
}

// Option configures Read and Parse.
type Option func(*readOptions)

// WithSeparator forces the field separator instead of sniffing it from the
// file extension.
func WithSeparator(sep rune) Option {
	return func(o *readOptions) { o.sep = sep }
}

// WithTrimmedHeader strips surrounding whitespace from header names.
func WithTrimmedHeader() Option {
	return func(o *readOptions) { o.trimHeader = true }
}

// WithoutHeader treats the first record as data and names columns 0..n-1.
func WithoutHeader() Option {
	return func(o *readOptions) { o.noHeader = true }
}

// SeparatorFor returns tab for .tsv and .txt paths and comma otherwise.
func SeparatorFor(path string) rune {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".txt", ".tab":
		return '\t'
	default:
		return ','
	}
}

// Read loads the table stored at path.
func Read(path string, opts ...Option) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeTableRead, "open table").WithDetail(path)
	}
	defer f.Close()

	o := readOptions{sep: SeparatorFor(path)}
	for _, opt := range opts {
		opt(&o)
	}
	t, err := parse(f, o)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeUnknown, "read table").WithDetail(path)
	}
	return t, nil
}

// Parse reads a comma separated table from r unless WithSeparator is given.
func Parse(r io.Reader, opts ...Option) (*Table, error) {
	o := readOptions{sep: ','}
	for _, opt := range opts {
		opt(&o)
	}
	return parse(r, o)
}

func parse(r io.Reader, o readOptions) (*Table, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.Comma = o.sep
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeTableRead, "parse delimited text")
	}
	t := &Table{}
	if len(records) == 0 {
		return t, nil
	}
	records[0][0] = strings.TrimPrefix(records[0][0], utf8BOM)

	if o.noHeader {
		width := 0
		for _, rec := range records {
			if len(rec) > width {
				width = len(rec)
			}
		}
		t.Header = make([]string, width)
		for i := range t.Header {
			t.Header[i] = strconv.Itoa(i)
		}
	} else {
		t.Header = records[0]
		records = records[1:]
		if o.trimHeader {
			for i, h := range t.Header {
				t.Header[i] = strings.TrimSpace(h)
			}
		}
	}
	for _, rec := range records {
		t.Append(rec)
	}
	return t, nil
}

// Write stores the table at path, creating parent directories. The separator
// follows the file extension.
func (t *Table) Write(path string) error {
	return t.WriteSep(path, SeparatorFor(path))
}

// WriteSep stores the table at path using sep.
func (t *Table) WriteSep(path string, sep rune) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrap(err, errs.ErrCodeTableWrite, "create output directory").WithDetail(dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(err, errs.ErrCodeTableWrite, "create table").WithDetail(path)
	}
	if err := t.Encode(f, sep); err != nil {
		f.Close()
		return errs.Wrap(err, errs.ErrCodeTableWrite, "write table").WithDetail(path)
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(err, errs.ErrCodeTableWrite, "close table").WithDetail(path)
	}
	return nil
}

// Encode writes the header and rows to w.
func (t *Table) Encode(w io.Writer, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Has reports whether column name exists.
func (t *Table) Has(name string) bool { return t.Index(name) >= 0 }

// MustIndex returns the position of column name or a column-not-found error.
func (t *Table) MustIndex(name string) (int, error) {
	i := t.Index(name)
	if i < 0 {
		return -1, errs.ColumnNotFound(name).WithDetailf("%s (available: %s)", name, strings.Join(t.Header, ", "))
	}
	return i, nil
}

// Column returns a copy of every value in column name.
func (t *Table) Column(name string) ([]string, error) {
	i, err := t.MustIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out, nil
}

// Get returns the value of column name in row r, or "" when the column is absent.
func (t *Table) Get(r int, name string) string {
	i := t.Index(name)
	if i < 0 || r < 0 || r >= len(t.Rows) {
		return ""
	}
	return t.Rows[r][i]
}

// Set assigns the value of column name in row r, adding the column if needed.
func (t *Table) Set(r int, name, value string) {
	i := t.Index(name)
	if i < 0 {
		t.AddColumn(name, nil)
		i = len(t.Header) - 1
	}
	t.Rows[r][i] = value
}

// Append adds a row, padding or truncating it to the header width.
func (t *Table) Append(row []string) {
	cells := make([]string, len(t.Header))
	copy(cells, row)
	t.Rows = append(t.Rows, cells)
}

// AddColumn appends a column. Missing values are empty.
func (t *Table) AddColumn(name string, values []string) {
	t.Header = append(t.Header, name)
	for r := range t.Rows {
		v := ""
		if r < len(values) {
			v = values[r]
		}
		t.Rows[r] = append(t.Rows[r], v)
	}
}

// RenameColumn renames column old to name.
func (t *Table) RenameColumn(old, name string) error {
	i, err := t.MustIndex(old)
	if err != nil {
		return err
	}
	t.Header[i] = name
	return nil
}

// Select returns a new table holding only the named columns, in order.
func (t *Table) Select(names ...string) (*Table, error) {
	idx := make([]int, len(names))
	for k, n := range names {
		i, err := t.MustIndex(n)
		if err != nil {
			return nil, err
		}
		idx[k] = i
	}
	out := New(names...)
	for _, row := range t.Rows {
		cells := make([]string, len(idx))
		for k, i := range idx {
			cells[k] = row[i]
		}
		out.Rows = append(out.Rows, cells)
	}
	return out, nil
}

// Filter returns a new table holding the rows for which keep returns true.
func (t *Table) Filter(keep func(row []string) bool) *Table {
	out := New(t.Header...)
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Records returns the header and rows as a single slice.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, t.Header)
	return append(out, t.Rows...)
}
