// Package ezyme queries the KEGG E-zyme service for substrate and product
// pairs and collects its two prediction tables.
package ezyme

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/scrape"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// ToolName labels E-zyme requests.
const ToolName = "ezyme"

// Output table layouts.
var (
	Ezyme1Header = []string{"EC", "Weighted Score", "Observed Freq", "Reactions"}
	Ezyme2Header = []string{"RPAIR", "Score", "EC", "KO"}
)

// Output file suffixes.
const (
	Ezyme1Suffix = "_E-zyme1.csv"
	Ezyme2Suffix = "_E-zyme2.csv"
)

// Tables holds the parsed result tables. Either may be nil when the page did
// not contain it.
type Tables struct {
	Ezyme1 [][]string
	Ezyme2 [][]string
}

// Service is an E-zyme endpoint.
type Service struct {
	client *scrape.Client
	url    string
}

// NewService returns a Service posting to endpoint.
func NewService(client *scrape.Client, endpoint string) *Service {
	return &Service{client: client, url: endpoint}
}

// Compute runs the two step E-zyme form for one compound pair: a view
// request that yields a job id and a compute request returning the tables.
func (s *Service) Compute(ctx context.Context, reactant, product string) ([]byte, error) {
	key := "ezyme:" + s.url + "\n" + reactant + "\n" + product
	return s.client.Cached(ctx, key, func(ctx context.Context) ([]byte, error) {
		view, err := s.client.PostForm(ctx, ToolName, s.url, url.Values{
			"mode": {"view"}, "cpd1": {reactant}, "cpd2": {product},
		})
		if err != nil {
			return nil, err
		}
		doc, err := scrape.ParseHTML(view.Body)
		if err != nil {
			return nil, err
		}
		id, ok := scrape.InputValue(doc, "id")
		if !ok {
			return nil, errs.New(errs.ErrCodeToolParseError, "E-zyme job id not found").WithDetail(reactant + " " + product)
		}
		resp, err := s.client.PostForm(ctx, ToolName, s.url, url.Values{
			"mode": {"compute"}, "cpd1": {reactant}, "cpd2": {product}, "id": {id},
		})
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	})
}

// ParseTables reads the E-zyme2 table from div#ref_rp_img and the E-zyme1
// table from div#ez1. Header rows are dropped.
func ParseTables(page []byte) (*Tables, error) {
	doc, err := scrape.ParseHTML(page)
	if err != nil {
		return nil, err
	}
	return &Tables{
		Ezyme1: divTable(doc, "ez1"),
		Ezyme2: divTable(doc, "ref_rp_img"),
	}, nil
}

func divTable(doc *html.Node, id string) [][]string {
	div := scrape.FindElement(doc, scrape.And(scrape.ByTag("div"), scrape.ByID(id)))
	if div == nil {
		return nil
	}
	t := scrape.FindElement(div, scrape.ByTag("table"))
	if t == nil {
		return nil
	}
	rows := scrape.TableRows(t, " ")
	if len(rows) == 0 {
		return [][]string{}
	}
	return rows[1:]
}

// Pair is one substrate and product to query.
type Pair struct {
	Reaction string
	Reactant string
	Product  string
}

// Paths returns the two output files of p under dir.
func (p Pair) Paths(dir string) (ezyme1, ezyme2 string) {
	folder := filepath.Join(dir, p.Reaction)
	stem := p.Reactant + "_" + p.Product
	return filepath.Join(folder, stem+Ezyme1Suffix), filepath.Join(folder, stem+Ezyme2Suffix)
}

// PairOptions names the columns read by ReadPairs.
type PairOptions struct {
	IDColumn       string
	ReactantColumn string
	ProductColumn  string
}

// ReadPairs extracts the query pairs from src.
func ReadPairs(src *table.Table, opts PairOptions) ([]Pair, error) {
	for _, c := range []string{opts.IDColumn, opts.ReactantColumn, opts.ProductColumn} {
		if _, err := src.MustIndex(c); err != nil {
			return nil, err
		}
	}
	out := make([]Pair, 0, src.Len())
	for r := range src.Rows {
		out = append(out, Pair{
			Reaction: strings.TrimSpace(src.Get(r, opts.IDColumn)),
			Reactant: strings.TrimSpace(src.Get(r, opts.ReactantColumn)),
			Product:  strings.TrimSpace(src.Get(r, opts.ProductColumn)),
		})
	}
	return out, nil
}

// QueryResult reports the outcome for one pair.
type QueryResult struct {
	Pair    Pair
	Skipped bool
	Saved   []string
	Err     error
}

// QueryAll runs every pair whose two output files do not both exist yet,
// writing each table found into the pair's reaction folder. Failures are
// recorded per pair.
func QueryAll(ctx context.Context, s *Service, pairs []Pair, outDir string, concurrency int, log logging.Logger) ([]QueryResult, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]QueryResult, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, p := range pairs {
		p := p
		res := &results[i]
		res.Pair = p
		e1, e2 := p.Paths(outDir)
		if exists(e1) && exists(e2) {
			res.Skipped = true
			log.Debug("skipping processed pair", logging.String("reaction", p.Reaction))
			continue
		}
		g.Go(func() error {
			res.Saved, res.Err = queryOne(gctx, s, p, e1, e2, log)
			if res.Err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Warn("E-zyme query failed", logging.String("reaction", p.Reaction), logging.Err(res.Err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func queryOne(ctx context.Context, s *Service, p Pair, e1, e2 string, log logging.Logger) ([]string, error) {
	page, err := s.Compute(ctx, p.Reactant, p.Product)
	if err != nil {
		return nil, err
	}
	tables, err := ParseTables(page)
	if err != nil {
		return nil, err
	}
	var saved []string
	for _, out := range []struct {
		path   string
		header []string
		rows   [][]string
	}{
		{e2, Ezyme2Header, tables.Ezyme2},
		{e1, Ezyme1Header, tables.Ezyme1},
	} {
		if out.rows == nil {
			log.Warn("E-zyme table missing", logging.String("reaction", p.Reaction), logging.String("file", filepath.Base(out.path)))
			continue
		}
		t := table.New(out.header...)
		for _, r := range out.rows {
			t.Append(r)
		}
		if err := t.Write(out.path); err != nil {
			return saved, err
		}
		saved = append(saved, out.path)
	}
	return saved, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// NoPrediction marks a reaction without any E-zyme EC.
const NoPrediction = "No EC Prediction"

// CollectHeader is the layout of the collected E-zyme table.
var CollectHeader = []string{"Reaction Name", "E-zyme1", "E-zyme2"}

// Collect reads every reaction folder under root: the first column of its
// E-zyme1 files and the third column of its E-zyme2 files, with spaces
// turned into '|', joined by ';'. Folders are visited in name order.
func Collect(root string, log logging.Logger) (*table.Table, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "list E-zyme results").WithDetail(root)
	}
	out := table.New(CollectHeader...)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, errs.Wrap(err, errs.ErrCodeIO, "list reaction folder").WithDetail(dir)
		}
		var p1, p2 []string
		for _, f := range files {
			path := filepath.Join(dir, f.Name())
			switch {
			case strings.Contains(f.Name(), Ezyme1Suffix):
				p1 = append(p1, columnValues(path, 0, log)...)
			case strings.Contains(f.Name(), Ezyme2Suffix):
				p2 = append(p2, columnValues(path, 2, log)...)
			}
		}
		out.Append([]string{e.Name(), joinOrNone(p1), joinOrNone(p2)})
	}
	return out, nil
}

func columnValues(path string, col int, log logging.Logger) []string {
	t, err := table.Read(path, table.WithSeparator(','))
	if err != nil {
		log.Warn("unreadable E-zyme file", logging.String("file", path), logging.Err(err))
		return nil
	}
	if col >= len(t.Header) {
		log.Warn("E-zyme file too narrow", logging.String("file", path))
		return nil
	}
	out := make([]string, 0, t.Len())
	for _, row := range t.Rows {
		out = append(out, strings.ReplaceAll(row[col], " ", "|"))
	}
	return out
}

func joinOrNone(v []string) string {
	if len(v) == 0 {
		return NoPrediction
	}
	return strings.Join(v, ";")
}
