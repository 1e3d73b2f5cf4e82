package selenzyme

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/enzbench/internal/config"
	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/scrape"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// ToolName labels Selenzyme requests.
const ToolName = "selenzyme"

// FormOptions are the result form settings.
type FormOptions struct {
	Targets     int
	NoMSA       bool
	Host        string
	Fingerprint string
}

// FormOptionsFromConfig maps the selenzyme config section.
func FormOptionsFromConfig(cfg config.SelenzymeConfig) FormOptions {
	return FormOptions{Targets: cfg.Targets, NoMSA: cfg.NoMSA, Host: cfg.Host, Fingerprint: cfg.Fingerprint}
}

func (o FormOptions) values() url.Values {
	v := url.Values{}
	v.Set("targets", strconv.Itoa(o.Targets))
	if o.NoMSA {
		v.Set("noMSA", "on")
	}
	v.Set("host", o.Host)
	v.Set("finger", o.Fingerprint)
	return v
}

// Server talks to one Selenzyme instance.
type Server struct {
	client  *scrape.Client
	baseURL string
	form    FormOptions
}

// NewServer returns a Server at baseURL.
func NewServer(client *scrape.Client, baseURL string, form FormOptions) *Server {
	if form.Targets <= 0 {
		form.Targets = config.DefaultSelenzymeTargets
	}
	if form.Host == "" {
		form.Host = config.DefaultSelenzymeHost
	}
	if form.Fingerprint == "" {
		form.Fingerprint = config.DefaultSelenzymeFinger
	}
	return &Server{client: client, baseURL: strings.TrimSuffix(baseURL, "/"), form: form}
}

// cacheKey identifies a query. The result form does not carry the reaction,
// so the key combines it with the form settings.
func (s *Server) cacheKey(smiles string) string {
	sum := sha256.Sum256([]byte(s.baseURL + "\n" + smiles + "\n" + s.form.values().Encode()))
	return "selenzyme:" + hex.EncodeToString(sum[:])
}

// Query submits one reaction and returns the result page.
func (s *Server) Query(ctx context.Context, smiles string) ([]byte, error) {
	return s.client.Cached(ctx, s.cacheKey(smiles), func(ctx context.Context) ([]byte, error) {
		sess := s.client.Session()
		if _, err := sess.Get(ctx, ToolName, s.baseURL+"/"); err != nil {
			return nil, err
		}
		display := url.Values{"smarts": {smiles}, "rdb": {"ec"}, "rxnid": {""}}
		if _, err := sess.PostForm(ctx, ToolName, s.baseURL+"/display", display); err != nil {
			return nil, err
		}
		resp, err := sess.PostForm(ctx, ToolName, s.baseURL+"/results", s.form.values())
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	})
}

// ResultTable extracts the first table of a result page. Cell text pieces
// are concatenated without separator.
func ResultTable(page []byte) ([][]string, error) {
	doc, err := scrape.ParseHTML(page)
	if err != nil {
		return nil, err
	}
	tables := scrape.Tables(doc)
	if len(tables) == 0 {
		return nil, errs.New(errs.ErrCodeToolParseError, "no table in Selenzyme response")
	}
	rows := scrape.TableRows(tables[0], "")
	if len(rows) == 0 {
		return nil, errs.New(errs.ErrCodeToolParseError, "empty Selenzyme result table")
	}
	return rows, nil
}

// QueryOptions configures QueryAll.
type QueryOptions struct {
	IDColumn     string
	SMILESColumn string
	OutDir       string
	Concurrency  int
}

// QueryResult reports the outcome for one reaction.
type QueryResult struct {
	Reaction string
	Path     string
	Skipped  bool
	Err      error
}

// OutputPath is where the result table of reaction id is written.
func OutputPath(dir, id string) string {
	return filepath.Join(dir, id+".csv")
}

// QueryAll queries every reaction of src that has no result file yet and
// writes its result table. Failures are reported per reaction and do not stop
// the run; only a cancelled context does.
func QueryAll(ctx context.Context, s *Server, src *table.Table, opts QueryOptions, log logging.Logger) ([]QueryResult, error) {
	if opts.IDColumn == "" {
		opts.IDColumn = "drug"
	}
	if opts.SMILESColumn == "" {
		opts.SMILESColumn = "reaction_smiles"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	for _, c := range []string{opts.IDColumn, opts.SMILESColumn} {
		if _, err := src.MustIndex(c); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "create output directory").WithDetail(opts.OutDir)
	}

	results := make([]QueryResult, src.Len())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for r := range src.Rows {
		r := r
		id := src.Get(r, opts.IDColumn)
		res := &results[r]
		res.Reaction = id
		res.Path = OutputPath(opts.OutDir, id)
		if _, err := os.Stat(res.Path); err == nil {
			res.Skipped = true
			log.Debug("skipping reaction with results", logging.String("reaction", id))
			continue
		}
		smiles := src.Get(r, opts.SMILESColumn)
		g.Go(func() error {
			res.Err = queryOne(gctx, s, smiles, res.Path)
			if res.Err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Warn("Selenzyme query failed", logging.String("reaction", id), logging.Err(res.Err))
				return nil
			}
			log.Info("saved Selenzyme results", logging.String("reaction", id), logging.String("path", res.Path))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func queryOne(ctx context.Context, s *Server, smiles, path string) error {
	page, err := s.Query(ctx, smiles)
	if err != nil {
		return err
	}
	rows, err := ResultTable(page)
	if err != nil {
		return err
	}
	t := &table.Table{Header: rows[0], Rows: rows[1:]}
	return t.WriteSep(path, ',')
}
