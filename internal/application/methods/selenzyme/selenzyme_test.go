package selenzyme

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/scrape"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

const resultPage = `<html><body>
<table>
<tr><th>Seq. ID</th><th> EC Number </th><th>Rxn Sim.</th><th>Rxn Sim RF.</th></tr>
<tr><td>P1</td><td>1.1.1.1</td><td>0.5</td><td>0.7</td></tr>
<tr><td>P2</td><td>2.<b>7</b>.1.1</td><td>0.9</td><td>0</td></tr>
</table>
<table><tr><td>other</td></tr></table>
</body></html>`

// selenzymeServer requires the display step before results within one
// cookie session.
func selenzymeServer(t *testing.T, results *int32) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	submitted := map[string]string{}
	var next int32
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			id := fmt.Sprint(atomic.AddInt32(&next, 1))
			http.SetCookie(w, &http.Cookie{Name: "session", Value: id})
			fmt.Fprint(w, "<html>home</html>")
		case "/display":
			_ = r.ParseForm()
			c, err := r.Cookie("session")
			if err != nil || r.Form.Get("rdb") != "ec" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			mu.Lock()
			submitted[c.Value] = r.Form.Get("smarts")
			mu.Unlock()
		case "/results":
			_ = r.ParseForm()
			atomic.AddInt32(results, 1)
			c, err := r.Cookie("session")
			mu.Lock()
			smarts := ""
			if err == nil {
				smarts = submitted[c.Value]
			}
			mu.Unlock()
			if smarts == "" || r.Form.Get("targets") != "200" || r.Form.Get("noMSA") != "on" || r.Form.Get("finger") != "Morgan" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if smarts == "bad" {
				fmt.Fprint(w, "<html>no results</html>")
				return
			}
			fmt.Fprint(w, resultPage)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newServer(srv *httptest.Server, cache scrape.Cache) *Server {
	client := scrape.NewClient(scrape.Options{MaxRetries: 1, InitialInterval: time.Millisecond, Cache: cache}, logging.NewNopLogger())
	return NewServer(client, srv.URL+"/", FormOptions{NoMSA: true})
}

func TestServer_Query(t *testing.T) {
	var results int32
	srv := selenzymeServer(t, &results)
	defer srv.Close()
	s := newServer(srv, &memCache{data: map[string][]byte{}})

	page, err := s.Query(context.Background(), "CCO>>CC=O")
	require.NoError(t, err)
	rows, err := ResultTable(page)
	require.NoError(t, err)
	assert.Equal(t, []string{"Seq. ID", "EC Number", "Rxn Sim.", "Rxn Sim RF."}, rows[0])
	assert.Equal(t, []string{"P2", "2.7.1.1", "0.9", "0"}, rows[2])

	_, err = s.Query(context.Background(), "CCO>>CC=O")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&results))
}

func TestResultTable_NoTable(t *testing.T) {
	_, err := ResultTable([]byte("<html><p>nothing</p></html>"))
	assert.True(t, errs.IsCode(err, errs.ErrCodeToolParseError))
}

func TestQueryAll(t *testing.T) {
	var results int32
	srv := selenzymeServer(t, &results)
	defer srv.Close()
	s := newServer(srv, nil)
	out := t.TempDir()
	require.NoError(t, os.WriteFile(OutputPath(out, "D0"), []byte("done"), 0o644))

	src := table.New("drug", "reaction_smiles")
	src.Append([]string{"D0", "CC>>C"})
	src.Append([]string{"D1", "CCO>>CC=O"})
	src.Append([]string{"D2", "bad"})

	res, err := QueryAll(context.Background(), s, src, QueryOptions{OutDir: out, Concurrency: 2}, logging.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.True(t, res[0].Skipped)
	assert.NoError(t, res[1].Err)
	assert.True(t, errs.IsCode(res[2].Err, errs.ErrCodeToolParseError))
	assert.NoFileExists(t, OutputPath(out, "D2"))

	written, err := table.Read(OutputPath(out, "D1"))
	require.NoError(t, err)
	assert.Equal(t, 2, written.Len())
	assert.Equal(t, "1.1.1.1", written.Get(0, "EC Number"))
}

func TestQueryAll_MissingColumn(t *testing.T) {
	_, err := QueryAll(context.Background(), &Server{}, table.New("drug"), QueryOptions{OutDir: t.TempDir()}, logging.NewNopLogger())
	assert.True(t, errs.IsCode(err, errs.ErrCodeColumnNotFound))
}

func TestFilterDatabase(t *testing.T) {
	dir := t.TempDir()
	tsv := filepath.Join(dir, "reac_prop.tsv")
	csv := filepath.Join(dir, "reac_smi.csv")
	require.NoError(t, os.WriteFile(tsv, []byte("id\tprop\nR1\ta\nR2\tb\nR3\tc\n"), 0o644))
	require.NoError(t, os.WriteFile(csv, []byte("id,smiles\nR2,CC\nR4,CO\n"), 0o644))
	test := filepath.Join(dir, "test_reactions.tsv")
	require.NoError(t, os.WriteFile(test, []byte("reaction_id\tEC\nR2\t1.1.1.1\nR3\t2.2.2.2\n"), 0o644))

	ids, err := ReadTestIDs(test, "reaction_id")
	require.NoError(t, err)
	out := filepath.Join(dir, "new")
	removed, err := FilterDatabase([]string{tsv, csv}, ids, out, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"reac_prop.tsv": 2, "reac_smi.csv": 1}, removed)

	data, err := os.ReadFile(filepath.Join(out, "reac_prop.tsv"))
	require.NoError(t, err)
	assert.Equal(t, "id\tprop\nR1\ta\n", string(data))
	data, err = os.ReadFile(filepath.Join(out, "reac_smi.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id,smiles\nR4,CO\n", string(data))
}

func TestCombinedScore(t *testing.T) {
	assert.InDelta(t, 0.6, CombinedScore(0.5, 0.7), 1e-12)
	assert.Equal(t, 0.9, CombinedScore(0.9, 0))
	assert.Equal(t, 0.4, CombinedScore(-1, 0.4))
	assert.Equal(t, 0.0, CombinedScore(0, 0))
}

func TestECGroup(t *testing.T) {
	assert.Equal(t, "1.1.1.1|2.2.2.2", ECGroup(" 2.2.2.2; 1.1.1.1;2.2.2.2 "))
	assert.Equal(t, "", ECGroup("-"))
	assert.Equal(t, "", ECGroup(""))
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("R10.csv", "Seq. ID, EC Number ,Rxn Sim.,Rxn Sim RF.\n"+
		"P1,1.1.1.1,0.5,0.7\n"+
		"P2,2.7.1.1;2.7.1.2,0.9,0\n"+
		"P3,-,1,1\n"+
		"P4,1.1.1.1,0.6,0\n"+
		"P5,3.1.1.1,nan,\n")
	write("R9.csv", "Seq. ID,Rxn Sim.\nP1,0.5\n")
	write("R100.csv", "EC Number,Rxn Sim.,Rxn Sim RF.\n4.1.1.1,0.1,0.1\n4.2.1.1,0.1,0.1\n")
	write("extra.csv", "EC Number\n5.1.1.1\n")
	write("notes.txt", "x")

	out, err := Collect(dir, "", logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, CollectHeader, out.Header)
	assert.Equal(t, [][]string{
		{"R9", ""},
		{"R10", "2.7.1.1|2.7.1.2;1.1.1.1;3.1.1.1"},
		{"R100", "4.1.1.1;4.2.1.1"},
		{"extra", "5.1.1.1"},
	}, out.Rows)
}

func TestCollect_MissingDir(t *testing.T) {
	_, err := Collect(filepath.Join(t.TempDir(), "missing"), "", logging.NewNopLogger())
	assert.True(t, errs.IsCode(err, errs.ErrCodeIO))
}
