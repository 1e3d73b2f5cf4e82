package bridgit

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

type fakeSource struct {
	mols  map[string]string
	calls []string
}

func (f *fakeSource) GetMolfile(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.calls = append(f.calls, id)
	m, ok := f.mols[id]
	if !ok {
		return nil, errs.New(errs.ErrCodeToolRejected, "not found")
	}
	return []byte(m), nil
}

func TestPrepareKEGG(t *testing.T) {
	src := table.New("Entry", "Equation")
	src.Append([]string{"R00001", "2 C00001 + C00002 <=> C00003 + X"})
	src.Append([]string{"R00002", "C00003 <=> C00001"})
	molDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(molDir, "C00002.mol"), []byte("cached"), 0o644))
	source := &fakeSource{mols: map[string]string{"C00001": "water"}}

	res, err := PrepareKEGG(context.Background(), src, source, KEGGOptions{MolfileDir: molDir}, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"1;;(2) C00001 + C00002 <=> C00003 +;", "2;;C00003 <=> C00001;"}, res.Entries)
	assert.Equal(t, []string{"C00001", "C00003"}, source.calls)
	assert.Equal(t, []string{"C00001"}, res.Saved)
	assert.Equal(t, []string{"C00003"}, res.Failed)
	assert.Equal(t, []string{"X"}, res.Unexpected)

	data, err := os.ReadFile(filepath.Join(molDir, "C00001.mol"))
	require.NoError(t, err)
	assert.Equal(t, "water", string(data))
}

func TestPrepareKEGG_MissingColumn(t *testing.T) {
	_, err := PrepareKEGG(context.Background(), table.New("Entry"), &fakeSource{}, KEGGOptions{MolfileDir: t.TempDir()}, logging.NewNopLogger())
	assert.True(t, errs.IsCode(err, errs.ErrCodeColumnNotFound))
}

func TestPrepareKEGG_Cancelled(t *testing.T) {
	src := table.New("Equation")
	src.Append([]string{"C00001 <=> C00002"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := PrepareKEGG(ctx, src, &fakeSource{mols: map[string]string{"C00001": "m", "C00002": "m"}},
		KEGGOptions{MolfileDir: t.TempDir(), Delay: 1}, logging.NewNopLogger())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrepareSMILES(t *testing.T) {
	src := table.New("drug", "reaction_smiles")
	src.Append([]string{"D1", "CCO.O>>CC=O"})
	src.Append([]string{"D2", "CC=O>>CC(=O)O"})
	src.Append([]string{"D3", "CCO"})
	src.Append([]string{"D4", "C1CC>>CCO"})
	molDir := t.TempDir()

	res, err := PrepareSMILES(src, SMILESOptions{MolfileDir: molDir}, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"D1;;c1+c2<=>c3;",
		"D2;;c3<=>c4;",
		"D4;;c5<=>c1;",
	}, res.Entries)
	assert.Equal(t, []string{"C1CC"}, res.Invalid)
	assert.FileExists(t, filepath.Join(molDir, "c1.mol"))
	assert.FileExists(t, filepath.Join(molDir, "c4.mol"))
	assert.NoFileExists(t, filepath.Join(molDir, "c5.mol"))

	mol, err := os.ReadFile(filepath.Join(molDir, "c1.mol"))
	require.NoError(t, err)
	assert.Contains(t, string(mol), "M  END")
}

func TestWriteSystemFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sub", "FormattedReactions.txt")
	require.NoError(t, WriteSystemFile(p, SMILESHeader, []string{"a;;c1<=>c2;", "b;;c2<=>c3;"}))
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "ENTRY;REACTION;\na;;c1<=>c2;\nb;;c2<=>c3;", string(data))
}

func TestCleanEntry(t *testing.T) {
	line, mols := CleanEntry("3;;(2) C00001 + C00002(n) <=> C00003(n+1);\n")
	assert.Equal(t, "3;;(2)C00001+C00002<=>C00003;", line)
	assert.Equal(t, []string{"C00001", "C00002", "C00003"}, mols)

	line, mols = CleanEntry("short")
	assert.Equal(t, "short", line)
	assert.Nil(t, mols)
}

func readZip(t *testing.T, p string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(p)
	require.NoError(t, err)
	defer zr.Close()
	out := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = string(data)
	}
	return out
}

func TestSplitBatches(t *testing.T) {
	dir := t.TempDir()
	molDir := filepath.Join(dir, "mol")
	require.NoError(t, os.MkdirAll(molDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(molDir, "C00001.mol"), []byte("one"), 0o644))
	system := filepath.Join(dir, "FormattedReactions.txt")
	require.NoError(t, WriteSystemFile(system, KEGGHeader, []string{
		"1;;C00001 <=> C00002;",
		"2;;C00002 <=> C00003;",
		"3;;(2) C00001 <=> C00004;",
	}))

	zips, err := SplitBatches(system, SplitOptions{MolfileDir: molDir, OutDir: filepath.Join(dir, "out"), Batches: 2}, logging.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, zips, 2)
	assert.Equal(t, "reducedinput1.zip", filepath.Base(zips[0]))

	first := readZip(t, zips[0])
	assert.Equal(t, "COMPOUNDS\nENTRY\nreactionsS\n"+KEGGHeader+"\n1;;C00001<=>C00002;\n2;;C00002<=>C00003;\n", first[ReducedSystemFile])
	assert.Equal(t, "one", first["molfiles/C00001.mol"])
	assert.Len(t, first, 2)

	second := readZip(t, zips[1])
	assert.Equal(t, "COMPOUNDS\nENTRY\nreactionsS\n"+KEGGHeader+"\n3;;(2)C00001<=>C00004;\n", second[ReducedSystemFile])
}

func TestSplitBatches_FewerEntriesThanBatches(t *testing.T) {
	dir := t.TempDir()
	system := filepath.Join(dir, "sys.txt")
	require.NoError(t, WriteSystemFile(system, SMILESHeader, []string{"a;;c1<=>c2;"}))
	zips, err := SplitBatches(system, SplitOptions{MolfileDir: dir, OutDir: dir}, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Len(t, zips, 1)
}

func TestSplitBatches_Empty(t *testing.T) {
	dir := t.TempDir()
	system := filepath.Join(dir, "sys.txt")
	require.NoError(t, WriteSystemFile(system, SMILESHeader, nil))
	_, err := SplitBatches(system, SplitOptions{OutDir: dir}, logging.NewNopLogger())
	assert.True(t, errs.IsCode(err, errs.ErrCodeValidation))
}

func TestExtractECs(t *testing.T) {
	got := ExtractECs([]string{
		"R1/0.9/1.1.1.1,1.1.1.2;",
		" R2/0.8/2.7.1.1 ",
		"nan",
		"R3/0.7/1.1.1.5,3.1.1.1",
		"R4/0.1/",
	})
	assert.Equal(t, "1.1.1.1;2.7.1.1;3.1.1.1", got)
}

func TestResultReaction(t *testing.T) {
	assert.Equal(t, "R00010", ResultReaction("results/a_b_c_R00010.txt"))
	assert.Equal(t, "R00010", ResultReaction("a_b_c_R00010.x_y.txt"))
	assert.Equal(t, "summary", ResultReaction("summary.txt"))
}

func writeResultZip(t *testing.T, p string, members map[string]string) {
	t.Helper()
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	names := make([]string, 0, len(members))
	for n := range members {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = w.Write([]byte(members[n]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestCollectResults(t *testing.T) {
	dir := t.TempDir()
	writeResultZip(t, filepath.Join(dir, "batch1.zip"), map[string]string{
		"out/x_y_z_R1.txt": "reactionsA/ECA\tscore\nA/1/1.1.1.1,1.1.1.9;\t1\nB/1/2.1.1.1\t0.5\n",
		"out/x_y_z_R2.txt": "other\n1\n",
		"out/x_y_z_R9.txt": "reactionsA/ECA\nA/1/4.1.1.1\n",
		"out/readme.md":    "ignored",
	})
	writeResultZip(t, filepath.Join(dir, "batch2.zip"), map[string]string{
		"x_y_z_R1.txt": "reactionsA/ECA\tscore\nA/1/1.1.1.1,1.1.1.9;\t1\nB/1/2.1.1.1\t0.5\n",
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	ref := table.New("Entry", "EC")
	ref.Append([]string{"R1", "1.1.1.1"})
	ref.Append([]string{"R2", "2.2.2.2"})

	out, err := CollectResults(CollectOptions{ResultsDir: dir, Reference: ref, RefIDColumn: "Entry"}, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"Entry", PredictedColumn}, out.Header)
	assert.Equal(t, [][]string{{"R1", "1.1.1.1;2.1.1.1"}, {"R2", ""}}, out.Rows)
}

func TestCollectResults_Errors(t *testing.T) {
	_, err := CollectResults(CollectOptions{ResultsDir: t.TempDir()}, logging.NewNopLogger())
	assert.True(t, errs.IsCode(err, errs.ErrCodeValidation))

	_, err = CollectResults(CollectOptions{ResultsDir: t.TempDir(), Reference: table.New("id"), RefIDColumn: "Entry"}, logging.NewNopLogger())
	assert.True(t, errs.IsCode(err, errs.ErrCodeColumnNotFound))
}
