package table

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/turtacn/enzbench/pkg/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRead_CSV(t *testing.T) {
	path := writeFile(t, "in.csv", "\ufeffid,pred\nR1,1.1.1.1\nR2,\"2.7.1.1|2.7.1.2\"\n")
	tbl, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "pred"}, tbl.Header)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, "2.7.1.1|2.7.1.2", tbl.Get(1, "pred"))
}

func TestRead_TSVSniffedFromExtension(t *testing.T) {
	path := writeFile(t, "in.tsv", "a\tb\n1\t2\n")
	tbl, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, tbl.Rows[0])
}

func TestRead_RaggedRowsArePadded(t *testing.T) {
	tbl, err := Parse(strings.NewReader("a,b,c\n1\n1,2,3,4\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "", ""}, tbl.Rows[0])
	assert.Equal(t, []string{"1", "2", "3"}, tbl.Rows[1])
}

func TestRead_Options(t *testing.T) {
	tbl, err := Parse(strings.NewReader(" a ; b \n1;2\n"), WithSeparator(';'), WithTrimmedHeader())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.Header)

	tbl, err = Parse(strings.NewReader("x,y\nz\n"), WithoutHeader())
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, tbl.Header)
	assert.Equal(t, 2, tbl.Len())
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrCodeTableRead))
}

func TestParse_Empty(t *testing.T) {
	tbl, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, tbl.Header)
	assert.Zero(t, tbl.Len())
}

func TestColumnAccess(t *testing.T) {
	tbl := New("id", "ec")
	tbl.Append([]string{"R1", "1.1.1.1"})
	tbl.Append([]string{"R2", "2.7.1.1"})

	col, err := tbl.Column("ec")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1.1.1", "2.7.1.1"}, col)

	_, err = tbl.Column("missing")
	assert.True(t, errs.IsNotFound(err))
	assert.Equal(t, "", tbl.Get(0, "missing"))
	assert.Equal(t, "", tbl.Get(9, "ec"))

	tbl.Set(0, "vote", "1.1.1")
	assert.Equal(t, []string{"id", "ec", "vote"}, tbl.Header)
	assert.Equal(t, "1.1.1", tbl.Get(0, "vote"))
	assert.Equal(t, "", tbl.Get(1, "vote"))

	require.NoError(t, tbl.RenameColumn("id", "Reaction"))
	assert.True(t, tbl.Has("Reaction"))
	assert.Error(t, tbl.RenameColumn("id", "x"))
}

func TestSelectAndFilter(t *testing.T) {
	tbl := New("a", "b", "c")
	tbl.Append([]string{"1", "2", "3"})
	tbl.Append([]string{"4", "5", "6"})

	sel, err := tbl.Select("c", "a")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"3", "1"}, {"6", "4"}}, sel.Rows)

	_, err = tbl.Select("z")
	assert.Error(t, err)

	kept := tbl.Filter(func(row []string) bool { return row[0] == "4" })
	assert.Equal(t, 1, kept.Len())
	assert.Len(t, tbl.Records(), 3)
}

func TestWriteRoundTrip(t *testing.T) {
	tbl := New("Reaction", "All ECs")
	tbl.Append([]string{"R1", "1.1.1.1;2.7.1.1|2.7.1.2"})
	tbl.Append([]string{"R2", "has,comma"})

	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	require.NoError(t, tbl.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Reaction,All ECs\nR1,1.1.1.1;2.7.1.1|2.7.1.2\nR2,\"has,comma\"\n", string(data))

	back, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, tbl.Rows, back.Rows)
}

func TestEncodeTSV(t *testing.T) {
	tbl := New("a", "b")
	tbl.Append([]string{"1", "2"})
	var buf bytes.Buffer
	require.NoError(t, tbl.Encode(&buf, '\t'))
	assert.Equal(t, "a\tb\n1\t2\n", buf.String())
}
