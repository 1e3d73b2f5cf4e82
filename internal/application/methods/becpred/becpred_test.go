package becpred

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

func source(rows ...[]string) *table.Table {
	t := table.New("id", "EC_number", "reaction_smiles")
	for _, r := range rows {
		t.Append(r)
	}
	return t
}

func TestLabels(t *testing.T) {
	l := NewLabels()
	assert.Equal(t, 1, l.ID("1.1.1"))
	assert.Equal(t, 2, l.ID("2.7.1"))
	assert.Equal(t, 1, l.ID("1.1.1"))
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, [][]string{{"1.1.1", "1"}, {"2.7.1", "2"}}, l.Table().Rows)
}

func TestClassOf(t *testing.T) {
	assert.Equal(t, "1.1.1", ClassOf("1.1.1.1"))
	assert.Equal(t, "1.1", ClassOf("1.1"))
	assert.True(t, completeToClass("1.2.3.-"))
	assert.False(t, completeToClass("1.2.-.-"))
	assert.False(t, completeToClass("1.2"))
	assert.False(t, completeToClass("1.2.n3"))
}

func TestProcessFile(t *testing.T) {
	src := source(
		[]string{"a", "1.1.1.1|2.7.1.-", "CCO>>CC=O"},
		[]string{"b", "nan", "C>>C"},
		[]string{"c", "-", "C>>C"},
		[]string{"d", "", "C>>C"},
		[]string{"e", "3.1.1.1", ""},
		[]string{"f", "3.1.1.1", "CCO"},
		[]string{"g", "1.1.1.2", ">>C"},
		[]string{"h", "1.2.-.-", "C>>O"},
	)
	labels := NewLabels()
	out, err := ProcessFile(src, labels, Options{Split: SplitVal}, nil, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, DatabaseHeader, out.Header)
	assert.Equal(t, [][]string{
		{"1", "CCO>>CC=O", "1.1.1.1", "CCO", "CC=O", "1.1.1", "1", "val"},
		{"2", "CCO>>CC=O", "2.7.1.-", "CCO", "CC=O", "2.7.1", "2", "val"},
		{"3", "C>>O", "1.2.-.-", "C", "O", "1.2.-", "3", "val"},
	}, out.Rows)

	strict, err := ProcessFile(src, NewLabels(), Options{RemoveIncomplete: true}, nil, logging.NewNopLogger())
	require.NoError(t, err)
	classes, err := strict.Column("rxn_class")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1.1.1", "2.7.1.-"}, classes)
}

func TestProcessFile_Errors(t *testing.T) {
	_, err := ProcessFile(table.New("id"), NewLabels(), Options{}, nil, logging.NewNopLogger())
	assert.True(t, errs.IsCode(err, errs.ErrCodeColumnNotFound))

	_, err = ProcessFile(source(), NewLabels(), Options{Split: SplitRandom}, nil, logging.NewNopLogger())
	assert.True(t, errs.IsCode(err, errs.ErrCodeValidation))
}

func TestProcessFile_RandomSplit(t *testing.T) {
	src := source(
		[]string{"a", "1.1.1.1", "C>>O"},
		[]string{"b", "1.1.1.2", "C>>N"},
	)
	out, err := ProcessFile(src, NewLabels(), Options{Split: SplitRandom, TrainFraction: 1}, rand.New(rand.NewSource(1)), logging.NewNopLogger())
	require.NoError(t, err)
	split, err := out.Column("split")
	require.NoError(t, err)
	assert.Equal(t, []string{SplitTrain, SplitTrain}, split)
}

func TestBuildDatabase_SharedLabels(t *testing.T) {
	train := source(
		[]string{"a", "1.1.1.1", "C>>O"},
		[]string{"b", "2.7.1.1", "C>>N"},
	)
	test := source(
		[]string{"c", "2.7.1.5", "N>>O"},
		[]string{"d", "4.1.1.1", "N>>C"},
	)
	db, err := BuildDatabase(train, test, BuildOptions{TrainFraction: 1, Seed: 42}, logging.NewNopLogger())
	require.NoError(t, err)
	ids, _ := db.Test.Column("class_id")
	assert.Equal(t, []string{"2", "3"}, ids)
	idx, _ := db.Test.Column("idx")
	assert.Equal(t, []string{"1", "2"}, idx)
	split, _ := db.Test.Column("split")
	assert.Equal(t, []string{SplitVal, SplitVal}, split)
	assert.Equal(t, 3, db.Labels.Len())

	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "train.csv"), filepath.Join(dir, "test.csv"), filepath.Join(dir, "labels.csv")}
	require.NoError(t, db.Save(paths[0], paths[1], paths[2]))
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}

	labels, err := ReadLabels(paths[2])
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1": "1.1.1", "2": "2.7.1", "3": "4.1.1"}, labels)
}

func TestBuildDatabase_SeedIsReproducible(t *testing.T) {
	var rows [][]string
	for i := 0; i < 50; i++ {
		rows = append(rows, []string{"r", "1.1.1.1", "C>>O"})
	}
	opts := BuildOptions{TrainFraction: 0.5, Seed: 7}
	a, err := BuildDatabase(source(rows...), source(), opts, logging.NewNopLogger())
	require.NoError(t, err)
	b, err := BuildDatabase(source(rows...), source(), opts, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, a.Train.Rows, b.Train.Rows)
}

func TestReadLabels_Errors(t *testing.T) {
	dir := t.TempDir()
	dup := filepath.Join(dir, "dup.csv")
	require.NoError(t, os.WriteFile(dup, []byte("EC Class,Assigned Label\n1.1.1,1\n2.1.1,1\n"), 0o644))
	_, err := ReadLabels(dup)
	assert.True(t, errs.IsCode(err, errs.ErrCodeValidation))

	_, err = ReadLabels(filepath.Join(dir, "missing.csv"))
	assert.True(t, errs.IsCode(err, errs.ErrCodeTableRead))
}

func TestAssignLabels(t *testing.T) {
	preds := table.New("reaction", PredictionColumn)
	preds.Append([]string{"R1", "2"})
	preds.Append([]string{"R2", "1.0"})
	preds.Append([]string{"R3", "99"})
	labels := map[string]string{"1": "1.1.1", "2": "2.7.1"}

	out, err := AssignLabels(preds, labels, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"R1", "2.7.1"}, {"R2", "1.1.1"}, {"R3", ""}}, out.Rows)
	assert.Equal(t, "2", preds.Rows[0][1])

	_, err = AssignLabels(table.New("reaction"), labels, logging.NewNopLogger())
	assert.True(t, errs.IsCode(err, errs.ErrCodeColumnNotFound))
}
