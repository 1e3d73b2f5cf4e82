package theia

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	a := m.Called(name, args)
	return []byte(a.String(0)), []byte(a.String(1)), a.Error(2)
}

func TestReadQueries(t *testing.T) {
	p := filepath.Join(t.TempDir(), "queries.txt")
	require.NoError(t, os.WriteFile(p, []byte("CCO>>CC=O\n\n  CC>>C  \n"), 0o644))
	qs, err := ReadQueries(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"CCO>>CC=O", "CC>>C"}, qs)

	_, err = ReadQueries(filepath.Join(t.TempDir(), "none.txt"))
	assert.True(t, errs.IsCode(err, errs.ErrCodeIO))
}

func TestQuery(t *testing.T) {
	r := &mockRunner{}
	r.On("Run", "theia-cli", []string{"ecreact.ec123", "CCO>>CC=O", "--probs"}).Return(`{"1.1.1": 0.9}`+"\n", "", nil)
	r.On("Run", "theia-cli", []string{"ecreact.ec123", "X", "--probs"}).Return("", " bad smiles \n", errors.New("exit status 1"))

	opts := Options{Binary: "theia-cli", Model: "ecreact.ec123", IDColumn: "reaction_id", Concurrency: 2}
	out, err := Query(context.Background(), r, []string{"CCO>>CC=O", "X"}, []string{"R1", "R2"}, opts, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"reaction_id", PredictionColumn}, out.Header)
	assert.Equal(t, [][]string{{"R1", `{"1.1.1": 0.9}`}, {"R2", "Error: bad smiles"}}, out.Rows)
	r.AssertExpectations(t)
}

func TestQuery_MissingBinary(t *testing.T) {
	r := &mockRunner{}
	r.On("Run", "no-such-theia", mock.Anything).Return("", "", &exec.Error{Name: "no-such-theia", Err: exec.ErrNotFound})

	opts := Options{Binary: "no-such-theia", Model: "m", IDColumn: "reaction_id"}
	out, err := Query(context.Background(), r, []string{"CCO>>CC=O", "CC>>C"}, []string{"R1", "R2"}, opts, logging.NewNopLogger())
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errs.IsCode(err, errs.ErrCodeToolUnavailable))
	assert.ErrorIs(t, err, exec.ErrNotFound)
}

func TestQuery_CountMismatch(t *testing.T) {
	_, err := Query(context.Background(), &mockRunner{}, []string{"a"}, nil, Options{}, logging.NewNopLogger())
	assert.True(t, errs.IsCode(err, errs.ErrCodeRowMismatch))
}

func TestParseProbabilities(t *testing.T) {
	scored, err := ParseProbabilities(`{'1.1.1': 0.2, '2.7.1': 0.7, 'EC:3.1.1': 0.2}`)
	require.NoError(t, err)
	assert.Equal(t, []Scored{{"2.7.1", 0.7}, {"1.1.1", 0.2}, {"3.1.1", 0.2}}, scored)

	scored, err = ParseProbabilities("EC:1.2.3 0.1\n4.1.1\t0.8\n\n")
	require.NoError(t, err)
	assert.Equal(t, []Scored{{"4.1.1", 0.8}, {"1.2.3", 0.1}}, scored)

	scored, err = ParseProbabilities("Error: boom")
	require.NoError(t, err)
	assert.Empty(t, scored)

	_, err = ParseProbabilities("1.1.1 high")
	assert.True(t, errs.IsCode(err, errs.ErrCodeToolParseError))
	_, err = ParseProbabilities("{not json")
	assert.True(t, errs.IsCode(err, errs.ErrCodeToolParseError))
}

func TestCollect(t *testing.T) {
	in := table.New("reaction_id", PredictionColumn)
	in.Append([]string{"R1", `{"1.1.1": 0.3, "2.1.1": 0.6}`})
	in.Append([]string{"R2", "Error: failed"})
	in.Append([]string{"R3", "garbage"})

	out, err := Collect(in, "reaction_id", logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"R1", "2.1.1;1.1.1"}, {"R2", ""}, {"R3", ""}}, out.Rows)

	_, err = Collect(in, "id", logging.NewNopLogger())
	assert.True(t, errs.IsCode(err, errs.ErrCodeColumnNotFound))
}
