package claire

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

func TestParsePrediction(t *testing.T) {
	assert.Equal(t, "1.1.1.1", ParsePrediction(" EC:1.1.1.1/0.9312 "))
	assert.Equal(t, "2.7.1", ParsePrediction("2.7.1"))
}

func TestParse(t *testing.T) {
	in := "R1,EC:1.1.1.1/0.93,EC:1.1.1.2/0.05,EC:2.1.1.1/0.01,EC:3.1.1.1/0.01,EC:4.1.1.1/0.0,EC:5.1.1.1/0.0\n" +
		"\n" +
		"R2,EC:2.7.1.1/0.99\n"
	out, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, CollectHeader, out.Header)
	assert.Equal(t, [][]string{
		{"R1", "1.1.1.1;1.1.1.2;2.1.1.1;3.1.1.1;4.1.1.1"},
		{"R2", "2.7.1.1"},
	}, out.Rows)
}

func TestCollect(t *testing.T) {
	p := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, os.WriteFile(p, []byte("R9,EC:6.1.1.1/0.5\n"), 0o644))
	out, err := Collect(p, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"R9", "6.1.1.1"}}, out.Rows)

	_, err = Collect(filepath.Join(t.TempDir(), "missing.csv"), logging.NewNopLogger())
	assert.True(t, errs.IsCode(err, errs.ErrCodeIO))
}
