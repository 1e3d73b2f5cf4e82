// Package claire reads CLAIRE inference output.
package claire

import (
	"io"
	"os"
	"strings"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// MaxPredictions is the number of ranked predictions kept per reaction.
const MaxPredictions = 5

// CollectHeader is the layout of the collected CLAIRE table.
var CollectHeader = []string{"reactionID", "predictions"}

// ParsePrediction strips the score suffix and EC: prefix of one entry such as
// "EC:1.1.1.1/0.93".
func ParsePrediction(entry string) string {
	ec, _, _ := strings.Cut(strings.TrimSpace(entry), "/")
	return strings.TrimPrefix(ec, "EC:")
}

// Parse reads lines of the form "id,EC:a/score,EC:b/score,..." and returns
// one row per reaction with at most MaxPredictions ECs joined by ';'.
func Parse(r io.Reader) (*table.Table, error) {
	raw, err := table.Parse(r, table.WithoutHeader())
	if err != nil {
		return nil, err
	}
	out := table.New(CollectHeader...)
	for _, row := range raw.Rows {
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		id := strings.TrimSpace(row[0])
		var preds []string
		for i := 1; i < len(row) && i <= MaxPredictions; i++ {
			preds = append(preds, ParsePrediction(row[i]))
		}
		out.Append([]string{id, strings.Join(trimPadding(preds), ";")})
	}
	return out, nil
}

// trimPadding drops trailing empty entries left by rows narrower than the
// widest line.
func trimPadding(preds []string) []string {
	for len(preds) > 0 && preds[len(preds)-1] == "" {
		preds = preds[:len(preds)-1]
	}
	return preds
}

// Collect parses a CLAIRE result file.
func Collect(path string, log logging.Logger) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeIO, "open CLAIRE results").WithDetail(path)
	}
	defer f.Close()
	t, err := Parse(f)
	if err != nil {
		return nil, err
	}
	log.Info("collected CLAIRE predictions", logging.Int("reactions", t.Len()))
	return t, nil
}
