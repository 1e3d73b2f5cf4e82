package becpred

import (
	"strings"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// PredictionColumn holds the numeric class predicted by the model.
const PredictionColumn = "Prediction"

// ReadLabels loads a labels file written by Database.Save into a map from
// assigned label to EC class.
func ReadLabels(path string) (map[string]string, error) {
	t, err := table.Read(path, table.WithSeparator(','), table.WithTrimmedHeader())
	if err != nil {
		return nil, err
	}
	classes, err := t.Column(LabelsHeader[0])
	if err != nil {
		return nil, err
	}
	ids, err := t.Column(LabelsHeader[1])
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(ids))
	for i, id := range ids {
		id = strings.TrimSpace(id)
		if _, dup := out[id]; dup {
			return nil, errs.New(errs.ErrCodeValidation, "duplicate class label").WithDetail(id)
		}
		out[id] = strings.TrimSpace(classes[i])
	}
	return out, nil
}

// AssignLabels replaces the numeric Prediction column of predictions with
// the EC class it stands for. Unknown labels become empty.
func AssignLabels(predictions *table.Table, labels map[string]string, log logging.Logger) (*table.Table, error) {
	idx, err := predictions.MustIndex(PredictionColumn)
	if err != nil {
		return nil, err
	}
	out := table.New(predictions.Header...)
	unknown := 0
	for _, row := range predictions.Rows {
		cp := append([]string(nil), row...)
		class, ok := labels[normalizeLabel(cp[idx])]
		if !ok {
			unknown++
		}
		cp[idx] = class
		out.Append(cp)
	}
	if unknown > 0 {
		log.Warn("predictions with unknown class label", logging.Int("count", unknown))
	}
	return out, nil
}

// normalizeLabel accepts float renderings such as "12.0".
func normalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i > 0 && strings.Trim(s[i+1:], "0") == "" {
		return s[:i]
	}
	return s
}
