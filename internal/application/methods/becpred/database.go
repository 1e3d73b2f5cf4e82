// Package becpred builds the BEC-Pred fine-tuning database and maps its
// numeric class predictions back to EC classes.
package becpred

import (
	"math/rand"
	"strconv"
	"strings"

	"github.com/turtacn/enzbench/internal/domain/reaction"
	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// Split labels.
const (
	SplitTrain  = "train"
	SplitVal    = "val"
	SplitRandom = "random"
)

// DatabaseHeader is the layout of the train and test files.
var DatabaseHeader = []string{"idx", "rxn", "rxn_class", "r", "p", "rxn_class_th", "class_id", "split"}

// LabelsHeader is the layout of the class label file.
var LabelsHeader = []string{"EC Class", "Assigned Label"}

// Labels assigns numeric class ids to three level EC classes in first seen
// order, starting at 1.
type Labels struct {
	ids   map[string]int
	order []string
}

// NewLabels returns an empty mapping.
func NewLabels() *Labels {
	return &Labels{ids: map[string]int{}}
}

// ID returns the label of class, assigning the next one when class is new.
func (l *Labels) ID(class string) int {
	if id, ok := l.ids[class]; ok {
		return id
	}
	l.order = append(l.order, class)
	l.ids[class] = len(l.order)
	return len(l.order)
}

// Len returns the number of classes seen.
func (l *Labels) Len() int { return len(l.order) }

// Table renders the mapping as EC Class, Assigned Label rows.
func (l *Labels) Table() *table.Table {
	out := table.New(LabelsHeader...)
	for i, c := range l.order {
		out.Append([]string{c, strconv.Itoa(i + 1)})
	}
	return out
}

// Options configures ProcessFile.
type Options struct {
	ECColumn         string
	SMILESColumn     string
	RemoveIncomplete bool
	// Split is SplitRandom or a fixed label written to every row.
	Split         string
	TrainFraction float64
}

func (o *Options) defaults() {
	if o.ECColumn == "" {
		o.ECColumn = "EC_number"
	}
	if o.SMILESColumn == "" {
		o.SMILESColumn = "reaction_smiles"
	}
	if o.Split == "" {
		o.Split = SplitVal
	}
	if o.TrainFraction <= 0 {
		o.TrainFraction = 0.9
	}
}

// ProcessFile converts one reaction table into database rows. Rows without a
// usable EC or SMILES are dropped and promiscuous '|' ECs become one row each.
func ProcessFile(src *table.Table, labels *Labels, opts Options, rng *rand.Rand, log logging.Logger) (*table.Table, error) {
	opts.defaults()
	if _, err := src.MustIndex(opts.ECColumn); err != nil {
		return nil, err
	}
	if _, err := src.MustIndex(opts.SMILESColumn); err != nil {
		return nil, err
	}
	if opts.Split == SplitRandom && rng == nil {
		return nil, errs.New(errs.ErrCodeValidation, "random split needs a random source")
	}

	out := table.New(DatabaseHeader...)
	dropped := 0
	for r := range src.Rows {
		raw := strings.TrimSpace(src.Get(r, opts.ECColumn))
		smiles := strings.TrimSpace(src.Get(r, opts.SMILESColumn))
		if raw == "" || raw == "-" || strings.EqualFold(raw, "nan") || smiles == "" {
			dropped++
			continue
		}
		for _, ec := range strings.Split(raw, "|") {
			ec = strings.TrimSpace(ec)
			if opts.RemoveIncomplete && !completeToClass(ec) {
				dropped++
				continue
			}
			sides := strings.Split(smiles, reaction.Separator)
			if len(sides) != 2 || strings.TrimSpace(sides[0]) == "" || strings.TrimSpace(sides[1]) == "" {
				dropped++
				continue
			}
			left, right := sides[0], sides[1]
			class := ClassOf(ec)
			split := opts.Split
			if split == SplitRandom {
				split = SplitVal
				if rng.Float64() < opts.TrainFraction {
					split = SplitTrain
				}
			}
			out.Append([]string{
				strconv.Itoa(out.Len() + 1), smiles, ec, left, right,
				class, strconv.Itoa(labels.ID(class)), split,
			})
		}
	}
	log.Info("processed BEC-Pred source",
		logging.Int("rows", out.Len()),
		logging.Int("dropped", dropped),
		logging.String("split", opts.Split))
	return out, nil
}

// ClassOf returns the first three components of ec.
func ClassOf(ec string) string {
	parts := strings.Split(ec, ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return strings.Join(parts, ".")
}

func completeToClass(ec string) bool {
	parts := strings.Split(ec, ".")
	if len(parts) < 3 {
		return false
	}
	third := strings.TrimSpace(parts[2])
	if third == "" {
		return false
	}
	for _, c := range third {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// BuildOptions configures BuildDatabase.
type BuildOptions struct {
	ECColumn         string
	SMILESColumn     string
	RemoveIncomplete bool
	TrainFraction    float64
	Seed             int64
}

// Database is the processed train and test tables with their shared labels.
type Database struct {
	Train  *table.Table
	Test   *table.Table
	Labels *Labels
}

// BuildDatabase processes the train table with a seeded random split and the
// test table as validation rows, sharing one label mapping.
func BuildDatabase(train, test *table.Table, opts BuildOptions, log logging.Logger) (*Database, error) {
	labels := NewLabels()
	rng := rand.New(rand.NewSource(opts.Seed))
	base := Options{
		ECColumn:         opts.ECColumn,
		SMILESColumn:     opts.SMILESColumn,
		RemoveIncomplete: opts.RemoveIncomplete,
		TrainFraction:    opts.TrainFraction,
	}

	trainOpts := base
	trainOpts.Split = SplitRandom
	trainOut, err := ProcessFile(train, labels, trainOpts, rng, log.With(logging.String("file", "train")))
	if err != nil {
		return nil, err
	}
	testOpts := base
	testOpts.Split = SplitVal
	testOut, err := ProcessFile(test, labels, testOpts, nil, log.With(logging.String("file", "test")))
	if err != nil {
		return nil, err
	}
	return &Database{Train: trainOut, Test: testOut, Labels: labels}, nil
}

// Save writes the three database files.
func (db *Database) Save(trainPath, testPath, labelsPath string) error {
	if err := db.Train.WriteSep(trainPath, ','); err != nil {
		return err
	}
	if err := db.Test.WriteSep(testPath, ','); err != nil {
		return err
	}
	return db.Labels.Table().WriteSep(labelsPath, ',')
}
