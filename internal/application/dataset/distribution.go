package dataset

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/enzbench/internal/domain/ec"
	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
)

// Distribution levels.
const (
	LevelClass    = "class"
	LevelSubclass = "subclass"
)

// DistributionHeader lists the columns written by Distribution.
var DistributionHeader = []string{"dataset", "level", "ec_class", "class_name", "label", "count", "share"}

// Count is one slice of an EC distribution.
type Count struct {
	Dataset   string
	Level     string
	Class     string
	ClassName string
	Label     string
	Count     int
	Share     float64
}

// Distribution counts EC classes and subclasses over the '|' expanded values
// of column in each dataset. Values whose class is not 1 to 7 are ignored;
// subclasses need at least two components. Datasets that cannot be read or
// lack the column are logged and skipped.
func Distribution(paths []string, column string, log logging.Logger) []Count {
	var out []Count
	for _, p := range paths {
		t, err := table.Read(p)
		if err != nil {
			log.Warn("skipping dataset", logging.String("path", p), logging.Err(err))
			continue
		}
		values, err := t.Column(column)
		if err != nil {
			log.Warn("skipping dataset", logging.String("path", p), logging.Err(err))
			continue
		}
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		out = append(out, distributionOf(name, values)...)
	}
	return out
}

func distributionOf(dataset string, values []string) []Count {
	classes := map[string]int{}
	subclasses := map[string]int{}
	total, subTotal := 0, 0
	for _, v := range values {
		if ec.IsMissing(v) {
			continue
		}
		for _, e := range strings.Split(v, "|") {
			e = strings.TrimSpace(e)
			parts := strings.Split(e, ".")
			if _, ok := ec.ClassNames[parts[0]]; !ok {
				continue
			}
			classes[parts[0]]++
			total++
			if len(parts) >= 2 {
				subclasses[parts[0]+"."+parts[1]]++
				subTotal++
			}
		}
	}

	var out []Count
	for _, c := range ec.ClassOrder {
		n := classes[c]
		if n == 0 {
			continue
		}
		out = append(out, Count{
			Dataset: dataset, Level: LevelClass, Class: c, ClassName: ec.ClassNames[c],
			Label: c, Count: n, Share: float64(n) / float64(total),
		})
	}
	subs := make([]string, 0, len(subclasses))
	for s := range subclasses {
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool {
		ci, cj := classOf(subs[i]), classOf(subs[j])
		if ci != cj {
			return ec.ClassNames[ci] < ec.ClassNames[cj]
		}
		return subs[i] < subs[j]
	})
	for _, s := range subs {
		c := classOf(s)
		out = append(out, Count{
			Dataset: dataset, Level: LevelSubclass, Class: c, ClassName: ec.ClassNames[c],
			Label: s, Count: subclasses[s], Share: float64(subclasses[s]) / float64(subTotal),
		})
	}
	return out
}

func classOf(label string) string {
	return strings.SplitN(label, ".", 2)[0]
}

// DistributionTable renders counts with DistributionHeader.
func DistributionTable(counts []Count) *table.Table {
	t := table.New(DistributionHeader...)
	for _, c := range counts {
		t.Append([]string{
			c.Dataset, c.Level, c.Class, c.ClassName, c.Label,
			strconv.Itoa(c.Count), strconv.FormatFloat(c.Share, 'f', 4, 64),
		})
	}
	return t
}
