// Package dataset holds the dataset preparation jobs that are independent of
// any single prediction tool.
package dataset

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/turtacn/enzbench/internal/domain/reaction"
	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// CanonicalizeStats counts the outcome of a Canonicalize run.
type CanonicalizeStats struct {
	Written          int
	Invalid          int
	DroppedFragments int
}

// Canonicalize reads one reaction SMILES per line from in and writes the
// canonical form of each to out. Blank lines are ignored, lines without a
// single ">>" are logged and skipped, and fragments that do not parse are
// left out of the rewritten reaction.
func Canonicalize(in, out string, log logging.Logger) (CanonicalizeStats, error) {
	var stats CanonicalizeStats
	src, err := os.Open(in)
	if err != nil {
		return stats, errs.Wrap(err, errs.ErrCodeIO, "open reaction file").WithDetail(in)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return stats, errs.Wrap(err, errs.ErrCodeIO, "create output directory").WithDetail(out)
	}
	dst, err := os.Create(out)
	if err != nil {
		return stats, errs.Wrap(err, errs.ErrCodeIO, "create output file").WithDetail(out)
	}
	w := bufio.NewWriter(dst)

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		canon, dropped, err := reaction.CanonicalizeReaction(line)
		if err != nil {
			stats.Invalid++
			log.Warn("could not canonicalize reaction", logging.String("reaction", line), logging.Err(err))
			continue
		}
		if len(dropped) > 0 {
			stats.DroppedFragments += len(dropped)
			log.Debug("dropped unparseable fragments", logging.String("reaction", line), logging.Strings("fragments", dropped))
		}
		if _, err := w.WriteString(canon + "\n"); err != nil {
			dst.Close()
			return stats, errs.Wrap(err, errs.ErrCodeIO, "write output").WithDetail(out)
		}
		stats.Written++
	}
	if err := sc.Err(); err != nil {
		dst.Close()
		return stats, errs.Wrap(err, errs.ErrCodeIO, "read reaction file").WithDetail(in)
	}
	if err := w.Flush(); err != nil {
		dst.Close()
		return stats, errs.Wrap(err, errs.ErrCodeIO, "flush output").WithDetail(out)
	}
	if err := dst.Close(); err != nil {
		return stats, errs.Wrap(err, errs.ErrCodeIO, "close output").WithDetail(out)
	}
	return stats, nil
}
