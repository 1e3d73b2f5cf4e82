// Package publish uploads result artifacts of a run to the object store.
package publish

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/storage/minio"
	errs "github.com/turtacn/enzbench/pkg/errors"
)

// MetadataRunID is the object metadata key holding the run identifier.
const MetadataRunID = "run-id"

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Uploaded describes one stored artifact.
type Uploaded struct {
	Path string
	Key  string
	Size int64
}

// Publisher uploads files under <prefix>/<run-id>/.
type Publisher struct {
	store       minio.ObjectStore
	prefix      string
	concurrency int
	logger      logging.Logger
}

// NewPublisher returns a Publisher writing to store.
func NewPublisher(store minio.ObjectStore, prefix string, concurrency int, log logging.Logger) *Publisher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Publisher{store: store, prefix: prefix, concurrency: concurrency, logger: log}
}

type item struct {
	path string
	rel  string
}

// collect expands directories into their regular files. A file keeps its
// base name; files below a directory keep their path relative to the
// directory's parent.
func collect(paths []string) ([]item, error) {
	var items []item
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, errs.Wrap(err, errs.ErrCodeIO, "stat artifact").WithDetail(p)
		}
		if !info.IsDir() {
			items = append(items, item{path: p, rel: filepath.Base(p)})
			continue
		}
		root := filepath.Dir(filepath.Clean(p))
		err = filepath.WalkDir(p, func(f string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(root, f)
			if err != nil {
				return err
			}
			items = append(items, item{path: f, rel: filepath.ToSlash(rel)})
			return nil
		})
		if err != nil {
			return nil, errs.Wrap(err, errs.ErrCodeIO, "walk artifact directory").WithDetail(p)
		}
	}
	return items, nil
}

// Key returns the object key of an artifact relative path.
func (p *Publisher) Key(runID, rel string) string {
	return path.Join(p.prefix, runID, rel)
}

// Publish uploads every file in paths, directories recursively.
func (p *Publisher) Publish(ctx context.Context, runID string, paths []string) ([]Uploaded, error) {
	if runID == "" {
		runID = NewRunID()
	}
	items, err := collect(paths)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var out []Uploaded
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, it := range items {
		it := it
		g.Go(func() error {
			key := p.Key(runID, it.rel)
			res, err := p.store.UploadFile(ctx, key, it.path, map[string]string{MetadataRunID: runID})
			if err != nil {
				return err
			}
			p.logger.Info("published artifact", logging.String("path", it.path), logging.String("key", key), logging.Int64("size", res.Size))
			mu.Lock()
			out = append(out, Uploaded{Path: it.path, Key: key, Size: res.Size})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
