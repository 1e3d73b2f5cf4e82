package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	rediscache "github.com/turtacn/enzbench/internal/infrastructure/database/redis"

	"github.com/turtacn/enzbench/internal/application/publish"
	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/scrape"
	"github.com/turtacn/enzbench/internal/infrastructure/storage/minio"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
	"github.com/turtacn/enzbench/pkg/errors"
)

// HTTPClient builds the shared remote-access client. When the response cache
// is enabled and reachable it is attached; an unreachable cache is logged and
// the client runs uncached. The returned func releases the cache connection.
func (c *CLIContext) HTTPClient() (*scrape.Client, func()) {
	opts := scrape.OptionsFromConfig(c.Config.HTTP)
	opts.Metrics = c.Metrics
	closeFn := func() {}

	if cc := c.Config.Cache; cc.Enabled {
		rc, err := rediscache.NewClient(&rediscache.RedisConfig{
			Addr:     cc.Addr,
			Password: cc.Password,
			DB:       cc.DB,
		}, c.Logger)
		if err != nil {
			c.Logger.Warn("response cache unavailable, continuing without it", logging.String("addr", cc.Addr), logging.Err(err))
		} else {
			opts.Cache = rediscache.NewRedisCache(rc, c.Logger, rediscache.WithPrefix(cc.Prefix), rediscache.WithDefaultTTL(cc.TTL))
			opts.CacheTTL = cc.TTL
			closeFn = func() { _ = rc.Close() }
		}
	}
	return scrape.NewClient(opts, c.Logger.Named("http")), closeFn
}

// Publisher builds an artifact publisher over the configured object store.
func (c *CLIContext) Publisher() (*publish.Publisher, error) {
	sc := c.Config.Storage
	if sc.Endpoint == "" {
		return nil, errors.InvalidParam("storage.endpoint is not configured")
	}
	client, err := minio.NewMinIOClient(&minio.MinIOConfig{
		Endpoint:        sc.Endpoint,
		AccessKeyID:     sc.AccessKey,
		SecretAccessKey: sc.SecretKey,
		UseSSL:          sc.UseSSL,
		Region:          sc.Region,
		Bucket:          sc.Bucket,
	}, c.Logger)
	if err != nil {
		return nil, err
	}
	store := minio.NewMinIORepository(client, c.Logger)
	return publish.NewPublisher(store, sc.Prefix, c.Config.HTTP.Concurrency, c.Logger.Named("publish")), nil
}

// concurrency returns n when positive, else the configured HTTP concurrency.
func (c *CLIContext) concurrency(n int) int {
	if n > 0 {
		return n
	}
	return c.Config.HTTP.Concurrency
}

// run resolves the CLIContext of cmd and calls fn with the command context.
func run(cmd *cobra.Command, fn func(ctx context.Context, cc *CLIContext) error) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	return fn(cmd.Context(), cc)
}

// readTable loads a table, trimming header whitespace.
func readTable(path string) (*table.Table, error) {
	if path == "" {
		return nil, errors.InvalidParam("input path is required")
	}
	return table.Read(path, table.WithTrimmedHeader())
}

// writeTable stores t at path and records its rows for stage.
func (c *CLIContext) writeTable(t *table.Table, path, stage string) error {
	if path == "" {
		return errors.InvalidParam("output path is required")
	}
	if err := t.Write(path); err != nil {
		return err
	}
	c.Metrics.RowsProcessed.WithLabelValues(stage).Add(float64(t.Len()))
	c.Logger.Info("table written", logging.String("stage", stage), logging.String("path", path), logging.Int("rows", t.Len()))
	return nil
}

// TableResult prints a small table in every output format.
type TableResult struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// TableHeaders implements the table output.
func (t *TableResult) TableHeaders() []string { return t.Header }

// TableRows implements the table output.
func (t *TableResult) TableRows() [][]string { return t.Rows }

func (t *TableResult) String() string {
	return strings.TrimRight(FormatTable(t.Header, t.Rows), "\n")
}

func tableResult(t *table.Table) *TableResult {
	return &TableResult{Header: t.Header, Rows: t.Rows}
}
