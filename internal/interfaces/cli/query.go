package cli

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/enzbench/internal/application/methods/ezyme"
	"github.com/turtacn/enzbench/internal/application/methods/selenzyme"
	"github.com/turtacn/enzbench/internal/application/methods/theia"
	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/scrape"
	"github.com/turtacn/enzbench/pkg/errors"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query remote tools and local predictors",
	}
	cmd.AddCommand(
		newQueryKEGGCmd(),
		newQuerySelenzymeCmd(),
		newQueryEzymeCmd(),
		newQueryTheiaCmd(),
	)
	return cmd
}

func newQueryKEGGCmd() *cobra.Command {
	var (
		fromFile string
		outDir   string
		delay    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "kegg-molfiles [compound ids...]",
		Short: "Download KEGG compound molfiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				ids := append([]string(nil), args...)
				if fromFile != "" {
					more, err := readLines(fromFile)
					if err != nil {
						return err
					}
					ids = append(ids, more...)
				}
				if len(ids) == 0 {
					return errors.InvalidParam("no compound ids given")
				}
				if !cmd.Flags().Changed("delay") {
					delay = cc.Config.Tools.KEGGDelay
				}
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return errors.Wrap(err, errors.ErrCodeIO, "create molfile directory").WithDetail(outDir)
				}

				client, closeFn := cc.HTTPClient()
				defer closeFn()
				kegg := scrape.NewKEGG(client, cc.Config.Tools.KEGGBaseURL)
				log := cc.Logger.Named("kegg")

				saved, skipped, failed := 0, 0, 0
				for _, id := range ids {
					path := filepath.Join(outDir, id+".mol")
					if _, err := os.Stat(path); err == nil {
						skipped++
						continue
					}
					mol, err := kegg.GetMolfile(ctx, id)
					if err != nil {
						if ctx.Err() != nil {
							return ctx.Err()
						}
						log.Warn("molfile download failed", logging.String("compound", id), logging.Err(err))
						failed++
						continue
					}
					if err := os.WriteFile(path, mol, 0o644); err != nil {
						return errors.Wrap(err, errors.ErrCodeIO, "write molfile").WithDetail(path)
					}
					saved++
					if delay > 0 {
						select {
						case <-ctx.Done():
							return ctx.Err()
						case <-time.After(delay):
						}
					}
				}
				return PrintResult(cmd, NewSummary("KEGG molfiles").
					Add("out_dir", outDir).
					Add("saved", saved).
					Add("skipped", skipped).
					Add("failed", failed))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&fromFile, "from-file", "", "file with one compound id per line")
	f.StringVar(&outDir, "out-dir", "molfiles", "directory receiving the molfiles")
	f.DurationVar(&delay, "delay", 0, "pause after each download (default from config)")
	return cmd
}

func newQuerySelenzymeCmd() *cobra.Command {
	var (
		input   string
		baseURL string
		opts    selenzyme.QueryOptions
	)
	cmd := &cobra.Command{
		Use:   "selenzyme",
		Short: "Submit reactions to a Selenzyme server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				src, err := readTable(input)
				if err != nil {
					return err
				}
				if baseURL == "" {
					baseURL = cc.Config.Tools.Selenzyme.BaseURL
				}
				opts.Concurrency = cc.concurrency(opts.Concurrency)

				client, closeFn := cc.HTTPClient()
				defer closeFn()
				server := selenzyme.NewServer(client, baseURL, selenzyme.FormOptionsFromConfig(cc.Config.Tools.Selenzyme))

				results, err := selenzyme.QueryAll(ctx, server, src, opts, cc.Logger.Named("selenzyme"))
				if err != nil {
					return err
				}
				saved, skipped, failed := 0, 0, 0
				for _, r := range results {
					switch {
					case r.Skipped:
						skipped++
					case r.Err != nil:
						failed++
					default:
						saved++
					}
				}
				return PrintResult(cmd, NewSummary("Selenzyme queries").
					Add("out_dir", opts.OutDir).
					Add("saved", saved).
					Add("skipped", skipped).
					Add("failed", failed))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&input, "input", "", "reaction table (required)")
	f.StringVar(&baseURL, "url", "", "Selenzyme base URL (default from config)")
	f.StringVar(&opts.IDColumn, "id-column", "drug", "reaction id column")
	f.StringVar(&opts.SMILESColumn, "smiles-column", "reaction_smiles", "reaction SMILES column")
	f.StringVar(&opts.OutDir, "out-dir", "selenzyme_results", "directory receiving one CSV per reaction")
	f.IntVar(&opts.Concurrency, "concurrency", 0, "parallel requests (default from config)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newQueryEzymeCmd() *cobra.Command {
	var (
		input       string
		endpoint    string
		outDir      string
		concurrency int
		pairOpts    ezyme.PairOptions
	)
	cmd := &cobra.Command{
		Use:   "ezyme",
		Short: "Submit substrate and product pairs to E-zyme",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				src, err := readTable(input)
				if err != nil {
					return err
				}
				pairs, err := ezyme.ReadPairs(src, pairOpts)
				if err != nil {
					return err
				}
				if endpoint == "" {
					endpoint = cc.Config.Tools.EzymeURL
				}
				client, closeFn := cc.HTTPClient()
				defer closeFn()

				results, err := ezyme.QueryAll(ctx, ezyme.NewService(client, endpoint), pairs, outDir, cc.concurrency(concurrency), cc.Logger.Named("ezyme"))
				if err != nil {
					return err
				}
				files, skipped, failed := 0, 0, 0
				for _, r := range results {
					files += len(r.Saved)
					if r.Skipped {
						skipped++
					}
					if r.Err != nil {
						failed++
					}
				}
				return PrintResult(cmd, NewSummary("E-zyme queries").
					Add("out_dir", outDir).
					Add("pairs", len(pairs)).
					Add("files_saved", files).
					Add("skipped", skipped).
					Add("failed", failed))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&input, "input", "", "table of reactant and product compound ids (required)")
	f.StringVar(&endpoint, "url", "", "E-zyme endpoint (default from config)")
	f.StringVar(&outDir, "out-dir", "ezyme_results", "directory receiving one folder per reaction")
	f.IntVar(&concurrency, "concurrency", 0, "parallel requests (default from config)")
	f.StringVar(&pairOpts.IDColumn, "id-column", "reaction_id", "reaction id column")
	f.StringVar(&pairOpts.ReactantColumn, "reactant-column", "reactant", "reactant compound column")
	f.StringVar(&pairOpts.ProductColumn, "product-column", "product", "product compound column")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newQueryTheiaCmd() *cobra.Command {
	var (
		queriesPath string
		idsPath     string
		out         string
		opts        theia.Options
	)
	cmd := &cobra.Command{
		Use:   "theia",
		Short: "Run the Theia predictor over a query file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				queries, err := theia.ReadQueries(queriesPath)
				if err != nil {
					return err
				}
				idTable, err := readTable(idsPath)
				if err != nil {
					return err
				}
				ids, err := idTable.Column(opts.IDColumn)
				if err != nil {
					return err
				}
				if opts.Binary == "" {
					opts.Binary = cc.Config.Tools.TheiaBinary
				}
				if opts.Model == "" {
					opts.Model = cc.Config.Tools.TheiaModel
				}
				opts.Concurrency = cc.concurrency(opts.Concurrency)

				t, err := theia.Query(ctx, theia.ExecRunner{}, queries, ids, opts, cc.Logger.Named("theia"))
				if err != nil {
					return err
				}
				if err := cc.writeTable(t, out, "query_theia"); err != nil {
					return err
				}
				failed := 0
				for r := range t.Rows {
					if strings.HasPrefix(t.Get(r, theia.PredictionColumn), theia.ErrorPrefix) {
						failed++
					}
				}
				return PrintResult(cmd, NewSummary("Theia predictions").
					Add("out", out).
					Add("queries", len(queries)).
					Add("failed", failed))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&queriesPath, "queries", "", "file with one reaction SMILES per line (required)")
	f.StringVar(&idsPath, "ids", "", "table holding the reaction id of each query line (required)")
	f.StringVar(&opts.IDColumn, "id-column", "reaction_id", "reaction id column of --ids")
	f.StringVar(&out, "out", "theia_raw.csv", "raw prediction table to write")
	f.StringVar(&opts.Binary, "binary", "", "predictor executable (default from config)")
	f.StringVar(&opts.Model, "model", "", "predictor model name (default from config)")
	f.IntVar(&opts.Concurrency, "concurrency", 0, "parallel runs (default from config)")
	_ = cmd.MarkFlagRequired("queries")
	_ = cmd.MarkFlagRequired("ids")
	return cmd
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIO, "open id file").WithDetail(path)
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			out = append(out, l)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIO, "read id file").WithDetail(path)
	}
	return out, nil
}
