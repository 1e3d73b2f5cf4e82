package cli

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/enzbench/internal/application/methods/simmer"
	"github.com/turtacn/enzbench/internal/domain/enrichment"
)

func newSimmerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simmer",
		Short: "Build the SIMMER reference database and predict ECs by enrichment",
	}
	cmd.AddCommand(newSimmerBuildCmd(), newSimmerPredictCmd(), newSimmerPValuesCmd())
	return cmd
}

func newSimmerBuildCmd() *cobra.Command {
	var (
		input string
		dbDir string
		opts  simmer.BuildOptions
	)
	cmd := &cobra.Command{
		Use:   "build-db",
		Short: "Fingerprint a labelled reaction set into a SIMMER database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				sc := cc.Config.Simmer
				if !cmd.Flags().Changed("permutations") {
					opts.Permutations = sc.Permutations
				}
				if !cmd.Flags().Changed("seed") {
					opts.Seed = sc.Seed
				}
				if !cmd.Flags().Changed("workers") {
					opts.Workers = sc.Workers
				}
				src, err := readTable(input)
				if err != nil {
					return err
				}
				start := time.Now()
				db, err := simmer.BuildDatabase(ctx, src, opts, cc.Logger.Named("simmer"))
				if err != nil {
					return err
				}
				if err := db.Save(dbDir); err != nil {
					return err
				}
				cc.Metrics.StepDuration.WithLabelValues("simmer_build").Observe(time.Since(start).Seconds())
				cc.Metrics.RowsProcessed.WithLabelValues("simmer_build").Add(float64(db.Len()))
				cc.Metrics.RowsSkipped.WithLabelValues("simmer_build", "no_ec_or_fingerprint").Add(float64(src.Len() - db.Len()))
				return PrintResult(cmd, NewSummary("SIMMER database").
					Add("db_dir", dbDir).
					Add("reactions", db.Len()).
					Add("skipped", src.Len()-db.Len()))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&input, "input", "", "reaction table prepared with 'prepare simmer --include-ec' (required)")
	f.StringVar(&dbDir, "db-dir", "simmer_db", "database directory to write")
	f.StringVar(&opts.ECColumn, "ec-column", "EC_number", "EC column")
	f.IntVar(&opts.Permutations, "permutations", 0, "permutations for the null distribution (default from config)")
	f.Int64Var(&opts.Seed, "seed", 0, "permutation seed (default from config)")
	f.IntVar(&opts.Workers, "workers", 0, "parallel workers (default from config)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newSimmerPredictCmd() *cobra.Command {
	var (
		dbDir   string
		queries string
		opts    simmer.PredictOptions
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict ECs for query reactions against a SIMMER database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				if !cmd.Flags().Changed("alpha") {
					opts.Alpha = cc.Config.Simmer.Alpha
				}
				if !cmd.Flags().Changed("workers") {
					opts.Workers = cc.Config.Simmer.Workers
				}
				db, err := simmer.LoadDatabase(dbDir)
				if err != nil {
					return err
				}
				qt, err := readTable(queries)
				if err != nil {
					return err
				}
				qs, err := simmer.ReadQueries(qt)
				if err != nil {
					return err
				}
				results, err := simmer.Predict(ctx, db, qs, opts, cc.Logger.Named("simmer"))
				if err != nil {
					return err
				}
				written, skipped := 0, 0
				for _, r := range results {
					if r.Skipped {
						skipped++
						continue
					}
					written++
				}
				cc.Metrics.RowsProcessed.WithLabelValues("simmer_predict").Add(float64(written))
				cc.Metrics.RowsSkipped.WithLabelValues("simmer_predict", "exists_or_unparsable").Add(float64(skipped))
				return PrintResult(cmd, NewSummary("SIMMER predictions").
					Add("out_dir", opts.OutDir).
					Add("queries", len(qs)).
					Add("written", written).
					Add("skipped", skipped))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&dbDir, "db-dir", "simmer_db", "database directory")
	f.StringVar(&queries, "queries", "", "query file written by 'prepare simmer' (required)")
	f.StringVar(&opts.OutDir, "out-dir", "simmer_predictions", "directory receiving one prediction file per query")
	f.Float64Var(&opts.Alpha, "alpha", 0, "significance level (default from config)")
	f.IntVar(&opts.Workers, "workers", 0, "parallel workers (default from config)")
	f.BoolVar(&opts.Overwrite, "overwrite", false, "recompute queries whose prediction file exists")
	_ = cmd.MarkFlagRequired("queries")
	return cmd
}

func newSimmerPValuesCmd() *cobra.Command {
	var (
		dbDir string
		out   string
		opts  enrichment.PValueOptions
	)
	cmd := &cobra.Command{
		Use:   "pvalues",
		Short: "Compute database wide EC enrichment p-values",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				sc := cc.Config.Simmer
				if !cmd.Flags().Changed("permutations") {
					opts.Permutations = sc.Permutations
				}
				if !cmd.Flags().Changed("seed") {
					opts.Seed = sc.Seed
				}
				if !cmd.Flags().Changed("workers") {
					opts.Workers = sc.Workers
				}
				db, err := simmer.LoadDatabase(dbDir)
				if err != nil {
					return err
				}
				t, err := simmer.PValueTable(ctx, db, opts)
				if err != nil {
					return err
				}
				if out == "" {
					out = filepath.Join(dbDir, simmer.FilePValues)
				}
				if err := cc.writeTable(t, out, "simmer_pvalues"); err != nil {
					return err
				}
				return PrintResult(cmd, NewSummary("SIMMER p-values").
					Add("out", out).
					Add("categories", t.Len()))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&dbDir, "db-dir", "simmer_db", "database directory")
	f.StringVar(&out, "out", "", "p-value table to write (default <db-dir>/"+simmer.FilePValues+")")
	f.IntVar(&opts.Permutations, "permutations", 0, "permutations per category (default from config)")
	f.Int64Var(&opts.Seed, "seed", 0, "permutation seed (default from config)")
	f.IntVar(&opts.Workers, "workers", 0, "parallel workers (default from config)")
	return cmd
}
