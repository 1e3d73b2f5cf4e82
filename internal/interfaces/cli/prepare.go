package cli

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/turtacn/enzbench/internal/application/methods/becpred"
	"github.com/turtacn/enzbench/internal/application/methods/bridgit"
	"github.com/turtacn/enzbench/internal/application/methods/selenzyme"
	"github.com/turtacn/enzbench/internal/application/methods/simmer"
	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/scrape"
)

func newPrepareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Prepare inputs for the prediction tools",
	}
	cmd.AddCommand(
		newPrepareBridgitKEGGCmd(),
		newPrepareBridgitSMILESCmd(),
		newPrepareBridgitSplitCmd(),
		newPrepareSimmerCmd(),
		newPrepareBECPredCmd(),
		newPrepareSelenzymeCmd(),
	)
	return cmd
}

func newPrepareBridgitKEGGCmd() *cobra.Command {
	var (
		input      string
		opts       bridgit.KEGGOptions
		systemFile string
	)
	cmd := &cobra.Command{
		Use:   "bridgit-kegg",
		Short: "Write a BridgIT system file from KEGG equations and download their molfiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				src, err := readTable(input)
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("delay") {
					opts.Delay = cc.Config.Tools.KEGGDelay
				}
				client, closeFn := cc.HTTPClient()
				defer closeFn()
				kegg := scrape.NewKEGG(client, cc.Config.Tools.KEGGBaseURL)

				res, err := bridgit.PrepareKEGG(ctx, src, kegg, opts, cc.Logger.Named("bridgit"))
				if err != nil {
					return err
				}
				if err := bridgit.WriteSystemFile(systemFile, bridgit.KEGGHeader, res.Entries); err != nil {
					return err
				}
				return PrintResult(cmd, NewSummary("BridgIT KEGG input").
					Add("system_file", systemFile).
					Add("entries", len(res.Entries)).
					Add("molfiles_saved", len(res.Saved)).
					Add("molfiles_failed", len(res.Failed)).
					Add("unexpected_tokens", len(res.Unexpected)))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&input, "input", "", "reaction table with KEGG equations (required)")
	f.StringVar(&opts.EquationColumn, "equation-column", "Equation", "column holding the KEGG equation")
	f.StringVar(&opts.MolfileDir, "molfile-dir", "molfiles", "directory receiving the compound molfiles")
	f.DurationVar(&opts.Delay, "delay", 0, "pause after each download (default from config)")
	f.StringVar(&systemFile, "system-file", "systemfile.txt", "system file to write")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newPrepareBridgitSMILESCmd() *cobra.Command {
	var (
		input      string
		opts       bridgit.SMILESOptions
		systemFile string
	)
	cmd := &cobra.Command{
		Use:   "bridgit-smiles",
		Short: "Write a BridgIT system file and molfiles from reaction SMILES",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				src, err := readTable(input)
				if err != nil {
					return err
				}
				res, err := bridgit.PrepareSMILES(src, opts, cc.Logger.Named("bridgit"))
				if err != nil {
					return err
				}
				if err := bridgit.WriteSystemFile(systemFile, bridgit.SMILESHeader, res.Entries); err != nil {
					return err
				}
				return PrintResult(cmd, NewSummary("BridgIT SMILES input").
					Add("system_file", systemFile).
					Add("entries", len(res.Entries)).
					Add("compounds", len(res.Compounds)).
					Add("invalid_smiles", len(res.Invalid)))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&input, "input", "", "reaction table with SMILES (required)")
	f.StringVar(&opts.IDColumn, "id-column", "drug", "reaction id column")
	f.StringVar(&opts.SMILESColumn, "smiles-column", "reaction_smiles", "reaction SMILES column")
	f.StringVar(&opts.MolfileDir, "molfile-dir", "molfiles", "directory receiving the compound molfiles")
	f.StringVar(&systemFile, "system-file", "systemfile.txt", "system file to write")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newPrepareBridgitSplitCmd() *cobra.Command {
	var (
		systemFile string
		opts       bridgit.SplitOptions
	)
	cmd := &cobra.Command{
		Use:   "bridgit-split",
		Short: "Split a system file into zipped BridgIT batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				archives, err := bridgit.SplitBatches(systemFile, opts, cc.Logger.Named("bridgit"))
				if err != nil {
					return err
				}
				return PrintResult(cmd, NewSummary("BridgIT batches").
					Add("out_dir", opts.OutDir).
					Add("archives", len(archives)))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&systemFile, "system-file", "", "system file to split (required)")
	f.StringVar(&opts.MolfileDir, "molfile-dir", "molfiles", "directory holding the compound molfiles")
	f.StringVar(&opts.OutDir, "out-dir", "batches", "directory receiving the archives")
	f.IntVar(&opts.Batches, "batches", bridgit.DefaultBatches, "number of batches")
	f.IntVar(&opts.HeaderLines, "header-lines", 1, "header lines to drop from the system file")
	_ = cmd.MarkFlagRequired("system-file")
	return cmd
}

func newPrepareSimmerCmd() *cobra.Command {
	var (
		input string
		out   string
		opts  simmer.InputOptions
	)
	cmd := &cobra.Command{
		Use:   "simmer",
		Short: "Convert a reaction dataset into SIMMER's query layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				src, err := readTable(input)
				if err != nil {
					return err
				}
				t, err := simmer.PrepareInput(src, opts, cc.Logger.Named("simmer"))
				if err != nil {
					return err
				}
				cc.Metrics.RowsSkipped.WithLabelValues("prepare_simmer", "malformed").Add(float64(src.Len() - t.Len()))
				if err := cc.writeTable(t, out, "prepare_simmer"); err != nil {
					return err
				}
				return PrintResult(cmd, NewSummary("SIMMER input").
					Add("out", out).
					Add("reactions", t.Len()).
					Add("skipped", src.Len()-t.Len()))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&input, "input", "", "reaction dataset (required)")
	f.StringVar(&out, "out", "simmer_input.tsv", "query file to write")
	f.StringVar(&opts.IDColumn, "id-column", "reaction_id", "reaction id column")
	f.StringVar(&opts.NamesColumn, "names-column", "substrates_products", "column with 'A + B >> C' names")
	f.StringVar(&opts.SMILESColumn, "smiles-column", "reaction_smiles", "reaction SMILES column")
	f.StringVar(&opts.ECColumn, "ec-column", "EC_number", "EC column copied with --include-ec")
	f.StringVar(&opts.ReactionSep, "reaction-sep", ">>", "separator between substrate and product names")
	f.BoolVar(&opts.IncludeEC, "include-ec", false, "append the EC column, for database building")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newPrepareBECPredCmd() *cobra.Command {
	var (
		trainPath, testPath string
		outDir              string
		opts                becpred.BuildOptions
	)
	cmd := &cobra.Command{
		Use:   "becpred-db",
		Short: "Build the BEC-Pred train, test and label files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				if !cmd.Flags().Changed("seed") {
					opts.Seed = cc.Config.BECPred.Seed
				}
				if !cmd.Flags().Changed("train-fraction") {
					opts.TrainFraction = cc.Config.BECPred.TrainFraction
				}
				train, err := readTable(trainPath)
				if err != nil {
					return err
				}
				test, err := readTable(testPath)
				if err != nil {
					return err
				}
				db, err := becpred.BuildDatabase(train, test, opts, cc.Logger.Named("becpred"))
				if err != nil {
					return err
				}
				paths := []string{
					filepath.Join(outDir, "train.csv"),
					filepath.Join(outDir, "test.csv"),
					filepath.Join(outDir, "ec_class_labels.csv"),
				}
				if err := db.Save(paths[0], paths[1], paths[2]); err != nil {
					return err
				}
				cc.Logger.Info("BEC-Pred database written", logging.String("dir", outDir), logging.Int("classes", db.Labels.Len()))
				return PrintResult(cmd, NewSummary("BEC-Pred database").
					Add("train_rows", db.Train.Len()).
					Add("test_rows", db.Test.Len()).
					Add("classes", db.Labels.Len()).
					Add("out_dir", outDir))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&trainPath, "train", "", "training reactions (required)")
	f.StringVar(&testPath, "test", "", "test reactions (required)")
	f.StringVar(&outDir, "out-dir", "becpred_db", "output directory")
	f.StringVar(&opts.ECColumn, "ec-column", "EC_number", "EC column")
	f.StringVar(&opts.SMILESColumn, "smiles-column", "reaction_smiles", "reaction SMILES column")
	f.BoolVar(&opts.RemoveIncomplete, "remove-incomplete", false, "drop ECs without a numeric third level")
	f.Int64Var(&opts.Seed, "seed", 0, "split seed (default from config)")
	f.Float64Var(&opts.TrainFraction, "train-fraction", 0, "share of training rows kept as train (default from config)")
	_ = cmd.MarkFlagRequired("train")
	_ = cmd.MarkFlagRequired("test")
	return cmd
}

func newPrepareSelenzymeCmd() *cobra.Command {
	var (
		testPath string
		idColumn string
		outDir   string
	)
	cmd := &cobra.Command{
		Use:   "selenzyme-db [db files...]",
		Short: "Remove test reactions from the Selenzyme reference database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				files := args
				if len(files) == 0 {
					files = cc.Config.Tools.Selenzyme.DBFiles
				}
				ids, err := selenzyme.ReadTestIDs(testPath, idColumn)
				if err != nil {
					return err
				}
				removed, err := selenzyme.FilterDatabase(files, ids, outDir, cc.Logger.Named("selenzyme"))
				if err != nil {
					return err
				}
				s := NewSummary("Selenzyme database").Add("out_dir", outDir)
				for _, f := range files {
					s.Add(filepath.Base(f), removed[filepath.Base(f)])
				}
				return PrintResult(cmd, s)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&testPath, "test", "", "test reaction table (required)")
	f.StringVar(&idColumn, "id-column", "reaction_id", "column of test reaction ids")
	f.StringVar(&outDir, "out-dir", "selenzyme_db", "directory receiving the filtered files")
	_ = cmd.MarkFlagRequired("test")
	return cmd
}
