package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/turtacn/enzbench/internal/application/methods/becpred"
	"github.com/turtacn/enzbench/internal/application/methods/bridgit"
	"github.com/turtacn/enzbench/internal/application/methods/claire"
	"github.com/turtacn/enzbench/internal/application/methods/ezyme"
	"github.com/turtacn/enzbench/internal/application/methods/selenzyme"
	"github.com/turtacn/enzbench/internal/application/methods/simmer"
	"github.com/turtacn/enzbench/internal/application/methods/theia"
	"github.com/turtacn/enzbench/internal/infrastructure/table"
)

func newCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Normalise tool outputs into one prediction table per tool",
	}
	cmd.AddCommand(
		newCollectBridgitCmd(),
		newCollectSimmerCmd(),
		newCollectClaireCmd(),
		newCollectSelenzymeCmd(),
		newCollectEzymeCmd(),
		newCollectTheiaCmd(),
		newCollectBECPredCmd(),
	)
	return cmd
}

// collected writes t and prints a short summary for tool.
func collected(cmd *cobra.Command, cc *CLIContext, tool string, t *table.Table, out string) error {
	if err := cc.writeTable(t, out, "collect_"+tool); err != nil {
		return err
	}
	return PrintResult(cmd, NewSummary(tool+" predictions").
		Add("out", out).
		Add("reactions", t.Len()))
}

func newCollectBridgitCmd() *cobra.Command {
	var (
		refPath string
		out     string
		opts    bridgit.CollectOptions
	)
	cmd := &cobra.Command{
		Use:   "bridgit",
		Short: "Collect BridgIT result archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				ref, err := readTable(refPath)
				if err != nil {
					return err
				}
				opts.Reference = ref
				t, err := bridgit.CollectResults(opts, cc.Logger.Named("bridgit"))
				if err != nil {
					return err
				}
				return collected(cmd, cc, "bridgit", t, out)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.ResultsDir, "results-dir", "", "directory of result zips (required)")
	f.StringVar(&refPath, "reference", "", "reference table with the known reaction ids (required)")
	f.StringVar(&opts.RefIDColumn, "ref-id-column", "reaction_id", "id column of the reference table")
	f.StringVar(&opts.ECColumn, "ec-column", bridgit.DefaultECColumn, "EC column inside the result files")
	f.StringVar(&out, "out", "bridgit.csv", "collected table to write")
	_ = cmd.MarkFlagRequired("results-dir")
	_ = cmd.MarkFlagRequired("reference")
	return cmd
}

func newCollectSimmerCmd() *cobra.Command {
	var dir, out string
	cmd := &cobra.Command{
		Use:   "simmer",
		Short: "Collect SIMMER prediction files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				t, err := simmer.Collect(dir, cc.Logger.Named("simmer"))
				if err != nil {
					return err
				}
				return collected(cmd, cc, "simmer", t, out)
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory of *_EC_predictions.tsv files (required)")
	cmd.Flags().StringVar(&out, "out", "simmer.csv", "collected table to write")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func newCollectClaireCmd() *cobra.Command {
	var input, out string
	cmd := &cobra.Command{
		Use:   "claire",
		Short: "Collect CLAIRE inference output",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				t, err := claire.Collect(input, cc.Logger.Named("claire"))
				if err != nil {
					return err
				}
				return collected(cmd, cc, "claire", t, out)
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "CLAIRE result file (required)")
	cmd.Flags().StringVar(&out, "out", "claire.csv", "collected table to write")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newCollectSelenzymeCmd() *cobra.Command {
	var dir, ecColumn, out string
	cmd := &cobra.Command{
		Use:   "selenzyme",
		Short: "Collect Selenzyme result tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				t, err := selenzyme.Collect(dir, ecColumn, cc.Logger.Named("selenzyme"))
				if err != nil {
					return err
				}
				return collected(cmd, cc, "selenzyme", t, out)
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory of per reaction CSVs (required)")
	cmd.Flags().StringVar(&ecColumn, "ec-column", selenzyme.DefaultECColumn, "EC column of the result tables")
	cmd.Flags().StringVar(&out, "out", "selenzyme.csv", "collected table to write")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func newCollectEzymeCmd() *cobra.Command {
	var dir, out string
	cmd := &cobra.Command{
		Use:   "ezyme",
		Short: "Collect E-zyme result folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				t, err := ezyme.Collect(dir, cc.Logger.Named("ezyme"))
				if err != nil {
					return err
				}
				return collected(cmd, cc, "ezyme", t, out)
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory of per reaction folders (required)")
	cmd.Flags().StringVar(&out, "out", "ezyme.csv", "collected table to write")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func newCollectTheiaCmd() *cobra.Command {
	var input, idColumn, out string
	cmd := &cobra.Command{
		Use:   "theia",
		Short: "Normalise raw Theia probabilities into ranked predictions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				raw, err := readTable(input)
				if err != nil {
					return err
				}
				t, err := theia.Collect(raw, idColumn, cc.Logger.Named("theia"))
				if err != nil {
					return err
				}
				return collected(cmd, cc, "theia", t, out)
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "raw table written by 'query theia' (required)")
	cmd.Flags().StringVar(&idColumn, "id-column", "reaction_id", "reaction id column")
	cmd.Flags().StringVar(&out, "out", "theia.csv", "collected table to write")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newCollectBECPredCmd() *cobra.Command {
	var input, labelsPath, out string
	cmd := &cobra.Command{
		Use:   "becpred",
		Short: "Map BEC-Pred class ids back to EC classes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				preds, err := readTable(input)
				if err != nil {
					return err
				}
				labels, err := becpred.ReadLabels(labelsPath)
				if err != nil {
					return err
				}
				t, err := becpred.AssignLabels(preds, labels, cc.Logger.Named("becpred"))
				if err != nil {
					return err
				}
				return collected(cmd, cc, "becpred", t, out)
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "prediction table with a Prediction column (required)")
	cmd.Flags().StringVar(&labelsPath, "labels", "", "labels file written by 'prepare becpred-db' (required)")
	cmd.Flags().StringVar(&out, "out", "becpred.csv", "collected table to write")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("labels")
	return cmd
}
