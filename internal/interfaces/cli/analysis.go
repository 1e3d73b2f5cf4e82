package cli

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/enzbench/internal/application/dataset"
	"github.com/turtacn/enzbench/internal/application/join"
	"github.com/turtacn/enzbench/internal/domain/evaluate"
	"github.com/turtacn/enzbench/internal/domain/vote"
	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
)

func newJoinCmd() *cobra.Command {
	var (
		in  join.Input
		out string
	)
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Outer join the per tool prediction tables on the reaction id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				res, err := join.Merge(in, cc.Logger.Named("join"))
				if err != nil {
					return err
				}
				if err := cc.writeTable(res.Table, out, "join"); err != nil {
					return err
				}
				return PrintResult(cmd, NewSummary("Joined predictions").
					Add("out", out).
					Add("files", len(res.Files)).
					Add("rows", res.Table.Len()).
					Add("columns", len(res.Table.Header)).
					Add("duplicates", res.Duplicates))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Dir, "dir", "", "directory with one CSV per tool (required)")
	f.StringVar(&in.IDColumn, "id-column", join.DefaultIDColumn, "name given to the first column of every table")
	f.BoolVar(&in.Prefix, "prefix", false, "prefix columns with the file name")
	f.StringVar(&in.TruthPath, "truth", "", "optional ground truth table keyed by its first column")
	f.StringVar(&in.TruthColumn, "truth-column", "EC_number", "EC column of the ground truth table")
	f.StringVar(&in.TruthRename, "truth-rename", "", "name of the truth column in the output")
	f.StringVar(&out, "out", "joined.csv", "merged table to write")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func newVoteCmd() *cobra.Command {
	var (
		input    string
		idColumn string
		methods  []string
		useAll   bool
		entity   string
		out      string
		depth    int
		topK     int
	)
	cmd := &cobra.Command{
		Use:   "vote",
		Short: "Majority vote EC predictions across methods",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				if !cmd.Flags().Changed("depth") {
					depth = cc.Config.Vote.Depth
				}
				if !cmd.Flags().Changed("top-k") {
					topK = cc.Config.Vote.TopK
				}
				t, err := readTable(input)
				if err != nil {
					return err
				}
				selected, err := vote.SelectMethods(t.Header, idColumn, methods, useAll)
				if err != nil {
					return err
				}
				voter := vote.NewVoter(depth, topK)
				cc.Logger.Debug("voting", logging.Strings("methods", selected), logging.Int("depth", voter.Depth), logging.Int("top_k", voter.TopK))

				if entity != "" {
					res, err := voter.VoteEntity(t, idColumn, entity, selected)
					if err != nil {
						return err
					}
					return PrintResult(cmd, NewSummary("Majority vote").
						Add(vote.ColumnEntity, res.Entity).
						Add(vote.ColumnTop1, res.Top1).
						Add(vote.ColumnTop5, res.Top5))
				}

				votes, err := voter.VoteAll(t, idColumn, selected)
				if err != nil {
					return err
				}
				if err := cc.writeTable(votes, out, "vote"); err != nil {
					return err
				}
				return PrintResult(cmd, NewSummary("Majority vote").
					Add("out", out).
					Add("methods", len(selected)).
					Add("entities", votes.Len()))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&input, "input", "", "joined prediction table (required)")
	f.StringVar(&idColumn, "id-column", join.DefaultIDColumn, "entity id column")
	f.StringSliceVar(&methods, "methods", nil, "method columns to vote over")
	f.BoolVar(&useAll, "all", false, "vote over every column except the id")
	f.StringVar(&entity, "entity", "", "vote for a single entity and print the result")
	f.StringVar(&out, "out", "majority_vote.csv", "vote table to write")
	f.IntVar(&depth, "depth", 0, "EC depth predictions are cut to (default from config)")
	f.IntVar(&topK, "top-k", 0, "size of the top-k consensus (default from config)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newEvaluateCmd() *cobra.Command {
	var (
		input string
		out   string
		opts  evaluate.Options
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score every method against the ground truth EC column",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				if !cmd.Flags().Changed("depths") {
					opts.Depths = cc.Config.Evaluate.Depths
				}
				if !cmd.Flags().Changed("exclude-classes") {
					opts.ExcludedClasses = cc.Config.Evaluate.ExcludedClasses
				}
				t, err := readTable(input)
				if err != nil {
					return err
				}
				reports, err := evaluate.Evaluate(t, opts)
				if err != nil {
					return err
				}

				log := cc.Logger.Named("evaluate")
				result := &TableResult{Header: []string{"depth", "method", "mcc", "precision", "recall", "coverage", "support"}}
				for _, rep := range reports {
					depth := strconv.Itoa(rep.Depth)
					for _, rm := range rep.Removed {
						log.Debug("row without scorable truth", logging.String("id", rm.ID), logging.String("truth", rm.Truth))
					}
					if len(rep.Removed) > 0 {
						log.Warn("rows removed before scoring", logging.Int("depth", rep.Depth), logging.Int("removed", len(rep.Removed)))
					}
					for _, s := range rep.Scores {
						cc.Metrics.EvaluationMCC.WithLabelValues(s.Method, depth).Set(s.MCC)
						cc.Metrics.EvaluationCoverage.WithLabelValues(s.Method, depth).Set(s.Coverage)
						result.Rows = append(result.Rows, []string{
							depth,
							s.Method,
							evaluate.FormatFloat(s.MCC),
							evaluate.FormatFloat(s.Precision),
							evaluate.FormatFloat(s.Recall),
							evaluate.FormatFloat(s.Coverage),
							strconv.Itoa(s.Support),
						})
					}
				}
				if out != "" {
					if err := cc.writeTable(evaluate.SummaryTable(reports), out, "evaluate"); err != nil {
						return err
					}
				}
				return PrintResult(cmd, result)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&input, "input", "", "joined table with a truth column (required)")
	f.StringVar(&opts.IDColumn, "id-column", join.DefaultIDColumn, "reaction id column")
	f.StringVar(&opts.TruthColumn, "truth-column", "EC_number", "ground truth column")
	f.StringSliceVar(&opts.Methods, "methods", nil, "method columns to score (default every other column)")
	f.IntSliceVar(&opts.Depths, "depths", nil, "EC depths to score at (default from config)")
	f.IntSliceVar(&opts.ExcludedClasses, "exclude-classes", nil, "EC classes dropped before scoring (default from config)")
	f.StringVar(&out, "out", "evaluation.csv", "per class summary table to write, empty to skip")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newCanonicalizeCmd() *cobra.Command {
	var input, out string
	cmd := &cobra.Command{
		Use:   "canonicalize",
		Short: "Rewrite reaction SMILES, one per line, in canonical form",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				stats, err := dataset.Canonicalize(input, out, cc.Logger.Named("canonicalize"))
				if err != nil {
					return err
				}
				cc.Metrics.RowsProcessed.WithLabelValues("canonicalize").Add(float64(stats.Written))
				cc.Metrics.RowsSkipped.WithLabelValues("canonicalize", "invalid").Add(float64(stats.Invalid))
				return PrintResult(cmd, NewSummary("Canonical reactions").
					Add("out", out).
					Add("written", stats.Written).
					Add("invalid", stats.Invalid).
					Add("dropped_fragments", stats.DroppedFragments))
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "file with one reaction SMILES per line (required)")
	cmd.Flags().StringVar(&out, "out", "canonical.txt", "file to write")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newDistributionCmd() *cobra.Command {
	var column, out string
	cmd := &cobra.Command{
		Use:   "distribution <dataset>...",
		Short: "Count EC classes and subclasses per dataset",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				counts := dataset.Distribution(args, column, cc.Logger.Named("distribution"))
				t := dataset.DistributionTable(counts)
				if out != "" {
					if err := cc.writeTable(t, out, "distribution"); err != nil {
						return err
					}
				}
				return PrintResult(cmd, tableResult(t))
			})
		},
	}
	cmd.Flags().StringVar(&column, "column", "EC_number", "EC column of every dataset")
	cmd.Flags().StringVar(&out, "out", "", "distribution table to write")
	return cmd
}
