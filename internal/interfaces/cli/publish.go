package cli

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

func newPublishCmd() *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "publish <path>...",
		Short: "Upload result files or directories to the object store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, cc *CLIContext) error {
				if runID == "" {
					runID = cc.RunID
				}
				p, err := cc.Publisher()
				if err != nil {
					return err
				}
				uploaded, err := p.Publish(ctx, runID, args)
				if err != nil {
					return err
				}
				result := &TableResult{Header: []string{"path", "key", "size"}}
				for _, u := range uploaded {
					result.Rows = append(result.Rows, []string{u.Path, u.Key, strconv.FormatInt(u.Size, 10)})
				}
				return PrintResult(cmd, result)
			})
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run id used in the object keys (default: this run)")
	return cmd
}
