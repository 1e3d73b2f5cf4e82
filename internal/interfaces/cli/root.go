package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/enzbench/internal/application/publish"
	"github.com/turtacn/enzbench/internal/config"
	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/enzbench/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	Collector    prometheus.MetricsCollector
	Metrics      *prometheus.PipelineMetrics
	RunID        string
	Started      time.Time
	OutputFormat string
	Verbose      bool
	NoColor      bool

	cancel context.CancelFunc
}

// NewRootCommand creates the root cobra command with all global flags and subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "enzbench",
		Short: "enzbench prepares, collects and scores EC number predictions",
		Long: "enzbench drives the enzyme function predictors BridgIT, SIMMER, CLAIRE,\n" +
			"SelenzymeRF, BEC-Pred, E-zyme and Theia over reaction datasets, normalises\n" +
			"their outputs into one EC representation, builds majority-vote consensus\n" +
			"predictions and scores every method against ground-truth EC labels.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPostRun(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./enzbench.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 0, "global operation timeout (0 means none)")

	cmd.AddCommand(
		newPrepareCmd(),
		newQueryCmd(),
		newCollectCmd(),
		newSimmerCmd(),
		newJoinCmd(),
		newVoteCmd(),
		newEvaluateCmd(),
		newCanonicalizeCmd(),
		newDistributionCmd(),
		newPublishCmd(),
		newVersionCmd(),
	)
	return cmd
}

// persistentPreRun initializes config, logger and metrics, then stores CLIContext.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	switch strings.ToLower(opts.OutputFormat) {
	case "text", "json", "table":
	default:
		return errors.InvalidParam("unknown output format").WithDetail(opts.OutputFormat)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	runID := publish.NewRunID()
	logger, err := initLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	logger = logger.With(logging.String("run_id", runID))
	logging.SetDefault(logger)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: cfg.Metrics.Namespace}, logger)
	if err != nil {
		return fmt.Errorf("metrics initialization failed: %w", err)
	}

	if opts.NoColor {
		color.NoColor = true
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cliCtx := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		Collector:    collector,
		Metrics:      prometheus.NewPipelineMetrics(collector),
		RunID:        runID,
		Started:      time.Now(),
		OutputFormat: strings.ToLower(opts.OutputFormat),
		Verbose:      opts.Verbose,
		NoColor:      opts.NoColor,
	}
	if opts.Timeout > 0 {
		ctx, cliCtx.cancel = context.WithTimeout(ctx, opts.Timeout)
	}
	ctx = logging.WithRunID(ctx, runID)
	ctx = context.WithValue(ctx, cliContextKey{}, cliCtx)
	cmd.SetContext(ctx)

	logger.Debug("command started", logging.String("command", cmd.CommandPath()))
	return nil
}

// persistentPostRun records the run and exports metrics when a textfile is configured.
func persistentPostRun(cmd *cobra.Command) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return nil
	}
	if cliCtx.cancel != nil {
		defer cliCtx.cancel()
	}
	cliCtx.Metrics.RecordRun(cmd.CommandPath(), cliCtx.Started)
	logging.LogStepDuration(cliCtx.Logger, cmd.CommandPath(), cliCtx.Started)
	if path := cliCtx.Config.Metrics.Textfile; path != "" {
		if err := cliCtx.Collector.WriteTextfile(path); err != nil {
			cliCtx.Logger.Warn("failed to write metrics textfile", logging.String("path", path), logging.Err(err))
		}
	}
	return nil
}

// initLogger creates a logger configured for CLI usage (output to stderr).
func initLogger(cfg *config.Config, opts *RootOptions) (logging.Logger, error) {
	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = strings.ToLower(opts.LogLevel)
	}
	if opts.Verbose {
		level = "debug"
	}
	return logging.NewLogger(logging.LogConfig{
		Level:       level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
	})
}

// GetCLIContext extracts CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.InvalidParam("command context is nil")
	}

	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.InvalidParam("CLIContext not found in command context")
	}

	return cliCtx, nil
}

// Execute is the main entry point for the CLI application.
func Execute() error {
	rootCmd := NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}

	return nil
}

// Summary is the key/value outcome a command prints when it finishes.
type Summary struct {
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// Item is one line of a Summary.
type Item struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// NewSummary starts a summary.
func NewSummary(title string) *Summary {
	return &Summary{Title: title}
}

// Add appends a key/value pair and returns s for chaining.
func (s *Summary) Add(key string, value interface{}) *Summary {
	s.Items = append(s.Items, Item{Key: key, Value: value})
	return s
}

// TableHeaders implements the table output.
func (s *Summary) TableHeaders() []string { return []string{"key", "value"} }

// TableRows implements the table output.
func (s *Summary) TableRows() [][]string {
	rows := make([][]string, len(s.Items))
	for i, it := range s.Items {
		rows[i] = []string{it.Key, fmt.Sprint(it.Value)}
	}
	return rows
}

func (s *Summary) String() string {
	var sb strings.Builder
	sb.WriteString(s.Title)
	for _, it := range s.Items {
		fmt.Fprintf(&sb, "\n  %s: %v", it.Key, it.Value)
	}
	return sb.String()
}

// PrintResult outputs data in the format specified by CLIContext.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return printJSON(cmd.OutOrStdout(), data)
	}

	switch cliCtx.OutputFormat {
	case "json":
		return printJSON(cmd.OutOrStdout(), data)
	case "table":
		return printTable(cmd.OutOrStdout(), data)
	default:
		return printText(cmd.OutOrStdout(), data)
	}
}

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printText(w io.Writer, data interface{}) error {
	switch v := data.(type) {
	case string:
		fmt.Fprintln(w, v)
	case fmt.Stringer:
		fmt.Fprintln(w, v.String())
	default:
		fmt.Fprintf(w, "%+v\n", v)
	}
	return nil
}

// printTable renders data with tablewriter when it provides headers and rows,
// otherwise falls back to text.
func printTable(w io.Writer, data interface{}) error {
	type tableProvider interface {
		TableHeaders() []string
		TableRows() [][]string
	}

	tp, ok := data.(tableProvider)
	if !ok {
		return printText(w, data)
	}
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(tp.TableHeaders())
	tw.SetAutoWrapText(false)
	tw.SetAutoFormatHeaders(false)
	tw.AppendBulk(tp.TableRows())
	tw.Render()
	return nil
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("Error:"), err.Error())
}

// PrintSuccess writes a formatted success message to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("OK:"), msg)
}

// FormatTable renders headers and rows as an aligned plain-text table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	colWidths := make([]int, len(headers))
	for i, h := range headers {
		colWidths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(colWidths); i++ {
			if len(row[i]) > colWidths[i] {
				colWidths[i] = len(row[i])
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i := range headers {
			if i > 0 {
				sb.WriteString("  ")
			}
			val := ""
			if i < len(cells) {
				val = cells[i]
			}
			sb.WriteString(padRight(val, colWidths[i]))
		}
		sb.WriteString("\n")
	}

	writeRow(headers)
	sep := make([]string, len(colWidths))
	for i, w := range colWidths {
		sep[i] = strings.Repeat("-", w)
	}
	writeRow(sep)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := NewSummary("enzbench").
				Add("version", Version).
				Add("commit", GitCommit).
				Add("built", BuildDate)
			return PrintResult(cmd, info)
		},
	}
}
