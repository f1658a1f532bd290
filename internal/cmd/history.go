package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kvy1/kvy-xmls/internal/history"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded compile runs",
		Long: `Show runs recorded with --history or history.enabled.

Without arguments the most recent runs are listed. With a run ID (or a
unique prefix of one) the run's files are shown, including whether each
output changed since the previous run that wrote it.

Examples:
  xmlc history
  xmlc history 3f2a9c1e --format markdown
  xmlc history --format html > history.html
  xmlc history --prune 10`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().String("root", ".", "Root directory whose history database is read")
	cmd.Flags().String("config", "", "Path to config file (default: <root>/.xmlc/config.yaml)")
	cmd.Flags().String("format", history.FormatText, "Output format: text, markdown, html")
	cmd.Flags().Int("limit", 20, "Maximum number of runs listed (0 = all)")
	cmd.Flags().Int("prune", -1, "Delete all but the N most recent runs")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	rootFlag, _ := cmd.Flags().GetString("root")
	root, err := resolveRoot([]string{rootFlag})
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	if !history.ValidFormat(format) {
		return fmt.Errorf("invalid format %q, must be one of: text, markdown, html", format)
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return fmt.Errorf("limit must be >= 0, got %d", limit)
	}

	out := cmd.OutOrStdout()
	dbPath := cfg.ResolveHistoryDB(root)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return (&history.Report{}).Render(out, format)
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()

	if cmd.Flags().Changed("prune") {
		keep, _ := cmd.Flags().GetInt("prune")
		removed, err := store.Prune(ctx, keep)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %d run(s), kept the %d most recent\n", removed, keep)
		return nil
	}

	report := &history.Report{}
	if len(args) == 1 {
		run, err := store.GetRun(ctx, args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		files, err := store.FilesForRun(ctx, run.ID)
		if err != nil {
			return err
		}
		if files == nil {
			files = []*history.FileRecord{}
		}
		report.Runs = []*history.Run{run}
		report.Files = files
	} else {
		runs, err := store.ListRuns(ctx, limit)
		if err != nil {
			return err
		}
		report.Runs = runs
	}

	return report.Render(out, format)
}
