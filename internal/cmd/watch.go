package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kvy1/kvy-xmls/internal/fileutil"
	"github.com/kvy1/kvy-xmls/internal/watcher"
)

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [root]",
		Short: "Compile, then recompile whenever an XML file changes",
		Long: `Compile the root once, then watch it and compile again whenever an
.xml file below it is created, written or removed. Bursts of changes are
coalesced into one run (watch.debounce, default 500ms).

Stop with Ctrl+C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatch,
	}

	addConfigFlags(cmd)
	cmd.Flags().Duration("debounce", 0, "Quiet period before recompiling (default: watch.debounce)")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := s.compile(ctx); err != nil {
		return ignoreCancel(err)
	}

	exclude := fileutil.ExcludedOutputDir(s.root, s.outputDir())
	fw, err := watcher.NewFileWatcher(s.root, ".xml", exclude...)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.root, err)
	}
	defer fw.Close()

	debounce := s.cfg.Watch.Debounce
	if cmd.Flags().Changed("debounce") {
		debounce, _ = cmd.Flags().GetDuration("debounce")
	}
	fw.SetDebounceDelay(debounce)

	s.log.LogInfo(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", s.root))

	err = fw.Run(ctx, func(change watcher.Change) {
		s.log.LogInfo(fmt.Sprintf("Change detected: %d file(s)", len(change.Paths)))
		for _, p := range change.Paths {
			s.log.LogDebug(fmt.Sprintf("  %s %s", change.Ops[p], p))
		}
		if _, err := s.compile(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.LogError(fmt.Sprintf("Recompile failed: %v", err))
		}
	}, func(err error) {
		s.log.LogWarn(fmt.Sprintf("Watcher error: %v", err))
	})

	s.log.LogInfo("Watch stopped")
	return ignoreCancel(err)
}

// ignoreCancel treats a cancelled or expired context as a normal stop.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
