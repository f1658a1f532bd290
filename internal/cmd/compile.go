package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kvy1/kvy-xmls/internal/display"
	"github.com/kvy1/kvy-xmls/internal/executor"
	"github.com/kvy1/kvy-xmls/internal/fileutil"
	"github.com/kvy1/kvy-xmls/internal/history"
	"github.com/kvy1/kvy-xmls/internal/models"
)

// runCompile implements the root command: one batch run over the root.
func runCompile(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.Close()

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun {
		return s.listCandidates()
	}

	result, err := s.compile(cmd.Context())
	if err != nil {
		return err
	}

	failOnError, _ := cmd.Flags().GetBool("fail-on-error")
	if failOnError {
		if batchErr := executor.NewBatchError(result); batchErr != nil {
			return batchErr
		}
	}
	return nil
}

// compile runs one batch with the start and end banners, shows collision
// warnings and records the run when history is enabled. Per-file failures
// are reported in the result, not as an error.
func (s *session) compile(ctx context.Context) (*models.BatchResult, error) {
	s.log.LogSection(fmt.Sprintf("Starting processing in %s", s.root))

	result, err := s.newBatch().Run(ctx, s.root)
	if err != nil {
		s.log.LogError(fmt.Sprintf("Run aborted: %v", err))
		return result, err
	}

	s.showCollisions(result)
	s.showMissingIncludes(result)

	s.log.LogSection(fmt.Sprintf("Processing complete. Compiled XMLs saved in %s", s.outputDir()))
	s.log.LogSummary(result)

	if s.cfg.History.Enabled {
		s.recordHistory(ctx, result)
	}
	return result, nil
}

// showCollisions displays one warning per output name written by more than
// one source.
func (s *session) showCollisions(result *models.BatchResult) {
	seen := make(map[string]bool)
	for _, fr := range result.Files {
		if len(fr.Collisions) == 0 {
			continue
		}
		name := filepath.Base(fr.Source)
		if seen[name] {
			continue
		}
		seen[name] = true

		group := append([]string{fr.Source}, fr.Collisions...)
		sort.Strings(group)
		w := display.WarnCollision(s.root, name, group)
		if s.cfg.CollisionCheck {
			w.Message = fmt.Sprintf("%d sources compile to %s; only the first was compiled", len(group), name)
			w.Suggestion = "Rename one of the sources"
		}
		w.Display(s.errOut)
	}
}

// showMissingIncludes displays one warning per compiled file with includes
// that did not resolve.
func (s *session) showMissingIncludes(result *models.BatchResult) {
	for _, fr := range result.Files {
		if len(fr.MissingAt) == 0 {
			continue
		}
		display.WarnMissingIncludes(s.root, fr.Source, fr.MissingAt).Display(s.errOut)
	}
}

func (s *session) recordHistory(ctx context.Context, result *models.BatchResult) {
	dbPath := s.cfg.ResolveHistoryDB(s.root)
	store, err := history.NewStore(dbPath)
	if err != nil {
		s.log.LogWarn(fmt.Sprintf("History disabled for this run: %v", err))
		return
	}
	defer store.Close()

	runID, err := store.RecordRun(ctx, result)
	if err != nil {
		s.log.LogWarn(fmt.Sprintf("Failed to record run: %v", err))
		return
	}
	s.log.LogInfo(fmt.Sprintf("Recorded run %s in %s", runID, dbPath))
}

// listCandidates prints the files a compile would process and their outputs.
func (s *session) listCandidates() error {
	batch := s.newBatch()
	files, err := batch.Discover(s.root)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(s.out, "No XML files found to process.")
		return nil
	}

	list := display.NewCandidateList(s.out, s.root, len(files))
	list.Start()
	for _, f := range files {
		list.Step(f, fileutil.OutputPath(s.outputDir(), f))
	}
	list.Complete()
	return nil
}
