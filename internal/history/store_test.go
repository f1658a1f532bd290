package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvy1/kvy-xmls/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleResult(root string, texts map[string]string) *models.BatchResult {
	result := &models.BatchResult{
		Root:      root,
		OutputDir: filepath.Join(root, "compiled"),
		StartedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Duration:  1200 * time.Millisecond,
		Outputs:   make(map[string]string),
	}
	for _, name := range []string{"1_a.xml", "2_b.xml"} {
		source := filepath.Join(root, "sub", name)
		text, ok := texts[name]
		if !ok {
			fr := models.FileResult{Source: source, Status: models.StatusFailed, Error: errors.New("read failed")}
			result.Files = append(result.Files, fr)
			result.FailedFiles = append(result.FailedFiles, fr)
			result.Failed++
			continue
		}
		result.Files = append(result.Files, models.FileResult{
			Source:   source,
			Output:   filepath.Join(result.OutputDir, name),
			Status:   models.StatusCompiled,
			Text:     text,
			Includes: 2,
			Missing:  1,
			Duration: 5 * time.Millisecond,
		})
		result.Outputs[source] = text
		result.Compiled++
	}
	result.TotalFiles = len(result.Files)
	return result
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		name    string
		dbPath  string
		wantErr bool
	}{
		{"creates database successfully", filepath.Join(t.TempDir(), "test.db"), false},
		{"handles in-memory database", ":memory:", false},
		{"creates parent directories if needed", filepath.Join(t.TempDir(), "nested", "dir", "test.db"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(tt.dbPath)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer store.Close()

			version, err := store.GetLatestVersion()
			require.NoError(t, err)
			assert.Equal(t, len(migrations), version)
			assert.Equal(t, tt.dbPath, store.Path())
		})
	}
}

func TestNewStoreReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	runID, err := store.RecordRun(context.Background(), sampleResult("/r", map[string]string{"1_a.xml": "<a/>"}))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	run, err := reopened.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, runID, run.ID)
}

func TestRecordRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	result := sampleResult("/data/xml", map[string]string{"1_a.xml": "<a>one</a>"})
	runID, err := store.RecordRun(ctx, result)
	require.NoError(t, err)
	assert.Len(t, runID, 36)

	run, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "/data/xml", run.Root)
	assert.Equal(t, "/data/xml/compiled", run.OutputDir)
	assert.True(t, run.StartedAt.Equal(result.StartedAt))
	assert.Equal(t, 1200*time.Millisecond, run.Duration)
	assert.Equal(t, 2, run.TotalFiles)
	assert.Equal(t, 1, run.Compiled)
	assert.Equal(t, 1, run.Failed)

	files, err := store.FilesForRun(ctx, runID)
	require.NoError(t, err)
	require.Len(t, files, 2)

	compiled := files[0]
	assert.Equal(t, models.StatusCompiled, compiled.Status)
	assert.Equal(t, Digest("<a>one</a>"), compiled.SHA256)
	assert.Equal(t, int64(len("<a>one</a>")), compiled.SizeBytes)
	assert.True(t, compiled.Changed, "first recording of an output counts as changed")
	assert.Equal(t, 2, compiled.Includes)
	assert.Equal(t, 1, compiled.Missing)
	assert.Equal(t, 5*time.Millisecond, compiled.Duration)

	failed := files[1]
	assert.Equal(t, models.StatusFailed, failed.Status)
	assert.Equal(t, "read failed", failed.ErrorMessage)
	assert.Empty(t, failed.SHA256)
	assert.Empty(t, failed.Output)
	assert.False(t, failed.Changed)
}

func TestRecordRunTracksChanges(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.RecordRun(ctx, sampleResult("/r", map[string]string{"1_a.xml": "<a/>", "2_b.xml": "<b/>"}))
	require.NoError(t, err)
	second, err := store.RecordRun(ctx, sampleResult("/r", map[string]string{"1_a.xml": "<a/>", "2_b.xml": "<b>new</b>"}))
	require.NoError(t, err)
	third, err := store.RecordRun(ctx, sampleResult("/r", map[string]string{"1_a.xml": "<a/>"}))
	require.NoError(t, err)
	fourth, err := store.RecordRun(ctx, sampleResult("/r", map[string]string{"1_a.xml": "<a/>", "2_b.xml": "<b>new</b>"}))
	require.NoError(t, err)

	changed := func(runID string) []bool {
		files, err := store.FilesForRun(ctx, runID)
		require.NoError(t, err)
		var out []bool
		for _, f := range files {
			out = append(out, f.Changed)
		}
		return out
	}

	assert.Equal(t, []bool{true, true}, changed(first))
	assert.Equal(t, []bool{false, true}, changed(second))
	assert.Equal(t, []bool{false, false}, changed(third))
	// A failed run in between does not reset the comparison baseline.
	assert.Equal(t, []bool{false, false}, changed(fourth))
}

func TestListRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := store.RecordRun(ctx, sampleResult("/r", map[string]string{"1_a.xml": "<a/>"}))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[0], runs[2].ID)

	limited, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.RecordRun(ctx, sampleResult("/r", nil))
	require.NoError(t, err)

	byPrefix, err := store.GetRun(ctx, id[:8])
	require.NoError(t, err)
	assert.Equal(t, id, byPrefix.ID)

	_, err = store.GetRun(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRecordRunNil(t *testing.T) {
	store := newTestStore(t)
	_, err := store.RecordRun(context.Background(), nil)
	assert.Error(t, err)
}

func TestPrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		id, err := store.RecordRun(ctx, sampleResult("/r", map[string]string{"1_a.xml": "<a/>"}))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	removed, err := store.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ids[3], runs[0].ID)

	files, err := store.FilesForRun(ctx, ids[0])
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = store.Prune(ctx, -1)
	assert.Error(t, err)
}

func TestDigest(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Digest(""))
	assert.NotEqual(t, Digest("a"), Digest("b"))
}
