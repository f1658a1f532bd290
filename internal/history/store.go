// Package history records compile runs in SQLite so that repeated runs over
// the same tree can be compared output by output.
package history

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kvy1/kvy-xmls/internal/models"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded batch run
type Run struct {
	ID         string
	Root       string
	OutputDir  string
	StartedAt  time.Time
	Duration   time.Duration
	TotalFiles int
	Compiled   int
	Failed     int
	Skipped    int
}

// FileRecord is the outcome of one root document within a run
type FileRecord struct {
	ID           int64
	RunID        string
	Source       string
	Output       string
	Status       string
	ErrorMessage string
	SizeBytes    int64
	SHA256       string // Hex digest of the written output; empty when nothing was written
	Changed      bool   // Output differs from the last recorded output at the same path
	Duration     time.Duration
	Includes     int
	Missing      int
}

// Store manages the SQLite database holding run history
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating when needed) the history database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// execWithRetry executes a SQL statement with exponential backoff retry on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Digest returns the hex SHA-256 of text.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// RecordRun stores result under a new run ID and returns that ID. Each
// compiled file is compared with the most recent earlier record of the same
// output path to set its Changed flag.
func (s *Store) RecordRun(ctx context.Context, result *models.BatchResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("result cannot be nil")
	}

	runID := uuid.New().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, root, output_dir, started_at, duration_ms, total_files, compiled, failed, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		result.Root,
		result.OutputDir,
		result.StartedAt.UTC(),
		result.Duration.Milliseconds(),
		result.TotalFiles,
		result.Compiled,
		result.Failed,
		result.Skipped,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, fr := range result.Files {
		rec := FileRecord{
			RunID:    runID,
			Source:   fr.Source,
			Output:   fr.Output,
			Status:   fr.Status,
			Duration: fr.Duration,
			Includes: fr.Includes,
			Missing:  fr.Missing,
		}
		if fr.Error != nil {
			rec.ErrorMessage = fr.Error.Error()
		}
		if fr.Succeeded() {
			rec.SizeBytes = int64(len(fr.Text))
			rec.SHA256 = Digest(fr.Text)
			previous, err := previousDigestTx(ctx, tx, fr.Output, runID)
			if err != nil {
				return "", err
			}
			rec.Changed = previous != rec.SHA256
		}

		_, err := tx.ExecContext(ctx, `INSERT INTO file_records
			(run_id, source, output, status, error_message, size_bytes, sha256, changed, duration_ms, includes, missing)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID,
			rec.Source,
			rec.Output,
			rec.Status,
			rec.ErrorMessage,
			rec.SizeBytes,
			rec.SHA256,
			rec.Changed,
			rec.Duration.Milliseconds(),
			rec.Includes,
			rec.Missing,
		)
		if err != nil {
			return "", fmt.Errorf("insert file record for %s: %w", fr.Source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

func previousDigestTx(ctx context.Context, tx *sql.Tx, output, runID string) (string, error) {
	var digest sql.NullString
	err := tx.QueryRowContext(ctx, `SELECT sha256 FROM file_records
		WHERE output = ? AND run_id != ? AND sha256 != ''
		ORDER BY id DESC LIMIT 1`, output, runID).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query previous digest for %s: %w", output, err)
	}
	return digest.String, nil
}

const runColumns = `id, root, output_dir, started_at, duration_ms, total_files, compiled, failed, skipped`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var durationMS int64
	if err := row.Scan(&run.ID, &run.Root, &run.OutputDir, &run.StartedAt, &durationMS,
		&run.TotalFiles, &run.Compiled, &run.Failed, &run.Skipped); err != nil {
		return nil, err
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}

// ListRuns returns up to limit runs, most recent first. A limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run with the given ID, or the most recent run whose ID
// starts with id when id is a unique prefix.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id LIKE ? ORDER BY seq DESC LIMIT 2`, id+"%")
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case len(found) > 1 && found[0].ID != id:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
	return found[0], nil
}

// FilesForRun returns the file records of a run in recorded order.
func (s *Store) FilesForRun(ctx context.Context, runID string) ([]*FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, run_id, source, output, status, error_message,
		size_bytes, sha256, changed, duration_ms, includes, missing
		FROM file_records WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query file records: %w", err)
	}
	defer rows.Close()

	var records []*FileRecord
	for rows.Next() {
		rec := &FileRecord{}
		var output, errorMessage, digest sql.NullString
		var durationMS int64
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Source, &output, &rec.Status, &errorMessage,
			&rec.SizeBytes, &digest, &rec.Changed, &durationMS, &rec.Includes, &rec.Missing); err != nil {
			return nil, fmt.Errorf("scan file record: %w", err)
		}
		rec.Output = output.String
		rec.ErrorMessage = errorMessage.String
		rec.SHA256 = digest.String
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file records: %w", err)
	}
	return records, nil
}

// Prune deletes all but the keep most recent runs and returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must be >= 0, got %d", keep)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stale := `SELECT id FROM runs ORDER BY seq DESC LIMIT -1 OFFSET ?`
	if _, err := tx.ExecContext(ctx, `DELETE FROM file_records WHERE run_id IN (`+stale+`)`, keep); err != nil {
		return 0, fmt.Errorf("delete file records: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id IN (`+stale+`)`, keep)
	if err != nil {
		return 0, fmt.Errorf("delete runs: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return removed, nil
}
