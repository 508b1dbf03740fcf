// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report records run outcomes. A SQLite database under the mirror
// root keeps the per-PMID history across runs, and a YAML summary artifact
// captures each run's counts for humans and follow-up tooling.
package report

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pmid-mirror/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "mirror.db"
)

// Outcome statuses recorded per PMID and stage.
const (
	StatusFound       = "found"
	StatusMissing     = "missing"
	StatusCheckFailed = "check_failed"
	StatusDownloaded  = "downloaded"
	StatusCached      = "cached"
	StatusFailed      = "failed"
)

// Outcome stages.
const (
	StageResolve = "resolve"
	StageFetch   = "fetch"
)

// Store manages the run-history SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the database at <root>/index/mirror.db,
// creating the schema if it does not exist.
func NewStore(root string) (*Store, error) {
	dbDir := filepath.Join(root, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			input INTEGER,
			skipped_rows INTEGER,
			found INTEGER,
			missing INTEGER,
			check_failed INTEGER,
			downloaded INTEGER,
			cached INTEGER,
			failed INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES runs(id),
			pmid TEXT NOT NULL,
			stage TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT,
			local_path TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_run_id ON outcomes(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_pmid ON outcomes(pmid)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// BeginRun inserts a new run row and returns its id.
func (s *Store) BeginRun(startedAt time.Time) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO runs (started_at) VALUES (?)`,
		startedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}
	return id, nil
}

// FinishRun stores the final counts for a run.
func (s *Store) FinishRun(runID int64, sum types.Summary) error {
	_, err := s.db.Exec(`UPDATE runs SET finished_at = ?, input = ?, skipped_rows = ?,
		found = ?, missing = ?, check_failed = ?, downloaded = ?, cached = ?, failed = ?
		WHERE id = ?`,
		sum.FinishedAt.UTC().Format(time.RFC3339),
		sum.Input, sum.SkippedRows, sum.Found, sum.Missing, sum.CheckFailed,
		sum.Downloaded, sum.Cached, sum.Failed, runID)
	if err != nil {
		return fmt.Errorf("updating run %d: %w", runID, err)
	}
	return nil
}

// RecordOutcome stores one per-PMID outcome for a run. Stage is "resolve",
// "fetch", or "acquire"; detail carries the failure reason when there is one.
func (s *Store) RecordOutcome(runID int64, pmid, stage, status, detail, localPath string) error {
	_, err := s.db.Exec(`INSERT INTO outcomes (run_id, pmid, stage, status, detail, local_path)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, pmid, stage, status, detail, localPath)
	if err != nil {
		return fmt.Errorf("recording outcome for %s: %w", pmid, err)
	}
	return nil
}

// CountByStatus returns the number of outcomes per status for one run and
// stage, for reconciliation checks and reporting queries.
func (s *Store) CountByStatus(runID int64, stage string) (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM outcomes
		WHERE run_id = ? AND stage = ? GROUP BY status`, runID, stage)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning outcome row: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading outcome rows: %w", err)
	}
	return counts, nil
}
