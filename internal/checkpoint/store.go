// Package checkpoint persists the engine's cycle-by-cycle state in an
// append-only SQLite log. Each run owns a strictly increasing sequence of
// snapshots; resuming from cycle N reproduces exactly the state a fresh run
// has after N cycles. Entries are never updated or deleted.
package checkpoint

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"normcode/internal/logging"
)

var (
	// ErrRunNotFound indicates an unknown run id.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunExists indicates a duplicate run registration.
	ErrRunExists = errors.New("run already registered")

	// ErrCheckpointNotFound indicates no snapshot at the requested position.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrDuplicateCycle indicates an append that would overwrite history.
	// The log is append-only; one snapshot per (run, cycle).
	ErrDuplicateCycle = errors.New("checkpoint cycle already recorded")
)

// RunStatus tracks a run through the registry.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one row of the run registry.
type Run struct {
	ID         string
	Plan       string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
}

// Snapshot is the full engine state after one cycle: committed concept
// values, per-inference transients, the set of completed inferences, the
// completed-concept cache, and content signatures of the committed results.
type Snapshot struct {
	RunID             string            `json:"run_id"`
	Cycle             int               `json:"cycle"`
	Blackboard        map[string]any    `json:"blackboard"`
	Workspace         map[string]any    `json:"workspace"`
	Tracker           []string          `json:"tracker"`            // completed inference flow addresses
	CompletedConcepts []string          `json:"completed_concepts"` // concept names with committed values
	Completed         bool              `json:"completed"`          // the final concept is committed
	Signatures        map[string]string `json:"signatures"`
	CreatedAt         time.Time         `json:"created_at"`
}

// NewRunID mints a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// Store is the SQLite-backed checkpoint log.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes the checkpoint database at the given path, creating the
// directory and schema as needed.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryCheckpoint, "Open")
	defer timer.Stop()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.CheckpointDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.CheckpointDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.CheckpointDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Checkpoint("Checkpoint store open at %s", path)
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id      TEXT PRIMARY KEY,
		plan        TEXT NOT NULL,
		status      TEXT NOT NULL,
		started_at  TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS checkpoints (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id     TEXT NOT NULL,
		cycle      INTEGER NOT NULL,
		blackboard TEXT NOT NULL,
		workspace  TEXT NOT NULL,
		tracker    TEXT NOT NULL,
		concepts   TEXT NOT NULL DEFAULT '[]',
		completed  INTEGER NOT NULL DEFAULT 0,
		signatures TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE(run_id, cycle)
	);

	CREATE INDEX IF NOT EXISTS idx_checkpoints_run ON checkpoints(run_id, cycle);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize checkpoint schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// CreateRun registers a run before its first cycle.
func (s *Store) CreateRun(runID, plan string) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, plan, status, started_at) VALUES (?, ?, ?, ?)`,
		runID, plan, string(RunRunning), time.Now().UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("%w: %s", ErrRunExists, runID)
		}
		return fmt.Errorf("failed to register run: %w", err)
	}
	logging.Checkpoint("Registered run %s (plan=%s)", runID, plan)
	return nil
}

// FinishRun records the terminal status of a run. A run already recorded as
// completed keeps that status; a later failure never demotes it.
func (s *Store) FinishRun(runID string, status RunStatus) error {
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, finished_at = ? WHERE run_id = ? AND status != ?`,
		string(status), time.Now().UTC(), runID, string(RunCompleted))
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetRun(runID); err != nil {
			return err
		}
	}
	return nil
}

// GetRun loads one run registry row.
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(
		`SELECT run_id, plan, status, started_at, finished_at FROM runs WHERE run_id = ?`,
		runID)
	return scanRun(row)
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query(
		`SELECT run_id, plan, status, started_at, finished_at FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var status string
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.Plan, &status, &run.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Status = RunStatus(status)
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}

// Append records one cycle's snapshot. Appending a cycle that already exists
// for the run is an error; history is immutable.
func (s *Store) Append(snap *Snapshot) error {
	timer := logging.StartTimer(logging.CategoryCheckpoint, "Append")
	defer timer.Stop()

	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	blackboard, err := json.Marshal(snap.Blackboard)
	if err != nil {
		return fmt.Errorf("failed to encode blackboard: %w", err)
	}
	workspace, err := json.Marshal(snap.Workspace)
	if err != nil {
		return fmt.Errorf("failed to encode workspace: %w", err)
	}
	tracker, err := json.Marshal(snap.Tracker)
	if err != nil {
		return fmt.Errorf("failed to encode tracker: %w", err)
	}
	concepts, err := json.Marshal(snap.CompletedConcepts)
	if err != nil {
		return fmt.Errorf("failed to encode completed concepts: %w", err)
	}
	signatures, err := json.Marshal(snap.Signatures)
	if err != nil {
		return fmt.Errorf("failed to encode signatures: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO checkpoints (run_id, cycle, blackboard, workspace, tracker, concepts, completed, signatures, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.RunID, snap.Cycle, string(blackboard), string(workspace),
		string(tracker), string(concepts), boolToInt(snap.Completed), string(signatures), snap.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("%w: run %s cycle %d", ErrDuplicateCycle, snap.RunID, snap.Cycle)
		}
		return fmt.Errorf("failed to append checkpoint: %w", err)
	}

	logging.CheckpointDebug("Appended checkpoint run=%s cycle=%d completed=%v committed=%d",
		snap.RunID, snap.Cycle, snap.Completed, len(snap.Tracker))
	return nil
}

// Latest loads the most recent snapshot of a run.
func (s *Store) Latest(runID string) (*Snapshot, error) {
	row := s.db.QueryRow(
		`SELECT run_id, cycle, blackboard, workspace, tracker, concepts, completed, signatures, created_at
		 FROM checkpoints WHERE run_id = ? ORDER BY cycle DESC LIMIT 1`, runID)
	return scanSnapshot(row)
}

// At loads the snapshot of a specific cycle.
func (s *Store) At(runID string, cycle int) (*Snapshot, error) {
	row := s.db.QueryRow(
		`SELECT run_id, cycle, blackboard, workspace, tracker, concepts, completed, signatures, created_at
		 FROM checkpoints WHERE run_id = ? AND cycle = ?`, runID, cycle)
	return scanSnapshot(row)
}

// ListCheckpoints returns every snapshot of a run in cycle order.
func (s *Store) ListCheckpoints(runID string) ([]*Snapshot, error) {
	rows, err := s.db.Query(
		`SELECT run_id, cycle, blackboard, workspace, tracker, concepts, completed, signatures, created_at
		 FROM checkpoints WHERE run_id = ? ORDER BY cycle ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	var snap Snapshot
	var blackboard, workspace, tracker, concepts, signatures string
	var completed int
	err := row.Scan(&snap.RunID, &snap.Cycle, &blackboard, &workspace,
		&tracker, &concepts, &completed, &signatures, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
	}
	snap.Completed = completed != 0

	if err := json.Unmarshal([]byte(blackboard), &snap.Blackboard); err != nil {
		return nil, fmt.Errorf("failed to decode blackboard: %w", err)
	}
	if err := json.Unmarshal([]byte(workspace), &snap.Workspace); err != nil {
		return nil, fmt.Errorf("failed to decode workspace: %w", err)
	}
	if err := json.Unmarshal([]byte(tracker), &snap.Tracker); err != nil {
		return nil, fmt.Errorf("failed to decode tracker: %w", err)
	}
	if err := json.Unmarshal([]byte(concepts), &snap.CompletedConcepts); err != nil {
		return nil, fmt.Errorf("failed to decode completed concepts: %w", err)
	}
	if err := json.Unmarshal([]byte(signatures), &snap.Signatures); err != nil {
		return nil, fmt.Errorf("failed to decode signatures: %w", err)
	}
	return &snap, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
