package results

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/identification"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	example_id  TEXT NOT NULL,
	truth_path  TEXT NOT NULL,
	steps       INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS mode_labels (
	run_id      TEXT NOT NULL,
	result_key  TEXT NOT NULL,
	step        INTEGER NOT NULL,
	time_ns     INTEGER NOT NULL,
	label       TEXT NOT NULL,
	PRIMARY KEY (run_id, result_key, step),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS mode_labels_key ON mode_labels(result_key, label);
`

// RunRecord describes one stored identification run.
type RunRecord struct {
	RunID     string
	ExampleID string
	TruthPath string
	Steps     int
	CreatedAt time.Time
}

// Store persists identification runs in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens a SQLite database and runs migrations.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores every label column of table under runID in one transaction.
func (s *Store) SaveRun(ctx context.Context, rec RunRecord, table *Table) error {
	if rec.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, example_id, truth_path, steps, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.RunID, rec.ExampleID, rec.TruthPath, table.Len(), rec.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO mode_labels (run_id, result_key, step, time_ns, label) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare labels: %w", err)
	}
	defer stmt.Close()

	for _, key := range table.keys {
		for i, label := range table.columns[key] {
			if _, err := stmt.ExecContext(ctx, rec.RunID, key, i, table.times[i], label); err != nil {
				return fmt.Errorf("insert label %s[%d]: %w", key, i, err)
			}
		}
	}
	return tx.Commit()
}

// Run returns the stored run metadata.
func (s *Store) Run(ctx context.Context, runID string) (RunRecord, error) {
	var rec RunRecord
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, example_id, truth_path, steps, created_at FROM runs WHERE run_id = ?`, runID,
	).Scan(&rec.RunID, &rec.ExampleID, &rec.TruthPath, &rec.Steps, &created)
	if err != nil {
		return RunRecord{}, fmt.Errorf("query run %s: %w", runID, err)
	}
	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return RunRecord{}, fmt.Errorf("parse created_at: %w", err)
	}
	return rec, nil
}

// Labels returns the stored mode sequence of one result key, in step order.
func (s *Store) Labels(ctx context.Context, runID, key string) (identification.ModeSequence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT time_ns, label FROM mode_labels WHERE run_id = ? AND result_key = ? ORDER BY step`,
		runID, key)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	var seq identification.ModeSequence
	for rows.Next() {
		var entry identification.ModeEntry
		if err := rows.Scan(&entry.Time, &entry.Label); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		seq = append(seq, entry)
	}
	return seq, rows.Err()
}

// LabelCounts returns how often each label was emitted for key across all runs.
func (s *Store) LabelCounts(ctx context.Context, key string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT label, COUNT(*) FROM mode_labels WHERE result_key = ? GROUP BY label`, key)
	if err != nil {
		return nil, fmt.Errorf("query label counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("scan label count: %w", err)
		}
		counts[label] = n
	}
	return counts, rows.Err()
}
