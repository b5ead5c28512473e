package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doeshing/riskgate/internal/domain"
	"github.com/doeshing/riskgate/internal/ports"
)

// SQLiteStore persists the decision journal in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// OpenSQLite creates (or opens) the journal at path. When the database
// cannot be opened the returned store falls back to a JSONL file beside it.
func OpenSQLite(path string) *SQLiteStore {
	_ = os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return &SQLiteStore{path: path}
	}
	store := &SQLiteStore{db: db, path: path}
	if err := store.init(); err != nil {
		_ = db.Close()
		return &SQLiteStore{path: path}
	}
	return store
}

func (s *SQLiteStore) init() error {
	if s.db == nil {
		return os.ErrInvalid
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		command TEXT NOT NULL,
		args TEXT NOT NULL,
		decision TEXT NOT NULL,
		stored_level TEXT NOT NULL,
		effective_level TEXT NOT NULL,
		reason TEXT NOT NULL,
		alternative TEXT NOT NULL DEFAULT '',
		integrity_violation INTEGER NOT NULL DEFAULT 0
	);`)
	return err
}

func (s *SQLiteStore) fallback() *FileStore {
	return NewFileStore(s.path + ".jsonl")
}

// Append inserts a new record.
func (s *SQLiteStore) Append(ctx context.Context, record domain.DecisionRecord) error {
	if s.db == nil {
		return s.fallback().Append(ctx, record)
	}
	args, err := json.Marshal(record.Args)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `INSERT INTO decisions
		(id, timestamp, command, args, decision, stored_level, effective_level, reason, alternative, integrity_violation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Timestamp.UnixNano(),
		record.Command,
		string(args),
		record.Decision.String(),
		record.StoredLevel.String(),
		record.EffectiveLevel.String(),
		record.Reason,
		record.Alternative,
		boolToInt(record.IntegrityViolation),
	)
	if err != nil {
		return fmt.Errorf("append decision %s: %w", record.ID, err)
	}
	return nil
}

// Recent returns the newest records first; limit <= 0 returns all.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]domain.DecisionRecord, error) {
	if s.db == nil {
		return s.fallback().Recent(ctx, limit)
	}
	query := `SELECT id, timestamp, command, args, decision, stored_level, effective_level, reason, alternative, integrity_violation
		FROM decisions ORDER BY timestamp DESC`
	var params []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		params = append(params, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []domain.DecisionRecord
	for rows.Next() {
		var rec domain.DecisionRecord
		var ts int64
		var args, decision, stored, effective string
		var violation int
		if err := rows.Scan(&rec.ID, &ts, &rec.Command, &args, &decision, &stored, &effective, &rec.Reason, &rec.Alternative, &violation); err != nil {
			return nil, err
		}
		rec.Timestamp = time.Unix(0, ts).UTC()
		if err := json.Unmarshal([]byte(args), &rec.Args); err != nil {
			return nil, fmt.Errorf("decision %s args: %w", rec.ID, err)
		}
		if rec.Decision, err = domain.ParseDecision(decision); err != nil {
			return nil, err
		}
		if rec.StoredLevel, err = domain.ParseRiskLevel(stored); err != nil {
			return nil, err
		}
		if rec.EffectiveLevel, err = domain.ParseRiskLevel(effective); err != nil {
			return nil, err
		}
		rec.IntegrityViolation = violation == 1
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Prune deletes records older than before.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int, error) {
	if s.db == nil {
		return s.fallback().Prune(ctx, before)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, "DELETE FROM decisions WHERE timestamp < ?", before.UnixNano())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Path returns the sqlite database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ ports.DecisionJournal = (*SQLiteStore)(nil)
