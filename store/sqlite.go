// Package store provides durable PersonaStore backends.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	personacore "github.com/sigmaris/persona-core-go"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a PersonaStore backed by a single SQLite file.
//
// Both tables are insert-only; ordering uses the autoincrement sequence so
// two rows written within the same millisecond still read back in write
// order.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS persona_records (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL,
	session_id    TEXT NOT NULL,
	calm          REAL NOT NULL,
	empathy       REAL NOT NULL,
	curiosity     REAL NOT NULL,
	reflection    TEXT NOT NULL DEFAULT '',
	meta_summary  TEXT NOT NULL DEFAULT '',
	growth        REAL NOT NULL DEFAULT 0,
	created_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_persona_records_session ON persona_records(session_id, seq);

CREATE TABLE IF NOT EXISTS growth_log (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT NOT NULL,
	session_id      TEXT NOT NULL,
	calm            REAL NOT NULL,
	empathy         REAL NOT NULL,
	curiosity       REAL NOT NULL,
	delta_calm      REAL NOT NULL,
	delta_empathy   REAL NOT NULL,
	delta_curiosity REAL NOT NULL,
	created_at_ms   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_growth_log_session ON growth_log(session_id, seq);
`

// OpenSQLite opens (and migrates) a SQLite-backed store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LoadLatest(ctx context.Context, sessionID string) (*personacore.PersonaRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, calm, empathy, curiosity, reflection, meta_summary, growth, created_at_ms
		FROM persona_records WHERE session_id = ?
		ORDER BY seq DESC LIMIT 1`, sessionID)
	rec, err := scanPersonaRecord(row)
	if err == sql.ErrNoRows {
		return nil, personacore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load latest persona: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec *personacore.PersonaRecord) error {
	stamp(rec)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO persona_records
			(id, session_id, calm, empathy, curiosity, reflection, meta_summary, growth, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID,
		rec.Traits.Calm, rec.Traits.Empathy, rec.Traits.Curiosity,
		rec.Reflection, rec.MetaSummary, rec.Growth, toMillis(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert persona record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) History(ctx context.Context, sessionID string, limit int) ([]*personacore.PersonaRecord, error) {
	query := `
		SELECT id, session_id, calm, empathy, curiosity, reflection, meta_summary, growth, created_at_ms
		FROM (
			SELECT * FROM persona_records WHERE session_id = ? ORDER BY seq DESC %s
		) ORDER BY seq ASC`
	args := []interface{}{sessionID}
	if limit > 0 {
		query = fmt.Sprintf(query, "LIMIT ?")
		args = append(args, limit)
	} else {
		query = fmt.Sprintf(query, "")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query persona history: %w", err)
	}
	defer rows.Close()

	var out []*personacore.PersonaRecord
	for rows.Next() {
		rec, err := scanPersonaRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan persona record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendGrowth(ctx context.Context, entry personacore.GrowthLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO growth_log
			(id, session_id, calm, empathy, curiosity, delta_calm, delta_empathy, delta_curiosity, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.SessionID,
		entry.Traits.Calm, entry.Traits.Empathy, entry.Traits.Curiosity,
		entry.Delta.Calm, entry.Delta.Empathy, entry.Delta.Curiosity,
		toMillis(entry.Timestamp))
	if err != nil {
		return fmt.Errorf("insert growth entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GrowthLog(ctx context.Context, sessionID string, limit int) ([]personacore.GrowthLogEntry, error) {
	query := `
		SELECT id, session_id, calm, empathy, curiosity, delta_calm, delta_empathy, delta_curiosity, created_at_ms
		FROM (
			SELECT * FROM growth_log WHERE session_id = ? ORDER BY seq DESC %s
		) ORDER BY seq ASC`
	args := []interface{}{sessionID}
	if limit > 0 {
		query = fmt.Sprintf(query, "LIMIT ?")
		args = append(args, limit)
	} else {
		query = fmt.Sprintf(query, "")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query growth log: %w", err)
	}
	defer rows.Close()

	var out []personacore.GrowthLogEntry
	for rows.Next() {
		var e personacore.GrowthLogEntry
		var ms int64
		if err := rows.Scan(&e.ID, &e.SessionID,
			&e.Traits.Calm, &e.Traits.Empathy, &e.Traits.Curiosity,
			&e.Delta.Calm, &e.Delta.Empathy, &e.Delta.Curiosity, &ms); err != nil {
			return nil, fmt.Errorf("scan growth entry: %w", err)
		}
		e.Timestamp = fromMillis(ms)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PruneHistory(ctx context.Context, sessionID string, keepLast int) error {
	if keepLast <= 0 {
		return nil
	}
	for _, table := range []string{"persona_records", "growth_log"} {
		_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
			DELETE FROM %s WHERE session_id = ? AND seq NOT IN (
				SELECT seq FROM %s WHERE session_id = ? ORDER BY seq DESC LIMIT ?
			)`, table, table), sessionID, sessionID, keepLast)
		if err != nil {
			return fmt.Errorf("prune %s: %w", table, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPersonaRecord(row rowScanner) (*personacore.PersonaRecord, error) {
	var rec personacore.PersonaRecord
	var ms int64
	if err := row.Scan(&rec.ID, &rec.SessionID,
		&rec.Traits.Calm, &rec.Traits.Empathy, &rec.Traits.Curiosity,
		&rec.Reflection, &rec.MetaSummary, &rec.Growth, &ms); err != nil {
		return nil, err
	}
	rec.CreatedAt = fromMillis(ms)
	return &rec, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func stamp(rec *personacore.PersonaRecord) {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
}
