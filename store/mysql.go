package store

import (
	"context"
	"database/sql"
	"fmt"

	personacore "github.com/sigmaris/persona-core-go"
)

// MySQLStore is a PersonaStore backed by MySQL.
// The sql.DB must be already opened with a MySQL driver.
//
// Two tables (auto-created if AutoMigrate is true):
//   - {prefix}_records: append-only persona rows
//   - {prefix}_growth:  flat growth-log rows
type MySQLStore struct {
	db     *sql.DB
	prefix string
}

// MySQLStoreConfig configures the MySQL store.
type MySQLStoreConfig struct {
	Prefix      string // table prefix, default "persona"
	AutoMigrate bool   // create tables if not exist, default true
}

// NewMySQLStore creates a PersonaStore backed by MySQL.
func NewMySQLStore(db *sql.DB, config ...MySQLStoreConfig) (*MySQLStore, error) {
	cfg := MySQLStoreConfig{Prefix: "persona", AutoMigrate: true}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "persona"
	}

	s := &MySQLStore{db: db, prefix: cfg.Prefix}
	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			return nil, fmt.Errorf("auto-migrate failed: %w", err)
		}
	}
	return s, nil
}

func (s *MySQLStore) recordsTable() string { return s.prefix + "_records" }
func (s *MySQLStore) growthTable() string  { return s.prefix + "_growth" }

func (s *MySQLStore) migrate() error {
	recordsDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		seq           BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		id            VARCHAR(64)  NOT NULL,
		session_id    VARCHAR(255) NOT NULL,
		calm          DOUBLE NOT NULL,
		empathy       DOUBLE NOT NULL,
		curiosity     DOUBLE NOT NULL,
		reflection    TEXT   NOT NULL,
		meta_summary  TEXT   NOT NULL,
		growth        DOUBLE NOT NULL DEFAULT 0,
		created_at_ms BIGINT NOT NULL,
		PRIMARY KEY (seq),
		KEY idx_session (session_id, seq)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, s.recordsTable())

	growthDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		seq             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		id              VARCHAR(64)  NOT NULL,
		session_id      VARCHAR(255) NOT NULL,
		calm            DOUBLE NOT NULL,
		empathy         DOUBLE NOT NULL,
		curiosity       DOUBLE NOT NULL,
		delta_calm      DOUBLE NOT NULL,
		delta_empathy   DOUBLE NOT NULL,
		delta_curiosity DOUBLE NOT NULL,
		created_at_ms   BIGINT NOT NULL,
		PRIMARY KEY (seq),
		KEY idx_session (session_id, seq)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, s.growthTable())

	if _, err := s.db.Exec(recordsDDL); err != nil {
		return err
	}
	_, err := s.db.Exec(growthDDL)
	return err
}

func (s *MySQLStore) LoadLatest(ctx context.Context, sessionID string) (*personacore.PersonaRecord, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, session_id, calm, empathy, curiosity, reflection, meta_summary, growth, created_at_ms
		FROM %s WHERE session_id=? ORDER BY seq DESC LIMIT 1`, s.recordsTable()), sessionID)
	rec, err := scanPersonaRecord(row)
	if err == sql.ErrNoRows {
		return nil, personacore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load latest persona: %w", err)
	}
	return rec, nil
}

func (s *MySQLStore) Save(ctx context.Context, rec *personacore.PersonaRecord) error {
	stamp(rec)
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, session_id, calm, empathy, curiosity, reflection, meta_summary, growth, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.recordsTable()),
		rec.ID, rec.SessionID,
		rec.Traits.Calm, rec.Traits.Empathy, rec.Traits.Curiosity,
		rec.Reflection, rec.MetaSummary, rec.Growth, toMillis(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert persona record: %w", err)
	}
	return nil
}

func (s *MySQLStore) History(ctx context.Context, sessionID string, limit int) ([]*personacore.PersonaRecord, error) {
	q := fmt.Sprintf(`
		SELECT id, session_id, calm, empathy, curiosity, reflection, meta_summary, growth, created_at_ms
		FROM (SELECT * FROM %s WHERE session_id=? ORDER BY seq DESC %s) AS tail
		ORDER BY seq ASC`, s.recordsTable(), limitClause(limit))
	args := []interface{}{sessionID}
	if limit > 0 {
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
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

func (s *MySQLStore) AppendGrowth(ctx context.Context, entry personacore.GrowthLogEntry) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, session_id, calm, empathy, curiosity, delta_calm, delta_empathy, delta_curiosity, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.growthTable()),
		entry.ID, entry.SessionID,
		entry.Traits.Calm, entry.Traits.Empathy, entry.Traits.Curiosity,
		entry.Delta.Calm, entry.Delta.Empathy, entry.Delta.Curiosity,
		toMillis(entry.Timestamp))
	if err != nil {
		return fmt.Errorf("insert growth entry: %w", err)
	}
	return nil
}

func (s *MySQLStore) GrowthLog(ctx context.Context, sessionID string, limit int) ([]personacore.GrowthLogEntry, error) {
	q := fmt.Sprintf(`
		SELECT id, session_id, calm, empathy, curiosity, delta_calm, delta_empathy, delta_curiosity, created_at_ms
		FROM (SELECT * FROM %s WHERE session_id=? ORDER BY seq DESC %s) AS tail
		ORDER BY seq ASC`, s.growthTable(), limitClause(limit))
	args := []interface{}{sessionID}
	if limit > 0 {
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
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

func (s *MySQLStore) PruneHistory(ctx context.Context, sessionID string, keepLast int) error {
	if keepLast <= 0 {
		return nil
	}
	for _, table := range []string{s.recordsTable(), s.growthTable()} {
		_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
			DELETE FROM %s WHERE session_id=? AND seq NOT IN (
				SELECT seq FROM (SELECT seq FROM %s WHERE session_id=? ORDER BY seq DESC LIMIT ?) AS keep
			)`, table, table), sessionID, sessionID, keepLast)
		if err != nil {
			return fmt.Errorf("prune %s: %w", table, err)
		}
	}
	return nil
}

// DeleteSession removes all rows for a session.
// Useful for GDPR right-to-forget compliance.
func (s *MySQLStore) DeleteSession(ctx context.Context, sessionID string) error {
	for _, table := range []string{s.recordsTable(), s.growthTable()} {
		if _, err := s.db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE session_id=?", table), sessionID); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func limitClause(limit int) string {
	if limit > 0 {
		return "LIMIT ?"
	}
	return ""
}

// Compile-time interface checks.
var (
	_ personacore.PersonaStore = (*MySQLStore)(nil)
	_ personacore.PersonaStore = (*SQLiteStore)(nil)
	_ personacore.PersonaStore = (*RedisStore)(nil)
)
