package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    id           TEXT NOT NULL,
    ts           INTEGER NOT NULL,
    input_ref    TEXT NOT NULL,
    intent       TEXT NOT NULL,
    pii_count    INTEGER NOT NULL,
    type_counts  TEXT NOT NULL,
    masked       INTEGER NOT NULL,
    replacements INTEGER NOT NULL,
    failed       TEXT NOT NULL,
    duration_ms  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_records_ts ON audit_records(ts);
`

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db %q: %w", path, err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("create audit schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Write implements Store.
func (s *SQLite) Write(ctx context.Context, r Record) error {
	counts, err := json.Marshal(r.TypeCounts)
	if err != nil {
		return fmt.Errorf("encode type counts: %w", err)
	}
	failed, err := json.Marshal(r.Failed)
	if err != nil {
		return fmt.Errorf("encode failed detectors: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_records (id, ts, input_ref, intent, pii_count, type_counts,
			masked, replacements, failed, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Time.UnixNano(), r.InputRef, r.Intent, r.PIICount, string(counts),
		r.Masked, r.Replacements, string(failed), r.DurationMs)
	return err
}

// Recent implements Store.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, input_ref, intent, pii_count, type_counts, masked,
			replacements, failed, duration_ms
		FROM audit_records ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var out []Record
	for rows.Next() {
		var (
			r              Record
			ts             int64
			counts, failed string
		)
		if err := rows.Scan(&r.ID, &ts, &r.InputRef, &r.Intent, &r.PIICount, &counts,
			&r.Masked, &r.Replacements, &failed, &r.DurationMs); err != nil {
			return nil, err
		}
		r.Time = time.Unix(0, ts).UTC()
		if err := json.Unmarshal([]byte(counts), &r.TypeCounts); err != nil {
			return nil, fmt.Errorf("decode type counts: %w", err)
		}
		if err := json.Unmarshal([]byte(failed), &r.Failed); err != nil {
			return nil, fmt.Errorf("decode failed detectors: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *SQLite) Close() error {
	return s.db.Close()
}
