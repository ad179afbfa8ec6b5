package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists chained audit entries in SQLite. It keeps the
// same append-only discipline as the in-memory Store and carries the
// chain head in the table itself.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database handle and ensures the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS audit_entries (
        entry_id TEXT PRIMARY KEY,
        sequence INTEGER NOT NULL,
        appended_at DATETIME NOT NULL,
        stage TEXT NOT NULL,
        check_id TEXT NOT NULL,
        candidate_id TEXT,
        decision TEXT NOT NULL,
        codes TEXT,
        reason_count INTEGER NOT NULL DEFAULT 0,
        required_changes INTEGER NOT NULL DEFAULT 0,
        drift_score REAL,
        content_length INTEGER NOT NULL,
        content_fingerprint TEXT NOT NULL,
        repaired_length INTEGER NOT NULL DEFAULT 0,
        repaired_fingerprint TEXT,
        record_timestamp DATETIME NOT NULL,
        previous_hash TEXT NOT NULL,
        entry_hash TEXT NOT NULL
    );`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Store inserts one chained entry.
func (s *SQLiteStore) Store(ctx context.Context, e *Entry) error {
	query := `INSERT INTO audit_entries (
		entry_id, sequence, appended_at, stage, check_id, candidate_id, decision, codes,
		reason_count, required_changes, drift_score, content_length, content_fingerprint,
		repaired_length, repaired_fingerprint, record_timestamp, previous_hash, entry_hash
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var drift any
	if e.Record.DriftScore != nil {
		drift = *e.Record.DriftScore
	}
	_, err := s.db.ExecContext(ctx, query,
		e.EntryID, e.Sequence, e.AppendedAt.UTC().Format(time.RFC3339Nano),
		e.Record.Stage, e.Record.CheckID, e.Record.CandidateID, e.Record.Decision,
		strings.Join(e.Record.Codes, ","),
		e.Record.ReasonCount, e.Record.RequiredChanges, drift,
		e.Record.ContentLength, e.Record.ContentFingerprint,
		e.Record.RepairedLength, e.Record.RepairedFingerprint,
		e.Record.Timestamp.UTC().Format(time.RFC3339Nano),
		e.PreviousHash, e.EntryHash,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*Entry, error) {
	query := `
        SELECT entry_id, sequence, appended_at, stage, check_id, candidate_id, decision, codes,
               reason_count, required_changes, drift_score, content_length, content_fingerprint,
               repaired_length, repaired_fingerprint, record_timestamp, previous_hash, entry_hash
        FROM audit_entries
        ORDER BY sequence DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntryRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Head returns the current chain head hash, or "genesis" on an empty
// table.
func (s *SQLiteStore) Head(ctx context.Context) (string, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT entry_hash FROM audit_entries ORDER BY sequence DESC LIMIT 1")
	var head string
	if err := row.Scan(&head); err != nil {
		if err == sql.ErrNoRows {
			return "genesis", nil
		}
		return "", err
	}
	return head, nil
}

func scanEntryRow(rows *sql.Rows) (*Entry, error) {
	var (
		e          Entry
		appendedAt string
		recordedAt string
		candidate  sql.NullString
		codes      sql.NullString
		drift      sql.NullFloat64
		repairedFP sql.NullString
	)
	if err := rows.Scan(
		&e.EntryID, &e.Sequence, &appendedAt,
		&e.Record.Stage, &e.Record.CheckID, &candidate, &e.Record.Decision, &codes,
		&e.Record.ReasonCount, &e.Record.RequiredChanges, &drift,
		&e.Record.ContentLength, &e.Record.ContentFingerprint,
		&e.Record.RepairedLength, &repairedFP,
		&recordedAt, &e.PreviousHash, &e.EntryHash,
	); err != nil {
		return nil, err
	}
	e.AppendedAt = parseTime(appendedAt)
	e.Record.Timestamp = parseTime(recordedAt)
	e.Record.CandidateID = candidate.String
	e.Record.RepairedFingerprint = repairedFP.String
	if codes.Valid && codes.String != "" {
		e.Record.Codes = strings.Split(codes.String, ",")
	}
	if drift.Valid {
		v := drift.Float64
		e.Record.DriftScore = &v
	}
	return &e, nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
