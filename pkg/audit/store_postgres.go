package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore persists chained audit entries in PostgreSQL for
// multi-instance deployments where SQLite's single-writer model does
// not fit.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle and ensures the schema.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS audit_entries (
        entry_id TEXT PRIMARY KEY,
        sequence BIGINT NOT NULL,
        appended_at TIMESTAMPTZ NOT NULL,
        stage TEXT NOT NULL,
        check_id TEXT NOT NULL,
        candidate_id TEXT,
        decision TEXT NOT NULL,
        codes TEXT,
        reason_count INTEGER NOT NULL DEFAULT 0,
        required_changes INTEGER NOT NULL DEFAULT 0,
        drift_score DOUBLE PRECISION,
        content_length INTEGER NOT NULL,
        content_fingerprint TEXT NOT NULL,
        repaired_length INTEGER NOT NULL DEFAULT 0,
        repaired_fingerprint TEXT,
        record_timestamp TIMESTAMPTZ NOT NULL,
        previous_hash TEXT NOT NULL,
        entry_hash TEXT NOT NULL
    );`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Store inserts one chained entry.
func (s *PostgresStore) Store(ctx context.Context, e *Entry) error {
	query := `INSERT INTO audit_entries (
		entry_id, sequence, appended_at, stage, check_id, candidate_id, decision, codes,
		reason_count, required_changes, drift_score, content_length, content_fingerprint,
		repaired_length, repaired_fingerprint, record_timestamp, previous_hash, entry_hash
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	var drift any
	if e.Record.DriftScore != nil {
		drift = *e.Record.DriftScore
	}
	_, err := s.db.ExecContext(ctx, query,
		e.EntryID, e.Sequence, e.AppendedAt.UTC(),
		e.Record.Stage, e.Record.CheckID, e.Record.CandidateID, e.Record.Decision,
		strings.Join(e.Record.Codes, ","),
		e.Record.ReasonCount, e.Record.RequiredChanges, drift,
		e.Record.ContentLength, e.Record.ContentFingerprint,
		e.Record.RepairedLength, e.Record.RepairedFingerprint,
		e.Record.Timestamp.UTC(),
		e.PreviousHash, e.EntryHash,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Entry, error) {
	query := `
        SELECT entry_id, sequence, appended_at, stage, check_id, candidate_id, decision, codes,
               reason_count, required_changes, drift_score, content_length, content_fingerprint,
               repaired_length, repaired_fingerprint, record_timestamp, previous_hash, entry_hash
        FROM audit_entries
        ORDER BY sequence DESC
        LIMIT $1
    `
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		e, err := scanPostgresEntry(rows)
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

// CountByDecision aggregates verdict totals for dashboards.
func (s *PostgresStore) CountByDecision(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT decision, COUNT(*) FROM audit_entries GROUP BY decision")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int64)
	for rows.Next() {
		var decision string
		var n int64
		if err := rows.Scan(&decision, &n); err != nil {
			return nil, err
		}
		counts[decision] = n
	}
	return counts, rows.Err()
}

func scanPostgresEntry(rows *sql.Rows) (*Entry, error) {
	var (
		e          Entry
		appendedAt time.Time
		recordedAt time.Time
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
	e.AppendedAt = appendedAt
	e.Record.Timestamp = recordedAt
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
