// Package journal provides an append-only SQLite record of what the
// engine did: every mutation attempt with its outcome, and every feed
// ingestion decision.
//
// The journal is diagnostic, never authoritative: entity state lives in
// the backend and in memory, and the engine runs fine with no journal at
// all. Its value is in replay — `opsync replay` prints the recorded
// trace when investigating a reconciliation dispute or a dedup drop.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/opsync/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// MutationRecord is one Apply outcome.
type MutationRecord struct {
	Seq             int64
	Kind            model.Kind
	EntityID        string
	Action          model.Action
	PrevStatus      model.Status
	PredictedStatus model.Status
	// Outcome is "confirmed" or "rolled_back".
	Outcome     string
	FinalStatus model.Status // server status on confirm, restored status on rollback
	Error       string       // empty on confirm
	At          time.Time
}

// Mutation outcomes.
const (
	OutcomeConfirmed  = "confirmed"
	OutcomeRolledBack = "rolled_back"
)

// FeedRecord is one feed ingestion decision.
type FeedRecord struct {
	Seq     int64
	Source  string // "poll", "push"
	Event   string // "merged", "accepted", "dropped_duplicate", "status_rewrite", "unmatched"
	TxnID   string
	OrderID string
	At      time.Time
}

// Journal wraps the SQLite handle. Single writer; WAL mode allows
// concurrent readers (the replay CLI on a live journal).
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path. ":memory:" gives
// a throwaway journal for tests. Idempotent: the schema applies with
// IF NOT EXISTS.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// SQLite allows one writer; a second connection would hit
	// SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// RecordMutation appends one mutation outcome.
func (j *Journal) RecordMutation(ctx context.Context, rec MutationRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO mutations (kind, entity_id, action, prev_status, predicted_status, outcome, final_status, error, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rec.Kind), rec.EntityID, string(rec.Action),
		string(rec.PrevStatus), string(rec.PredictedStatus),
		rec.Outcome, string(rec.FinalStatus), rec.Error,
		rec.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record mutation %s/%s: %w", rec.EntityID, rec.Action, err)
	}
	return nil
}

// RecordFeedEvent appends one feed ingestion decision.
func (j *Journal) RecordFeedEvent(ctx context.Context, rec FeedRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO feed_events (source, event, txn_id, order_id, at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.Source, rec.Event, rec.TxnID, rec.OrderID,
		rec.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record feed event %s/%s: %w", rec.Source, rec.Event, err)
	}
	return nil
}

// Mutations returns every recorded mutation in append order.
func (j *Journal) Mutations(ctx context.Context) ([]MutationRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, kind, entity_id, action, prev_status, predicted_status, outcome, final_status, error, at
		FROM mutations ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("read mutations: %w", err)
	}
	defer rows.Close()

	var out []MutationRecord
	for rows.Next() {
		var rec MutationRecord
		var kind, action, prev, predicted, final, at string
		if err := rows.Scan(&rec.Seq, &kind, &rec.EntityID, &action, &prev, &predicted,
			&rec.Outcome, &final, &rec.Error, &at); err != nil {
			return nil, fmt.Errorf("scan mutation: %w", err)
		}
		rec.Kind = model.Kind(kind)
		rec.Action = model.Action(action)
		rec.PrevStatus = model.Status(prev)
		rec.PredictedStatus = model.Status(predicted)
		rec.FinalStatus = model.Status(final)
		if rec.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse mutation timestamp %q: %w", at, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FeedEvents returns every recorded feed decision in append order.
func (j *Journal) FeedEvents(ctx context.Context) ([]FeedRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, source, event, txn_id, order_id, at
		FROM feed_events ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("read feed events: %w", err)
	}
	defer rows.Close()

	var out []FeedRecord
	for rows.Next() {
		var rec FeedRecord
		var at string
		if err := rows.Scan(&rec.Seq, &rec.Source, &rec.Event, &rec.TxnID, &rec.OrderID, &at); err != nil {
			return nil, fmt.Errorf("scan feed event: %w", err)
		}
		if rec.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse feed timestamp %q: %w", at, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
