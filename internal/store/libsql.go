package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/actionwait/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// --- Wait records ---

func (s *LibSQLStore) PutWait(ctx context.Context, runID, key string, rec *schema.WaitRecord) error {
	if rec == nil {
		return schema.NewError(schema.ErrCodeValidation, "wait record is nil")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wait_records (run_id, key, path, correlation_id, deadline, created_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, key) DO UPDATE SET path=excluded.path, correlation_id=excluded.correlation_id, deadline=excluded.deadline`,
		runID, key, rec.Path, rec.CorrelationID, rec.Deadline.UTC(), time.Now().UTC(),
	)
	return err
}

func (s *LibSQLStore) GetWait(ctx context.Context, runID, key string) (*schema.WaitRecord, error) {
	rec := &schema.WaitRecord{}
	err := s.db.QueryRowContext(ctx,
		`SELECT path, correlation_id, deadline FROM wait_records WHERE run_id = ? AND key = ?`, runID, key,
	).Scan(&rec.Path, &rec.CorrelationID, &rec.Deadline)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("wait_record", runID+"/"+key)
	}
	if err != nil {
		return nil, err
	}
	rec.Deadline = rec.Deadline.UTC()
	return rec, nil
}

// DeleteRun removes every wait record, suspension, and event of a finished run.
func (s *LibSQLStore) DeleteRun(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete run: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"wait_records", "suspensions", "events"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// --- Suspensions ---

func (s *LibSQLStore) UpsertSuspension(ctx context.Context, sp *Suspension) error {
	status := sp.Status
	if status == "" {
		status = schema.SuspensionParked
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO suspensions (correlation_id, run_id, path, deadline, status, created_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(correlation_id) DO UPDATE SET run_id=excluded.run_id, path=excluded.path, deadline=excluded.deadline`,
		sp.CorrelationID, sp.RunID, sp.Path, sp.Deadline.UTC(), string(status), timeOrNow(sp.CreatedAt),
	)
	return err
}

func (s *LibSQLStore) GetSuspension(ctx context.Context, correlationID string) (*Suspension, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT correlation_id, run_id, path, deadline, status, outcome, created_at, resolved_at
		 FROM suspensions WHERE correlation_id = ?`, correlationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list, err := scanSuspensions(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, storeNotFound("suspension", correlationID)
	}
	return list[0], nil
}

// ResolveSuspension moves a parked suspension to a terminal status. Resolving a
// suspension that is not parked is a conflict, which makes tokens single-use.
func (s *LibSQLStore) ResolveSuspension(ctx context.Context, correlationID string, status schema.SuspensionStatus, outcome json.RawMessage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE suspensions SET status = ?, outcome = ?, resolved_at = ? WHERE correlation_id = ? AND status = ?`,
		string(status), nullRaw(outcome), time.Now().UTC(), correlationID, string(schema.SuspensionParked),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := s.GetSuspension(ctx, correlationID); err != nil {
		return err
	}
	return schema.NewErrorf(schema.ErrCodeConflict, "suspension %q already resolved", correlationID)
}

func (s *LibSQLStore) ListSuspensions(ctx context.Context, filter SuspensionFilter) ([]*Suspension, error) {
	query := `SELECT correlation_id, run_id, path, deadline, status, outcome, created_at, resolved_at FROM suspensions`
	var where []string
	var args []any

	if filter.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list, err := scanSuspensions(rows)
	if err != nil {
		return nil, err
	}

	// Deadline filtering and ordering happen in Go so they do not depend on the
	// driver's textual time encoding.
	out := list[:0]
	for _, sp := range list {
		if filter.DueBefore != nil && sp.Deadline.After(*filter.DueBefore) {
			continue
		}
		out = append(out, sp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func scanSuspensions(rows *sql.Rows) ([]*Suspension, error) {
	list := make([]*Suspension, 0)
	for rows.Next() {
		sp := &Suspension{}
		var (
			status     string
			outcome    sql.NullString
			resolvedAt sql.NullTime
		)
		if err := rows.Scan(&sp.CorrelationID, &sp.RunID, &sp.Path, &sp.Deadline, &status, &outcome, &sp.CreatedAt, &resolvedAt); err != nil {
			return nil, err
		}
		sp.Deadline = sp.Deadline.UTC()
		sp.Status = schema.SuspensionStatus(status)
		sp.Outcome = rawOrNil(outcome)
		if resolvedAt.Valid {
			t := resolvedAt.Time.UTC()
			sp.ResolvedAt = &t
		}
		list = append(list, sp)
	}
	return list, rows.Err()
}

// --- Events ---

func (s *LibSQLStore) GetEvents(ctx context.Context, runID string, since int64) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, path, event_type, payload, timestamp, sequence
		 FROM events WHERE run_id = ? AND sequence > ? ORDER BY sequence ASC`, runID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	events := make([]*Event, 0)
	for rows.Next() {
		e := &Event{}
		var path, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &path, &e.Type, &payload, &e.Timestamp, &e.Sequence); err != nil {
			return nil, err
		}
		e.Path = path.String
		e.Payload = rawOrNil(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.OpcodeError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

var _ Store = (*LibSQLStore)(nil)
