// Package journal keeps a durable record of every batch: what was requested,
// which apps were dismissed, and how the batch ended.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// maxErrorBytes caps the stored error text.
const maxErrorBytes = 16 * 1024

type Journal struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

// Begin records a new running batch and returns its id.
func (j *Journal) Begin(ctx context.Context, req BeginRequest) (string, error) {
	if len(req.Requested) == 0 {
		return "", fmt.Errorf("requested apps are empty")
	}

	id := uuid.NewString()
	startedAt := j.now().UTC().Format(time.RFC3339Nano)

	_, err := j.db.ExecContext(ctx, `
INSERT INTO batch_run(id, requested, serial, config_hash, status, started_at)
VALUES(?, ?, ?, ?, ?, ?);
`, id, strings.Join(req.Requested, ","), nullIfEmpty(req.Serial), nullIfEmpty(req.ConfigHash), StatusRunning, startedAt)
	if err != nil {
		return "", fmt.Errorf("insert batch_run: %w", err)
	}
	return id, nil
}

// RecordApp appends a dismissed app to a running batch.
func (j *Journal) RecordApp(ctx context.Context, batchID, app string) error {
	if batchID == "" {
		return fmt.Errorf("batchID is empty")
	}
	dismissedAt := j.now().UTC().Format(time.RFC3339Nano)

	_, err := j.db.ExecContext(ctx, `
INSERT INTO batch_app(batch_id, position, app, dismissed_at)
VALUES(?, (SELECT COUNT(*) FROM batch_app WHERE batch_id = ?), ?, ?);
`, batchID, batchID, app, dismissedAt)
	if err != nil {
		return fmt.Errorf("insert batch_app: %w", err)
	}
	return nil
}

// Finish marks a running batch terminal.
func (j *Journal) Finish(ctx context.Context, batchID string, f Finish) error {
	if batchID == "" {
		return fmt.Errorf("batchID is empty")
	}
	if f.Status != StatusSucceeded && f.Status != StatusFailed {
		return fmt.Errorf("invalid terminal status: %q", f.Status)
	}

	var lastError any
	if f.Err != nil {
		lastError = truncateError(f.Err.Error())
	}
	completedAt := j.now().UTC().Format(time.RFC3339Nano)

	res, err := j.db.ExecContext(ctx, `
UPDATE batch_run
SET status = ?, error_kind = ?, failed_app = ?, failed_phase = ?, last_error = ?,
    completed_at = ?, duration_ms = ?
WHERE id = ? AND status = ?;
`, f.Status, nullIfEmpty(f.ErrorKind), nullIfEmpty(f.App), nullIfEmpty(f.Phase), lastError,
		completedAt, f.Duration.Milliseconds(), batchID, StatusRunning)
	if err != nil {
		return fmt.Errorf("update batch_run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish %s: %w", batchID, ErrBatchNotFound)
	}
	return nil
}

// RecoverInterrupted marks batches left running by a dead process as
// interrupted. Call it while holding the device lock.
func (j *Journal) RecoverInterrupted(ctx context.Context, serial string) (int, error) {
	completedAt := j.now().UTC().Format(time.RFC3339Nano)
	res, err := j.db.ExecContext(ctx, `
UPDATE batch_run
SET status = ?, completed_at = ?, last_error = 'process exited before the batch finished'
WHERE status = ? AND COALESCE(serial, '') = ?;
`, StatusInterrupted, completedAt, StatusRunning, serial)
	if err != nil {
		return 0, fmt.Errorf("recover interrupted batches: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// Get returns a batch with its dismissed apps.
func (j *Journal) Get(ctx context.Context, batchID string) (*Batch, error) {
	row := j.db.QueryRowContext(ctx, `
SELECT id, requested, serial, config_hash, status, error_kind, failed_app, failed_phase, last_error,
       started_at, completed_at, duration_ms
FROM batch_run
WHERE id = ?;
`, batchID)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, `
SELECT position, app, dismissed_at
FROM batch_app
WHERE batch_id = ?
ORDER BY position ASC;
`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch apps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r           AppResult
			dismissedAt string
		)
		if err := rows.Scan(&r.Position, &r.App, &dismissedAt); err != nil {
			return nil, fmt.Errorf("scan batch app: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, dismissedAt); err == nil {
			r.DismissedAt = t
		}
		b.Dismissed = append(b.Dismissed, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch apps: %w", err)
	}
	return b, nil
}

// List returns the most recent batches, newest first, without app rows.
func (j *Journal) List(ctx context.Context, limit int) ([]*Batch, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT id, requested, serial, config_hash, status, error_kind, failed_app, failed_phase, last_error,
       started_at, completed_at, duration_ms
FROM batch_run
ORDER BY started_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []*Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(s scanner) (*Batch, error) {
	var (
		b            Batch
		requested    string
		serial       sql.NullString
		configHash   sql.NullString
		statusS      string
		errorKind    sql.NullString
		failedApp    sql.NullString
		failedPhase  sql.NullString
		lastError    sql.NullString
		startedAtS   string
		completedAtS sql.NullString
		durationMS   sql.NullInt64
	)
	if err := s.Scan(
		&b.ID, &requested, &serial, &configHash, &statusS, &errorKind, &failedApp, &failedPhase, &lastError,
		&startedAtS, &completedAtS, &durationMS,
	); err != nil {
		return nil, err
	}

	b.Status = Status(statusS)
	if requested != "" {
		b.Requested = strings.Split(requested, ",")
	}
	b.Serial = serial.String
	b.ConfigHash = configHash.String
	if errorKind.Valid {
		b.ErrorKind = &errorKind.String
	}
	if failedApp.Valid {
		b.FailedApp = &failedApp.String
	}
	if failedPhase.Valid {
		b.FailedPhase = &failedPhase.String
	}
	if lastError.Valid {
		b.LastError = &lastError.String
	}
	if t, err := time.Parse(time.RFC3339Nano, startedAtS); err == nil {
		b.StartedAt = t
	}
	if completedAtS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, completedAtS.String); err == nil {
			b.CompletedAt = &t
		}
	}
	if durationMS.Valid {
		b.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	}
	return &b, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// truncateError cuts s to maxErrorBytes without splitting a rune.
func truncateError(s string) string {
	if len(s) <= maxErrorBytes {
		return s
	}
	cut := maxErrorBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
