package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// dbtx is the subset of *sql.DB / *sql.Tx that Queries needs, letting the
// same query methods run standalone or inside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Queries is the hand-written query layer for the dead-letter office and
// actor audit trail, grounded on internal/queue/store.go's method set
// (Enqueue/List/Drain/MarkDelivered/MarkFailed/Clear/PurgeExpired/Stats/
// Count) but hand-written against database/sql directly since the sqlc
// code generator and its generated package aren't available in this
// environment.
type Queries struct {
	db dbtx
}

// New wraps db (a *sql.DB or *sql.Tx) in a Queries.
func New(db dbtx) *Queries {
	return &Queries{db: db}
}

// EnqueueDeadLetter inserts a new dead-letter entry. If dl.IdempotencyKey
// is empty, a fresh one is generated so every dead letter can still be
// de-duplicated on retry.
func (q *Queries) EnqueueDeadLetter(ctx context.Context, dl DeadLetter) (int64, error) {
	if dl.IdempotencyKey == "" {
		dl.IdempotencyKey = uuid.NewString()
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO dead_letters (
			idempotency_key, actor_index, actor_generation,
			event_mask, payload_json, created_at, expires_at,
			status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		dl.IdempotencyKey, dl.ActorIndex, dl.ActorGeneration,
		dl.EventMask, dl.PayloadJSON, dl.CreatedAt.Unix(),
		dl.ExpiresAt.Unix(), string(StatusPending),
	)
	if err != nil {
		return 0, fmt.Errorf("enqueue dead letter: %w", err)
	}
	return res.LastInsertId()
}

// CountPendingDeadLetters returns how many entries are currently pending.
func (q *Queries) CountPendingDeadLetters(ctx context.Context) (int64, error) {
	var n int64
	row := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dead_letters WHERE status = ?`,
		string(StatusPending),
	)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending dead letters: %w", err)
	}
	return n, nil
}

// ListDeadLetters returns every dead-letter entry in insertion order,
// without changing status.
func (q *Queries) ListDeadLetters(ctx context.Context) ([]DeadLetter, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, idempotency_key, actor_index, actor_generation,
		       event_mask, payload_json, created_at, expires_at,
		       attempts, last_error, status
		FROM dead_letters ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	return scanDeadLetters(rows)
}

// DrainPendingDeadLetters atomically marks every pending entry as
// 'delivering' and returns them, preventing a concurrent drain from
// picking up the same rows.
func (q *Queries) DrainPendingDeadLetters(ctx context.Context) ([]DeadLetter, error) {
	rows, err := q.db.QueryContext(ctx, `
		UPDATE dead_letters SET status = ?
		WHERE status = ?
		RETURNING id, idempotency_key, actor_index, actor_generation,
		          event_mask, payload_json, created_at, expires_at,
		          attempts, last_error, status`,
		string(StatusDelivering), string(StatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("drain dead letters: %w", err)
	}
	defer rows.Close()

	return scanDeadLetters(rows)
}

func scanDeadLetters(rows *sql.Rows) ([]DeadLetter, error) {
	var out []DeadLetter
	for rows.Next() {
		var (
			dl                     DeadLetter
			createdAt, expiresAt   int64
			lastError              sql.NullString
			status                 string
		)
		if err := rows.Scan(
			&dl.ID, &dl.IdempotencyKey, &dl.ActorIndex,
			&dl.ActorGeneration, &dl.EventMask, &dl.PayloadJSON,
			&createdAt, &expiresAt, &dl.Attempts, &lastError,
			&status,
		); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		dl.CreatedAt = time.Unix(createdAt, 0)
		dl.ExpiresAt = time.Unix(expiresAt, 0)
		dl.LastError = lastError.String
		dl.Status = DeadLetterStatus(status)
		out = append(out, dl)
	}
	return out, rows.Err()
}

// MarkDeadLetterDelivered marks id as successfully delivered.
func (q *Queries) MarkDeadLetterDelivered(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE dead_letters SET status = ? WHERE id = ?`,
		string(StatusDelivered), id,
	)
	if err != nil {
		return fmt.Errorf("mark dead letter delivered: %w", err)
	}
	return nil
}

// MarkDeadLetterFailed records a failed delivery attempt and resets the
// entry to pending so the next drain retries it.
func (q *Queries) MarkDeadLetterFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE dead_letters
		SET status = ?, attempts = attempts + 1, last_error = ?
		WHERE id = ?`,
		string(StatusPending), errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("mark dead letter failed: %w", err)
	}
	return nil
}

// ClearDeadLetters deletes every dead-letter entry regardless of status.
func (q *Queries) ClearDeadLetters(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM dead_letters`)
	if err != nil {
		return fmt.Errorf("clear dead letters: %w", err)
	}
	return nil
}

// PurgeExpiredDeadLetters removes entries whose expiry has passed and
// which are not already delivered, returning the count removed.
func (q *Queries) PurgeExpiredDeadLetters(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM dead_letters
		WHERE expires_at <= ? AND status != ?`,
		now.Unix(), string(StatusDelivered),
	)
	if err != nil {
		return 0, fmt.Errorf("purge expired dead letters: %w", err)
	}
	return res.RowsAffected()
}

// DeadLetterStatsQuery aggregates dead-letter counts by status.
func (q *Queries) DeadLetterStatsQuery(ctx context.Context) (DeadLetterStats, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM dead_letters GROUP BY status`,
	)
	if err != nil {
		return DeadLetterStats{}, fmt.Errorf("dead letter stats: %w", err)
	}
	defer rows.Close()

	var stats DeadLetterStats
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return DeadLetterStats{}, fmt.Errorf("scan dead letter stats: %w", err)
		}
		switch DeadLetterStatus(status) {
		case StatusPending:
			stats.Pending = n
		case StatusDelivering:
			stats.Delivering = n
		case StatusDelivered:
			stats.Delivered = n
		case StatusFailed:
			stats.Failed = n
		}
	}
	return stats, rows.Err()
}

// InsertAuditRecord appends an entry to the actor audit trail. If
// rec.AuditID is empty, a fresh one is generated.
func (q *Queries) InsertAuditRecord(ctx context.Context, rec AuditRecord) (int64, error) {
	if rec.AuditID == "" {
		rec.AuditID = uuid.NewString()
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO actor_audit (
			audit_id, actor_index, actor_generation, reactor_id,
			event, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.AuditID, rec.ActorIndex, rec.ActorGeneration, rec.ReactorID,
		rec.Event, rec.RecordedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert audit record: %w", err)
	}
	return res.LastInsertId()
}

// ListAuditRecords returns every audit entry for the given actor, oldest
// first.
func (q *Queries) ListAuditRecords(ctx context.Context, actorIndex,
	actorGeneration uint32) ([]AuditRecord, error) {

	rows, err := q.db.QueryContext(ctx, `
		SELECT id, audit_id, actor_index, actor_generation, reactor_id,
		       event, recorded_at
		FROM actor_audit
		WHERE actor_index = ? AND actor_generation = ?
		ORDER BY id ASC`,
		actorIndex, actorGeneration,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var recordedAt int64
		if err := rows.Scan(
			&rec.ID, &rec.AuditID, &rec.ActorIndex, &rec.ActorGeneration,
			&rec.ReactorID, &rec.Event, &recordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.RecordedAt = time.Unix(recordedAt, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}
