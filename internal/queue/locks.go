package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const lockColumns = "id, queue_item_id, locked_at, heartbeat_at"

// AcquireLock attempts to take the heartbeat lease for a queue item. It first
// tries an insert-if-absent; when a row already exists it may only be taken
// over if its heartbeat has gone stale, via a conditional update keyed on the
// heartbeat value just read. Returns nil when the item is freshly locked by
// another owner or when the takeover loses a race.
func (s *Store) AcquireLock(ctx context.Context, itemID int64) (*Lock, error) {
	now := s.now()
	lock := &Lock{
		ID:          uuid.NewString(),
		QueueItemID: itemID,
		LockedAt:    now,
		HeartbeatAt: now,
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO queue_locks (id, queue_item_id, locked_at, heartbeat_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (queue_item_id) DO NOTHING`,
		lock.ID,
		itemID,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert lock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return lock, nil
	}

	existing, err := s.lockForItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		// Row vanished between insert and read; treat as a lost race.
		return nil, nil
	}
	if !s.isStale(existing.HeartbeatAt, now) {
		return nil, nil
	}

	// Stale takeover. The WHERE clause on the previously read heartbeat keeps
	// two concurrent takeovers from both succeeding.
	res, err = s.db.ExecContext(
		ctx,
		`UPDATE queue_locks
         SET id = ?, locked_at = ?, heartbeat_at = ?
         WHERE queue_item_id = ? AND heartbeat_at = ?`,
		lock.ID,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		itemID,
		existing.HeartbeatAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("take over stale lock: %w", err)
	}
	affected, err = res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}
	return lock, nil
}

// UpdateHeartbeat bumps a lease's heartbeat to now. Holders call this on a
// fixed interval while working to signal liveness.
func (s *Store) UpdateHeartbeat(ctx context.Context, lockID string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE queue_locks SET heartbeat_at = ? WHERE id = ?`,
		s.now().Format(time.RFC3339Nano),
		lockID,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReleaseLock deletes a lock row by lease token.
func (s *Store) ReleaseLock(ctx context.Context, lockID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM queue_locks WHERE id = ?`, lockID); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// ReleaseLockForItem deletes any lock row held for a queue item.
func (s *Store) ReleaseLockForItem(ctx context.Context, itemID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM queue_locks WHERE queue_item_id = ?`, itemID); err != nil {
		return fmt.Errorf("release item lock: %w", err)
	}
	return nil
}

// IsItemLocked reports whether a fresh lease exists for the item.
func (s *Store) IsItemLocked(ctx context.Context, itemID int64) (bool, error) {
	lock, err := s.lockForItem(ctx, itemID)
	if err != nil {
		return false, err
	}
	if lock == nil {
		return false, nil
	}
	return !s.isStale(lock.HeartbeatAt, s.now()), nil
}

// ActiveLockCount returns the number of non-stale lock rows.
func (s *Store) ActiveLockCount(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.staleTimeout)
	var count int
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM queue_locks WHERE heartbeat_at >= ?`,
		cutoff.Format(time.RFC3339Nano),
	)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count active locks: %w", err)
	}
	return count, nil
}

// ResetStaleProcessing is the crash-recovery sweep, intended to run once at
// process startup. Items whose lock went stale and processing items with no
// lock row at all are returned to queued with started_at cleared; a linked
// generation caught mid-flight is reset to pending; the dead lock rows are
// removed. Returns the number of items reset.
func (s *Store) ResetStaleProcessing(ctx context.Context) (int64, error) {
	now := s.now()
	cutoff := now.Add(-s.staleTimeout).Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin recovery tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(
		ctx,
		`SELECT qi.id, qi.generation_id FROM queue_items qi
         WHERE qi.status = ?
           AND (
               EXISTS (
                   SELECT 1 FROM queue_locks ql
                   WHERE ql.queue_item_id = qi.id AND ql.heartbeat_at < ?
               )
               OR NOT EXISTS (
                   SELECT 1 FROM queue_locks ql WHERE ql.queue_item_id = qi.id
               )
           )`,
		StatusProcessing,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("find stale processing items: %w", err)
	}

	type staleItem struct {
		id           int64
		generationID sql.NullInt64
	}
	var stale []staleItem
	for rows.Next() {
		var item staleItem
		if err := rows.Scan(&item.id, &item.generationID); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan stale item: %w", err)
		}
		stale = append(stale, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("iterate stale items: %w", err)
	}
	rows.Close()

	for _, item := range stale {
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE queue_items SET status = ?, started_at = NULL WHERE id = ?`,
			StatusQueued,
			item.id,
		); err != nil {
			return 0, fmt.Errorf("reset item %d: %w", item.id, err)
		}
		if item.generationID.Valid {
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE generations SET status = ? WHERE id = ? AND status = ?`,
				GenerationPending,
				item.generationID.Int64,
				GenerationGenerating,
			); err != nil {
				return 0, fmt.Errorf("reset generation %d: %w", item.generationID.Int64, err)
			}
		}
		if _, err := tx.ExecContext(
			ctx,
			`DELETE FROM queue_locks WHERE queue_item_id = ?`,
			item.id,
		); err != nil {
			return 0, fmt.Errorf("remove stale lock for item %d: %w", item.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit recovery: %w", err)
	}
	return int64(len(stale)), nil
}

// CleanupStaleLocks deletes stale lock rows without touching queue item
// status. Hygiene independent of the recovery sweep.
func (s *Store) CleanupStaleLocks(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.staleTimeout)
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM queue_locks WHERE heartbeat_at < ?`,
		cutoff.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup stale locks: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) lockForItem(ctx context.Context, itemID int64) (*Lock, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+lockColumns+` FROM queue_locks WHERE queue_item_id = ?`,
		itemID,
	)
	lock, err := scanLock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read lock: %w", err)
	}
	return lock, nil
}

func (s *Store) isStale(heartbeatAt, now time.Time) bool {
	return heartbeatAt.Before(now.Add(-s.staleTimeout))
}

func scanLock(scanner interface{ Scan(dest ...any) error }) (*Lock, error) {
	var (
		id           string
		itemID       int64
		lockedRaw    string
		heartbeatRaw string
	)
	if err := scanner.Scan(&id, &itemID, &lockedRaw, &heartbeatRaw); err != nil {
		return nil, err
	}

	lock := &Lock{ID: id, QueueItemID: itemID}
	if locked, err := parseTimeString(lockedRaw); err == nil {
		lock.LockedAt = locked
	}
	if heartbeat, err := parseTimeString(heartbeatRaw); err == nil {
		lock.HeartbeatAt = heartbeat
	}
	return lock, nil
}
