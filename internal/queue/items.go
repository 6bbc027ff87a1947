package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const itemColumns = "id, prompt_json, generation_id, status, created_at, started_at, completed_at, reference_photo_ids, inline_reference_paths, google_search, safety_override"

// Enqueue inserts a new queue item with status queued. The prompt payload is
// persisted verbatim; options default to absent or false.
func (s *Store) Enqueue(ctx context.Context, req NewItem) (*Item, error) {
	if req.PromptJSON == "" {
		return nil, errors.New("prompt payload is required")
	}

	refIDs, err := marshalInt64s(req.ReferencePhotoIDs)
	if err != nil {
		return nil, fmt.Errorf("marshal reference photo ids: %w", err)
	}
	inlinePaths, err := marshalStrings(req.InlineReferencePaths)
	if err != nil {
		return nil, fmt.Errorf("marshal inline reference paths: %w", err)
	}

	var generationID any
	if req.GenerationID != 0 {
		generationID = req.GenerationID
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO queue_items (
            prompt_json, generation_id, status, created_at,
            reference_photo_ids, inline_reference_paths, google_search, safety_override
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.PromptJSON,
		generationID,
		StatusQueued,
		s.now().Format(time.RFC3339Nano),
		nullableString(refIDs),
		nullableString(inlinePaths),
		boolToInt(req.GoogleSearch),
		boolToInt(req.SafetyOverride),
	)
	if err != nil {
		return nil, fmt.Errorf("insert queue item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a queue item by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return item, nil
}

// List returns queue items filtered by status set (or all items when no
// status is provided), ordered by creation time.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	baseQuery := `SELECT ` + itemColumns + ` FROM queue_items`
	orderClause := ` ORDER BY created_at, id`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// QueueStatus reports active and queued counts. When itemID is non-zero the
// snapshot carries that item's position: its 1-based rank by enqueue time
// while queued, zero while processing, nil otherwise.
func (s *Store) QueueStatus(ctx context.Context, itemID int64) (Snapshot, error) {
	snapshot := Snapshot{}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT
            COUNT(CASE WHEN status = ? THEN 1 END),
            COUNT(CASE WHEN status = ? THEN 1 END)
         FROM queue_items`,
		StatusProcessing,
		StatusQueued,
	)
	if err := row.Scan(&snapshot.Active, &snapshot.Queued); err != nil {
		return Snapshot{}, fmt.Errorf("count queue items: %w", err)
	}

	if itemID == 0 {
		return snapshot, nil
	}

	item, err := s.GetByID(ctx, itemID)
	if err != nil {
		return Snapshot{}, err
	}
	if item == nil {
		return snapshot, nil
	}

	switch item.Status {
	case StatusProcessing:
		position := 0
		snapshot.Position = &position
	case StatusQueued:
		var position int
		row := s.db.QueryRowContext(
			ctx,
			`SELECT COUNT(1) FROM queue_items
             WHERE status = ?
               AND (created_at < ? OR (created_at = ? AND id <= ?))`,
			StatusQueued,
			item.CreatedAt.Format(time.RFC3339Nano),
			item.CreatedAt.Format(time.RFC3339Nano),
			item.ID,
		)
		if err := row.Scan(&position); err != nil {
			return Snapshot{}, fmt.Errorf("count queue position: %w", err)
		}
		snapshot.Position = &position
	}
	return snapshot, nil
}

// NextQueued returns the oldest queued item, but only while the number of
// processing items is below the concurrency cap. Returns nil when the queue
// is empty or the cap is reached. This is a plain read; claim safety comes
// from AcquireLock.
func (s *Store) NextQueued(ctx context.Context) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items
         WHERE status = ?
           AND (SELECT COUNT(1) FROM queue_items WHERE status = ?) < ?
         ORDER BY created_at, id LIMIT 1`,
		StatusQueued,
		StatusProcessing,
		s.maxConcurrent,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next queued item: %w", err)
	}
	return item, nil
}

// UpdateStatus sets an item's status and stamps the requested lifecycle
// timestamps with the current time.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status Status, stamp Stamp) error {
	now := s.now().Format(time.RFC3339Nano)

	query := `UPDATE queue_items SET status = ?`
	args := []any{status}
	if stamp.Started {
		query += `, started_at = ?`
		args = append(args, now)
	}
	if stamp.Completed {
		query += `, completed_at = ?`
		args = append(args, now)
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update queue status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete cancels a queue item. Terminal items cannot be cancelled. In one
// transaction: any lock on the item is released, a linked generation still
// pending or generating is failed with a cancellation message, and the queue
// row is removed entirely.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancel tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		statusStr    string
		generationID sql.NullInt64
	)
	row := tx.QueryRowContext(ctx, `SELECT status, generation_id FROM queue_items WHERE id = ?`, id)
	if err := row.Scan(&statusStr, &generationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("read queue item: %w", err)
	}
	if Status(statusStr).IsTerminal() {
		return ErrInvalidState
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM queue_locks WHERE queue_item_id = ?`, id); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}

	if generationID.Valid {
		now := s.now().Format(time.RFC3339Nano)
		_, err := tx.ExecContext(
			ctx,
			`UPDATE generations
             SET status = ?, error_message = ?, completed_at = ?
             WHERE id = ? AND status IN (?, ?)`,
			GenerationFailed,
			CancelledByUserMessage,
			now,
			generationID.Int64,
			GenerationPending,
			GenerationGenerating,
		)
		if err != nil {
			return fmt.Errorf("fail linked generation: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM queue_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete queue item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cancel: %w", err)
	}
	return nil
}

// Cleanup removes terminal items beyond the newest retentionLimit rows by
// completion time. Best-effort housekeeping; callers may ignore the count.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	if s.retentionLimit <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM queue_items
         WHERE status IN (?, ?)
           AND id NOT IN (
               SELECT id FROM queue_items
               WHERE status IN (?, ?)
               ORDER BY completed_at DESC, id DESC
               LIMIT ?
           )`,
		StatusCompleted, StatusFailed,
		StatusCompleted, StatusFailed,
		s.retentionLimit,
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup queue: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id             int64
		promptJSON     string
		generationID   sql.NullInt64
		statusStr      string
		createdRaw     sql.NullString
		startedRaw     sql.NullString
		completedRaw   sql.NullString
		refIDsRaw      sql.NullString
		inlineRaw      sql.NullString
		googleSearch   sql.NullInt64
		safetyOverride sql.NullInt64
	)

	if err := scanner.Scan(
		&id,
		&promptJSON,
		&generationID,
		&statusStr,
		&createdRaw,
		&startedRaw,
		&completedRaw,
		&refIDsRaw,
		&inlineRaw,
		&googleSearch,
		&safetyOverride,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:         id,
		PromptJSON: promptJSON,
		Status:     Status(statusStr),
	}
	if generationID.Valid {
		item.GenerationID = generationID.Int64
	}
	if googleSearch.Valid {
		item.GoogleSearch = googleSearch.Int64 != 0
	}
	if safetyOverride.Valid {
		item.SafetyOverride = safetyOverride.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			item.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			item.CompletedAt = &completed
		}
	}

	if refIDsRaw.Valid && refIDsRaw.String != "" {
		if err := json.Unmarshal([]byte(refIDsRaw.String), &item.ReferencePhotoIDs); err != nil {
			return nil, fmt.Errorf("decode reference photo ids: %w", err)
		}
	}
	if inlineRaw.Valid && inlineRaw.String != "" {
		if err := json.Unmarshal([]byte(inlineRaw.String), &item.InlineReferencePaths); err != nil {
			return nil, fmt.Errorf("decode inline reference paths: %w", err)
		}
	}
	return item, nil
}

func marshalInt64s(values []int64) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func marshalStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
