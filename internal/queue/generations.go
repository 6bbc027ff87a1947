package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const generationColumns = "id, status, prompt_json, image_path, pre_swap_image_path, error_message, api_response_text, used_fallback, face_swap_failed, created_at, completed_at"

// CreateGeneration inserts a pending generation record for a prompt payload.
func (s *Store) CreateGeneration(ctx context.Context, promptJSON string) (*Generation, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO generations (status, prompt_json, created_at) VALUES (?, ?, ?)`,
		GenerationPending,
		promptJSON,
		s.now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert generation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetGeneration(ctx, id)
}

// GetGeneration fetches a generation record by identifier. Returns nil when absent.
func (s *Store) GetGeneration(ctx context.Context, id int64) (*Generation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+generationColumns+` FROM generations WHERE id = ?`, id)
	gen, err := scanGeneration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get generation: %w", err)
	}
	return gen, nil
}

// UpdateGeneration persists changes to an existing generation record.
func (s *Store) UpdateGeneration(ctx context.Context, gen *Generation) error {
	if gen == nil {
		return errors.New("generation is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE generations
         SET status = ?, image_path = ?, pre_swap_image_path = ?, error_message = ?,
             api_response_text = ?, used_fallback = ?, face_swap_failed = ?, completed_at = ?
         WHERE id = ?`,
		gen.Status,
		nullableString(gen.ImagePath),
		nullableString(gen.PreSwapImagePath),
		nullableString(gen.ErrorMessage),
		nullableString(gen.APIResponseText),
		boolToInt(gen.UsedFallback),
		boolToInt(gen.FaceSwapFailed),
		nullableTime(gen.CompletedAt),
		gen.ID,
	)
	if err != nil {
		return fmt.Errorf("update generation: %w", err)
	}
	return nil
}

// SetGenerationStatus updates only the status of a generation record.
func (s *Store) SetGenerationStatus(ctx context.Context, id int64, status GenerationStatus) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE generations SET status = ? WHERE id = ?`, status, id); err != nil {
		return fmt.Errorf("set generation status: %w", err)
	}
	return nil
}

func scanGeneration(scanner interface{ Scan(dest ...any) error }) (*Generation, error) {
	var (
		id             int64
		statusStr      string
		promptJSON     string
		imagePath      sql.NullString
		preSwapPath    sql.NullString
		errorMessage   sql.NullString
		apiResponse    sql.NullString
		usedFallback   sql.NullInt64
		faceSwapFailed sql.NullInt64
		createdRaw     sql.NullString
		completedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&statusStr,
		&promptJSON,
		&imagePath,
		&preSwapPath,
		&errorMessage,
		&apiResponse,
		&usedFallback,
		&faceSwapFailed,
		&createdRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	gen := &Generation{
		ID:               id,
		Status:           GenerationStatus(statusStr),
		PromptJSON:       promptJSON,
		ImagePath:        imagePath.String,
		PreSwapImagePath: preSwapPath.String,
		ErrorMessage:     errorMessage.String,
		APIResponseText:  apiResponse.String,
	}
	if usedFallback.Valid {
		gen.UsedFallback = usedFallback.Int64 != 0
	}
	if faceSwapFailed.Valid {
		gen.FaceSwapFailed = faceSwapFailed.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		gen.CreatedAt = created
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			gen.CompletedAt = &completed
		}
	}
	return gen, nil
}
