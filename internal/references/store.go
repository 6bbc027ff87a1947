package references

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"easel/internal/generate"
	"easel/internal/imagestore"
)

// ErrNotFound is returned when a reference photo ID has no row.
var ErrNotFound = errors.New("reference photo not found")

// Photo is a stored reference image available for generation requests.
type Photo struct {
	ID          int64  `json:"id"`
	ImagePath   string `json:"image_path"`
	MIMEType    string `json:"mime_type"`
	DisplayName string `json:"display_name,omitempty"`
	CreatedAt   time.Time
}

// Store manages reference photo rows. It shares the queue database and keeps
// image bytes in the image directory.
type Store struct {
	db     *sql.DB
	images *imagestore.Dir
}

// NewStore builds a reference photo store over an open database handle.
func NewStore(db *sql.DB, images *imagestore.Dir) *Store {
	return &Store{db: db, images: images}
}

// Add saves the image bytes and records a reference photo row.
func (s *Store) Add(ctx context.Context, data []byte, mimeType, displayName string) (*Photo, error) {
	path, err := s.images.Save(data, mimeType)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO reference_photos (image_path, mime_type, display_name, created_at)
         VALUES (?, ?, ?, ?)`,
		path,
		mimeType,
		displayName,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reference photo: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reference photo id: %w", err)
	}

	return &Photo{
		ID:          id,
		ImagePath:   path,
		MIMEType:    mimeType,
		DisplayName: displayName,
		CreatedAt:   now,
	}, nil
}

// GetByIDs fetches photos preserving the order of the requested IDs. IDs
// without a row are skipped.
func (s *Store) GetByIDs(ctx context.Context, ids []int64) ([]*Photo, error) {
	photos := make([]*Photo, 0, len(ids))
	for _, id := range ids {
		photo, err := s.get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}
	return photos, nil
}

// List returns all reference photos, newest first.
func (s *Store) List(ctx context.Context) ([]*Photo, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, image_path, mime_type, display_name, created_at
         FROM reference_photos ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list reference photos: %w", err)
	}
	defer rows.Close()

	var photos []*Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

// LoadByID reads the image bytes for a stored reference photo.
func (s *Store) LoadByID(ctx context.Context, id int64) (generate.Reference, error) {
	photo, err := s.get(ctx, id)
	if err != nil {
		return generate.Reference{}, err
	}
	data, err := s.images.Read(photo.ImagePath)
	if err != nil {
		return generate.Reference{}, err
	}
	return generate.Reference{Data: data, MIMEType: photo.MIMEType}, nil
}

// LoadPath reads image bytes from a path relative to the image directory.
// Used for one-off references supplied inline with a queue item.
func (s *Store) LoadPath(_ context.Context, path string) (generate.Reference, error) {
	data, err := s.images.Read(path)
	if err != nil {
		return generate.Reference{}, err
	}
	return generate.Reference{Data: data, MIMEType: imagestore.MIMETypeFor(path)}, nil
}

// Delete removes a photo row and its image file.
func (s *Store) Delete(ctx context.Context, id int64) error {
	photo, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reference_photos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete reference photo: %w", err)
	}
	// Best effort; the row is authoritative.
	_ = os.Remove(s.images.Resolve(photo.ImagePath))
	return nil
}

func (s *Store) get(ctx context.Context, id int64) (*Photo, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, image_path, mime_type, display_name, created_at
         FROM reference_photos WHERE id = ?`,
		id,
	)
	photo, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return photo, nil
}

func scanPhoto(scanner interface{ Scan(dest ...any) error }) (*Photo, error) {
	var (
		photo      Photo
		display    sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&photo.ID, &photo.ImagePath, &photo.MIMEType, &display, &createdRaw); err != nil {
		return nil, err
	}
	photo.DisplayName = display.String
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		photo.CreatedAt = created
	}
	return &photo, nil
}
