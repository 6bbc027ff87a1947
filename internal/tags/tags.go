// Package tags derives searchable tags from generation prompt payloads and
// persists them alongside the generation record.
package tags

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tags longer than this are almost certainly free-form prose, not labels.
const maxTagLength = 48

// Tag is one normalized tag with its display label.
type Tag struct {
	Tag   string `json:"tag"`
	Label string `json:"label"`
}

// Deriver extracts tags from prompt payloads and writes them to the shared
// database.
type Deriver struct {
	db    *sql.DB
	caser cases.Caser
}

// NewDeriver builds a Deriver over an open database handle.
func NewDeriver(db *sql.DB) *Deriver {
	return &Deriver{db: db, caser: cases.Title(language.English)}
}

// CreateForGeneration derives tags from the prompt payload plus the component
// names used during generation, and inserts them for the generation.
// Duplicate tags collapse to one row.
func (d *Deriver) CreateForGeneration(ctx context.Context, generationID int64, promptJSON string, components []string) error {
	candidates := append(extractStrings(promptJSON), components...)

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		tag := Normalize(candidate)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}

		if _, err := d.db.ExecContext(
			ctx,
			`INSERT OR IGNORE INTO generation_tags (generation_id, tag, label) VALUES (?, ?, ?)`,
			generationID,
			tag,
			d.caser.String(tag),
		); err != nil {
			return fmt.Errorf("insert tag %q: %w", tag, err)
		}
	}
	return nil
}

// ForGeneration returns the tags recorded for a generation, sorted by tag.
func (d *Deriver) ForGeneration(ctx context.Context, generationID int64) ([]Tag, error) {
	rows, err := d.db.QueryContext(
		ctx,
		`SELECT tag, label FROM generation_tags WHERE generation_id = ? ORDER BY tag`,
		generationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var list []Tag
	for rows.Next() {
		var tag Tag
		if err := rows.Scan(&tag.Tag, &tag.Label); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		list = append(list, tag)
	}
	return list, rows.Err()
}

// Normalize lowercases and trims a candidate, rejecting empties and strings
// too long to be useful labels.
func Normalize(candidate string) string {
	tag := strings.ToLower(strings.TrimSpace(candidate))
	if tag == "" || len(tag) > maxTagLength {
		return ""
	}
	return tag
}

// extractStrings walks a prompt JSON object and collects its string values,
// including strings nested one level inside arrays. Non-object payloads yield
// nothing.
func extractStrings(promptJSON string) []string {
	var payload map[string]any
	if err := json.Unmarshal([]byte(promptJSON), &payload); err != nil {
		return nil
	}

	var values []string
	for _, value := range payload {
		switch v := value.(type) {
		case string:
			values = append(values, v)
		case []any:
			for _, element := range v {
				if s, ok := element.(string); ok {
					values = append(values, s)
				}
			}
		}
	}
	return values
}
