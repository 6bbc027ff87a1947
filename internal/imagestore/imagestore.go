package imagestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Dir stores image files under a single root directory. Paths handed out and
// accepted are relative to the root so the database stays portable across
// machines.
type Dir struct {
	root string
}

// New ensures the root directory exists and returns a store over it.
func New(root string) (*Dir, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("image store root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &Dir{root: root}, nil
}

// Root returns the absolute root directory.
func (d *Dir) Root() string {
	return d.root
}

// Save writes image bytes to a new uniquely named file and returns its path
// relative to the root.
func (d *Dir) Save(data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("refusing to save empty image")
	}
	name := uuid.NewString() + ExtensionFor(mimeType)
	if err := os.WriteFile(filepath.Join(d.root, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return name, nil
}

// Read loads a previously saved image by its relative path.
func (d *Dir) Read(relativePath string) ([]byte, error) {
	data, err := os.ReadFile(d.Resolve(relativePath))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}

// Resolve turns a stored relative path into an absolute one. Absolute inputs
// pass through untouched.
func (d *Dir) Resolve(relativePath string) string {
	if filepath.IsAbs(relativePath) {
		return relativePath
	}
	return filepath.Join(d.root, relativePath)
}

// ExtensionFor maps a MIME type to a file extension, defaulting to .png.
func ExtensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

// MIMETypeFor maps a file extension back to a MIME type, defaulting to
// image/png.
func MIMETypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}
