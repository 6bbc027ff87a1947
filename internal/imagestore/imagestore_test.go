package imagestore_test

import (
	"path/filepath"
	"strings"
	"testing"

	"easel/internal/imagestore"
)

func TestSaveAndRead(t *testing.T) {
	dir, err := imagestore.New(filepath.Join(t.TempDir(), "images"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	payload := []byte("not really a png")
	rel, err := dir.Save(payload, "image/png")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filepath.IsAbs(rel) {
		t.Fatalf("expected relative path, got %q", rel)
	}
	if !strings.HasSuffix(rel, ".png") {
		t.Fatalf("expected .png extension, got %q", rel)
	}

	data, err := dir.Read(rel)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("round trip mismatch: %q", data)
	}
}

func TestSaveRejectsEmpty(t *testing.T) {
	dir, err := imagestore.New(filepath.Join(t.TempDir(), "images"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := dir.Save(nil, "image/png"); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestExtensionMapping(t *testing.T) {
	cases := map[string]string{
		"image/jpeg":  ".jpg",
		"image/webp":  ".webp",
		"image/gif":   ".gif",
		"image/png":   ".png",
		"text/plain":  ".png",
		"":            ".png",
		"IMAGE/JPEG":  ".jpg",
		" image/png ": ".png",
	}
	for mime, want := range cases {
		if got := imagestore.ExtensionFor(mime); got != want {
			t.Errorf("ExtensionFor(%q) = %q, want %q", mime, got, want)
		}
	}
}

func TestMIMETypeFor(t *testing.T) {
	if got := imagestore.MIMETypeFor("a/b/photo.JPG"); got != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %s", got)
	}
	if got := imagestore.MIMETypeFor("mystery.bin"); got != "image/png" {
		t.Fatalf("expected image/png default, got %s", got)
	}
}
