package queue_test

import (
	"context"
	"testing"

	"easel/internal/queue"
	"easel/internal/testsupport"
)

func TestCreateGenerationDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	gen, err := store.CreateGeneration(ctx, `{"subject":"harbor at dusk"}`)
	if err != nil {
		t.Fatalf("CreateGeneration failed: %v", err)
	}
	if gen.ID == 0 {
		t.Fatal("expected generation ID to be assigned")
	}
	if gen.Status != queue.GenerationPending {
		t.Fatalf("expected pending, got %s", gen.Status)
	}
	if gen.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}
	if gen.CompletedAt != nil {
		t.Fatal("expected completed_at to be unset")
	}
}

func TestGetGenerationMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	gen, err := store.GetGeneration(context.Background(), 555)
	if err != nil {
		t.Fatalf("GetGeneration failed: %v", err)
	}
	if gen != nil {
		t.Fatalf("expected nil for missing generation, got %#v", gen)
	}
}

func TestUpdateGenerationRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	gen, err := store.CreateGeneration(ctx, `{"subject":"portrait"}`)
	if err != nil {
		t.Fatalf("CreateGeneration failed: %v", err)
	}

	now := gen.CreatedAt
	gen.Status = queue.GenerationCompleted
	gen.ImagePath = "images/final.png"
	gen.PreSwapImagePath = "images/pre.png"
	gen.APIResponseText = "a moody portrait"
	gen.UsedFallback = true
	gen.FaceSwapFailed = true
	gen.CompletedAt = &now
	if err := store.UpdateGeneration(ctx, gen); err != nil {
		t.Fatalf("UpdateGeneration failed: %v", err)
	}

	fetched, err := store.GetGeneration(ctx, gen.ID)
	if err != nil {
		t.Fatalf("GetGeneration failed: %v", err)
	}
	if fetched.Status != queue.GenerationCompleted {
		t.Fatalf("expected completed, got %s", fetched.Status)
	}
	if fetched.ImagePath != "images/final.png" || fetched.PreSwapImagePath != "images/pre.png" {
		t.Fatalf("unexpected image paths: %q %q", fetched.ImagePath, fetched.PreSwapImagePath)
	}
	if fetched.APIResponseText != "a moody portrait" {
		t.Fatalf("unexpected response text: %q", fetched.APIResponseText)
	}
	if !fetched.UsedFallback || !fetched.FaceSwapFailed {
		t.Fatal("expected fallback flags to round-trip")
	}
	if fetched.CompletedAt == nil {
		t.Fatal("expected completed_at to round-trip")
	}
}

func TestSetGenerationStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	gen, err := store.CreateGeneration(ctx, `{"subject":"city"}`)
	if err != nil {
		t.Fatalf("CreateGeneration failed: %v", err)
	}
	if err := store.SetGenerationStatus(ctx, gen.ID, queue.GenerationGenerating); err != nil {
		t.Fatalf("SetGenerationStatus failed: %v", err)
	}

	fetched, err := store.GetGeneration(ctx, gen.ID)
	if err != nil {
		t.Fatalf("GetGeneration failed: %v", err)
	}
	if fetched.Status != queue.GenerationGenerating {
		t.Fatalf("expected generating, got %s", fetched.Status)
	}
}
