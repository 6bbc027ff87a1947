package queue_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"easel/internal/queue"
	"easel/internal/testsupport"
)

func TestEnqueueDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.Enqueue(ctx, queue.NewItem{PromptJSON: `{"subject":"lighthouse"}`})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if item.ID == 0 {
		t.Fatal("expected item ID to be assigned")
	}
	if item.Status != queue.StatusQueued {
		t.Fatalf("expected status queued, got %s", item.Status)
	}
	if item.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}
	if item.StartedAt != nil || item.CompletedAt != nil {
		t.Fatal("expected lifecycle timestamps to be unset")
	}
	if item.GoogleSearch || item.SafetyOverride {
		t.Fatal("expected options to default to false")
	}
	if item.HasGeneration() {
		t.Fatal("expected no linked generation")
	}
	if len(item.ReferencePhotoIDs) != 0 || len(item.InlineReferencePaths) != 0 {
		t.Fatal("expected reference fields to be empty")
	}
}

func TestEnqueueRoundTripsOptions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.Enqueue(ctx, queue.NewItem{
		PromptJSON:           `{"subject":"portrait"}`,
		GenerationID:         42,
		ReferencePhotoIDs:    []int64{7, 3},
		InlineReferencePaths: []string{"uploads/a.png"},
		GoogleSearch:         true,
		SafetyOverride:       true,
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.GenerationID != 42 {
		t.Fatalf("expected generation id 42, got %d", fetched.GenerationID)
	}
	if len(fetched.ReferencePhotoIDs) != 2 || fetched.ReferencePhotoIDs[0] != 7 || fetched.ReferencePhotoIDs[1] != 3 {
		t.Fatalf("unexpected reference photo ids: %v", fetched.ReferencePhotoIDs)
	}
	if len(fetched.InlineReferencePaths) != 1 || fetched.InlineReferencePaths[0] != "uploads/a.png" {
		t.Fatalf("unexpected inline reference paths: %v", fetched.InlineReferencePaths)
	}
	if !fetched.GoogleSearch || !fetched.SafetyOverride {
		t.Fatal("expected options to round-trip")
	}
}

func TestGetByIDMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	item, err := store.GetByID(context.Background(), 9999)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if item != nil {
		t.Fatalf("expected nil for missing item, got %#v", item)
	}
}

func TestQueueStatusPositions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.SetClockForTest(func() time.Time { return now })

	var items []*queue.Item
	for i := 0; i < 3; i++ {
		item := testsupport.Enqueue(t, store, queue.NewItem{})
		items = append(items, item)
		now = now.Add(time.Second)
	}

	for i, item := range items {
		snapshot, err := store.QueueStatus(ctx, item.ID)
		if err != nil {
			t.Fatalf("QueueStatus failed: %v", err)
		}
		if snapshot.Queued != 3 || snapshot.Active != 0 {
			t.Fatalf("unexpected counts: %+v", snapshot)
		}
		if snapshot.Position == nil || *snapshot.Position != i+1 {
			t.Fatalf("item %d: expected position %d, got %v", item.ID, i+1, snapshot.Position)
		}
	}

	// Enqueuing another item must not shift earlier positions.
	testsupport.Enqueue(t, store, queue.NewItem{})
	snapshot, err := store.QueueStatus(ctx, items[0].ID)
	if err != nil {
		t.Fatalf("QueueStatus failed: %v", err)
	}
	if snapshot.Position == nil || *snapshot.Position != 1 {
		t.Fatalf("expected position 1 after later enqueue, got %v", snapshot.Position)
	}

	// A processing item reports position zero.
	if err := store.UpdateStatus(ctx, items[0].ID, queue.StatusProcessing, queue.Stamp{Started: true}); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	snapshot, err = store.QueueStatus(ctx, items[0].ID)
	if err != nil {
		t.Fatalf("QueueStatus failed: %v", err)
	}
	if snapshot.Active != 1 || snapshot.Queued != 3 {
		t.Fatalf("unexpected counts after start: %+v", snapshot)
	}
	if snapshot.Position == nil || *snapshot.Position != 0 {
		t.Fatalf("expected position 0 while processing, got %v", snapshot.Position)
	}

	// The next queued item moves up.
	snapshot, err = store.QueueStatus(ctx, items[1].ID)
	if err != nil {
		t.Fatalf("QueueStatus failed: %v", err)
	}
	if snapshot.Position == nil || *snapshot.Position != 1 {
		t.Fatalf("expected position 1 for next item, got %v", snapshot.Position)
	}

	// Terminal items carry no position.
	if err := store.UpdateStatus(ctx, items[0].ID, queue.StatusCompleted, queue.Stamp{Completed: true}); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	snapshot, err = store.QueueStatus(ctx, items[0].ID)
	if err != nil {
		t.Fatalf("QueueStatus failed: %v", err)
	}
	if snapshot.Position != nil {
		t.Fatalf("expected nil position for terminal item, got %d", *snapshot.Position)
	}
}

func TestNextQueuedRespectsConcurrencyCap(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.MaxConcurrent = 2
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.SetClockForTest(func() time.Time { return now })

	var ids []int64
	for i := 0; i < 3; i++ {
		item := testsupport.Enqueue(t, store, queue.NewItem{PromptJSON: fmt.Sprintf(`{"n":%d}`, i)})
		ids = append(ids, item.ID)
		now = now.Add(time.Second)
	}

	for _, id := range ids[:2] {
		if err := store.UpdateStatus(ctx, id, queue.StatusProcessing, queue.Stamp{Started: true}); err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}
	}

	next, err := store.NextQueued(ctx)
	if err != nil {
		t.Fatalf("NextQueued failed: %v", err)
	}
	if next != nil {
		t.Fatalf("expected nil while cap reached, got item %d", next.ID)
	}

	if err := store.UpdateStatus(ctx, ids[0], queue.StatusCompleted, queue.Stamp{Completed: true}); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	next, err = store.NextQueued(ctx)
	if err != nil {
		t.Fatalf("NextQueued failed: %v", err)
	}
	if next == nil || next.ID != ids[2] {
		t.Fatalf("expected oldest queued item %d, got %#v", ids[2], next)
	}
}

func TestNextQueuedOrdersByEnqueueTime(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.SetClockForTest(func() time.Time { return now })

	first := testsupport.Enqueue(t, store, queue.NewItem{})
	// Same timestamp: ties break in insertion order.
	second := testsupport.Enqueue(t, store, queue.NewItem{})

	next, err := store.NextQueued(context.Background())
	if err != nil {
		t.Fatalf("NextQueued failed: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected item %d first, got %#v", first.ID, next)
	}
	_ = second
}

func TestUpdateStatusStampsTimestamps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.Enqueue(t, store, queue.NewItem{})

	if err := store.UpdateStatus(ctx, item.ID, queue.StatusProcessing, queue.Stamp{Started: true}); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusProcessing {
		t.Fatalf("expected processing, got %s", fetched.Status)
	}
	if fetched.StartedAt == nil {
		t.Fatal("expected started_at to be stamped")
	}
	if fetched.CompletedAt != nil {
		t.Fatal("expected completed_at to remain unset")
	}

	if err := store.UpdateStatus(ctx, item.ID, queue.StatusFailed, queue.Stamp{Completed: true}); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	fetched, err = store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", fetched.Status)
	}
	if fetched.CompletedAt == nil {
		t.Fatal("expected completed_at to be stamped")
	}
}

func TestUpdateStatusMissingItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	err := store.UpdateStatus(context.Background(), 404, queue.StatusProcessing, queue.Stamp{})
	if !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteCancelsItemAndGeneration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	gen, err := store.CreateGeneration(ctx, `{"subject":"cancel me"}`)
	if err != nil {
		t.Fatalf("CreateGeneration failed: %v", err)
	}
	item := testsupport.Enqueue(t, store, queue.NewItem{GenerationID: gen.ID})

	if _, err := store.AcquireLock(ctx, item.ID); err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	if err := store.Delete(ctx, item.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	gone, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if gone != nil {
		t.Fatal("expected item row to be removed")
	}

	locked, err := store.IsItemLocked(ctx, item.ID)
	if err != nil {
		t.Fatalf("IsItemLocked failed: %v", err)
	}
	if locked {
		t.Fatal("expected lock to be released")
	}

	updated, err := store.GetGeneration(ctx, gen.ID)
	if err != nil {
		t.Fatalf("GetGeneration failed: %v", err)
	}
	if updated.Status != queue.GenerationFailed {
		t.Fatalf("expected generation failed, got %s", updated.Status)
	}
	if updated.ErrorMessage != queue.CancelledByUserMessage {
		t.Fatalf("unexpected error message: %q", updated.ErrorMessage)
	}
	if updated.CompletedAt == nil {
		t.Fatal("expected generation completed_at to be stamped")
	}
}

func TestDeleteLeavesCompletedGenerationAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	gen, err := store.CreateGeneration(ctx, `{"subject":"done"}`)
	if err != nil {
		t.Fatalf("CreateGeneration failed: %v", err)
	}
	gen.Status = queue.GenerationCompleted
	gen.ImagePath = "images/done.png"
	if err := store.UpdateGeneration(ctx, gen); err != nil {
		t.Fatalf("UpdateGeneration failed: %v", err)
	}

	item := testsupport.Enqueue(t, store, queue.NewItem{GenerationID: gen.ID})
	if err := store.Delete(ctx, item.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	updated, err := store.GetGeneration(ctx, gen.ID)
	if err != nil {
		t.Fatalf("GetGeneration failed: %v", err)
	}
	if updated.Status != queue.GenerationCompleted {
		t.Fatalf("expected completed generation untouched, got %s", updated.Status)
	}
}

func TestDeleteErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if err := store.Delete(ctx, 12345); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	item := testsupport.Enqueue(t, store, queue.NewItem{})
	if err := store.UpdateStatus(ctx, item.ID, queue.StatusCompleted, queue.Stamp{Completed: true}); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if err := store.Delete(ctx, item.ID); !errors.Is(err, queue.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	still, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if still == nil {
		t.Fatal("expected terminal item to survive failed cancellation")
	}
}

func TestCleanupKeepsNewestTerminalItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.RetentionLimit = 3
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.SetClockForTest(func() time.Time { return now })

	var ids []int64
	for i := 0; i < 5; i++ {
		item := testsupport.Enqueue(t, store, queue.NewItem{})
		if err := store.UpdateStatus(ctx, item.ID, queue.StatusCompleted, queue.Stamp{Completed: true}); err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}
		ids = append(ids, item.ID)
		now = now.Add(time.Minute)
	}
	keeper := testsupport.Enqueue(t, store, queue.NewItem{})

	removed, err := store.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}

	for _, id := range ids[:2] {
		item, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if item != nil {
			t.Fatalf("expected oldest terminal item %d to be removed", id)
		}
	}
	for _, id := range ids[2:] {
		item, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if item == nil {
			t.Fatalf("expected newest terminal item %d to survive", id)
		}
	}

	survivor, err := store.GetByID(ctx, keeper.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if survivor == nil {
		t.Fatal("expected queued item to survive cleanup")
	}
}
