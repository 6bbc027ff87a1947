package testsupport

import (
	"context"
	"testing"

	"easel/internal/config"
	"easel/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Enqueue creates a queue item for tests using the provided store.
func Enqueue(t testing.TB, store *queue.Store, req queue.NewItem) *queue.Item {
	t.Helper()

	if req.PromptJSON == "" {
		req.PromptJSON = `{"prompt":"test"}`
	}
	item, err := store.Enqueue(context.Background(), req)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return item
}
