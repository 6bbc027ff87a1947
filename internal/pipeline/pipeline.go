package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"easel/internal/config"
	"easel/internal/generate"
	"easel/internal/logging"
	"easel/internal/queue"
)

// Store is the queue surface the pipeline drives. *queue.Store satisfies it.
type Store interface {
	NextQueued(ctx context.Context) (*queue.Item, error)
	GetByID(ctx context.Context, id int64) (*queue.Item, error)
	UpdateStatus(ctx context.Context, id int64, status queue.Status, stamp queue.Stamp) error
	AcquireLock(ctx context.Context, itemID int64) (*queue.Lock, error)
	UpdateHeartbeat(ctx context.Context, lockID string) error
	ReleaseLock(ctx context.Context, lockID string) error
	GetGeneration(ctx context.Context, id int64) (*queue.Generation, error)
	SetGenerationStatus(ctx context.Context, id int64, status queue.GenerationStatus) error
	UpdateGeneration(ctx context.Context, gen *queue.Generation) error
}

var _ Store = (*queue.Store)(nil)

// ReferenceSource loads reference image bytes, by stored photo ID or by a
// path passed through with the queue item.
type ReferenceSource interface {
	LoadByID(ctx context.Context, id int64) (generate.Reference, error)
	LoadPath(ctx context.Context, path string) (generate.Reference, error)
}

// ImageSaver persists produced image bytes and returns a storable path.
type ImageSaver interface {
	Save(data []byte, mimeType string) (string, error)
}

// Tagger records searchable tags for a completed generation.
type Tagger interface {
	CreateForGeneration(ctx context.Context, generationID int64, promptJSON string, components []string) error
}

// Pipeline claims queued items one at a time and runs them through the
// generation attempt cascade. A single Pipeline never has more than one
// external call in flight; global concurrency comes from running multiple
// processes against the same database.
type Pipeline struct {
	store     Store
	generator generate.Generator
	refs      ReferenceSource
	images    ImageSaver
	tagger    Tagger
	logger    *slog.Logger

	aspectRatio       string
	imageSize         string
	heartbeatInterval time.Duration
}

// New wires a pipeline from its collaborators. refs and tagger may be nil
// when the deployment has no reference store or tagging.
func New(store Store, generator generate.Generator, refs ReferenceSource, images ImageSaver, tagger Tagger, cfg *config.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		store:             store,
		generator:         generator,
		refs:              refs,
		images:            images,
		tagger:            tagger,
		logger:            logging.NewComponentLogger(logger, "pipeline"),
		aspectRatio:       cfg.Gemini.AspectRatio,
		imageSize:         cfg.Gemini.ImageSize,
		heartbeatInterval: time.Duration(cfg.Workflow.HeartbeatInterval) * time.Second,
	}
}

// Drain claims and processes queued items until none remain, the concurrency
// cap blocks further claims, or another owner holds the next item's lock.
// Item failures are recorded on the item and do not stop the drain.
func (p *Pipeline) Drain(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		item, err := p.store.NextQueued(ctx)
		if err != nil {
			return fmt.Errorf("next queued: %w", err)
		}
		if item == nil {
			return nil
		}

		lock, err := p.store.AcquireLock(ctx, item.ID)
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if lock == nil {
			// Another worker owns the head of the queue; let it finish.
			return nil
		}

		if err := p.processItem(ctx, item, lock); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Error("item processing failed",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.Error(err),
			)
		}
	}
}

func (p *Pipeline) processItem(ctx context.Context, item *queue.Item, lock *queue.Lock) error {
	logger := p.logger.With(
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldLockID, lock.ID),
	)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go p.heartbeatLoop(hbCtx, &wg, lock.ID)
	defer func() {
		stopHeartbeat()
		wg.Wait()
		if err := p.store.ReleaseLock(context.Background(), lock.ID); err != nil {
			logger.Warn("lock release failed", logging.Error(err))
		}
	}()

	if err := p.store.UpdateStatus(ctx, item.ID, queue.StatusProcessing, queue.Stamp{Started: true}); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	if item.HasGeneration() {
		if err := p.store.SetGenerationStatus(ctx, item.GenerationID, queue.GenerationGenerating); err != nil {
			return fmt.Errorf("mark generating: %w", err)
		}
	}
	logger.Info("processing item")

	refs := p.loadReferences(ctx, logger, item)
	result, attemptErr := p.runAttempts(ctx, logger, item, refs)

	// Cancellation check. A deleted row means the user cancelled while the
	// external call was in flight; the result is discarded.
	current, err := p.store.GetByID(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("recheck item: %w", err)
	}
	if current == nil {
		logger.Info("item cancelled mid-flight, discarding result")
		return nil
	}

	if attemptErr != nil {
		return p.finishFailure(ctx, logger, item, attemptErr)
	}
	return p.finishSuccess(ctx, logger, item, result)
}

func (p *Pipeline) heartbeatLoop(ctx context.Context, wg *sync.WaitGroup, lockID string) {
	defer wg.Done()
	interval := p.heartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.store.UpdateHeartbeat(ctx, lockID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				p.logger.Warn("heartbeat update failed",
					logging.String(logging.FieldLockID, lockID),
					logging.Error(err),
				)
			}
		}
	}
}

// loadReferences fetches reference images best-effort. A reference that fails
// to load is logged and omitted.
func (p *Pipeline) loadReferences(ctx context.Context, logger *slog.Logger, item *queue.Item) []generate.Reference {
	if p.refs == nil {
		return nil
	}

	refs := make([]generate.Reference, 0, len(item.ReferencePhotoIDs)+len(item.InlineReferencePaths))
	for _, id := range item.ReferencePhotoIDs {
		ref, err := p.refs.LoadByID(ctx, id)
		if err != nil {
			logger.Warn("reference photo load failed, skipping",
				logging.Int64("reference_photo_id", id),
				logging.Error(err),
			)
			continue
		}
		refs = append(refs, ref)
	}
	for _, path := range item.InlineReferencePaths {
		ref, err := p.refs.LoadPath(ctx, path)
		if err != nil {
			logger.Warn("inline reference load failed, skipping",
				logging.String("path", path),
				logging.Error(err),
			)
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

func (p *Pipeline) finishSuccess(ctx context.Context, logger *slog.Logger, item *queue.Item, result *attemptResult) error {
	imagePath, err := p.images.Save(result.Image, result.MIMEType)
	if err != nil {
		return p.finishFailure(ctx, logger, item, fmt.Errorf("save image: %w", err))
	}

	var preSwapPath string
	if len(result.PreSwapImage) > 0 {
		preSwapPath, err = p.images.Save(result.PreSwapImage, result.PreSwapMIMEType)
		if err != nil {
			logger.Warn("pre-swap image save failed", logging.Error(err))
			preSwapPath = ""
		}
	}

	if item.HasGeneration() {
		gen, err := p.store.GetGeneration(ctx, item.GenerationID)
		if err != nil {
			return fmt.Errorf("load generation: %w", err)
		}
		if gen != nil {
			now := time.Now().UTC()
			gen.Status = queue.GenerationCompleted
			gen.ImagePath = imagePath
			gen.PreSwapImagePath = preSwapPath
			gen.APIResponseText = result.Text
			gen.UsedFallback = result.UsedFallback
			gen.FaceSwapFailed = result.FaceSwapFailed
			gen.ErrorMessage = ""
			gen.CompletedAt = &now
			if err := p.store.UpdateGeneration(ctx, gen); err != nil {
				return fmt.Errorf("update generation: %w", err)
			}

			if p.tagger != nil {
				// Tagging is non-critical; failures never fail the item.
				if err := p.tagger.CreateForGeneration(ctx, gen.ID, gen.PromptJSON, nil); err != nil {
					logger.Warn("tag derivation failed", logging.Error(err))
				}
			}
		}
	}

	if err := p.store.UpdateStatus(ctx, item.ID, queue.StatusCompleted, queue.Stamp{Completed: true}); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	logger.Info("item completed",
		logging.String("image_path", imagePath),
		logging.Bool("used_fallback", result.UsedFallback),
	)
	return nil
}

func (p *Pipeline) finishFailure(ctx context.Context, logger *slog.Logger, item *queue.Item, cause error) error {
	if item.HasGeneration() {
		gen, err := p.store.GetGeneration(ctx, item.GenerationID)
		if err != nil {
			return fmt.Errorf("load generation: %w", err)
		}
		if gen != nil {
			now := time.Now().UTC()
			gen.Status = queue.GenerationFailed
			gen.ErrorMessage = cause.Error()
			gen.CompletedAt = &now
			if err := p.store.UpdateGeneration(ctx, gen); err != nil {
				return fmt.Errorf("update generation: %w", err)
			}
		}
	}

	if err := p.store.UpdateStatus(ctx, item.ID, queue.StatusFailed, queue.Stamp{Completed: true}); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	logger.Warn("item failed", logging.Error(cause))
	return nil
}
