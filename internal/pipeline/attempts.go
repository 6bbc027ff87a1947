package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"easel/internal/generate"
	"easel/internal/logging"
	"easel/internal/queue"
)

// attemptResult is the bookkeeping for one completed attempt cascade.
// PreSwapImage is set only when a face composite succeeded; it preserves the
// base image the composite started from.
type attemptResult struct {
	Image           []byte
	MIMEType        string
	Text            string
	PreSwapImage    []byte
	PreSwapMIMEType string
	UsedFallback    bool
	FaceSwapFailed  bool
}

// runAttempts executes the attempt cascade for one item: a primary attempt
// with references, then, when that fails and at least one reference loaded, a
// reference-less retry followed by a face composite of the first reference
// onto the retry's image. The composite failing is not fatal; the retry image
// stands in with identity not preserved.
func (p *Pipeline) runAttempts(ctx context.Context, logger *slog.Logger, item *queue.Item, refs []generate.Reference) (*attemptResult, error) {
	req := generate.Request{
		Prompt:         item.PromptJSON,
		AspectRatio:    p.aspectRatio,
		ImageSize:      p.imageSize,
		References:     refs,
		GoogleSearch:   item.GoogleSearch,
		SafetyOverride: item.SafetyOverride,
	}

	primary, primaryErr := p.generator.Generate(ctx, req)
	if primaryErr == nil {
		return &attemptResult{
			Image:    primary.Image,
			MIMEType: primary.MIMEType,
			Text:     primary.Text,
		}, nil
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("generation failed: %w", primaryErr)
	}

	logger.Warn("primary attempt failed, retrying without references", logging.Error(primaryErr))
	req.References = nil
	base, baseErr := p.generator.Generate(ctx, req)
	if baseErr != nil {
		return nil, fmt.Errorf("generation failed with and without references: %w", baseErr)
	}

	result := &attemptResult{
		Image:        base.Image,
		MIMEType:     base.MIMEType,
		Text:         base.Text,
		UsedFallback: true,
	}

	swapped, swapErr := p.generator.FaceSwap(ctx, generate.FaceSwapRequest{
		Base: generate.Reference{Data: base.Image, MIMEType: base.MIMEType},
		Face: refs[0],
	})
	if swapErr != nil {
		logger.Warn("face composite failed, keeping base image", logging.Error(swapErr))
		result.FaceSwapFailed = true
		return result, nil
	}

	result.PreSwapImage = base.Image
	result.PreSwapMIMEType = base.MIMEType
	result.Image = swapped.Image
	result.MIMEType = swapped.MIMEType
	if swapped.Text != "" {
		result.Text = swapped.Text
	}
	return result, nil
}
