package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"easel/internal/config"
	"easel/internal/generate"
	"easel/internal/logging"
	"easel/internal/services"
)

const faceSwapPrompt = "Replace the face of the person in the first image " +
	"with the face of the person in the second image. Preserve the pose, " +
	"lighting, and composition of the first image exactly."

// Client implements generate.Generator against the Gemini API.
type Client struct {
	client *genai.Client
	cfg    config.Gemini
	logger *slog.Logger
}

// New validates the configuration and builds a Gemini-backed generator.
func New(ctx context.Context, cfg config.Gemini, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: api key is empty", generate.ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("%w: model is empty", generate.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "gemini", "new client", "failed to create client", err)
	}

	return &Client{
		client: client,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "gemini"),
	}, nil
}

// Generate runs one image generation attempt. References, when present, are
// sent inline ahead of the prompt text.
func (c *Client) Generate(ctx context.Context, req generate.Request) (*generate.Result, error) {
	parts := make([]*genai.Part, 0, len(req.References)+1)
	for _, ref := range req.References {
		parts = append(parts, genai.NewPartFromBytes(ref.Data, ref.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}
	if req.AspectRatio != "" || req.ImageSize != "" {
		cfg.ImageConfig = &genai.ImageConfig{
			AspectRatio: req.AspectRatio,
			ImageSize:   req.ImageSize,
		}
	}
	if req.GoogleSearch {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if req.SafetyOverride {
		cfg.SafetySettings = permissiveSafetySettings()
	}

	c.logger.InfoContext(ctx, "generating image",
		logging.String("model", c.cfg.Model),
		logging.Int("references", len(req.References)),
		logging.Bool("google_search", req.GoogleSearch),
	)
	return c.call(ctx, c.cfg.Model, parts, cfg)
}

// FaceSwap composites the face from req.Face onto req.Base using the
// dedicated face swap model.
func (c *Client) FaceSwap(ctx context.Context, req generate.FaceSwapRequest) (*generate.Result, error) {
	model := c.cfg.FaceSwapModel
	if model == "" {
		model = c.cfg.Model
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(req.Base.Data, req.Base.MIMEType),
		genai.NewPartFromBytes(req.Face.Data, req.Face.MIMEType),
		genai.NewPartFromText(faceSwapPrompt),
	}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	c.logger.InfoContext(ctx, "compositing face", logging.String("model", model))
	return c.call(ctx, model, parts, cfg)
}

func (c *Client) call(ctx context.Context, model string, parts []*genai.Part, cfg *genai.GenerateContentConfig) (*generate.Result, error) {
	if c.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "gemini", "generate content", "request failed", err)
	}
	return extractResult(resp)
}

func extractResult(resp *genai.GenerateContentResponse) (*generate.Result, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, generate.ErrNoImage
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, generate.ErrContentBlocked
	}
	if candidate.Content == nil {
		return nil, generate.ErrNoImage
	}

	result := &generate.Result{}
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 && result.Image == nil {
			result.Image = part.InlineData.Data
			result.MIMEType = part.InlineData.MIMEType
		}
	}
	result.Text = text.String()

	if result.Image == nil {
		return nil, generate.ErrNoImage
	}
	return result, nil
}

func permissiveSafetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
		genai.HarmCategoryCivicIntegrity,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, category := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  category,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}
	return settings
}
