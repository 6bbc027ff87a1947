package generate

import "context"

// Reference is one image supplied alongside a prompt.
type Reference struct {
	Data     []byte
	MIMEType string
}

// Request carries a single generation attempt.
type Request struct {
	Prompt         string
	AspectRatio    string
	ImageSize      string
	References     []Reference
	GoogleSearch   bool
	SafetyOverride bool
}

// FaceSwapRequest asks for the face from Face to be composited onto Base.
type FaceSwapRequest struct {
	Base Reference
	Face Reference
}

// Result is a produced image plus any text returned with it.
type Result struct {
	Image    []byte
	MIMEType string
	Text     string
}

// Generator produces images from prompts. Implementations talk to an external
// model service; callers own retry and fallback policy.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
	FaceSwap(ctx context.Context, req FaceSwapRequest) (*Result, error)
}
