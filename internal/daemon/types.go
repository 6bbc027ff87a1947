package daemon

import (
	"encoding/json"
	"time"

	"easel/internal/queue"
)

type enqueueRequest struct {
	PromptJSON           json.RawMessage `json:"prompt_json"`
	GenerationID         int64           `json:"generation_id,omitempty"`
	ReferencePhotoIDs    []int64         `json:"reference_photo_ids,omitempty"`
	InlineReferencePaths []string        `json:"inline_reference_paths,omitempty"`
	GoogleSearch         bool            `json:"google_search,omitempty"`
	SafetyOverride       bool            `json:"safety_override,omitempty"`
}

type itemView struct {
	ID                   int64           `json:"id"`
	Status               string          `json:"status"`
	PromptJSON           json.RawMessage `json:"prompt_json"`
	GenerationID         int64           `json:"generation_id,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	StartedAt            *time.Time      `json:"started_at,omitempty"`
	CompletedAt          *time.Time      `json:"completed_at,omitempty"`
	ReferencePhotoIDs    []int64         `json:"reference_photo_ids,omitempty"`
	InlineReferencePaths []string        `json:"inline_reference_paths,omitempty"`
	GoogleSearch         bool            `json:"google_search,omitempty"`
	SafetyOverride       bool            `json:"safety_override,omitempty"`
}

func newItemView(item *queue.Item) itemView {
	return itemView{
		ID:                   item.ID,
		Status:               string(item.Status),
		PromptJSON:           json.RawMessage(item.PromptJSON),
		GenerationID:         item.GenerationID,
		CreatedAt:            item.CreatedAt,
		StartedAt:            item.StartedAt,
		CompletedAt:          item.CompletedAt,
		ReferencePhotoIDs:    item.ReferencePhotoIDs,
		InlineReferencePaths: item.InlineReferencePaths,
		GoogleSearch:         item.GoogleSearch,
		SafetyOverride:       item.SafetyOverride,
	}
}

type generationView struct {
	ID               int64      `json:"id"`
	Status           string     `json:"status"`
	ImagePath        string     `json:"image_path,omitempty"`
	PreSwapImagePath string     `json:"pre_swap_image_path,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	APIResponseText  string     `json:"api_response_text,omitempty"`
	UsedFallback     bool       `json:"used_fallback"`
	FaceSwapFailed   bool       `json:"face_swap_failed"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

func newGenerationView(gen *queue.Generation) generationView {
	return generationView{
		ID:               gen.ID,
		Status:           string(gen.Status),
		ImagePath:        gen.ImagePath,
		PreSwapImagePath: gen.PreSwapImagePath,
		ErrorMessage:     gen.ErrorMessage,
		APIResponseText:  gen.APIResponseText,
		UsedFallback:     gen.UsedFallback,
		FaceSwapFailed:   gen.FaceSwapFailed,
		CreatedAt:        gen.CreatedAt,
		CompletedAt:      gen.CompletedAt,
	}
}

type queueListResponse struct {
	Items []itemView `json:"items"`
}

type queueItemResponse struct {
	Item       itemView        `json:"item"`
	Generation *generationView `json:"generation,omitempty"`
}
