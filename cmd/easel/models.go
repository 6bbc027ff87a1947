package main

import (
	"encoding/json"
	"time"
)

type daemonStatus struct {
	Running     bool           `json:"running"`
	PID         int            `json:"pid"`
	QueueStats  map[string]int `json:"queue_stats"`
	ActiveLocks int            `json:"active_locks"`
	MaxActive   int            `json:"max_active"`
	Draining    bool           `json:"draining"`
}

type queueItem struct {
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

type generationDetail struct {
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

type queueListPayload struct {
	Items []queueItem `json:"items"`
}

type queueItemPayload struct {
	Item       queueItem         `json:"item"`
	Generation *generationDetail `json:"generation,omitempty"`
}

type queueSnapshot struct {
	Active   int  `json:"active"`
	Queued   int  `json:"queued"`
	Position *int `json:"position"`
}

type enqueuePayload struct {
	PromptJSON           json.RawMessage `json:"prompt_json"`
	ReferencePhotoIDs    []int64         `json:"reference_photo_ids,omitempty"`
	InlineReferencePaths []string        `json:"inline_reference_paths,omitempty"`
	GoogleSearch         bool            `json:"google_search,omitempty"`
	SafetyOverride       bool            `json:"safety_override,omitempty"`
}
