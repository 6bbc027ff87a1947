package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item. Transitions are strictly
// forward: queued -> processing -> completed or failed.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// CancelledByUserMessage is the error message recorded on a generation when
// its queue item is cancelled.
const CancelledByUserMessage = "Cancelled by user"

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Item represents a queue item persisted in SQLite.
type Item struct {
	ID                   int64
	PromptJSON           string
	GenerationID         int64 // zero when no generation record is linked
	Status               Status
	CreatedAt            time.Time
	StartedAt            *time.Time
	CompletedAt          *time.Time
	ReferencePhotoIDs    []int64
	InlineReferencePaths []string
	GoogleSearch         bool
	SafetyOverride       bool
}

// HasGeneration reports whether the item references a generation record.
func (i Item) HasGeneration() bool {
	return i.GenerationID != 0
}

// NewItem carries the fields accepted at enqueue time. The prompt payload is
// stored untouched; the store does not interpret it.
type NewItem struct {
	PromptJSON           string
	GenerationID         int64
	ReferencePhotoIDs    []int64
	InlineReferencePaths []string
	GoogleSearch         bool
	SafetyOverride       bool
}

// Stamp selects which lifecycle timestamps UpdateStatus records.
type Stamp struct {
	Started   bool
	Completed bool
}

// Snapshot summarizes queue occupancy for status queries. Position is nil
// unless the queried item is queued (1-based rank) or processing (zero).
type Snapshot struct {
	Active   int  `json:"active"`
	Queued   int  `json:"queued"`
	Position *int `json:"position"`
}

// Lock is a heartbeat-renewed lease granting exclusive ownership of a queue
// item. At most one lock row exists per item.
type Lock struct {
	ID          string
	QueueItemID int64
	LockedAt    time.Time
	HeartbeatAt time.Time
}

// GenerationStatus represents the lifecycle of a generation record.
type GenerationStatus string

const (
	GenerationPending    GenerationStatus = "pending"
	GenerationGenerating GenerationStatus = "generating"
	GenerationCompleted  GenerationStatus = "completed"
	GenerationFailed     GenerationStatus = "failed"
)

// Generation carries the outcome data for one generation request. The queue
// item references it by ID; the pipeline owns its transitions.
type Generation struct {
	ID               int64
	Status           GenerationStatus
	PromptJSON       string
	ImagePath        string
	PreSwapImagePath string
	ErrorMessage     string
	APIResponseText  string
	UsedFallback     bool
	FaceSwapFailed   bool
	CreatedAt        time.Time
	CompletedAt      *time.Time
}
