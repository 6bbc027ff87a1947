package generate

import "errors"

var (
	// ErrContentBlocked is returned when the model refuses the request on
	// safety grounds.
	ErrContentBlocked = errors.New("content blocked by model safety filters")

	// ErrNoImage is returned when the model responds without image data.
	ErrNoImage = errors.New("model response contained no image")

	// ErrInvalidConfig is returned when the generator configuration is
	// incomplete.
	ErrInvalidConfig = errors.New("invalid generator configuration")
)
