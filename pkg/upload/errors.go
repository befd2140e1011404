package upload

import "errors"

var (
	// ErrIncompleteConfig is returned when the client or authority is
	// missing.
	ErrIncompleteConfig = errors.New("upload: client and authority are required")

	// ErrPayloadTooLarge is returned when the payload exceeds the
	// segment's declared size.
	ErrPayloadTooLarge = errors.New("upload: payload exceeds segment size")
)
