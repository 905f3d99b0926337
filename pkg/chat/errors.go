package chat

import "errors"

var (
	// ErrStreamInFlight is returned when a session already has an open stream.
	ErrStreamInFlight = errors.New("a reply is already streaming for this session")

	// ErrRateLimited is returned when an owner submits faster than allowed.
	ErrRateLimited = errors.New("too many messages, slow down")

	// ErrEmptyPrompt is returned for blank user input.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrEmptyDocument is returned when an attached document has no text.
	ErrEmptyDocument = errors.New("document has no text")
)
