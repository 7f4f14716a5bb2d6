package cnst

import "errors"

var (
	// ErrSessionNotFound is returned when a session identifier is unknown
	ErrSessionNotFound = errors.New("session not found")
	// ErrGenerationActive is returned when a generation job is already
	// running for the session
	ErrGenerationActive = errors.New("generation already active")
	// ErrUnknownBroadcastType is returned by the broadcast factory for an
	// unsupported transport type
	ErrUnknownBroadcastType = errors.New("unknown broadcast transport type")
)
