package ports

import (
	"context"
	"errors"

	"serafin/internal/domain/observation"
)

// Classified generative-endpoint failures. Adapters translate provider
// errors onto these so usecases can pick user-facing wording without
// knowing the transport.
var (
	ErrMissingCredentials = errors.New("generative api credentials missing")
	ErrUnauthorized       = errors.New("generative api rejected credentials")
	ErrQuotaExceeded      = errors.New("generative api quota exceeded")
	ErrModelNotFound      = errors.New("generative model not found")
)

// SceneAnalyzer turns one still frame plus camera metadata into a structured
// observation. Implementations return an error on any transport or parse
// failure; the caller substitutes the fallback generator, so an error here
// is never fatal to a cycle.
type SceneAnalyzer interface {
	AnalyzeScene(ctx context.Context, frame Frame, camera observation.Camera, at observation.TimeOfCapture) (observation.Analysis, error)
}

// ChatRequest is a single conversational turn. Frame is optional; when set
// the image is sent inline with the message.
type ChatRequest struct {
	Message      string
	SystemPrompt string
	Frame        *Frame
}

type ChatResponder interface {
	Respond(ctx context.Context, request ChatRequest) (string, error)
}
