package ports

import (
	"context"
	"errors"

	"serafin/internal/domain/observation"
)

// ErrNoFrame signals that the camera is not currently delivering frames
// (empty or undecodable snapshot, zero dimensions). Callers skip the
// analysis cycle on this error instead of retrying immediately.
var ErrNoFrame = errors.New("no frame available")

// Frame is one encoded still image captured from a camera stream.
type Frame struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

type FrameSource interface {
	Capture(ctx context.Context, camera observation.Camera) (Frame, error)
}
