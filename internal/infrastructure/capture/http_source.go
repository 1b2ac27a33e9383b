package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"serafin/internal/bootstrap/logging"
	"serafin/internal/domain/observation"
	"serafin/internal/errs"
	"serafin/internal/ports"
)

const maxSnapshotBytes = 8 << 20

// HTTPSource captures still frames by fetching a camera's snapshot URL.
// Traffic cameras publish a periodically refreshed JPEG alongside the HLS
// stream; one GET is the service-side equivalent of drawing the current
// video frame to a canvas.
type HTTPSource struct {
	client *http.Client
}

var _ ports.FrameSource = (*HTTPSource)(nil)

func NewHTTPSource(timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Capture(ctx context.Context, camera observation.Camera) (ports.Frame, error) {
	if ctx == nil {
		return ports.Frame{}, errors.New("context is required")
	}

	url := strings.TrimSpace(camera.SnapshotURL)
	if url == "" {
		return ports.Frame{}, fmt.Errorf("camera %d has no snapshot url: %w", camera.ID, ports.ErrNoFrame)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ports.Frame{}, errs.Wrap(err, "build snapshot request")
	}

	response, err := s.client.Do(request)
	if err != nil {
		return ports.Frame{}, fmt.Errorf("fetch snapshot: %v: %w", err, ports.ErrNoFrame)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return ports.Frame{}, fmt.Errorf("snapshot status %d: %w", response.StatusCode, ports.ErrNoFrame)
	}

	data, err := io.ReadAll(io.LimitReader(response.Body, maxSnapshotBytes))
	if err != nil {
		return ports.Frame{}, fmt.Errorf("read snapshot body: %v: %w", err, ports.ErrNoFrame)
	}

	frame, err := DecodeJPEGFrame(data)
	if err != nil {
		return ports.Frame{}, err
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "infrastructure.capture")),
		"frame captured",
		slog.Int("camera_id", camera.ID),
		slog.Int("width", frame.Width),
		slog.Int("height", frame.Height),
		slog.Int("bytes", len(frame.Data)),
	)
	return frame, nil
}

// DecodeJPEGFrame validates that data is a decodable JPEG with non-zero
// dimensions; a stream that has not started delivering frames yields an
// ErrNoFrame capture error.
func DecodeJPEGFrame(data []byte) (ports.Frame, error) {
	if len(data) == 0 {
		return ports.Frame{}, fmt.Errorf("empty snapshot: %w", ports.ErrNoFrame)
	}

	config, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ports.Frame{}, fmt.Errorf("decode snapshot: %v: %w", err, ports.ErrNoFrame)
	}
	if config.Width == 0 || config.Height == 0 {
		return ports.Frame{}, fmt.Errorf("snapshot has zero dimensions: %w", ports.ErrNoFrame)
	}

	return ports.Frame{
		Data:     data,
		MimeType: "image/jpeg",
		Width:    config.Width,
		Height:   config.Height,
	}, nil
}
