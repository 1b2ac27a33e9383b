package monitor

import (
	"context"
	"errors"
	"log/slog"

	"serafin/internal/bootstrap/logging"
	"serafin/internal/domain/observation"
	"serafin/internal/errs"
	"serafin/internal/ports"
)

// Read paths swallow store failures and hand back empty slices so callers
// always have a renderable state. GetThread is the exception: a single-id
// lookup needs the not-found distinction.

// ListThreads returns threads newest-first, optionally scoped to a camera.
// limit <= 0 uses the configured default.
func (s *Service) ListThreads(ctx context.Context, cameraID string, limit int) []observation.Thread {
	if ctx == nil || s.repo == nil {
		return []observation.Thread{}
	}
	if limit <= 0 {
		limit = s.readLimit
	}

	threads, err := s.repo.ListThreads(ctx, ports.ThreadFilter{CameraID: cameraID, Limit: limit})
	if err != nil {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", "usecase.monitor")),
			"thread read failed, returning empty",
			slog.Any("error", errs.Loggable(err)),
		)
		return []observation.Thread{}
	}
	if threads == nil {
		threads = []observation.Thread{}
	}
	return threads
}

// GetThread returns one thread by id. ports.ErrThreadNotFound propagates.
func (s *Service) GetThread(ctx context.Context, threadID string) (observation.Thread, error) {
	if ctx == nil {
		return observation.Thread{}, errors.New("context is required")
	}
	if s.repo == nil {
		return observation.Thread{}, errors.New("observation repository is required")
	}
	return s.repo.GetThread(ctx, threadID)
}

// ListActivities returns activities newest-first, optionally scoped to a
// camera and optionally restricted to those derived from threads.
func (s *Service) ListActivities(ctx context.Context, cameraID string, threadsOnly bool, limit int) []observation.Activity {
	if ctx == nil || s.repo == nil {
		return []observation.Activity{}
	}
	if limit <= 0 {
		limit = s.readLimit
	}

	activities, err := s.repo.ListActivities(ctx, ports.ActivityFilter{
		CameraID:    cameraID,
		ThreadsOnly: threadsOnly,
		Limit:       limit,
	})
	if err != nil {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", "usecase.monitor")),
			"activity read failed, returning empty",
			slog.Any("error", errs.Loggable(err)),
		)
		return []observation.Activity{}
	}
	if activities == nil {
		activities = []observation.Activity{}
	}
	return activities
}

// Cameras returns the catalog snapshot.
func (s *Service) Cameras() []observation.Camera {
	if s.catalog == nil {
		return nil
	}
	return s.catalog.Cameras()
}

// Camera looks up one catalog entry.
func (s *Service) Camera(id int) (observation.Camera, bool) {
	if s.catalog == nil {
		return observation.Camera{}, false
	}
	return s.catalog.Camera(id)
}
