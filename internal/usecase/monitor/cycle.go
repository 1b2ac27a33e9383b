package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"serafin/internal/bootstrap/logging"
	"serafin/internal/domain/observation"
	"serafin/internal/errs"
	"serafin/internal/ports"
)

// CycleResult reports what one capture-analyze-classify-persist pass
// produced. The thread and activity are populated even when persistence
// failed; Persisted flags record whether the store accepted them.
type CycleResult struct {
	Skipped           bool
	Thread            observation.Thread
	Activity          observation.Activity
	Fallback          bool
	NeedsAttention    bool
	ThreadPersisted   bool
	ActivityPersisted bool
}

// CycleMarker is the cached summary of a camera's most recent cycle,
// surfaced by the status endpoint.
type CycleMarker struct {
	Timestamp time.Time `json:"timestamp"`
	Title     string    `json:"title"`
	Severity  string    `json:"severity"`
	Fallback  bool      `json:"fallback"`
}

// RunCycle executes one observation pass for camera. A capture failure
// skips the cycle; an analyzer failure substitutes the fallback generator;
// a persistence failure is retried once and then dropped. None of these
// abort the pipeline.
func (s *Service) RunCycle(ctx context.Context, camera observation.Camera) (CycleResult, error) {
	if ctx == nil {
		return CycleResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return CycleResult{}, errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return CycleResult{}, errors.New("observation repository is required")
	}
	if s.frames == nil {
		return CycleResult{}, errors.New("frame source is required")
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.monitor"),
		slog.Int("camera_id", camera.ID),
	)

	frame, err := s.frames.Capture(ctx, camera)
	if err != nil {
		if errors.Is(err, ports.ErrNoFrame) {
			logging.Warn(logCtx, "no frame available, skipping cycle", slog.Any("error", errs.Loggable(err)))
			return CycleResult{Skipped: true}, nil
		}
		return CycleResult{}, errs.Wrap(err, "capture frame")
	}

	capturedAt := s.now()
	at := observation.TimeOfCaptureAt(capturedAt)

	analysis := s.analyze(logCtx, frame, camera, at)

	thread := observation.Thread{
		ID:        uuid.NewString(),
		Title:     analysis.Title,
		Content:   analysis.Content,
		Severity:  analysis.Severity,
		Timestamp: capturedAt,
		CameraID:  strconv.Itoa(camera.ID),
		CreatedAt: capturedAt,
	}
	threadPersisted := s.saveThread(logCtx, thread)

	activity := observation.Activity{
		ID:        uuid.NewString(),
		Title:     thread.Title,
		Content:   thread.Content,
		Severity:  observation.MapSeverity(thread.Severity, s.draw()),
		Timestamp: thread.Timestamp,
		CameraID:  thread.CameraID,
		ThreadID:  &thread.ID,
		CreatedAt: capturedAt,
	}
	activityPersisted := s.saveActivity(logCtx, activity)

	s.publish(logCtx, activity, analysis.NeedsAttention)
	s.recordLastCycle(logCtx, camera, thread, analysis.Fallback)

	logging.Info(logCtx, "cycle completed",
		slog.String("thread_id", thread.ID),
		slog.String("severity", string(thread.Severity)),
		slog.Bool("fallback", analysis.Fallback),
		slog.Bool("needs_attention", analysis.NeedsAttention),
	)

	return CycleResult{
		Thread:            thread,
		Activity:          activity,
		Fallback:          analysis.Fallback,
		NeedsAttention:    analysis.NeedsAttention,
		ThreadPersisted:   threadPersisted,
		ActivityPersisted: activityPersisted,
	}, nil
}

// analyze runs the scene analyzer and substitutes the deterministic
// fallback on any failure, so every cycle yields a well-formed assessment.
func (s *Service) analyze(ctx context.Context, frame ports.Frame, camera observation.Camera, at observation.TimeOfCapture) observation.Analysis {
	if s.analyzer != nil {
		analysis, err := s.analyzer.AnalyzeScene(ctx, frame, camera, at)
		if err == nil {
			return analysis
		}
		logging.Warn(ctx, "scene analysis failed, using fallback", slog.Any("error", errs.Loggable(err)))
	}
	return observation.FallbackAnalysis(camera, at, s.draw())
}

func (s *Service) saveThread(ctx context.Context, thread observation.Thread) bool {
	err := s.withOneRetry(ctx, func() error {
		return s.repo.SaveThread(ctx, thread)
	})
	if err != nil {
		logging.Error(ctx, "thread write dropped", slog.String("thread_id", thread.ID), slog.Any("error", errs.Loggable(err)))
		return false
	}
	return true
}

func (s *Service) saveActivity(ctx context.Context, activity observation.Activity) bool {
	err := s.withOneRetry(ctx, func() error {
		return s.repo.SaveActivity(ctx, activity)
	})
	if err != nil {
		logging.Error(ctx, "activity write dropped", slog.String("activity_id", activity.ID), slog.Any("error", errs.Loggable(err)))
		return false
	}
	return true
}

// withOneRetry runs op, and on failure waits the configured delay and runs
// it exactly once more.
func (s *Service) withOneRetry(ctx context.Context, op func() error) error {
	first := op()
	if first == nil {
		return nil
	}
	if err := s.sleep(ctx, s.retryDelay); err != nil {
		return first
	}
	if retry := op(); retry != nil {
		return fmt.Errorf("retry failed: %w (first attempt: %v)", retry, first)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, activity observation.Activity, needsAttention bool) {
	for _, publisher := range s.publishers {
		if err := publisher.PublishActivity(ctx, activity); err != nil {
			logging.Warn(ctx, "activity publish failed", slog.Any("error", errs.Loggable(err)))
		}
	}
	if !needsAttention {
		return
	}
	for _, publisher := range s.alerts {
		if err := publisher.PublishActivity(ctx, activity); err != nil {
			logging.Warn(ctx, "alert publish failed", slog.Any("error", errs.Loggable(err)))
		}
	}
}

func (s *Service) recordLastCycle(ctx context.Context, camera observation.Camera, thread observation.Thread, fallback bool) {
	if s.cache == nil {
		return
	}

	marker, err := json.Marshal(CycleMarker{
		Timestamp: thread.Timestamp,
		Title:     thread.Title,
		Severity:  string(thread.Severity),
		Fallback:  fallback,
	})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, lastCycleKey(camera.ID), string(marker), 0); err != nil {
		logging.Warn(ctx, "last cycle marker write failed", slog.Any("error", errs.Loggable(err)))
	}
}

// LastCycle returns the most recent cycle marker for a camera, if any.
func (s *Service) LastCycle(ctx context.Context, cameraID int) (CycleMarker, bool) {
	if ctx == nil || s.cache == nil {
		return CycleMarker{}, false
	}

	value, found, err := s.cache.Get(ctx, lastCycleKey(cameraID))
	if err != nil || !found {
		return CycleMarker{}, false
	}

	var marker CycleMarker
	if err := json.Unmarshal([]byte(value), &marker); err != nil {
		return CycleMarker{}, false
	}
	return marker, true
}

func lastCycleKey(cameraID int) string {
	return fmt.Sprintf("monitor:last_cycle:%d", cameraID)
}
