package monitor

import (
	"context"
	"math/rand/v2"
	"time"

	"serafin/internal/bootstrap/config"
	"serafin/internal/ports"
)

// Service owns the observation pipeline: capture, analyze, classify,
// persist, surface. Clock and random draw are injectable so fallback
// selection and severity mapping are testable without flakiness.
type Service struct {
	repo     ports.ObservationRepository
	analyzer ports.SceneAnalyzer
	frames   ports.FrameSource
	catalog  ports.CameraCatalog
	cache    ports.Cache
	chat     ports.ChatResponder

	// publishers receive every activity; alerts only attention-worthy ones.
	publishers []ports.ActivityPublisher
	alerts     []ports.ActivityPublisher

	retryDelay time.Duration
	readLimit  int

	now   func() time.Time
	draw  func() float64
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService wires the pipeline usecases with repository, analyzer, frame
// source and catalog. cache, chat and publishers are optional.
func NewService(
	repo ports.ObservationRepository,
	analyzer ports.SceneAnalyzer,
	frames ports.FrameSource,
	catalog ports.CameraCatalog,
	cache ports.Cache,
	chat ports.ChatResponder,
	cfg config.MonitorConfig,
) *Service {
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	readLimit := cfg.ReadLimit
	if readLimit <= 0 {
		readLimit = 20
	}

	return &Service{
		repo:       repo,
		analyzer:   analyzer,
		frames:     frames,
		catalog:    catalog,
		cache:      cache,
		chat:       chat,
		retryDelay: retryDelay,
		readLimit:  readLimit,
		now:        time.Now,
		draw:       rand.Float64,
		sleep:      sleepContext,
	}
}

// AddPublisher registers a sink for every created activity.
func (s *Service) AddPublisher(publisher ports.ActivityPublisher) {
	if publisher != nil {
		s.publishers = append(s.publishers, publisher)
	}
}

// AddAlertPublisher registers a sink that only receives attention-worthy
// activities.
func (s *Service) AddAlertPublisher(publisher ports.ActivityPublisher) {
	if publisher != nil {
		s.alerts = append(s.alerts, publisher)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
