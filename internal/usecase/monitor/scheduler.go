package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"serafin/internal/bootstrap/config"
	"serafin/internal/bootstrap/logging"
	"serafin/internal/domain/observation"
	"serafin/internal/errs"
	"serafin/internal/ports"
)

// State is the scheduler lifecycle for one camera.
type State string

const (
	StateIdle     State = "idle"
	StateArmed    State = "armed"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
)

var (
	// ErrCycleInFlight rejects a manual trigger while a cycle is running.
	ErrCycleInFlight = errors.New("analysis cycle already in flight")
	// ErrMonitoringDisabled rejects a manual trigger while analysis is off.
	ErrMonitoringDisabled = errors.New("monitoring is disabled")
)

// Scheduler drives periodic cycles for a single camera. The running guard
// is an atomic compare-and-swap because timer fires and HTTP-initiated
// manual triggers arrive on different goroutines; whichever wins the swap
// owns the cycle and everyone else no-ops.
type Scheduler struct {
	service *Service
	camera  observation.Camera

	ready    atomic.Bool
	enabled  atomic.Bool
	running  atomic.Bool
	interval atomic.Int64
}

func NewScheduler(service *Service, camera observation.Camera, interval time.Duration) *Scheduler {
	s := &Scheduler{service: service, camera: camera}
	s.enabled.Store(true)
	s.interval.Store(int64(interval))
	return s
}

// State derives the lifecycle state from the three flags. Running wins over
// Disabled so a toggled-off in-flight cycle still reports Running until it
// completes.
func (s *Scheduler) State() State {
	switch {
	case s.running.Load():
		return StateRunning
	case !s.enabled.Load():
		return StateDisabled
	case !s.ready.Load():
		return StateIdle
	default:
		return StateArmed
	}
}

func (s *Scheduler) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// SetInterval changes the cadence starting from the next timer fire. An
// in-flight cycle is not reset.
func (s *Scheduler) SetInterval(interval time.Duration) error {
	for _, allowed := range config.AnalysisIntervals {
		if interval == allowed {
			s.interval.Store(int64(interval))
			return nil
		}
	}
	return fmt.Errorf("interval %s is not one of the allowed cadences", interval)
}

func (s *Scheduler) Enabled() bool {
	return s.enabled.Load()
}

// SetEnabled toggles analysis. Disabling during a running cycle lets the
// cycle finish and persist; no further cycles are scheduled until
// re-enabled.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
}

// Trigger runs one cycle immediately. It is rejected while a cycle is in
// flight or while monitoring is disabled.
func (s *Scheduler) Trigger(ctx context.Context) (CycleResult, error) {
	if ctx == nil {
		return CycleResult{}, errors.New("context is required")
	}
	if !s.enabled.Load() {
		return CycleResult{}, ErrMonitoringDisabled
	}
	if !s.running.CompareAndSwap(false, true) {
		return CycleResult{}, ErrCycleInFlight
	}
	defer s.running.Store(false)

	result, err := s.service.RunCycle(ctx, s.camera)
	if err != nil {
		return CycleResult{}, err
	}
	if !result.Skipped {
		s.ready.Store(true)
	}
	return result, nil
}

// Run fires cycles on the configured cadence until ctx is cancelled. A fire
// while a cycle is in flight or while disabled is a no-op.
func (s *Scheduler) Run(ctx context.Context) {
	if ctx == nil {
		return
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.monitor.scheduler"),
		slog.Int("camera_id", s.camera.ID),
	)
	logging.Info(logCtx, "scheduler started", slog.Duration("interval", s.Interval()))

	timer := time.NewTimer(s.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info(logCtx, "scheduler stopped")
			return
		case <-timer.C:
		}

		s.fire(logCtx)
		timer.Reset(s.Interval())
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	if !s.enabled.Load() {
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	defer s.running.Store(false)

	result, err := s.service.RunCycle(ctx, s.camera)
	if err != nil {
		logging.Error(ctx, "cycle failed", slog.Any("error", errs.Loggable(err)))
		return
	}
	if !result.Skipped {
		s.ready.Store(true)
	}
}

// Status is the externally visible scheduler snapshot for one camera.
type Status struct {
	CameraID  int
	State     State
	Interval  time.Duration
	LastCycle *CycleMarker
}

// Manager holds one independent scheduler per catalog camera. There is no
// cross-camera coordination or shared quota.
type Manager struct {
	service *Service
	catalog ports.CameraCatalog

	mu         sync.Mutex
	schedulers map[int]*Scheduler
	interval   time.Duration
}

func NewManager(service *Service, catalog ports.CameraCatalog, interval time.Duration) *Manager {
	return &Manager{
		service:    service,
		catalog:    catalog,
		schedulers: make(map[int]*Scheduler),
		interval:   interval,
	}
}

// Run starts a scheduler goroutine for every camera in the catalog and
// blocks until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if m.catalog == nil {
		return errors.New("camera catalog is required")
	}

	var wg sync.WaitGroup
	for _, camera := range m.catalog.Cameras() {
		scheduler := m.scheduler(camera)
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.Run(ctx)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

// Scheduler returns the per-camera scheduler, creating it on first use.
func (m *Manager) Scheduler(cameraID int) (*Scheduler, error) {
	if m.catalog == nil {
		return nil, errors.New("camera catalog is required")
	}
	camera, ok := m.catalog.Camera(cameraID)
	if !ok {
		return nil, fmt.Errorf("camera %d not found", cameraID)
	}
	return m.scheduler(camera), nil
}

func (m *Manager) scheduler(camera observation.Camera) *Scheduler {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.schedulers[camera.ID]; ok {
		return existing
	}
	created := NewScheduler(m.service, camera, m.interval)
	m.schedulers[camera.ID] = created
	return created
}

// StatusAll snapshots every camera's scheduler for the status endpoint and
// the console.
func (m *Manager) StatusAll(ctx context.Context) []Status {
	if ctx == nil || m.catalog == nil {
		return nil
	}

	cameras := m.catalog.Cameras()
	statuses := make([]Status, 0, len(cameras))
	for _, camera := range cameras {
		scheduler := m.scheduler(camera)
		status := Status{
			CameraID: camera.ID,
			State:    scheduler.State(),
			Interval: scheduler.Interval(),
		}
		if marker, ok := m.service.LastCycle(ctx, camera.ID); ok {
			status.LastCycle = &marker
		}
		statuses = append(statuses, status)
	}
	return statuses
}
