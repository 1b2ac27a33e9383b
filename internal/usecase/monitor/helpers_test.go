package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"serafin/internal/bootstrap/config"
	"serafin/internal/domain/observation"
	"serafin/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "serafin/internal/infrastructure/persistence/sqlite/repository"
	"serafin/internal/ports"
)

var testCamera = observation.Camera{
	ID:          707,
	StreamURL:   "https://example.test/707/playlist.m3u8",
	SnapshotURL: "https://example.test/707.jpg",
	Street:      "Main St at Brown St",
	City:        "Rochester",
}

type testCatalog struct {
	cameras []observation.Camera
}

func (c *testCatalog) Cameras() []observation.Camera {
	return c.cameras
}

func (c *testCatalog) Camera(id int) (observation.Camera, bool) {
	for _, camera := range c.cameras {
		if camera.ID == id {
			return camera, true
		}
	}
	return observation.Camera{}, false
}

type testFrames struct {
	mu       sync.Mutex
	err      error
	captures int

	// entered is closed once a capture begins; release gates its return.
	entered chan struct{}
	release chan struct{}
}

func (f *testFrames) Capture(_ context.Context, _ observation.Camera) (ports.Frame, error) {
	f.mu.Lock()
	f.captures++
	err := f.err
	entered := f.entered
	release := f.release
	f.entered = nil
	f.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return ports.Frame{}, err
	}
	return ports.Frame{Data: []byte{0xff, 0xd8, 0xff}, MimeType: "image/jpeg", Width: 640, Height: 480}, nil
}

func (f *testFrames) captureCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captures
}

type testAnalyzer struct {
	analysis observation.Analysis
	err      error
	calls    int
}

func (a *testAnalyzer) AnalyzeScene(_ context.Context, _ ports.Frame, _ observation.Camera, _ observation.TimeOfCapture) (observation.Analysis, error) {
	a.calls++
	if a.err != nil {
		return observation.Analysis{}, a.err
	}
	return a.analysis, nil
}

type testResponder struct {
	reply string
	err   error
	last  ports.ChatRequest
}

func (r *testResponder) Respond(_ context.Context, request ports.ChatRequest) (string, error) {
	r.last = request
	if r.err != nil {
		return "", r.err
	}
	return r.reply, nil
}

type testCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newTestCache() *testCache {
	return &testCache{data: make(map[string]string)}
}

func (c *testCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *testCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *testCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type testPublisher struct {
	mu         sync.Mutex
	activities []observation.Activity
	err        error
}

func (p *testPublisher) PublishActivity(_ context.Context, activity observation.Activity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.activities = append(p.activities, activity)
	return nil
}

func (p *testPublisher) published() []observation.Activity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]observation.Activity(nil), p.activities...)
}

// failingRepo fails a configurable number of writes before delegating.
type failingRepo struct {
	ports.ObservationRepository

	mu            sync.Mutex
	threadFails   int
	activityFails int
	threadCalls   int
	activityCalls int
}

var errStoreDown = errors.New("store down")

func (r *failingRepo) SaveThread(ctx context.Context, thread observation.Thread) error {
	r.mu.Lock()
	r.threadCalls++
	fail := r.threadFails > 0
	if fail {
		r.threadFails--
	}
	r.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return r.ObservationRepository.SaveThread(ctx, thread)
}

func (r *failingRepo) SaveActivity(ctx context.Context, activity observation.Activity) error {
	r.mu.Lock()
	r.activityCalls++
	fail := r.activityFails > 0
	if fail {
		r.activityFails--
	}
	r.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return r.ObservationRepository.SaveActivity(ctx, activity)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Thread{}, &model.Activity{}, &model.MonitorKV{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

type serviceFixture struct {
	service  *Service
	repo     *failingRepo
	frames   *testFrames
	analyzer *testAnalyzer
	chat     *testResponder
	cache    *testCache
	feed     *testPublisher
	alerts   *testPublisher
}

func setupService(t *testing.T) *serviceFixture {
	t.Helper()

	db := openTestDB(t)
	repo := &failingRepo{ObservationRepository: sqliterepo.NewObservationRepository(db)}
	frames := &testFrames{}
	analyzer := &testAnalyzer{
		analysis: observation.Analysis{
			Title:          "Normal Traffic Conditions",
			Content:        "Traffic flowing normally.",
			Severity:       observation.ThreadSeverityInfo,
			NeedsAttention: false,
		},
	}
	chat := &testResponder{reply: "All clear."}
	cache := newTestCache()
	catalog := &testCatalog{cameras: []observation.Camera{testCamera}}

	service := NewService(repo, analyzer, frames, catalog, cache, chat, config.MonitorConfig{
		Interval:   30 * time.Second,
		RetryDelay: time.Millisecond,
		ReadLimit:  20,
	})
	service.sleep = func(context.Context, time.Duration) error { return nil }

	feed := &testPublisher{}
	alerts := &testPublisher{}
	service.AddPublisher(feed)
	service.AddAlertPublisher(alerts)

	return &serviceFixture{
		service:  service,
		repo:     repo,
		frames:   frames,
		analyzer: analyzer,
		chat:     chat,
		cache:    cache,
		feed:     feed,
		alerts:   alerts,
	}
}

// fixedDraws makes the service consume a scripted sequence of random draws,
// repeating the final value once exhausted.
func fixedDraws(service *Service, draws ...float64) {
	index := 0
	service.draw = func() float64 {
		value := draws[index]
		if index < len(draws)-1 {
			index++
		}
		return value
	}
}

func fixedClock(service *Service, at time.Time) {
	service.now = func() time.Time { return at }
}
