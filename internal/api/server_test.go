package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"serafin/internal/bootstrap/config"
	"serafin/internal/domain/observation"
	"serafin/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "serafin/internal/infrastructure/persistence/sqlite/repository"
	"serafin/internal/ports"
	"serafin/internal/usecase/monitor"
)

var testCamera = observation.Camera{
	ID:          707,
	StreamURL:   "https://example.test/707/playlist.m3u8",
	SnapshotURL: "https://example.test/707.jpg",
	Street:      "Main St at Brown St",
	City:        "Rochester",
}

type stubCatalog struct{ cameras []observation.Camera }

func (c *stubCatalog) Cameras() []observation.Camera { return c.cameras }

func (c *stubCatalog) Camera(id int) (observation.Camera, bool) {
	for _, camera := range c.cameras {
		if camera.ID == id {
			return camera, true
		}
	}
	return observation.Camera{}, false
}

type stubFrames struct {
	mu      sync.Mutex
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *stubFrames) Capture(_ context.Context, _ observation.Camera) (ports.Frame, error) {
	f.mu.Lock()
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

type stubAnalyzer struct{ analysis observation.Analysis }

func (a *stubAnalyzer) AnalyzeScene(_ context.Context, _ ports.Frame, _ observation.Camera, _ observation.TimeOfCapture) (observation.Analysis, error) {
	return a.analysis, nil
}

type stubResponder struct{ reply string }

func (r *stubResponder) Respond(_ context.Context, _ ports.ChatRequest) (string, error) {
	return r.reply, nil
}

type serverFixture struct {
	router *chi.Mux
	frames *stubFrames
	repo   ports.ObservationRepository
}

func setupServer(t *testing.T) *serverFixture {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Thread{}, &model.Activity{}, &model.MonitorKV{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	repo := sqliterepo.NewObservationRepository(db)
	frames := &stubFrames{}
	catalog := &stubCatalog{cameras: []observation.Camera{testCamera}}
	analyzer := &stubAnalyzer{analysis: observation.Analysis{
		Title:    "Normal Traffic Conditions",
		Content:  "Traffic flowing normally.",
		Severity: observation.ThreadSeverityInfo,
	}}

	service := monitor.NewService(repo, analyzer, frames, catalog, nil, &stubResponder{reply: "All clear."}, config.MonitorConfig{
		Interval:   30 * time.Second,
		RetryDelay: time.Millisecond,
		ReadLimit:  20,
	})
	manager := monitor.NewManager(service, catalog, 30*time.Second)

	return &serverFixture{
		router: NewServer(service, manager, nil).Router(),
		frames: frames,
		repo:   repo,
	}
}

func (fx *serverFixture) do(t *testing.T, method string, target string, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, target, reader)
	recorder := httptest.NewRecorder()
	fx.router.ServeHTTP(recorder, request)
	return recorder
}

func decodeList(t *testing.T, recorder *httptest.ResponseRecorder) []map[string]any {
	t.Helper()

	var payload []map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, recorder.Body.String())
	}
	return payload
}

func TestListCameras(t *testing.T) {
	fx := setupServer(t)

	recorder := fx.do(t, http.MethodGet, "/api/cameras", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	cameras := decodeList(t, recorder)
	if len(cameras) != 1 {
		t.Fatalf("got %d cameras, want 1", len(cameras))
	}
	if cameras[0]["street"] != "Main St at Brown St" {
		t.Errorf("street = %v", cameras[0]["street"])
	}
}

func TestGetCameraNotFound(t *testing.T) {
	fx := setupServer(t)

	if code := fx.do(t, http.MethodGet, "/api/cameras/9999", "").Code; code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
	if code := fx.do(t, http.MethodGet, "/api/cameras/abc", "").Code; code != http.StatusBadRequest {
		t.Errorf("status for non-numeric id = %d, want 400", code)
	}
}

func TestAnalyzeCreatesThreadAndActivity(t *testing.T) {
	fx := setupServer(t)

	recorder := fx.do(t, http.MethodPost, "/api/cameras/707/analyze", "")
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %q)", recorder.Code, recorder.Body.String())
	}

	var payload struct {
		Thread   map[string]any `json:"thread"`
		Activity map[string]any `json:"activity"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Activity["thread_id"] != payload.Thread["id"] {
		t.Errorf("activity thread_id = %v, want %v", payload.Activity["thread_id"], payload.Thread["id"])
	}

	threads := decodeList(t, fx.do(t, http.MethodGet, "/api/cameras/707/threads", ""))
	if len(threads) != 1 {
		t.Errorf("got %d threads after analyze, want 1", len(threads))
	}
	activities := decodeList(t, fx.do(t, http.MethodGet, "/api/activities", ""))
	if len(activities) != 1 {
		t.Errorf("got %d activities after analyze, want 1", len(activities))
	}
}

func TestAnalyzeConflictsWhileCycleInFlight(t *testing.T) {
	fx := setupServer(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	fx.frames.mu.Lock()
	fx.frames.entered = entered
	fx.frames.release = release
	fx.frames.mu.Unlock()

	first := make(chan int, 1)
	go func() {
		first <- fx.do(t, http.MethodPost, "/api/cameras/707/analyze", "").Code
	}()

	<-entered
	if code := fx.do(t, http.MethodPost, "/api/cameras/707/analyze", "").Code; code != http.StatusConflict {
		t.Errorf("concurrent analyze status = %d, want 409", code)
	}

	close(release)
	if code := <-first; code != http.StatusCreated {
		t.Errorf("first analyze status = %d, want 201", code)
	}
}

func TestAnalyzeRejectedWhileDisabled(t *testing.T) {
	fx := setupServer(t)

	if code := fx.do(t, http.MethodPost, "/api/cameras/707/monitor", `{"enabled":false}`).Code; code != http.StatusOK {
		t.Fatalf("monitor toggle status = %d, want 200", code)
	}
	if code := fx.do(t, http.MethodPost, "/api/cameras/707/analyze", "").Code; code != http.StatusConflict {
		t.Errorf("analyze while disabled status = %d, want 409", code)
	}
}

func TestAnalyzeUnavailableWithoutFrames(t *testing.T) {
	fx := setupServer(t)
	fx.frames.err = ports.ErrNoFrame

	if code := fx.do(t, http.MethodPost, "/api/cameras/707/analyze", "").Code; code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
}

func TestSetIntervalValidatesCadence(t *testing.T) {
	fx := setupServer(t)

	if code := fx.do(t, http.MethodPut, "/api/cameras/707/interval", `{"interval_seconds":45}`).Code; code != http.StatusBadRequest {
		t.Errorf("interval 45s status = %d, want 400", code)
	}
	if code := fx.do(t, http.MethodPut, "/api/cameras/707/interval", `{"interval_seconds":120}`).Code; code != http.StatusOK {
		t.Errorf("interval 120s status = %d, want 200", code)
	}

	statuses := decodeList(t, fx.do(t, http.MethodGet, "/api/status", ""))
	if len(statuses) != 1 {
		t.Fatalf("got %d statuses, want 1", len(statuses))
	}
	if got := statuses[0]["interval_seconds"]; got != float64(120) {
		t.Errorf("interval_seconds = %v, want 120", got)
	}
}

func TestGetThreadNotFound(t *testing.T) {
	fx := setupServer(t)

	if code := fx.do(t, http.MethodGet, "/api/threads/missing", "").Code; code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}

func TestActivitiesWithThreadsFilter(t *testing.T) {
	fx := setupServer(t)

	if code := fx.do(t, http.MethodPost, "/api/cameras/707/analyze", "").Code; code != http.StatusCreated {
		t.Fatal("analyze failed")
	}
	direct := observation.Activity{
		ID:        "direct-1",
		Title:     "Manual Entry",
		Content:   "Inserted without a thread.",
		Severity:  observation.ActivitySeverityInfo,
		Timestamp: time.Now().Add(time.Minute),
		CameraID:  "707",
	}
	if err := fx.repo.SaveActivity(context.Background(), direct); err != nil {
		t.Fatalf("SaveActivity() error = %v", err)
	}

	all := decodeList(t, fx.do(t, http.MethodGet, "/api/activities", ""))
	if len(all) != 2 {
		t.Fatalf("got %d activities, want 2", len(all))
	}
	withThreads := decodeList(t, fx.do(t, http.MethodGet, "/api/activities?with_threads=true", ""))
	if len(withThreads) != 1 {
		t.Fatalf("got %d thread-backed activities, want 1", len(withThreads))
	}
	if _, ok := withThreads[0]["thread_id"]; !ok {
		t.Error("thread-backed activity is missing thread_id")
	}
}

func TestAssistantChat(t *testing.T) {
	fx := setupServer(t)

	recorder := fx.do(t, http.MethodPost, "/api/chat", `{"message":"Anything to report?"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	var payload chatResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Reply != "All clear." {
		t.Errorf("reply = %q", payload.Reply)
	}

	if code := fx.do(t, http.MethodPost, "/api/chat", `{"message":"  "}`).Code; code != http.StatusBadRequest {
		t.Errorf("blank message status = %d, want 400", code)
	}
}

func TestCameraChat(t *testing.T) {
	fx := setupServer(t)

	recorder := fx.do(t, http.MethodPost, "/api/cameras/707/chat", `{"message":"How does traffic look?"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	if code := fx.do(t, http.MethodPost, "/api/cameras/9999/chat", `{"message":"hi"}`).Code; code != http.StatusNotFound {
		t.Errorf("unknown camera chat status = %d, want 404", code)
	}
}
