package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"serafin/internal/domain/observation"
	"serafin/internal/infrastructure/capture"
	"serafin/internal/ports"
	"serafin/internal/usecase/monitor"
)

type cameraResponse struct {
	ID          int    `json:"id"`
	Street      string `json:"street"`
	City        string `json:"city"`
	StreamURL   string `json:"stream_url"`
	SnapshotURL string `json:"snapshot_url"`
}

type threadResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
	CameraID  string    `json:"camera_id"`
	CreatedAt time.Time `json:"created_at"`
}

type activityResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
	CameraID  string    `json:"camera_id"`
	ThreadID  *string   `json:"thread_id,omitempty"`
}

type statusResponse struct {
	CameraID        int        `json:"camera_id"`
	State           string     `json:"state"`
	IntervalSeconds int        `json:"interval_seconds"`
	LastCycleAt     *time.Time `json:"last_cycle_at,omitempty"`
	LastCycleTitle  string     `json:"last_cycle_title,omitempty"`
}

type chatRequest struct {
	Message     string `json:"message"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

type monitorRequest struct {
	Enabled bool `json:"enabled"`
}

type intervalRequest struct {
	IntervalSeconds int `json:"interval_seconds"`
}

func (s *Server) handleListCameras(w http.ResponseWriter, r *http.Request) {
	cameras := s.service.Cameras()
	payload := make([]cameraResponse, 0, len(cameras))
	for _, camera := range cameras {
		payload = append(payload, toCameraResponse(camera))
	}
	writeJSON(w, r, http.StatusOK, payload)
}

func (s *Server) handleGetCamera(w http.ResponseWriter, r *http.Request) {
	camera, ok := s.cameraFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, toCameraResponse(camera))
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	cameraID := ""
	if raw := chi.URLParam(r, "cameraID"); raw != "" {
		camera, ok := s.cameraFromPath(w, r)
		if !ok {
			return
		}
		cameraID = strconv.Itoa(camera.ID)
	}

	threads := s.service.ListThreads(r.Context(), cameraID, limitParam(r))
	payload := make([]threadResponse, 0, len(threads))
	for _, thread := range threads {
		payload = append(payload, toThreadResponse(thread))
	}
	writeJSON(w, r, http.StatusOK, payload)
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	thread, err := s.service.GetThread(r.Context(), threadID)
	if err != nil {
		if errors.Is(err, ports.ErrThreadNotFound) {
			writeError(w, r, http.StatusNotFound, "thread not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "thread lookup failed")
		return
	}
	writeJSON(w, r, http.StatusOK, toThreadResponse(thread))
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	cameraID := r.URL.Query().Get("camera_id")
	if raw := chi.URLParam(r, "cameraID"); raw != "" {
		camera, ok := s.cameraFromPath(w, r)
		if !ok {
			return
		}
		cameraID = strconv.Itoa(camera.ID)
	}
	threadsOnly := boolParam(r, "with_threads")

	activities := s.service.ListActivities(r.Context(), cameraID, threadsOnly, limitParam(r))
	payload := make([]activityResponse, 0, len(activities))
	for _, activity := range activities {
		payload = append(payload, toActivityResponse(activity))
	}
	writeJSON(w, r, http.StatusOK, payload)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	scheduler, ok := s.schedulerFromPath(w, r)
	if !ok {
		return
	}

	result, err := scheduler.Trigger(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, monitor.ErrCycleInFlight):
			writeError(w, r, http.StatusConflict, "analysis cycle already in flight")
		case errors.Is(err, monitor.ErrMonitoringDisabled):
			writeError(w, r, http.StatusConflict, "monitoring is disabled for this camera")
		default:
			writeError(w, r, http.StatusInternalServerError, "analysis failed")
		}
		return
	}
	if result.Skipped {
		writeError(w, r, http.StatusServiceUnavailable, "camera is not delivering frames")
		return
	}

	writeJSON(w, r, http.StatusCreated, struct {
		Thread   threadResponse   `json:"thread"`
		Activity activityResponse `json:"activity"`
		Fallback bool             `json:"fallback"`
	}{
		Thread:   toThreadResponse(result.Thread),
		Activity: toActivityResponse(result.Activity),
		Fallback: result.Fallback,
	})
}

func (s *Server) handleSetMonitoring(w http.ResponseWriter, r *http.Request) {
	scheduler, ok := s.schedulerFromPath(w, r)
	if !ok {
		return
	}

	var request monitorRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	scheduler.SetEnabled(request.Enabled)
	writeJSON(w, r, http.StatusOK, struct {
		Enabled bool   `json:"enabled"`
		State   string `json:"state"`
	}{Enabled: request.Enabled, State: string(scheduler.State())})
}

func (s *Server) handleSetInterval(w http.ResponseWriter, r *http.Request) {
	scheduler, ok := s.schedulerFromPath(w, r)
	if !ok {
		return
	}

	var request intervalRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	interval := time.Duration(request.IntervalSeconds) * time.Second
	if err := scheduler.SetInterval(interval); err != nil {
		writeError(w, r, http.StatusBadRequest, "interval must be one of 30, 60, 120, 300 seconds")
		return
	}
	writeJSON(w, r, http.StatusOK, struct {
		IntervalSeconds int `json:"interval_seconds"`
	}{IntervalSeconds: request.IntervalSeconds})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	statuses := s.manager.StatusAll(r.Context())
	payload := make([]statusResponse, 0, len(statuses))
	for _, status := range statuses {
		entry := statusResponse{
			CameraID:        status.CameraID,
			State:           string(status.State),
			IntervalSeconds: int(status.Interval / time.Second),
		}
		if status.LastCycle != nil {
			at := status.LastCycle.Timestamp
			entry.LastCycleAt = &at
			entry.LastCycleTitle = status.LastCycle.Title
		}
		payload = append(payload, entry)
	}
	writeJSON(w, r, http.StatusOK, payload)
}

func (s *Server) handleCameraChat(w http.ResponseWriter, r *http.Request) {
	camera, ok := s.cameraFromPath(w, r)
	if !ok {
		return
	}

	var request chatRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(request.Message) == "" {
		writeError(w, r, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := s.service.CameraChat(r.Context(), camera.ID, request.Message)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "chat failed")
		return
	}
	writeJSON(w, r, http.StatusOK, chatResponse{Reply: reply})
}

func (s *Server) handleAssistantChat(w http.ResponseWriter, r *http.Request) {
	var request chatRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(request.Message) == "" {
		writeError(w, r, http.StatusBadRequest, "message is required")
		return
	}

	var frame *ports.Frame
	if request.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(request.ImageBase64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "image_base64 is not valid base64")
			return
		}
		decoded, err := capture.DecodeJPEGFrame(data)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "image_base64 is not a decodable JPEG")
			return
		}
		frame = &decoded
	}

	reply, err := s.service.AssistantChat(r.Context(), request.Message, frame)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "chat failed")
		return
	}
	writeJSON(w, r, http.StatusOK, chatResponse{Reply: reply})
}

func (s *Server) cameraFromPath(w http.ResponseWriter, r *http.Request) (observation.Camera, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "cameraID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "camera id must be numeric")
		return observation.Camera{}, false
	}
	camera, ok := s.service.Camera(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "camera not found")
		return observation.Camera{}, false
	}
	return camera, true
}

func (s *Server) schedulerFromPath(w http.ResponseWriter, r *http.Request) (*monitor.Scheduler, bool) {
	camera, ok := s.cameraFromPath(w, r)
	if !ok {
		return nil, false
	}
	scheduler, err := s.manager.Scheduler(camera.ID)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "camera not found")
		return nil, false
	}
	return scheduler, true
}

func limitParam(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func boolParam(r *http.Request, name string) bool {
	value, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && value
}

func toCameraResponse(camera observation.Camera) cameraResponse {
	return cameraResponse{
		ID:          camera.ID,
		Street:      camera.Street,
		City:        camera.City,
		StreamURL:   camera.StreamURL,
		SnapshotURL: camera.SnapshotURL,
	}
}

func toThreadResponse(thread observation.Thread) threadResponse {
	return threadResponse{
		ID:        thread.ID,
		Title:     thread.Title,
		Content:   thread.Content,
		Severity:  string(thread.Severity),
		Timestamp: thread.Timestamp,
		CameraID:  thread.CameraID,
		CreatedAt: thread.CreatedAt,
	}
}

func toActivityResponse(activity observation.Activity) activityResponse {
	return activityResponse{
		ID:        activity.ID,
		Title:     activity.Title,
		Content:   activity.Content,
		Severity:  string(activity.Severity),
		Timestamp: activity.Timestamp,
		CameraID:  activity.CameraID,
		ThreadID:  activity.ThreadID,
	}
}
