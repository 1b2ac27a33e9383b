package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"serafin/internal/bootstrap/logging"
	"serafin/internal/domain/observation"
	"serafin/internal/ports"
)

// activityEvent is the wire shape pushed to websocket subscribers.
type activityEvent struct {
	Type    string          `json:"type"`
	Payload activityPayload `json:"payload"`
}

type activityPayload struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
	CameraID  string    `json:"camera_id"`
	ThreadID  *string   `json:"thread_id,omitempty"`
}

// Hub fans freshly created activities out to connected websocket clients.
// Registration and broadcast run on one goroutine; a client whose send
// buffer is full is dropped rather than allowed to stall the broadcast.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	running bool
}

var _ ports.ActivityPublisher = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run owns the client set until ctx is cancelled. It must be started before
// any client connects or activity is published.
func (h *Hub) Run(ctx context.Context) {
	if ctx == nil {
		return
	}

	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	logCtx := logging.WithAttrs(ctx, slog.String("component", "infrastructure.ws"))

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.running = false
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			logging.Info(logCtx, "websocket hub stopped")
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			logging.Info(logCtx, "websocket client connected", slog.Int("clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				logging.Info(logCtx, "websocket client disconnected", slog.Int("clients", len(h.clients)))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					delete(h.clients, client)
					close(client.send)
					logging.Warn(logCtx, "websocket client send buffer full, dropping client")
				}
			}
		}
	}
}

func (h *Hub) PublishActivity(ctx context.Context, activity observation.Activity) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	h.mu.Lock()
	running := h.running
	h.mu.Unlock()
	if !running {
		return errors.New("websocket hub is not running")
	}

	message, err := json.Marshal(activityEvent{
		Type: "activity",
		Payload: activityPayload{
			ID:        activity.ID,
			Title:     activity.Title,
			Content:   activity.Content,
			Severity:  string(activity.Severity),
			Timestamp: activity.Timestamp,
			CameraID:  activity.CameraID,
			ThreadID:  activity.ThreadID,
		},
	})
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
