package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"serafin/internal/bootstrap/config"
	"serafin/internal/bootstrap/logging"
	"serafin/internal/domain/observation"
	"serafin/internal/errs"
	"serafin/internal/ports"
)

// NATSPublisher mirrors every new activity onto a NATS subject so other
// services can consume the feed without polling the store. It is only
// constructed when events.nats_url is configured.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

var _ ports.ActivityPublisher = (*NATSPublisher)(nil)

func NewNATSPublisher(ctx context.Context, cfg config.EventsConfig) (*NATSPublisher, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if cfg.NATSURL == "" {
		return nil, errors.New("events.nats_url is required")
	}
	if cfg.Subject == "" {
		return nil, errors.New("events.subject is required")
	}

	conn, err := nats.Connect(
		cfg.NATSURL,
		nats.Name("serafin"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, errs.Wrap(err, "connect nats")
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "infrastructure.events")),
		"nats publisher connected",
		slog.String("url", cfg.NATSURL),
		slog.String("subject", cfg.Subject),
	)

	return &NATSPublisher{conn: conn, subject: cfg.Subject}, nil
}

func (p *NATSPublisher) PublishActivity(ctx context.Context, activity observation.Activity) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	payload, err := json.Marshal(struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		Content   string    `json:"content"`
		Severity  string    `json:"severity"`
		Timestamp time.Time `json:"timestamp"`
		CameraID  string    `json:"camera_id"`
		ThreadID  *string   `json:"thread_id,omitempty"`
	}{
		ID:        activity.ID,
		Title:     activity.Title,
		Content:   activity.Content,
		Severity:  string(activity.Severity),
		Timestamp: activity.Timestamp,
		CameraID:  activity.CameraID,
		ThreadID:  activity.ThreadID,
	})
	if err != nil {
		return err
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		return errs.Wrap(err, "publish activity")
	}
	return nil
}

// Close drains in-flight messages before dropping the connection.
func (p *NATSPublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
