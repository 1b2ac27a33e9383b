package ports

import (
	"context"

	"serafin/internal/domain/observation"
)

// ActivityPublisher pushes freshly created activities to live consumers
// (websocket hub, message broker). Publish failures are logged by the
// caller and never abort a cycle.
type ActivityPublisher interface {
	PublishActivity(ctx context.Context, activity observation.Activity) error
}
