package ports

import (
	"context"
	"errors"

	"serafin/internal/domain/observation"
)

var ErrThreadNotFound = errors.New("observation thread not found")

// ThreadFilter scopes thread reads. CameraID empty means all cameras.
// Results are always newest-first by capture timestamp, truncated to Limit.
type ThreadFilter struct {
	CameraID string
	Limit    int
}

// ActivityFilter scopes activity reads. ThreadsOnly restricts results to
// activities whose thread reference is non-null.
type ActivityFilter struct {
	CameraID    string
	ThreadsOnly bool
	Limit       int
}

type ObservationReadRepository interface {
	ListThreads(ctx context.Context, filter ThreadFilter) ([]observation.Thread, error)
	GetThread(ctx context.Context, threadID string) (observation.Thread, error)
	ListActivities(ctx context.Context, filter ActivityFilter) ([]observation.Activity, error)
}

// ObservationRepository is the append-only store for threads and activities.
// No update or delete operations exist for either record kind.
type ObservationRepository interface {
	ObservationReadRepository
	SaveThread(ctx context.Context, thread observation.Thread) error
	SaveActivity(ctx context.Context, activity observation.Activity) error
}
