package observation

import "time"

// Thread is a single analyzer output for one camera at one point in time.
// Threads are append-only: once recorded they are never mutated or deleted
// by this service.
type Thread struct {
	ID        string
	Title     string
	Content   string
	Severity  ThreadSeverity
	Timestamp time.Time
	CameraID  string
	CreatedAt time.Time
}

// Activity is the notification-facing projection of a thread. ThreadID is a
// soft reference: it is set whenever the activity was derived from a thread
// and nil for directly inserted activities.
type Activity struct {
	ID        string
	Title     string
	Content   string
	Severity  ActivitySeverity
	Timestamp time.Time
	CameraID  string
	ThreadID  *string
	CreatedAt time.Time
}

// Camera is a static catalog entry. Cameras are never created or mutated at
// runtime.
type Camera struct {
	ID          int
	StreamURL   string
	SnapshotURL string
	Street      string
	City        string
}

// Name returns the human-facing camera name used in prompts and templates.
func (c Camera) Name() string { return c.Street }

// Location returns the camera's city/region string.
func (c Camera) Location() string { return c.City }

// Analysis is the analyzer's (or the fallback generator's) verdict before it
// is persisted as a thread.
type Analysis struct {
	Title          string
	Content        string
	Severity       ThreadSeverity
	NeedsAttention bool
	Fallback       bool
}
