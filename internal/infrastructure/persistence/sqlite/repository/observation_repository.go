package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"serafin/internal/domain/observation"
	"serafin/internal/errs"
	"serafin/internal/infrastructure/persistence/sqlite/model"
	"serafin/internal/ports"
)

const defaultReadLimit = 100

type ObservationRepository struct {
	db *gorm.DB
}

var _ ports.ObservationRepository = (*ObservationRepository)(nil)

func NewObservationRepository(db *gorm.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

func (r *ObservationRepository) SaveThread(ctx context.Context, thread observation.Thread) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if strings.TrimSpace(thread.ID) == "" {
		return errors.New("thread id is required")
	}
	if !thread.Severity.Valid() {
		return errs.Wrapf(errors.New("invalid severity"), "save thread %s", thread.ID)
	}

	row := model.Thread{
		ThreadID:  thread.ID,
		Title:     thread.Title,
		Content:   thread.Content,
		Severity:  string(thread.Severity),
		Timestamp: formatTime(thread.Timestamp),
		CameraID:  thread.CameraID,
		CreatedAt: formatTime(thread.CreatedAt),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert thread")
	}
	return nil
}

func (r *ObservationRepository) SaveActivity(ctx context.Context, activity observation.Activity) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if strings.TrimSpace(activity.ID) == "" {
		return errors.New("activity id is required")
	}
	if _, err := observation.ParseActivitySeverity(string(activity.Severity)); err != nil {
		return errs.Wrapf(err, "save activity %s", activity.ID)
	}

	row := model.Activity{
		ActivityID: activity.ID,
		Title:      activity.Title,
		Content:    activity.Content,
		Severity:   string(activity.Severity),
		Timestamp:  formatTime(activity.Timestamp),
		CameraID:   activity.CameraID,
		ThreadID:   activity.ThreadID,
		CreatedAt:  formatTime(activity.CreatedAt),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert activity")
	}
	return nil
}

func (r *ObservationRepository) ListThreads(ctx context.Context, filter ports.ThreadFilter) ([]observation.Thread, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	query := r.db.WithContext(ctx).Model(&model.Thread{})
	if cameraID := strings.TrimSpace(filter.CameraID); cameraID != "" {
		query = query.Where("camera_id = ?", cameraID)
	}

	var rows []model.Thread
	if err := query.
		Order("timestamp desc").
		Order("created_at desc").
		Limit(normalizeLimit(filter.Limit)).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query threads")
	}

	threads := make([]observation.Thread, 0, len(rows))
	for _, row := range rows {
		threads = append(threads, mapThread(row))
	}
	return threads, nil
}

func (r *ObservationRepository) GetThread(ctx context.Context, threadID string) (observation.Thread, error) {
	if ctx == nil {
		return observation.Thread{}, errors.New("context is required")
	}
	if strings.TrimSpace(threadID) == "" {
		return observation.Thread{}, errors.New("thread id is required")
	}

	var row model.Thread
	if err := r.db.WithContext(ctx).Where("thread_id = ?", threadID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return observation.Thread{}, ports.ErrThreadNotFound
		}
		return observation.Thread{}, errs.Wrap(err, "query thread by id")
	}

	return mapThread(row), nil
}

func (r *ObservationRepository) ListActivities(ctx context.Context, filter ports.ActivityFilter) ([]observation.Activity, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	query := r.db.WithContext(ctx).Model(&model.Activity{})
	if cameraID := strings.TrimSpace(filter.CameraID); cameraID != "" {
		query = query.Where("camera_id = ?", cameraID)
	}
	if filter.ThreadsOnly {
		query = query.Where("thread_id IS NOT NULL")
	}

	var rows []model.Activity
	if err := query.
		Order("timestamp desc").
		Order("created_at desc").
		Limit(normalizeLimit(filter.Limit)).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query activities")
	}

	activities := make([]observation.Activity, 0, len(rows))
	for _, row := range rows {
		activities = append(activities, mapActivity(row))
	}
	return activities, nil
}

func mapThread(row model.Thread) observation.Thread {
	return observation.Thread{
		ID:        row.ThreadID,
		Title:     row.Title,
		Content:   row.Content,
		Severity:  observation.ThreadSeverity(row.Severity),
		Timestamp: parseTime(row.Timestamp),
		CameraID:  row.CameraID,
		CreatedAt: parseTime(row.CreatedAt),
	}
}

func mapActivity(row model.Activity) observation.Activity {
	return observation.Activity{
		ID:        row.ActivityID,
		Title:     row.Title,
		Content:   row.Content,
		Severity:  observation.ActivitySeverity(row.Severity),
		Timestamp: parseTime(row.Timestamp),
		CameraID:  row.CameraID,
		ThreadID:  row.ThreadID,
		CreatedAt: parseTime(row.CreatedAt),
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultReadLimit
	}
	return limit
}

// Timestamps are stored as fixed-width RFC3339 UTC strings so lexicographic
// ordering in SQL matches chronological ordering.
func formatTime(value time.Time) string {
	if value.IsZero() {
		value = time.Now()
	}
	return value.UTC().Format(time.RFC3339)
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}
	}
	return parsed
}
