package monitor

import (
	"context"
	"strings"
	"testing"
	"time"

	"serafin/internal/domain/observation"
	"serafin/internal/ports"
)

func TestRunCyclePersistsThreadAndActivity(t *testing.T) {
	fx := setupService(t)
	ctx := context.Background()
	fixedDraws(fx.service, 0.5)

	result, err := fx.service.RunCycle(ctx, testCamera)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if result.Skipped {
		t.Fatal("cycle skipped unexpectedly")
	}
	if !result.ThreadPersisted || !result.ActivityPersisted {
		t.Errorf("persisted flags = (%v, %v), want (true, true)", result.ThreadPersisted, result.ActivityPersisted)
	}
	if result.Activity.ThreadID == nil || *result.Activity.ThreadID != result.Thread.ID {
		t.Errorf("activity thread ref = %v, want %q", result.Activity.ThreadID, result.Thread.ID)
	}
	if result.Activity.Severity != observation.ActivitySeverityInfo {
		t.Errorf("activity severity = %q, want info", result.Activity.Severity)
	}

	threads := fx.service.ListThreads(ctx, "707", 10)
	if len(threads) != 1 {
		t.Fatalf("ListThreads() returned %d threads, want 1", len(threads))
	}
	if threads[0].ID != result.Thread.ID {
		t.Errorf("stored thread id = %q, want %q", threads[0].ID, result.Thread.ID)
	}

	activities := fx.service.ListActivities(ctx, "707", false, 10)
	if len(activities) != 1 {
		t.Fatalf("ListActivities() returned %d activities, want 1", len(activities))
	}

	if got := fx.feed.published(); len(got) != 1 {
		t.Errorf("feed publisher got %d activities, want 1", len(got))
	}
	if got := fx.alerts.published(); len(got) != 0 {
		t.Errorf("alert publisher got %d activities, want 0", len(got))
	}

	if _, ok := fx.service.LastCycle(ctx, testCamera.ID); !ok {
		t.Error("LastCycle() marker missing after cycle")
	}
}

func TestRunCycleHighSeverityBecomesCritical(t *testing.T) {
	fx := setupService(t)
	fx.analyzer.analysis = observation.Analysis{
		Title:          "Multi-Vehicle Accident",
		Content:        "Collision blocking two lanes.",
		Severity:       observation.ThreadSeverityHigh,
		NeedsAttention: true,
	}
	fixedDraws(fx.service, 0.5)

	result, err := fx.service.RunCycle(context.Background(), testCamera)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if result.Activity.Severity != observation.ActivitySeverityCritical {
		t.Errorf("activity severity = %q, want critical", result.Activity.Severity)
	}
	if !result.NeedsAttention {
		t.Error("NeedsAttention = false, want true")
	}
	if got := fx.alerts.published(); len(got) != 1 {
		t.Errorf("alert publisher got %d activities, want 1", len(got))
	}
}

func TestRunCycleCaptureFailureSkips(t *testing.T) {
	fx := setupService(t)
	fx.frames.err = ports.ErrNoFrame

	result, err := fx.service.RunCycle(context.Background(), testCamera)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if !result.Skipped {
		t.Fatal("Skipped = false, want true")
	}
	if fx.analyzer.calls != 0 {
		t.Errorf("analyzer called %d times, want 0", fx.analyzer.calls)
	}
	if threads := fx.service.ListThreads(context.Background(), "", 10); len(threads) != 0 {
		t.Errorf("ListThreads() returned %d threads after skipped cycle, want 0", len(threads))
	}
}

func TestRunCycleAnalyzerFailureUsesFallback(t *testing.T) {
	fx := setupService(t)
	fx.analyzer.err = ports.ErrQuotaExceeded

	// Weekday 08:30: the rush-hour band makes draw 0.1 a medium severity.
	fixedClock(fx.service, time.Date(2026, time.March, 4, 8, 30, 0, 0, time.UTC))
	fixedDraws(fx.service, 0.1)

	result, err := fx.service.RunCycle(context.Background(), testCamera)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if !result.Fallback {
		t.Fatal("Fallback = false, want true")
	}
	if result.Thread.Severity != observation.ThreadSeverityMedium {
		t.Errorf("thread severity = %q, want medium", result.Thread.Severity)
	}
	if !strings.Contains(result.Thread.Title, "(8:6)") {
		t.Errorf("title %q does not contain bucket suffix (8:6)", result.Thread.Title)
	}
	if result.Activity.Severity != observation.ActivitySeverityWarning {
		t.Errorf("activity severity = %q, want warning", result.Activity.Severity)
	}
	if !result.NeedsAttention {
		t.Error("NeedsAttention = false, want true for medium fallback")
	}
}

func TestRunCycleRetriesThreadWriteOnce(t *testing.T) {
	fx := setupService(t)
	fx.repo.threadFails = 1
	fixedDraws(fx.service, 0.5)

	result, err := fx.service.RunCycle(context.Background(), testCamera)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if !result.ThreadPersisted {
		t.Error("ThreadPersisted = false, want true after one retry")
	}
	if fx.repo.threadCalls != 2 {
		t.Errorf("SaveThread called %d times, want 2", fx.repo.threadCalls)
	}
}

func TestRunCycleDropsThreadWriteAfterSecondFailure(t *testing.T) {
	fx := setupService(t)
	fx.repo.threadFails = 2
	fixedDraws(fx.service, 0.5)

	result, err := fx.service.RunCycle(context.Background(), testCamera)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if result.ThreadPersisted {
		t.Error("ThreadPersisted = true, want false after two failures")
	}
	if fx.repo.threadCalls != 2 {
		t.Errorf("SaveThread called %d times, want exactly 2", fx.repo.threadCalls)
	}

	// The pipeline continues: the activity is still written and surfaced.
	if !result.ActivityPersisted {
		t.Error("ActivityPersisted = false, want true")
	}
	if got := fx.feed.published(); len(got) != 1 {
		t.Errorf("feed publisher got %d activities, want 1", len(got))
	}
}

func TestListActivitiesThreadsOnly(t *testing.T) {
	fx := setupService(t)
	ctx := context.Background()
	fixedDraws(fx.service, 0.5)

	if _, err := fx.service.RunCycle(ctx, testCamera); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	direct := observation.Activity{
		ID:        "direct-1",
		Title:     "Manual Entry",
		Content:   "Inserted without a thread.",
		Severity:  observation.ActivitySeverityInfo,
		Timestamp: time.Now().Add(time.Minute),
		CameraID:  "707",
	}
	if err := fx.repo.SaveActivity(ctx, direct); err != nil {
		t.Fatalf("SaveActivity() error = %v", err)
	}

	all := fx.service.ListActivities(ctx, "", false, 10)
	if len(all) != 2 {
		t.Fatalf("ListActivities() returned %d activities, want 2", len(all))
	}

	withThreads := fx.service.ListActivities(ctx, "", true, 10)
	if len(withThreads) != 1 {
		t.Fatalf("ListActivities(threadsOnly) returned %d activities, want 1", len(withThreads))
	}
	if withThreads[0].ThreadID == nil {
		t.Error("threadsOnly result has nil thread ref")
	}
}
