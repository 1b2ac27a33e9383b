package activityconsole

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"serafin/internal/domain/observation"
	"serafin/internal/usecase/monitor"
)

const maxContentLines = 3

type Options struct {
	CameraID        int
	ThreadsOnly     bool
	Limit           int
	RefreshInterval time.Duration
}

type activityModel struct {
	ctx             context.Context
	service         *monitor.Service
	manager         *monitor.Manager
	cameraID        int
	threadsOnly     bool
	limit           int
	refreshInterval time.Duration

	activities    []observation.Activity
	selectedIndex int
	detail        observation.Thread
	hasDetail     bool
	statuses      []monitor.Status
	status        string
}

type feedLoadedMsg struct {
	activities []observation.Activity
	statuses   []monitor.Status
}

type threadLoadedMsg struct {
	activityID string
	thread     observation.Thread
	err        error
}

type analyzeDoneMsg struct {
	cameraID int
	result   monitor.CycleResult
	err      error
}

type tickMsg struct{}

func NewActivityModel(ctx context.Context, service *monitor.Service, manager *monitor.Manager, options Options) tea.Model {
	limit := options.Limit
	if limit <= 0 {
		limit = 20
	}
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &activityModel{
		ctx:             ctx,
		service:         service,
		manager:         manager,
		cameraID:        options.CameraID,
		threadsOnly:     options.ThreadsOnly,
		limit:           limit,
		refreshInterval: interval,
		status:          "starting",
	}
}

func (m *activityModel) Init() tea.Cmd {
	return tea.Batch(m.loadFeedCmd(), m.tickCmd())
}

func (m *activityModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadFeedCmd(), m.tickCmd())
	case feedLoadedMsg:
		m.activities = msg.activities
		m.statuses = msg.statuses
		if len(m.activities) == 0 {
			m.selectedIndex = 0
			m.hasDetail = false
			m.status = "feed is empty"
			return m, nil
		}
		if m.selectedIndex >= len(m.activities) {
			m.selectedIndex = len(m.activities) - 1
		}
		m.status = fmt.Sprintf("refreshed, %d activities", len(m.activities))
		return m, m.loadSelectedThreadCmd()
	case threadLoadedMsg:
		if !m.isCurrentSelection(msg.activityID) {
			return m, nil
		}
		if msg.err != nil {
			m.hasDetail = false
			return m, nil
		}
		m.detail = msg.thread
		m.hasDetail = true
		return m, nil
	case analyzeDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("analyze camera %d failed: %v", msg.cameraID, msg.err)
			return m, nil
		}
		if msg.result.Skipped {
			m.status = fmt.Sprintf("analyze camera %d skipped: no frame", msg.cameraID)
			return m, m.loadFeedCmd()
		}
		m.status = fmt.Sprintf("analyzed camera %d: %s", msg.cameraID, msg.result.Thread.Severity)
		return m, m.loadFeedCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadFeedCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadSelectedThreadCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.activities)-1 {
				m.selectedIndex++
				return m, m.loadSelectedThreadCmd()
			}
			return m, nil
		case "t":
			m.threadsOnly = !m.threadsOnly
			m.status = fmt.Sprintf("threads-only filter: %v", m.threadsOnly)
			return m, m.loadFeedCmd()
		case "a":
			return m, m.analyzeCmd()
		}
	}
	return m, nil
}

func (m *activityModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Serafin Activity Feed"))
	builder.WriteString("\n")
	scope := "all cameras"
	if m.cameraID > 0 {
		scope = "camera " + strconv.Itoa(m.cameraID)
	}
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"scope=%s threads_only=%v limit=%d refresh=%s",
		scope, m.threadsOnly, m.limit, m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Activities"))
	builder.WriteString("\n")
	if len(m.activities) == 0 {
		builder.WriteString(dimStyle.Render("- no activities"))
		builder.WriteString("\n\n")
	} else {
		for index, activity := range m.activities {
			line := fmt.Sprintf("%s %s cam=%s %s",
				activity.Timestamp.Local().Format("15:04:05"),
				severityStyle(activity.Severity).Render(severityTag(activity.Severity)),
				activity.CameraID,
				activity.Title,
			)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> ") + line)
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Thread"))
	builder.WriteString("\n")
	if !m.hasDetail {
		builder.WriteString(dimStyle.Render("- no linked thread"))
		builder.WriteString("\n\n")
	} else {
		builder.WriteString(fmt.Sprintf("Title: %s\n", m.detail.Title))
		builder.WriteString(fmt.Sprintf("Severity: %s\n", m.detail.Severity))
		builder.WriteString(fmt.Sprintf("Captured: %s\n", m.detail.Timestamp.Local().Format(time.RFC3339)))
		for _, line := range contentLines(m.detail.Content, maxContentLines) {
			builder.WriteString("  " + line + "\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Monitors"))
	builder.WriteString("\n")
	if len(m.statuses) == 0 {
		builder.WriteString(dimStyle.Render("- no schedulers"))
		builder.WriteString("\n\n")
	} else {
		for _, status := range m.statuses {
			builder.WriteString(fmt.Sprintf("- cam=%d state=%s interval=%s\n", status.CameraID, status.State, status.Interval))
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + m.status)
	builder.WriteString("\n\n")

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  g refresh  t threads-only  a analyze now  q quit"))
	return builder.String()
}

func (m *activityModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *activityModel) loadFeedCmd() tea.Cmd {
	cameraID := ""
	if m.cameraID > 0 {
		cameraID = strconv.Itoa(m.cameraID)
	}
	threadsOnly := m.threadsOnly
	limit := m.limit
	return func() tea.Msg {
		activities := m.service.ListActivities(m.ctx, cameraID, threadsOnly, limit)
		var statuses []monitor.Status
		if m.manager != nil {
			statuses = m.manager.StatusAll(m.ctx)
		}
		return feedLoadedMsg{activities: activities, statuses: statuses}
	}
}

func (m *activityModel) loadSelectedThreadCmd() tea.Cmd {
	activity, ok := m.selectedActivity()
	if !ok || activity.ThreadID == nil {
		m.hasDetail = false
		return nil
	}
	threadID := *activity.ThreadID
	activityID := activity.ID
	return func() tea.Msg {
		thread, err := m.service.GetThread(m.ctx, threadID)
		return threadLoadedMsg{activityID: activityID, thread: thread, err: err}
	}
}

func (m *activityModel) analyzeCmd() tea.Cmd {
	cameraID := m.cameraID
	if cameraID == 0 {
		activity, ok := m.selectedActivity()
		if !ok {
			m.status = "no activity selected"
			return nil
		}
		parsed, err := strconv.Atoi(activity.CameraID)
		if err != nil {
			m.status = "selected activity has no usable camera id"
			return nil
		}
		cameraID = parsed
	}
	if m.manager == nil {
		m.status = "no scheduler manager attached"
		return nil
	}

	m.status = fmt.Sprintf("analyzing camera %d...", cameraID)
	return func() tea.Msg {
		scheduler, err := m.manager.Scheduler(cameraID)
		if err != nil {
			return analyzeDoneMsg{cameraID: cameraID, err: err}
		}
		result, err := scheduler.Trigger(m.ctx)
		return analyzeDoneMsg{cameraID: cameraID, result: result, err: err}
	}
}

func (m *activityModel) selectedActivity() (observation.Activity, bool) {
	if len(m.activities) == 0 || m.selectedIndex < 0 || m.selectedIndex >= len(m.activities) {
		return observation.Activity{}, false
	}
	return m.activities[m.selectedIndex], true
}

func (m *activityModel) isCurrentSelection(activityID string) bool {
	selected, ok := m.selectedActivity()
	return ok && selected.ID == activityID
}

func severityTag(severity observation.ActivitySeverity) string {
	return fmt.Sprintf("[%-8s]", severity)
}

func severityStyle(severity observation.ActivitySeverity) lipgloss.Style {
	switch severity {
	case observation.ActivitySeverityCritical:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	case observation.ActivitySeverityWarning:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	}
}

func contentLines(content string, limit int) []string {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) > limit {
		lines = lines[:limit]
	}
	return lines
}
