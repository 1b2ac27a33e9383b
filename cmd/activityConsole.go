package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"serafin/internal/bootstrap"
	"serafin/internal/bootstrap/logging"
	"serafin/internal/errs"
	"serafin/internal/usecase/activityconsole"
	"serafin/internal/usecase/monitor"
)

var consoleActivityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Start activity feed console",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, service *monitor.Service, manager *monitor.Manager) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		cameraID, _ := cmd.Flags().GetInt("camera")
		threadsOnly, _ := cmd.Flags().GetBool("threads-only")
		limit, _ := cmd.Flags().GetInt("limit")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		if refreshInterval <= 0 {
			refreshInterval = 5 * time.Second
		}

		model := activityconsole.NewActivityModel(ctx, service, manager, activityconsole.Options{
			CameraID:        cameraID,
			ThreadsOnly:     threadsOnly,
			Limit:           limit,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run activity console")
		}
		return nil
	}),
}

func init() {
	consoleCmd.AddCommand(consoleActivityCmd)
	consoleActivityCmd.Flags().Int("camera", 0, "Camera id filter (0 for all cameras)")
	consoleActivityCmd.Flags().Bool("threads-only", false, "Show only activities linked to a thread")
	consoleActivityCmd.Flags().Int("limit", 20, "Maximum feed entries to load")
	consoleActivityCmd.Flags().Duration("refresh-interval", 5*time.Second, "Auto refresh interval")
}
