package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"serafin/internal/bootstrap"
	"serafin/internal/bootstrap/logging"
	"serafin/internal/errs"
	"serafin/internal/usecase/monitor"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one analysis cycle for a camera",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, service *monitor.Service, _ *monitor.Manager) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		cameraID, _ := cmd.Flags().GetInt("camera")
		camera, ok := service.Camera(cameraID)
		if !ok {
			return fmt.Errorf("unknown camera %d", cameraID)
		}

		result, err := service.RunCycle(ctx, camera)
		if err != nil {
			return errs.Wrap(err, "run analysis cycle")
		}
		if result.Skipped {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "no frame available, cycle skipped"); err != nil {
				return errs.Wrap(err, "write analyze output")
			}
			return nil
		}

		out := cmd.OutOrStdout()
		if _, err := fmt.Fprintf(out, "thread %s [%s] %s\n", result.Thread.ID, result.Thread.Severity, result.Thread.Title); err != nil {
			return errs.Wrap(err, "write analyze output")
		}
		if _, err := fmt.Fprintf(out, "activity %s [%s] fallback=%t attention=%t\n",
			result.Activity.ID, result.Activity.Severity, result.Fallback, result.NeedsAttention); err != nil {
			return errs.Wrap(err, "write analyze output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().Int("camera", 0, "Camera id to analyze")
	_ = analyzeCmd.MarkFlagRequired("camera")
}
