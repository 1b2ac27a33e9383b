package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"serafin/internal/api"
	"serafin/internal/bootstrap"
	"serafin/internal/bootstrap/logging"
	"serafin/internal/errs"
	"serafin/internal/infrastructure/events"
	"serafin/internal/infrastructure/ws"
	"serafin/internal/usecase/monitor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the camera schedulers and HTTP API",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, service *monitor.Service, manager *monitor.Manager) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		hub := ws.NewHub()
		service.AddPublisher(hub)

		if app.Config.Events.NATSURL != "" {
			alerts, err := events.NewNATSPublisher(ctx, app.Config.Events)
			if err != nil {
				return errs.Wrap(err, "connect alert publisher")
			}
			defer alerts.Close()
			service.AddAlertPublisher(alerts)
		}

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = app.Config.Server.Addr
		}

		server := &http.Server{
			Addr:              addr,
			Handler:           api.NewServer(service, manager, hub).Router(),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Run(ctx)
		}()
		go func() {
			defer wg.Done()
			if err := manager.Run(ctx); err != nil {
				logging.Error(ctx, "scheduler manager stopped", slog.Any("err", errs.Loggable(err)))
			}
		}()

		serveErr := make(chan error, 1)
		go func() {
			logging.Info(ctx, "http server listening", slog.String("addr", addr))
			serveErr <- server.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelShutdown()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logging.Warn(ctx, "http server shutdown failed", slog.Any("err", errs.Loggable(err)))
			}
		case err := <-serveErr:
			stop()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				wg.Wait()
				return errs.Wrap(err, "serve http")
			}
		}

		wg.Wait()
		logging.Info(ctx, "serve stopped")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default: server.addr from config)")
}
