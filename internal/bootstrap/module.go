package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"serafin/internal/bootstrap/config"
	"serafin/internal/bootstrap/database"
	"serafin/internal/bootstrap/logging"
	"serafin/internal/errs"
	cacheinfra "serafin/internal/infrastructure/cache"
	"serafin/internal/infrastructure/capture"
	"serafin/internal/infrastructure/catalog"
	"serafin/internal/infrastructure/genai"
	sqliterepo "serafin/internal/infrastructure/persistence/sqlite/repository"
	"serafin/internal/ports"
	"serafin/internal/usecase/monitor"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewObservationRepository,
			fx.As(new(ports.ObservationRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(
		fx.Annotate(
			provideCatalog,
			fx.As(new(ports.CameraCatalog)),
		),
	),
	fx.Provide(
		fx.Annotate(
			provideFrameSource,
			fx.As(new(ports.FrameSource)),
		),
	),
	fx.Provide(
		fx.Annotate(
			provideGenAI,
			fx.As(new(ports.SceneAnalyzer)),
			fx.As(new(ports.ChatResponder)),
		),
	),
	fx.Provide(provideMonitorService),
	fx.Provide(provideManager),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideCatalog(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*catalog.Catalog, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	c, err := catalog.Load(logCtx, cfg.Catalog.File)
	if err != nil {
		return nil, err
	}

	if cfg.Catalog.HotReload {
		watchCtx, cancel := context.WithCancel(logCtx)
		lc.Append(fx.Hook{
			OnStart: func(_ context.Context) error {
				go func() {
					if err := c.Watch(watchCtx); err != nil {
						logging.Warn(watchCtx, "catalog watch stopped", slog.Any("err", errs.Loggable(err)))
					}
				}()
				return nil
			},
			OnStop: func(_ context.Context) error {
				cancel()
				return nil
			},
		})
	}

	return c, nil
}

func provideFrameSource(cfg config.Config) *capture.HTTPSource {
	return capture.NewHTTPSource(cfg.Monitor.CaptureTimeout)
}

func provideGenAI(cfg config.Config) *genai.Client {
	return genai.NewClient(cfg.GenAI)
}

func provideMonitorService(
	repo ports.ObservationRepository,
	analyzer ports.SceneAnalyzer,
	frames ports.FrameSource,
	cat ports.CameraCatalog,
	cache ports.Cache,
	chat ports.ChatResponder,
	cfg config.Config,
) *monitor.Service {
	return monitor.NewService(repo, analyzer, frames, cat, cache, chat, cfg.Monitor)
}

func provideManager(service *monitor.Service, cat ports.CameraCatalog, cfg config.Config) *monitor.Manager {
	return monitor.NewManager(service, cat, cfg.Monitor.Interval)
}
