package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"

	"gym-batches-go/internal/config"
	"gym-batches-go/internal/db"
	enrollmentdomain "gym-batches-go/internal/domain/enrollment"
	"gym-batches-go/internal/metrics"
	enrollmentrepo "gym-batches-go/internal/repository/enrollment"
	"gym-batches-go/internal/repository/inmemory"
	"gym-batches-go/internal/transport/httpserver"
	"gym-batches-go/internal/transport/httpserver/handler"
	"gym-batches-go/pkg/logger"
)

type App struct {
	cfg           config.Config
	httpServer    *http.Server
	metricsServer *http.Server
	db            *gorm.DB
}

func New(ctx context.Context, cfg config.Config, log logger.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg}

	repo, err := a.newRepository(ctx, log)
	if err != nil {
		return nil, err
	}

	log.Info("app.init: initializing services", "timezone", loc.String())
	enrollmentService := enrollmentdomain.NewService(repo, enrollmentdomain.WithLocation(loc))

	m := metrics.New()
	handlers := handler.New(enrollmentService, log, m)

	log.Info("app.init: initializing router")
	router := httpserver.NewRouter(cfg, handlers, m)

	a.httpServer = httpserver.New(cfg.HTTPPort, router)
	if cfg.MetricsPort != "" && cfg.MetricsPort != "0" {
		a.metricsServer = httpserver.New(cfg.MetricsPort, httpserver.NewMetricsRouter(m))
	}

	return a, nil
}

func (a *App) newRepository(ctx context.Context, log logger.Logger) (enrollmentdomain.Repository, error) {
	if a.cfg.UsesMemoryStorage() {
		log.Warn("app.init: using in-memory storage, data is lost on restart")
		return inmemory.NewSeeded(), nil
	}

	log.Info("app.init: initializing database")
	dbConn, err := db.NewPostgres(ctx, a.cfg.DB, log)
	if err != nil {
		return nil, err
	}
	a.db = dbConn

	applied, err := db.Migrate(ctx, dbConn)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("app.init: migrations applied", "applied", applied)

	return enrollmentrepo.NewPostgres(dbConn), nil
}

func (a *App) HTTPServer() *http.Server {
	return a.httpServer
}

// MetricsServer is nil when METRICS_PORT is disabled.
func (a *App) MetricsServer() *http.Server {
	return a.metricsServer
}

func (a *App) Servers() []*http.Server {
	servers := []*http.Server{a.httpServer}
	if a.metricsServer != nil {
		servers = append(servers, a.metricsServer)
	}
	return servers
}

func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	for _, srv := range a.Servers() {
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
