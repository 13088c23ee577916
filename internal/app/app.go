package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	"github.com/linemk/proshop/internal/config"
	"github.com/linemk/proshop/internal/lib/background"
	"github.com/linemk/proshop/internal/lib/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *sql.DB
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	// Runner - фоновый контекст для рассылок, не связанный с жизнью HTTP-запроса
	Runner *background.Runner
}

// NewApp создаёт новый экземпляр App
func NewApp(log *slog.Logger, cfg *config.Config) (*App, error) {
	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD environment variable is not set")
	}

	db, err := sql.Open("postgres", DSN(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, cfg.Database.Name),
	)
	m := metrics.New(reg)

	app := &App{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Registry: reg,
		Metrics:  m,
		Runner:   background.NewRunner(log, m, cfg.Notifications.Workers, cfg.Notifications.QueueSize),
	}

	return app, nil
}

// DSN собирает строку подключения к postgres
func DSN(db config.DatabaseConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		db.User,
		db.Password,
		db.Host,
		db.Port,
		db.Name,
	)
}

// Close дожидается фоновых задач (в пределах ctx) и закрывает БД.
// Задачи, не успевшие выполниться, теряются.
func (a *App) Close(ctx context.Context) error {
	runnerErr := a.Runner.Shutdown(ctx)
	if errors.Is(runnerErr, background.ErrRunnerStopped) {
		runnerErr = nil
	}
	return errors.Join(runnerErr, a.DB.Close())
}
