// Package app assembles the components shared by the admin server and the bot.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"authentik-admin/internal/authentik"
	"authentik-admin/internal/config"
	"authentik-admin/internal/database"
	"authentik-admin/internal/directory"
	"authentik-admin/internal/metrics"
	"authentik-admin/internal/repository"
	"authentik-admin/internal/resolver"
	"authentik-admin/internal/settings"
	"authentik-admin/internal/shlink"
	"authentik-admin/internal/usecase"
	"authentik-admin/internal/webhook"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type App struct {
	Config   config.Config
	Logger   *logrus.Logger
	Metrics  *metrics.Metrics
	Cache    *directory.Cache
	Settings *settings.Store
	Accounts *usecase.AccountUseCase

	db *sql.DB
}

// NewLogger returns a JSON logger at the given level, falling back to info.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("Unknown log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// New builds the directory cache and the account use case. The persisted
// snapshot is loaded but not refreshed.
func New(ctx context.Context, cfg config.Config, logger *logrus.Logger, m *metrics.Metrics) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: m}

	var store directory.SnapshotStore
	if database.IsPostgresDSN(cfg.LocalDB) {
		db, err := database.NewPostgresDB(cfg.LocalDB)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		a.db = db
		store = repository.NewSnapshotRepository(db)
		logger.Info("Directory stored in PostgreSQL")
	} else {
		store = directory.NewCSVStore(cfg.LocalDB)
		logger.WithField("path", cfg.LocalDB).Info("Directory stored in CSV file")
	}

	provider := authentik.NewClient(authentik.Config{
		BaseURL:       cfg.AuthentikAPIURL,
		Token:         cfg.AuthentikAPIToken,
		MainGroupID:   cfg.MainGroupID,
		FlowID:        cfg.FlowID,
		InviteBaseURL: cfg.InviteBaseURL,
		Timeout:       cfg.UpstreamRequestTimeout,
	}, logger)

	a.Cache = directory.NewCache(provider, store, cfg.DirectoryRefreshTimeout, m)
	if err := a.Cache.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	logger.WithField("records", a.Cache.Len()).Info("Directory snapshot loaded")

	a.Settings = settings.NewStore(cfg.SettingsFile, settings.FromConfig(cfg))
	if err := a.Settings.Load(); err != nil {
		logger.WithError(err).Warn("Failed to load settings file, using environment defaults")
	}

	notifier := webhook.NewNotifier(a.Settings, cfg.WebhookRatePerMinute, logger, m)
	shortener := shlink.NewClient(cfg.ShlinkURL, cfg.ShlinkAPIToken, cfg.UpstreamRequestTimeout)

	a.Accounts = usecase.NewAccountUseCase(
		provider,
		shortener,
		a.Cache,
		resolver.New(a.Cache, m),
		notifier,
		usecase.AccountOptions{BaseDomain: cfg.BaseDomain, LoginURL: cfg.LoginURL},
		logger,
		m,
	)
	return a, nil
}

// InitialRefresh refreshes the directory once. Failures are logged because
// the persisted snapshot remains usable.
func (a *App) InitialRefresh(ctx context.Context) {
	if err := a.Cache.Refresh(ctx); err != nil {
		a.Logger.WithError(err).Warn("Initial directory refresh failed, serving persisted snapshot")
		return
	}
	a.Logger.WithField("records", a.Cache.Len()).Info("Directory refreshed")
}

// StartRefreshSchedule refreshes the directory on a cron schedule. It returns
// nil when no schedule is configured.
func (a *App) StartRefreshSchedule(schedule string) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if err := a.Cache.Refresh(context.Background()); err != nil {
			a.Logger.WithError(err).Warn("Scheduled directory refresh failed")
			return
		}
		a.Logger.WithField("records", a.Cache.Len()).Info("Scheduled directory refresh completed")
	})
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}

	c.Start()
	a.Logger.WithField("schedule", schedule).Info("Directory refresh scheduled")
	return c, nil
}

func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
