package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/food-voucher/food_voucher/internal/config"
	"github.com/food-voucher/food_voucher/internal/jobs"
	"github.com/food-voucher/food_voucher/internal/logging"
	"github.com/food-voucher/food_voucher/internal/notification"
	"github.com/food-voucher/food_voucher/internal/onboarding"
	"github.com/food-voucher/food_voucher/internal/routes"
)

// Server wraps the Fiber application, the background verification runs and
// the cron scheduler sweeping them.
type Server struct {
	app        *fiber.App
	cfg        config.Config
	onboarding *onboarding.Service
	scheduler  *jobs.Scheduler
	logger     *slog.Logger
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, notifier notification.Notifier, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	services, err := routes.Setup(app, routes.Deps{
		Cfg:       cfg,
		DB:        db,
		Cache:     cache,
		Logger:    logger,
		Notifier:  notifier,
		AccessLog: cfg.IsDev(),
	})
	if err != nil {
		return nil, err
	}

	return &Server{
		app:        app,
		cfg:        cfg,
		onboarding: services.Onboarding,
		scheduler:  jobs.NewScheduler(services.Jobs, logging.Component(logger, "scheduler"), cfg.SweepSchedule),
		logger:     logging.Component(logger, "server"),
	}, nil
}

// Listen starts the sweeper and the HTTP server.
func (s *Server) Listen() error {
	if err := s.scheduler.Start(); err != nil {
		return err
	}
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops accepting requests, cancels running verifications and waits
// for scheduled jobs to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	httpErr := s.app.ShutdownWithContext(ctx)
	runsErr := s.onboarding.Close(ctx)

	select {
	case <-s.scheduler.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler did not stop in time")
	}
	return errors.Join(httpErr, runsErr)
}
