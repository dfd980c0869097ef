package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/food-voucher/food_voucher/internal/card"
	"github.com/food-voucher/food_voucher/internal/config"
	"github.com/food-voucher/food_voucher/internal/gateway"
	"github.com/food-voucher/food_voucher/internal/i18n"
	"github.com/food-voucher/food_voucher/internal/jobs"
	"github.com/food-voucher/food_voucher/internal/logging"
	"github.com/food-voucher/food_voucher/internal/middleware"
	"github.com/food-voucher/food_voucher/internal/notification"
	"github.com/food-voucher/food_voucher/internal/onboarding"
	"github.com/food-voucher/food_voucher/internal/session"
	"github.com/food-voucher/food_voucher/internal/transactions"
	"github.com/food-voucher/food_voucher/internal/validation"
	"github.com/food-voucher/food_voucher/internal/verification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Provider defaults to a MockProvider with sandbox latencies.
	Provider gateway.Provider
	// Notifier defaults to logging notifications.
	Notifier notification.Notifier
	// AccessLog enables the plain text request log.
	AccessLog bool
}

// Services exposes the long-lived components the server must stop on shutdown.
type Services struct {
	Onboarding *onboarding.Service
	Jobs       *jobs.Jobs
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Services, error) {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.AccessLog {
		// [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(logging.Component(d.Logger, "http")))

	RegisterHealthRoutes(app, d)

	texts, err := i18n.New(d.Cfg.Verification.Locale)
	if err != nil {
		return nil, err
	}
	validate, err := validation.New()
	if err != nil {
		return nil, err
	}

	provider := d.Provider
	if provider == nil {
		provider = gateway.NewMockProvider()
	}

	var (
		profileRepo session.Repository
		cardRepo    card.Repository
		historyRepo transactions.Repository
		runStore    onboarding.RunStore
		memoryRuns  *onboarding.MemoryStore
	)
	if d.DB != nil {
		profileRepo = session.NewPostgresRepository(d.DB)
		cardRepo = card.NewPostgresRepository(d.DB)
		historyRepo = transactions.NewPostgresRepository(d.DB)
	} else {
		profileRepo = session.NewMemoryRepository()
		cardRepo = card.NewMemoryRepository()
		historyRepo = transactions.NewMemoryRepository()
	}
	if d.Cache != nil {
		runStore = onboarding.NewRedisStore(d.Cache, d.Cfg.RunTTL)
	} else {
		memoryRuns = onboarding.NewMemoryStore(d.Cfg.RunTTL)
		runStore = memoryRuns
	}

	history := transactions.NewService(historyRepo)
	profiles := session.NewService(profileRepo, d.Cfg.Verification.CountryCode)
	cards := card.NewService(cardRepo, history, d.Cfg.CardAllowance)

	seq := verification.NewSequencer(newExecutor(d.Cfg.Verification, provider), texts, d.Logger,
		verification.OptionsFromConfig(d.Cfg.Verification))
	runs := onboarding.NewService(onboarding.Deps{
		Sequencer: seq,
		Store:     runStore,
		Profiles:  profiles,
		Cards:     cards,
		Notifier:  d.Notifier,
		Logger:    d.Logger,
		IdleTTL:   d.Cfg.RunTTL,
	})

	var snapshots jobs.SnapshotSweeper
	if memoryRuns != nil {
		snapshots = memoryRuns
	}
	sweeper := jobs.NewJobs(runs, snapshots, logging.Component(d.Logger, "jobs"))

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterVerificationRoutes(api,
		onboarding.NewHandler(runs, validate, d.Cfg.Verification.Locale),
		middleware.VerificationRateLimit(d.Cache, d.Cfg.VerifyPerMin, d.Logger),
	)
	RegisterProfileRoutes(api, session.NewHandler(profiles), card.NewHandler(cards), transactions.NewHandler(history))

	var idempotency fiber.Handler
	if d.Cache != nil {
		idempotency = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	RegisterGatewayRoutes(api, gateway.NewHandler(provider, validate, d.Cfg.Verification.CountryCode), idempotency)

	return &Services{Onboarding: runs, Jobs: sweeper}, nil
}

func newExecutor(cfg config.Verification, provider gateway.Provider) verification.Executor {
	if cfg.Executor == config.ExecutorGateway {
		return verification.NewProviderExecutor(provider)
	}
	return verification.NewDelayExecutor(cfg.SIMRiskProbability, nil)
}
