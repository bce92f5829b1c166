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

	"github.com/negosyoko/nena/internal/auth"
	"github.com/negosyoko/nena/internal/chat"
	"github.com/negosyoko/nena/internal/config"
	"github.com/negosyoko/nena/internal/documents"
	"github.com/negosyoko/nena/internal/identity"
	"github.com/negosyoko/nena/internal/loans"
	"github.com/negosyoko/nena/internal/middleware"
	"github.com/negosyoko/nena/internal/notification"
	"github.com/negosyoko/nena/internal/records"
)

// APIPrefix is the mount point of every API route.
const APIPrefix = "/api/v1"

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Notifier delivers OTPs and loan receipts. Defaults to the log notifier.
	Notifier notification.Notifier
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger, "/healthz"))
	if d.Cfg.Env != "test" {
		// [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}

	RegisterHealthRoutes(app, d)

	var (
		identityRepo identity.Repository
		otpStore     identity.OTPStore
		ticketStore  identity.OTPStore
		loanRepo     loans.Repository
		recordStore  records.Store
		documentRepo documents.Repository
		blobs        documents.Storage
	)
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
		loanRepo = loans.NewPostgresRepository(d.DB)
		recordStore = records.NewPostgresStore(d.DB)
		documentRepo = documents.NewPostgresRepository(d.DB)
		blobs = documents.NewPostgresStorage(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
		loanRepo = loans.NewMemoryRepository()
		recordStore = records.NewInMemory()
		documentRepo = documents.NewMemoryRepository()
		blobs = documents.NewMemoryStorage()
	}
	if d.Cache != nil {
		otpStore = identity.NewRedisOTPStore(d.Cache)
		ticketStore = identity.NewRedisTicketStore(d.Cache)
	} else {
		otpStore = identity.NewMemoryOTPStore()
		ticketStore = identity.NewMemoryOTPStore()
	}

	identitySvc := identity.NewService(identityRepo, otpStore, d.Notifier, identity.Options{
		OTPTTL:   d.Cfg.OTPTTL,
		FixedOTP: d.Cfg.FixedOTP,
		Tickets:  ticketStore,
		Logger:   d.Logger,
	})
	authSvc := auth.NewService(d.Cfg, identityRepo)
	loanSvc := loans.NewService(loanRepo, d.Notifier, d.Logger)
	recordSvc := records.NewService(recordStore)
	documentSvc := documents.NewService(documentRepo, blobs, d.Cfg.MaxUploadBytes, d.Logger)
	assistant := chat.NewRuleAssistant(loanSvc, recordSvc)

	phoneOf := func(c *fiber.Ctx) string {
		uid, _ := c.Locals(auth.UserIDLocal).(string)
		user, err := identitySvc.FindByID(c.UserContext(), uid)
		if err != nil {
			return ""
		}
		return user.Phone
	}

	api := app.Group(APIPrefix)
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterIdentityRoutes(api, identity.NewHandler(identitySvc, authSvc, d.Logger))
	authHandler := auth.NewHandler(identitySvc, authSvc, d.Logger)
	RegisterAuthRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, d.Cfg.PINAttemptsPerMin))

	// Protected routes
	protected := api.Group("", middleware.JWTAuth(authSvc))
	protected.Post("/logout/", authHandler.Logout)
	var idempotent fiber.Handler
	if d.Cache != nil {
		idempotent = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	RegisterLoanRoutes(protected, loans.NewHandler(loanSvc, phoneOf), idempotent)
	RegisterRecordRoutes(protected, records.NewHandler(recordSvc))
	RegisterDocumentRoutes(protected, documents.NewHandler(documentSvc))
	RegisterChatRoutes(protected, chat.NewHandler(assistant, d.Logger))

	return nil
}
