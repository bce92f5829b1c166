package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/negosyoko/nena/internal/config"
	"github.com/negosyoko/nena/internal/middleware"
	"github.com/negosyoko/nena/internal/routes"
)

// multipart framing on top of the largest accepted upload
const bodyLimitSlack = 64 << 10

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app   *fiber.App
	cfg   config.Config
	db    *pgxpool.Pool
	cache *redis.Client
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := NewApp(cfg, logger)
	if err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger}); err != nil {
		return nil, err
	}
	return &Server{app: app, cfg: cfg, db: db, cache: cache}, nil
}

// NewApp builds a Fiber app with the service's error rendering and limits.
func NewApp(cfg config.Config, logger *slog.Logger) *fiber.App {
	bodyLimit := fiber.DefaultBodyLimit
	if cfg.MaxUploadBytes > 0 {
		bodyLimit = int(cfg.MaxUploadBytes) + bodyLimitSlack
	}
	return fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(logger),
	})
}

type fieldErrors interface {
	FieldErrors() map[string][]string
}

// ErrorHandler renders errors as {"detail": "..."} or, for validation
// failures, as {"field": ["message"]}.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe fieldErrors
		if errors.As(err, &fe) {
			return c.Status(http.StatusBadRequest).JSON(fe.FieldErrors())
		}
		var ferr *fiber.Error
		if errors.As(err, &ferr) {
			return c.Status(ferr.Code).JSON(fiber.Map{"detail": ferr.Message})
		}
		logger.Error("unhandled error",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("request_id", middleware.RequestIDFrom(c)),
			slog.Any("error", err),
		)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"detail": "internal server error"})
	}
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
