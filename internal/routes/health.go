package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	probeTimeout = 2 * time.Second
	probeOK      = "ok"
	// reported for a backing service the server runs without (dev memory mode)
	probeDisabled = "disabled"
)

// probe runs ping when the dependency is configured and reports its state.
func probe(ctx context.Context, configured bool, ping func(context.Context) error) string {
	if !configured {
		return probeDisabled
	}
	if err := ping(ctx); err != nil {
		return err.Error()
	}
	return probeOK
}

// RegisterHealthRoutes adds GET /healthz, which fails with 503 when a
// configured Postgres or Redis does not answer.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), probeTimeout)
		defer cancel()

		pg := probe(ctx, d.DB != nil, func(ctx context.Context) error { return d.DB.Ping(ctx) })
		rd := probe(ctx, d.Cache != nil, func(ctx context.Context) error { return d.Cache.Ping(ctx).Err() })

		status := http.StatusOK
		for _, s := range []string{pg, rd} {
			if s != probeOK && s != probeDisabled {
				status = http.StatusServiceUnavailable
			}
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    fiber.Map{"postgres": pg, "redis": rd},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
