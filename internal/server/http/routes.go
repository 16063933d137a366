package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
)

// RegisterRoutes mounts the API at the root and again under /auth.
func RegisterRoutes(app *fiber.App, h *AuthHandler, m *metrics.Metrics) {
	for _, r := range []fiber.Router{app, app.Group("/auth")} {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Get("/health", h.Health)
	}

	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
}
