// Package http exposes the auth API over HTTP using fiber.
package http

import (
	"context"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	app     *fiber.App
	address string
	logger  logging.Logger
}

// NewServer wires middleware and routes onto a new fiber app.
func NewServer(address string, users AuthService, m *metrics.Metrics, l logging.Logger) *Server {
	logger := l.With("module", "http_server")

	app := fiber.New(fiber.Config{
		AppName:               "authkeeper",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})

	app.Use(requestIDMiddleware())
	app.Use(accessLogMiddleware(logger, m))
	app.Use(recoverMiddleware(logger, m))

	RegisterRoutes(app, NewAuthHandler(users, l), m)

	return &Server{app: app, address: address, logger: logger}
}

// App returns the underlying fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			s.logger.Error(ctx, "HTTP shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	// starts accepting incoming connections
	if err := s.app.Listener(listen); err != nil {
		return err
	}

	return nil
}
