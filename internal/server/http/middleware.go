package http

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
)

const (
	headerRequestID = "X-Request-ID"
	localsRequestID = "request_id"
)

// requestIDMiddleware reuses the caller's X-Request-ID or mints a uuid, and
// echoes it on the response.
func requestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(localsRequestID, id)
		c.Set(headerRequestID, id)
		return c.Next()
	}
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(localsRequestID).(string)
	return id
}

func recoverMiddleware(l logging.Logger, m *metrics.Metrics) fiber.Handler {
	return recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			m.PanicRecovered()
			l.Error(c.UserContext(), "recovered from panic", "panic", fmt.Sprint(e), "path", c.Path(), "request_id", requestID(c))
		},
	})
}

// accessLogMiddleware logs one line per request and records its latency.
// Errors from the chain are rendered here so the logged status is final.
func accessLogMiddleware(l logging.Logger, m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		latency := time.Since(start)
		status := c.Response().StatusCode()

		m.ObserveHTTP(c.Method(), c.Route().Path, strconv.Itoa(status), latency)
		l.Info(c.UserContext(), "request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", latency.String(),
			"request_id", requestID(c),
		)
		return nil
	}
}

// errorHandler keeps internal error text out of response bodies.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := msgInternal

	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		code = fe.Code
		msg = fe.Message
	}

	return c.Status(code).JSON(MessageResponse{Message: msg})
}
