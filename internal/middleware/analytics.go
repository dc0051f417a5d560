package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestObserver receives one observation per handled request
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// AnalyticsMiddleware times every request, logs it and reports it to the
// observers under its matched route pattern
func AnalyticsMiddleware(logger *slog.Logger, observers ...RequestObserver) fiber.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()
		if err != nil {
			// render through the app error handler so the status is final
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		elapsed := time.Since(start)
		status := c.Response().StatusCode()
		route := c.Route().Path
		if route == "" || (route == "/" && c.Path() != "/") {
			route = "unmatched"
		}

		for _, o := range observers {
			o.ObserveRequest(c.Method(), route, status, elapsed)
		}

		level := slog.LevelInfo
		if status >= fiber.StatusInternalServerError {
			level = slog.LevelError
		} else if status >= fiber.StatusBadRequest {
			level = slog.LevelWarn
		}
		logger.Log(c.UserContext(), level, "request handled",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"elapsed_ms", elapsed.Milliseconds(),
			"ip", c.IP(),
			"user_agent", c.Get(fiber.HeaderUserAgent),
		)

		c.Set("X-Response-Time", elapsed.String())
		return nil
	}
}
