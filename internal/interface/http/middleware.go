package http

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/carboniq/carboniq-rewards/pkg/logger"
)

// loggingMiddleware logs every request with its status and latency.
func (s *Server) loggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		reqLog := s.logger.With(logger.String("request_id", requestID(c)))
		c.SetUserContext(logger.WithContext(c.UserContext(), reqLog))

		err := c.Next()
		if err != nil {
			// Run the error handler now so the logged status is the final one.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		fields := []logger.Field{
			logger.String("method", c.Method()),
			logger.String("path", c.Path()),
			logger.Int("status", status),
			logger.Latency(time.Since(start)),
			logger.String("ip", c.IP()),
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			reqLog.Error("http request", fields...)
		case status >= fiber.StatusBadRequest:
			reqLog.Warn("http request", fields...)
		default:
			reqLog.Debug("http request", fields...)
		}
		return nil
	}
}

// adminAuth accepts "Authorization: Bearer <token>" or "X-Admin-Token".
func (s *Server) adminAuth() fiber.Handler {
	want := []byte(s.config.AdminToken)
	return func(c *fiber.Ctx) error {
		token := c.Get("X-Admin-Token")
		if token == "" {
			if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if token == "" {
			return writeJSONError(c, fiber.StatusUnauthorized, "missing_token", "admin token is required")
		}
		if subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			return writeJSONError(c, fiber.StatusForbidden, "invalid_token", "invalid admin token")
		}
		return c.Next()
	}
}
