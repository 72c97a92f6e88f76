package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the envelope of every API response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Limit     int       `json:"limit,omitempty"`
	Skip      int       `json:"skip,omitempty"`
	Cached    bool      `json:"cached,omitempty"`
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}

func writeJSON(c *fiber.Ctx, status int, data any) error {
	return writeJSONWithMeta(c, status, data, nil)
}

func writeJSONWithMeta(c *fiber.Ctx, status int, data any, meta *ResponseMeta) error {
	if meta == nil {
		meta = &ResponseMeta{}
	}
	meta.Timestamp = time.Now().UTC()
	meta.Version = "v1"

	return c.Status(status).JSON(JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      meta,
		RequestID: requestID(c),
	})
}

func writeJSONError(c *fiber.Ctx, status int, code, message string, details ...string) error {
	return c.Status(status).JSON(JSONResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message, Details: details},
		RequestID: requestID(c),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// statusFor maps an error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code, "http_error"
	case shared.IsNotFound(err):
		return fiber.StatusNotFound, "not_found"
	case shared.IsValidation(err):
		return fiber.StatusBadRequest, "invalid_request"
	case shared.IsStoreUnavailable(err), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusServiceUnavailable, "unavailable"
	default:
		return fiber.StatusInternalServerError, "internal_error"
	}
}

// errorHandler is the fiber error handler; handlers return errors and this
// turns them into the envelope.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status, code := statusFor(err)

	message := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) && status < fiber.StatusInternalServerError {
		message = de.Message
	}

	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			logger.String("method", c.Method()),
			logger.String("path", c.Path()),
			logger.String("request_id", requestID(c)),
			logger.Err(err),
		)
		if status == fiber.StatusInternalServerError {
			message = "an unexpected error occurred"
		} else {
			c.Set(fiber.HeaderRetryAfter, "1")
		}
	}
	return writeJSONError(c, status, code, message)
}
