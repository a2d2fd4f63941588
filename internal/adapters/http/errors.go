package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/osmdash/internal/core/domain"
	"github.com/samirrijal/osmdash/internal/core/usecases"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errUnavailable returns a 503 error.
func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusServiceUnavailable, "unavailable", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errMutation maps a scheduler mutation error onto a response.
func errMutation(c *fiber.Ctx, err error) error {
	var be *domain.BuildError
	switch {
	case errors.As(err, &be):
		if be.Field == "place" {
			return errNotFound(c, be.Error())
		}
		return errBadRequest(c, be.Error())
	case errors.Is(err, usecases.ErrSchedulerStopped):
		return errUnavailable(c, "query scheduler is not running")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return newError(c, fiber.StatusGatewayTimeout, "timeout", "query scheduler did not respond in time")
	default:
		LoggerFromCtx(c.UserContext()).Error("mutation failed", "error", err)
		return errInternal(c, err.Error())
	}
}
