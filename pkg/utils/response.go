package utils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/studyshare/backend/pkg/apperr"
	"github.com/studyshare/backend/pkg/logger"
)

// Success writes the uniform response envelope. The success flag is
// derived from the status code, matching the error envelope.
func Success(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"statusCode": status,
		"message":    message,
		"data":       data,
		"success":    status < 400,
	})
}

func Error(c *fiber.Ctx, status int, message string, details ...string) error {
	if len(details) == 0 {
		details = []string{message}
	}
	return c.Status(status).JSON(fiber.Map{
		"statusCode": status,
		"message":    message,
		"error":      details,
		"success":    false,
	})
}

// ErrorHandler is the single boundary translator: every error a handler
// or middleware returns ends up here and nowhere else.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		if appErr.Kind == apperr.KindInternal {
			logger.Error("internal_error", err, map[string]interface{}{
				"method": c.Method(),
				"path":   c.Path(),
			})
		}
		return Error(c, appErr.Status(), appErr.Message, appErr.Details...)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return Error(c, fiberErr.Code, fiberErr.Message)
	}

	logger.Error("unhandled_error", err, map[string]interface{}{
		"method": c.Method(),
		"path":   c.Path(),
	})
	return Error(c, fiber.StatusInternalServerError, "internal server error")
}
