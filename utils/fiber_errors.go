package utils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// StatusForError maps workflow errors onto HTTP status codes.
func StatusForError(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case IsInvalidInput(err):
		return fiber.StatusBadRequest
	case IsNotFound(err):
		return fiber.StatusNotFound
	case IsInvalidState(err), IsConflict(err):
		return fiber.StatusConflict
	case errors.Is(err, ErrGenerationExhausted):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorResponse writes the standard failure envelope.
func ErrorResponse(c *fiber.Ctx, err error, message string) error {
	return c.Status(StatusForError(err)).JSON(fiber.Map{
		"success": false,
		"message": message,
		"error":   err.Error(),
	})
}
