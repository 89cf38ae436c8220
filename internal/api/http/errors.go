package httpapi

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/fogcast-backend/internal/store"
	"github.com/i474232898/fogcast-backend/internal/weather"
)

// ErrorHandler renders every handler error as {"error": message}.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx, err error) error {
		code := statusOf(err)
		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}

func statusOf(err error) int {
	var (
		fe *fiber.Error
		ve *weather.ValidationError
	)
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &ve),
		errors.Is(err, weather.ErrUnsupportedFrequency),
		errors.Is(err, weather.ErrUnknownStation),
		errors.Is(err, weather.ErrNoData):
		return fiber.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}
