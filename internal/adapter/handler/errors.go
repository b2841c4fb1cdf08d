package handler

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/wattlebank/wattle/internal/core/domain"
)

// fail maps engine errors onto HTTP statuses. Every failure in the taxonomy
// is surfaced distinctly; nothing is swallowed or retried.
func fail(c *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCode):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicate):
		status = http.StatusConflict
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
