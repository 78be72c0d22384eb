package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/otieno254/affiliate_program/services"
)

// ledgerError translates the ledger's sentinel errors into HTTP responses
// with a stable machine-readable code next to the human message.
func ledgerError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error(), "code": "not_found"})
	case errors.Is(err, services.ErrDuplicateRegistration):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error(), "code": "duplicate_registration"})
	case errors.Is(err, services.ErrDuplicateCommission):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error(), "code": "duplicate_commission"})
	case errors.Is(err, services.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error(), "code": "invalid_transition"})
	case errors.Is(err, services.ErrInsufficientFunds):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error(), "code": "insufficient_funds"})
	case errors.Is(err, services.ErrTierInUse):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error(), "code": "tier_in_use"})
	case errors.Is(err, services.ErrInvalidAmount):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error(), "code": "validation_error"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error", "code": "internal"})
}
