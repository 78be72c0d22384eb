package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/otieno254/affiliate_program/database"
	"github.com/otieno254/affiliate_program/models"
	"github.com/otieno254/affiliate_program/services"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TierRequest struct {
	Name               string `json:"name" validate:"required,min=2"`
	BaseCommissionRate string `json:"base_commission_rate" validate:"required"`
	MLMCommissionRate  string `json:"mlm_commission_rate"`
	IsActive           *bool  `json:"is_active"`
}

func parseRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, errors.New("rate must be between 0 and 100")
	}
	return rate, nil
}

func CreateTier(c *fiber.Ctx) error {
	var req TierRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	baseRate, err := parseRate(req.BaseCommissionRate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid base_commission_rate", "code": "validation_error"})
	}
	mlmRate := decimal.Zero
	if req.MLMCommissionRate != "" {
		if mlmRate, err = parseRate(req.MLMCommissionRate); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mlm_commission_rate", "code": "validation_error"})
		}
	}

	tier := models.Tier{
		Name:               req.Name,
		BaseCommissionRate: baseRate,
		MLMCommissionRate:  mlmRate,
		IsActive:           true,
	}
	if req.IsActive != nil {
		tier.IsActive = *req.IsActive
	}

	if err := database.DB.Create(&tier).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "A tier with that name already exists"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create tier"})
	}

	return c.Status(fiber.StatusCreated).JSON(tier)
}

func ListTiers(c *fiber.Ctx) error {
	var tiers []models.Tier
	database.DB.Order("created_at asc").Find(&tiers)
	return c.JSON(tiers)
}

func UpdateTier(c *fiber.Ctx) error {
	tierID := c.Params("tierId")

	var tier models.Tier
	if err := database.DB.First(&tier, "id = ?", tierID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Tier not found", "code": "not_found"})
	}

	var req TierRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	baseRate, err := parseRate(req.BaseCommissionRate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid base_commission_rate", "code": "validation_error"})
	}

	tier.Name = req.Name
	tier.BaseCommissionRate = baseRate
	if req.MLMCommissionRate != "" {
		mlmRate, err := parseRate(req.MLMCommissionRate)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mlm_commission_rate", "code": "validation_error"})
		}
		tier.MLMCommissionRate = mlmRate
	}
	if req.IsActive != nil {
		tier.IsActive = *req.IsActive
	}

	if err := database.DB.Save(&tier).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update tier"})
	}

	return c.JSON(tier)
}

func DeleteTier(c *fiber.Ctx) error {
	tierID, err := uuid.Parse(c.Params("tierId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tier id"})
	}

	if err := services.DeleteTier(database.DB, tierID); err != nil {
		return ledgerError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
