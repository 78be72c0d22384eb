package handlers

import (
	"crypto/subtle"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	config "github.com/otieno254/affiliate_program/configs"
	"github.com/otieno254/affiliate_program/database"
	"github.com/otieno254/affiliate_program/models"
	"github.com/otieno254/affiliate_program/services"
	"github.com/otieno254/affiliate_program/websocket"
	"github.com/shopspring/decimal"
)

// TrackReferralClick records a visit against the affiliate code and sends
// the visitor on to the destination. Unknown codes still redirect so a
// stale link never dead-ends a customer.
func TrackReferralClick(c *fiber.Ctx) error {
	destination := config.ConfigOr("DEFAULT_LANDING_URL", "/")

	var affiliate models.Affiliate
	if err := database.DB.Where("affiliate_code = ?", c.Params("code")).First(&affiliate).Error; err != nil {
		return c.Redirect(destination, fiber.StatusFound)
	}

	visit := models.Visit{
		AffiliateID: affiliate.ID,
		LandingURL:  destination,
		UserAgent:   c.Get("User-Agent"),
	}

	if creativeParam := c.Query("cr"); creativeParam != "" {
		if creativeID, err := uuid.Parse(creativeParam); err == nil {
			var creative models.Creative
			if err := database.DB.First(&creative, "id = ?", creativeID).Error; err == nil {
				visit.CreativeID = &creative.ID
				visit.LandingURL = creative.DestinationURL
				destination = creative.DestinationURL
			}
		}
	}

	if err := database.DB.Create(&visit).Error; err != nil {
		log.Printf("Failed to record referral visit for %s: %v", affiliate.AffiliateCode, err)
	}

	return c.Redirect(destination, fiber.StatusFound)
}

type ConversionRequest struct {
	AffiliateCode string `json:"affiliate_code" validate:"required"`
	SourceType    string `json:"source_type" validate:"required,oneof=sale signup"`
	SourceID      string `json:"source_id" validate:"required"`
	OrderAmount   string `json:"order_amount" validate:"required"`
}

// HandleConversionWebhook is the commission producer: the storefront calls
// it when a referred order completes. It derives the commission from the
// affiliate's tier rate and, when the affiliate was themselves referred,
// records a second-level commission for the upstream affiliate.
func HandleConversionWebhook(c *fiber.Ctx) error {
	expected := config.Config("WEBHOOK_TOKEN")
	provided := c.Get("X-Webhook-Token")
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid webhook token"})
	}

	var req ConversionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	orderAmount, err := decimal.NewFromString(req.OrderAmount)
	if err != nil || !orderAmount.IsPositive() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid order_amount", "code": "validation_error"})
	}

	var affiliate models.Affiliate
	if err := database.DB.Preload("Tier").Where("affiliate_code = ?", req.AffiliateCode).First(&affiliate).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Unknown affiliate code", "code": "not_found"})
	}
	if affiliate.Status != models.AffiliateStatusActive {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Affiliate is not active"})
	}

	baseRate := defaultCommissionRate()
	if affiliate.Tier != nil && affiliate.Tier.IsActive {
		baseRate = affiliate.Tier.BaseCommissionRate
	}
	amount := orderAmount.Mul(baseRate).Div(decimal.NewFromInt(100)).Round(2)

	commission, err := services.RecordCommission(database.DB, affiliate.ID, amount, req.SourceType, req.SourceID)
	if err != nil {
		// Producers retry deliveries. The unique source index already holds
		// the first recording, so acknowledge instead of erroring the retry.
		if errors.Is(err, services.ErrDuplicateCommission) {
			return c.JSON(fiber.Map{"status": "already_recorded"})
		}
		return ledgerError(c, err)
	}
	websocket.Publish("commission.recorded", affiliate.ID, commission.ID, commission.Amount.StringFixed(2))

	// One level up: the upstream referrer earns the MLM rate of the
	// converting affiliate's tier.
	if affiliate.ReferredByCode != nil && affiliate.Tier != nil && affiliate.Tier.MLMCommissionRate.IsPositive() {
		var upstream models.Affiliate
		err := database.DB.Where("affiliate_code = ? AND status = ?", *affiliate.ReferredByCode, models.AffiliateStatusActive).
			First(&upstream).Error
		if err == nil {
			mlmAmount := orderAmount.Mul(affiliate.Tier.MLMCommissionRate).Div(decimal.NewFromInt(100)).Round(2)
			if mlmCommission, err := services.RecordCommission(database.DB, upstream.ID, mlmAmount, "mlm", req.SourceID); err == nil {
				websocket.Publish("commission.recorded", upstream.ID, mlmCommission.ID, mlmCommission.Amount.StringFixed(2))
			} else if !errors.Is(err, services.ErrDuplicateCommission) {
				log.Printf("Failed to record MLM commission for %s: %v", upstream.AffiliateCode, err)
			}
		}
	}

	return c.Status(fiber.StatusCreated).JSON(commission)
}

func defaultCommissionRate() decimal.Decimal {
	rate, err := decimal.NewFromString(config.ConfigOr("DEFAULT_COMMISSION_RATE", "10"))
	if err != nil {
		return decimal.NewFromInt(10)
	}
	return rate
}
