package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	config "github.com/otieno254/affiliate_program/configs"
	"github.com/otieno254/affiliate_program/database"
	"github.com/otieno254/affiliate_program/models"
	"github.com/otieno254/affiliate_program/services"
	"github.com/otieno254/affiliate_program/websocket"
	"github.com/shopspring/decimal"
)

type ApplyRequest struct {
	PaymentMethod  string  `json:"payment_method" validate:"required,oneof=paypal mpesa bank_transfer"`
	PaymentDetails *string `json:"payment_details"`
	ReferredByCode *string `json:"referred_by_code"`
}

// ApplyAsAffiliate enrols the logged-in user into the program. The account
// starts pending and only earns the affiliate role when an admin approves it.
func ApplyAsAffiliate(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	userID, _ := uuid.Parse(claims["user_id"].(string))

	var req ApplyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if req.ReferredByCode != nil && *req.ReferredByCode != "" {
		var referrer models.Affiliate
		if err := database.DB.Where("affiliate_code = ?", *req.ReferredByCode).First(&referrer).Error; err != nil {
			req.ReferredByCode = nil
		}
	}

	affiliate, err := services.RegisterAffiliate(database.DB, userID, req.PaymentMethod, req.PaymentDetails, req.ReferredByCode)
	if err != nil {
		return ledgerError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(affiliate)
}

func GetMyAffiliateProfile(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	userID, _ := uuid.Parse(claims["user_id"].(string))

	var affiliate models.Affiliate
	if err := database.DB.Preload("User").Preload("Tier").First(&affiliate, "user_id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Affiliate profile not found"})
	}
	return c.JSON(affiliate)
}

func sumCommissions(affiliateID uuid.UUID, status models.CommissionStatus) (decimal.Decimal, error) {
	var raw string
	err := database.DB.Model(&models.Commission{}).
		Where("affiliate_id = ? AND status = ?", affiliateID, status).
		Select("COALESCE(SUM(amount), 0)").Row().Scan(&raw)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

type DashboardResponse struct {
	WalletBalance      decimal.Decimal `json:"wallet_balance"`
	PendingCommissions decimal.Decimal `json:"pending_commissions"`
	ApprovedTotal      decimal.Decimal `json:"approved_total"`
	VisitsLast30Days   int64           `json:"visits_last_30_days"`
	ReferralURL        string          `json:"referral_url"`
}

func GetMyDashboard(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	userID, _ := uuid.Parse(claims["user_id"].(string))

	var affiliate models.Affiliate
	if err := database.DB.First(&affiliate, "user_id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Affiliate profile not found"})
	}

	var response DashboardResponse
	response.WalletBalance = affiliate.WalletBalance
	response.ReferralURL = config.Config("REFERRAL_BASE_URL") + "/" + affiliate.AffiliateCode

	pendingSum, err := sumCommissions(affiliate.ID, models.CommissionStatusPending)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	approvedSum, err := sumCommissions(affiliate.ID, models.CommissionStatusApproved)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	response.PendingCommissions = pendingSum
	response.ApprovedTotal = approvedSum

	thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
	database.DB.Model(&models.Visit{}).
		Where("affiliate_id = ? AND created_at > ?", affiliate.ID, thirtyDaysAgo).
		Count(&response.VisitsLast30Days)

	return c.JSON(response)
}

func GetMyCommissions(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	userID, _ := uuid.Parse(claims["user_id"].(string))

	var affiliate models.Affiliate
	if err := database.DB.First(&affiliate, "user_id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Affiliate profile not found"})
	}

	query := database.DB.Where("affiliate_id = ?", affiliate.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var commissions []models.Commission
	query.Order("created_at desc").Find(&commissions)
	return c.JSON(commissions)
}

func GetMyPayouts(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	userID, _ := uuid.Parse(claims["user_id"].(string))

	var affiliate models.Affiliate
	if err := database.DB.First(&affiliate, "user_id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Affiliate profile not found"})
	}

	var payouts []models.Payout
	database.DB.Where("affiliate_id = ?", affiliate.ID).Order("requested_at desc").Find(&payouts)
	return c.JSON(payouts)
}

type PayoutRequestBody struct {
	Amount string `json:"amount" validate:"required"`
	Method string `json:"method" validate:"required,oneof=paypal mpesa bank_transfer"`
}

func RequestPayout(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	userID, _ := uuid.Parse(claims["user_id"].(string))

	var req PayoutRequestBody
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid amount", "code": "validation_error"})
	}

	var affiliate models.Affiliate
	if err := database.DB.First(&affiliate, "user_id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Affiliate profile not found"})
	}
	if affiliate.Status != models.AffiliateStatusActive {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Affiliate account is not active"})
	}

	payout, err := services.RequestPayout(database.DB, affiliate.ID, amount, req.Method)
	if err != nil {
		return ledgerError(c, err)
	}

	database.InvalidateDashboardCache(c.Context())
	websocket.Publish("payout.requested", affiliate.ID, payout.ID, payout.Amount.StringFixed(2))

	return c.Status(fiber.StatusCreated).JSON(payout)
}

func GenerateMyStatement(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	userID, _ := uuid.Parse(claims["user_id"].(string))

	var affiliate models.Affiliate
	if err := database.DB.First(&affiliate, "user_id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Affiliate profile not found"})
	}

	now := time.Now()
	year, _ := strconv.Atoi(c.Query("year", strconv.Itoa(now.Year())))
	month, _ := strconv.Atoi(c.Query("month", strconv.Itoa(int(now.Month()))))
	if month < 1 || month > 12 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid month"})
	}

	url, err := services.GenerateMonthlyStatement(database.DB, affiliate.ID, year, time.Month(month))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate statement"})
	}

	return c.JSON(fiber.Map{"statement_url": url})
}

// GetMyCreatives returns the active creatives with placeholders substituted
// for the calling affiliate, ready to paste.
func GetMyCreatives(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	userID, _ := uuid.Parse(claims["user_id"].(string))

	var affiliate models.Affiliate
	if err := database.DB.First(&affiliate, "user_id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Affiliate profile not found"})
	}

	var creatives []models.Creative
	database.DB.Where("is_active = ?", true).Order("created_at desc").Find(&creatives)

	referralBase := config.Config("REFERRAL_BASE_URL")
	type RenderedCreative struct {
		models.Creative
		Rendered string `json:"rendered"`
	}
	rendered := make([]RenderedCreative, 0, len(creatives))
	for _, creative := range creatives {
		rendered = append(rendered, RenderedCreative{
			Creative: creative,
			Rendered: creative.Render(affiliate.AffiliateCode, referralBase),
		})
	}

	return c.JSON(rendered)
}
