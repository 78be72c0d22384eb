package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/otieno254/affiliate_program/database"
	"github.com/otieno254/affiliate_program/models"
	"github.com/otieno254/affiliate_program/notifications"
	"github.com/otieno254/affiliate_program/payments"
	"github.com/otieno254/affiliate_program/services"
	"github.com/otieno254/affiliate_program/websocket"
	"github.com/shopspring/decimal"
)

func ListPendingApplications(c *fiber.Ctx) error {
	var pendingAffiliates []models.Affiliate
	if err := database.DB.Preload("User").Where("status = ?", models.AffiliateStatusPending).Find(&pendingAffiliates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	return c.JSON(pendingAffiliates)
}

func ManageApplication(c *fiber.Ctx) error {
	type MgtRequest struct {
		Status string  `json:"status" validate:"required,oneof=active rejected"`
		TierID *string `json:"tier_id"`
	}

	var req MgtRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	affiliateID, err := uuid.Parse(c.Params("affiliateId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid affiliate id"})
	}

	var tierID *uuid.UUID
	if req.TierID != nil && *req.TierID != "" {
		parsed, err := uuid.Parse(*req.TierID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tier id"})
		}
		tierID = &parsed
	}

	affiliate, err := services.SetAffiliateStatus(database.DB, affiliateID, models.AffiliateStatus(req.Status), tierID)
	if err != nil {
		return ledgerError(c, err)
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", affiliate.UserID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Associated user not found"})
	}

	if req.Status == "active" && user.Role == "user" {
		user.Role = "affiliate"
		if err := database.DB.Save(&user).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update user role"})
		}
	}

	switch req.Status {
	case "active":
		go notifications.SendEmail(
			user.FullName,
			user.Email,
			"Your Affiliate Application has been Approved!",
			fmt.Sprintf("<h1>Congratulations!</h1><p>Your application to the affiliate program has been approved. Your referral code is <b>%s</b>.</p>", affiliate.AffiliateCode),
		)
	case "rejected":
		go notifications.SendEmail(
			user.FullName,
			user.Email,
			"Update on Your Affiliate Application",
			"<h1>Application Update</h1><p>We regret to inform you that after careful review, your affiliate application was not approved at this time.</p>",
		)
	}

	return c.JSON(affiliate)
}

func ListAffiliates(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset := (page - 1) * limit

	query := database.DB.Model(&models.Affiliate{}).Preload("User").Preload("Tier")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if tierID := c.Query("tier_id"); tierID != "" {
		query = query.Where("tier_id = ?", tierID)
	}

	var total int64
	query.Count(&total)

	var affiliates []models.Affiliate
	query.Order("created_at desc").Offset(offset).Limit(limit).Find(&affiliates)

	return c.JSON(fiber.Map{
		"affiliates": affiliates,
		"total":      total,
		"page":       page,
		"limit":      limit,
	})
}

func ListCommissions(c *fiber.Ctx) error {
	query := database.DB.Model(&models.Commission{}).Preload("Affiliate").Preload("Affiliate.User")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if affiliateID := c.Query("affiliate_id"); affiliateID != "" {
		query = query.Where("affiliate_id = ?", affiliateID)
	}

	var commissions []models.Commission
	query.Order("created_at desc").Find(&commissions)
	return c.JSON(commissions)
}

type RecordCommissionRequest struct {
	AffiliateID string `json:"affiliate_id" validate:"required,uuid4"`
	Amount      string `json:"amount" validate:"required"`
	SourceType  string `json:"source_type" validate:"required"`
	SourceID    string `json:"source_id" validate:"required"`
}

// RecordCommission is the manual entry point for commissions that did not
// come through the conversion webhook (adjustments, offline referrals).
func RecordCommission(c *fiber.Ctx) error {
	var req RecordCommissionRequest
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
	affiliateID, _ := uuid.Parse(req.AffiliateID)

	commission, err := services.RecordCommission(database.DB, affiliateID, amount, req.SourceType, req.SourceID)
	if err != nil {
		return ledgerError(c, err)
	}

	websocket.Publish("commission.recorded", commission.AffiliateID, commission.ID, commission.Amount.StringFixed(2))

	return c.Status(fiber.StatusCreated).JSON(commission)
}

func UpdateCommissionStatus(c *fiber.Ctx) error {
	type DecisionRequest struct {
		Status string `json:"status" validate:"required,oneof=approved rejected"`
	}
	var req DecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	commissionID, err := uuid.Parse(c.Params("commissionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid commission id"})
	}

	commission, err := services.UpdateCommissionStatus(database.DB, commissionID, models.CommissionStatus(req.Status))
	if err != nil {
		return ledgerError(c, err)
	}

	database.InvalidateDashboardCache(c.Context())
	websocket.Publish("commission."+req.Status, commission.AffiliateID, commission.ID, commission.Amount.StringFixed(2))

	if commission.Status == models.CommissionStatusApproved {
		var affiliate models.Affiliate
		if err := database.DB.Preload("User").First(&affiliate, "id = ?", commission.AffiliateID).Error; err == nil {
			go notifications.SendEmail(
				affiliate.User.FullName,
				affiliate.User.Email,
				"You've Earned a Commission!",
				fmt.Sprintf("<h1>Congratulations!</h1><p>A commission of %s has been approved and added to your wallet.</p>", commission.Amount.StringFixed(2)),
			)
		}
	}

	return c.JSON(commission)
}

func ListPayouts(c *fiber.Ctx) error {
	query := database.DB.Model(&models.Payout{}).Preload("Affiliate").Preload("Affiliate.User")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if affiliateID := c.Query("affiliate_id"); affiliateID != "" {
		query = query.Where("affiliate_id = ?", affiliateID)
	}

	var payouts []models.Payout
	query.Order("requested_at desc").Find(&payouts)
	return c.JSON(payouts)
}

// ProcessPayout completes or cancels a pending payout. Completing with
// disburse=true pushes the money out through the payout's method and stores
// the provider transaction id on the row.
func ProcessPayout(c *fiber.Ctx) error {
	type ProcessRequest struct {
		Decision   string `json:"decision" validate:"required,oneof=complete cancel"`
		Disburse   bool   `json:"disburse"`
		AdminNotes string `json:"admin_notes"`
	}
	var req ProcessRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	payoutID, err := uuid.Parse(c.Params("payoutId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payout id"})
	}

	var pending models.Payout
	if err := database.DB.Preload("Affiliate").Preload("Affiliate.User").First(&pending, "id = ?", payoutID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Payout not found", "code": "not_found"})
	}

	var payout *models.Payout
	switch req.Decision {
	case "complete":
		// Win the pending -> completed transition before any money moves.
		// A concurrent request loses the transition here and never reaches
		// the provider, so a transfer can only be fired once.
		payout, err = services.CompletePayout(database.DB, payoutID, nil)
		if err != nil {
			return ledgerError(c, err)
		}
		if req.Disburse {
			txnID, disburseErr := disbursePayout(&pending)
			if disburseErr != nil {
				if _, reopenErr := services.ReopenPayout(database.DB, payoutID); reopenErr != nil {
					log.Printf("🔥 Failed to reopen payout %s after disbursement failure: %v", payoutID, reopenErr)
				}
				return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": fmt.Sprintf("Disbursement failed: %v", disburseErr)})
			}
			database.DB.Model(&models.Payout{}).Where("id = ?", payout.ID).Update("transaction_id", txnID)
			payout.TransactionID = &txnID
		}
	case "cancel":
		payout, err = services.CancelPayout(database.DB, payoutID)
		if err != nil {
			return ledgerError(c, err)
		}
	}

	if req.AdminNotes != "" {
		payout.AdminNotes = &req.AdminNotes
		database.DB.Model(&models.Payout{}).Where("id = ?", payout.ID).Update("admin_notes", req.AdminNotes)
	}

	database.InvalidateDashboardCache(c.Context())
	websocket.Publish("payout."+string(payout.Status), payout.AffiliateID, payout.ID, payout.Amount.StringFixed(2))

	user := pending.Affiliate.User
	if payout.Status == models.PayoutStatusCompleted {
		go notifications.SendEmail(
			user.FullName,
			user.Email,
			"Your Payout Has Been Processed",
			fmt.Sprintf("<h1>Payout Processed</h1><p>Hello %s,</p><p>Your payout request for %s has been processed and sent by our team.</p>", user.FullName, payout.Amount.StringFixed(2)),
		)
	} else {
		go notifications.SendEmail(
			user.FullName,
			user.Email,
			"Update on Your Payout Request",
			fmt.Sprintf("<h1>Payout Request Update</h1><p>Hello %s,</p><p>Your payout request for %s was cancelled. The funds have been returned to your wallet.</p><p><b>Admin Notes:</b> %s</p>", user.FullName, payout.Amount.StringFixed(2), req.AdminNotes),
		)
	}

	return c.JSON(payout)
}

func disbursePayout(payout *models.Payout) (string, error) {
	details := ""
	if payout.Affiliate.PaymentDetails != nil {
		details = *payout.Affiliate.PaymentDetails
	}

	switch payout.Method {
	case "paypal":
		return payments.SendPayPalPayout(details, payout.Amount, payout.ID.String())
	case "mpesa":
		return payments.SendMpesaPayout(details, payout.Amount, payout.ID.String())
	}
	return "", fmt.Errorf("method %s has no automated disbursement", payout.Method)
}

type DashboardAnalyticsResponse struct {
	TotalAffiliates     int64  `json:"total_affiliates"`
	ActiveAffiliates    int64  `json:"active_affiliates"`
	PendingApplications int64  `json:"pending_applications"`
	PendingCommissions  string `json:"pending_commissions"`
	WalletLiabilities   string `json:"wallet_liabilities"`
	PendingPayouts      string `json:"pending_payouts"`
	VisitsLast30Days    int64  `json:"visits_last_30_days"`
}

func GetDashboardAnalytics(c *fiber.Ctx) error {
	if database.Redis != nil {
		cached, err := database.Redis.Get(c.Context(), database.DashboardCacheKey).Result()
		if err == nil {
			var response DashboardAnalyticsResponse
			if json.Unmarshal([]byte(cached), &response) == nil {
				return c.JSON(response)
			}
		}
	}

	var response DashboardAnalyticsResponse

	database.DB.Model(&models.Affiliate{}).Count(&response.TotalAffiliates)
	database.DB.Model(&models.Affiliate{}).Where("status = ?", models.AffiliateStatusActive).Count(&response.ActiveAffiliates)
	database.DB.Model(&models.Affiliate{}).Where("status = ?", models.AffiliateStatusPending).Count(&response.PendingApplications)

	var pendingCommissions, walletLiabilities, pendingPayouts string
	if err := database.DB.Model(&models.Commission{}).Where("status = ?", models.CommissionStatusPending).
		Select("COALESCE(SUM(amount), 0)").Row().Scan(&pendingCommissions); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	if err := database.DB.Model(&models.Affiliate{}).
		Select("COALESCE(SUM(wallet_balance), 0)").Row().Scan(&walletLiabilities); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	if err := database.DB.Model(&models.Payout{}).Where("status = ?", models.PayoutStatusPending).
		Select("COALESCE(SUM(amount), 0)").Row().Scan(&pendingPayouts); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	response.PendingCommissions = pendingCommissions
	response.WalletLiabilities = walletLiabilities
	response.PendingPayouts = pendingPayouts

	thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
	database.DB.Model(&models.Visit{}).Where("created_at > ?", thirtyDaysAgo).Count(&response.VisitsLast30Days)

	if database.Redis != nil {
		if encoded, err := json.Marshal(response); err == nil {
			database.Redis.Set(c.Context(), database.DashboardCacheKey, encoded, 60*time.Second)
		}
	}

	return c.JSON(response)
}

// GenerateCommissionReport streams a CSV of commissions in a date range.
func GenerateCommissionReport(c *fiber.Ctx) error {
	startDate, err := time.Parse("2006-01-02", c.Query("start_date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid or missing start_date (YYYY-MM-DD)"})
	}
	endDate, err := time.Parse("2006-01-02", c.Query("end_date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid or missing end_date (YYYY-MM-DD)"})
	}

	var commissions []models.Commission
	if err := database.DB.Preload("Affiliate").Preload("Affiliate.User").
		Where("created_at BETWEEN ? AND ?", startDate, endDate.AddDate(0, 0, 1)).
		Order("created_at asc").Find(&commissions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	var b bytes.Buffer
	w := csv.NewWriter(&b)

	if err := w.Write([]string{"Commission ID", "Date", "Affiliate", "Code", "Source", "Amount", "Status"}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to write CSV header"})
	}

	for _, commission := range commissions {
		row := []string{
			commission.ID.String(),
			commission.CreatedAt.Format("2006-01-02 15:04"),
			commission.Affiliate.User.FullName,
			commission.Affiliate.AffiliateCode,
			fmt.Sprintf("%s:%s", commission.SourceType, commission.SourceID),
			commission.Amount.StringFixed(2),
			string(commission.Status),
		}
		if err := w.Write(row); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to write CSV row"})
		}
	}
	w.Flush()

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"commissions_%s_to_%s.csv\"", startDate.Format("2006-01-02"), endDate.Format("2006-01-02")))

	return c.Send(b.Bytes())
}
