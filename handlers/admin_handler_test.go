package handlers

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/otieno254/affiliate_program/models"
	"github.com/otieno254/affiliate_program/services"
	"github.com/shopspring/decimal"
)

// Two admins racing to complete the same payout: only the first request wins
// the status transition, the loser gets a conflict and nothing is paid twice.
func TestProcessPayoutCompletesOnlyOnce(t *testing.T) {
	db := setupHandlerDB(t)
	user, affiliate := newActiveAffiliate(t, db)

	commission, err := services.RecordCommission(db, affiliate.ID, decimal.RequireFromString("50.00"), "sale", "order-3")
	if err != nil {
		t.Fatalf("record commission: %v", err)
	}
	if _, err := services.UpdateCommissionStatus(db, commission.ID, models.CommissionStatusApproved); err != nil {
		t.Fatalf("approve commission: %v", err)
	}
	payout, err := services.RequestPayout(db, affiliate.ID, decimal.RequireFromString("30.00"), "paypal")
	if err != nil {
		t.Fatalf("request payout: %v", err)
	}

	app := fiber.New()
	app.Post("/payouts/:payoutId/process", asUser(user.ID, "admin"), ProcessPayout)

	complete := func() int {
		req := httptest.NewRequest("POST", "/payouts/"+payout.ID.String()+"/process",
			bytes.NewReader([]byte(`{"decision":"complete"}`)))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("process request: %v", err)
		}
		return resp.StatusCode
	}

	if code := complete(); code != fiber.StatusOK {
		t.Fatalf("first completion: expected 200, got %d", code)
	}
	if code := complete(); code != fiber.StatusConflict {
		t.Fatalf("second completion: expected 409, got %d", code)
	}

	var stored models.Payout
	if err := db.First(&stored, "id = ?", payout.ID).Error; err != nil {
		t.Fatalf("load payout: %v", err)
	}
	if stored.Status != models.PayoutStatusCompleted {
		t.Fatalf("expected completed, got %s", stored.Status)
	}
}
