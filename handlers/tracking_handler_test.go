package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/otieno254/affiliate_program/database"
	"github.com/otieno254/affiliate_program/models"
	"github.com/otieno254/affiliate_program/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Tier{},
		&models.Affiliate{},
		&models.Commission{},
		&models.Payout{},
		&models.Creative{},
		&models.Visit{},
	)
	if err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	database.DB = db
	return db
}

func newActiveAffiliate(t *testing.T, db *gorm.DB) (models.User, *models.Affiliate) {
	t.Helper()

	user := models.User{
		FullName: "Handler Test",
		Email:    fmt.Sprintf("%s@example.com", uuid.New().String()),
		Password: "hashed",
		Role:     "affiliate",
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	affiliate, err := services.RegisterAffiliate(db, user.ID, "paypal", nil, nil)
	if err != nil {
		t.Fatalf("register affiliate: %v", err)
	}
	affiliate, err = services.SetAffiliateStatus(db, affiliate.ID, models.AffiliateStatusActive, nil)
	if err != nil {
		t.Fatalf("activate affiliate: %v", err)
	}
	return user, affiliate
}

// asUser injects an authenticated JWT into the request context the way the
// auth middleware would.
func asUser(userID uuid.UUID, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id": userID.String(),
			"role":    role,
		})
		c.Locals("user", token)
		return c.Next()
	}
}

func TestHandleConversionWebhookIdempotent(t *testing.T) {
	db := setupHandlerDB(t)
	_, affiliate := newActiveAffiliate(t, db)
	t.Setenv("WEBHOOK_TOKEN", "hook-secret")

	app := fiber.New()
	app.Post("/api/v1/referrals/conversion", HandleConversionWebhook)

	payload := []byte(fmt.Sprintf(
		`{"affiliate_code":%q,"source_type":"sale","source_id":"order-500","order_amount":"200.00"}`,
		affiliate.AffiliateCode,
	))
	post := func() *http.Response {
		req := httptest.NewRequest("POST", "/api/v1/referrals/conversion", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Webhook-Token", "hook-secret")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("webhook request: %v", err)
		}
		return resp
	}

	if resp := post(); resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("first delivery: expected 201, got %d", resp.StatusCode)
	}
	// A retried delivery is acknowledged, not recorded again.
	if resp := post(); resp.StatusCode != fiber.StatusOK {
		t.Fatalf("retried delivery: expected 200, got %d", resp.StatusCode)
	}

	var commissions []models.Commission
	if err := db.Where("affiliate_id = ?", affiliate.ID).Find(&commissions).Error; err != nil {
		t.Fatalf("load commissions: %v", err)
	}
	if len(commissions) != 1 {
		t.Fatalf("expected 1 commission after retry, got %d", len(commissions))
	}
	// 200.00 x default 10% rate.
	if got := commissions[0].Amount.StringFixed(2); got != "20.00" {
		t.Fatalf("expected commission amount 20.00, got %s", got)
	}
}

func TestHandleConversionWebhookRejectsBadToken(t *testing.T) {
	setupHandlerDB(t)
	t.Setenv("WEBHOOK_TOKEN", "hook-secret")

	app := fiber.New()
	app.Post("/api/v1/referrals/conversion", HandleConversionWebhook)

	req := httptest.NewRequest("POST", "/api/v1/referrals/conversion", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Token", "wrong")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("webhook request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
