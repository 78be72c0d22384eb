package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/otieno254/affiliate_program/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func createUser(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	user := models.User{
		FullName: "Test Affiliate",
		Email:    fmt.Sprintf("%s@example.com", uuid.New().String()),
		Password: "hashed",
		Role:     "affiliate",
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func createActiveAffiliate(t *testing.T, db *gorm.DB) *models.Affiliate {
	t.Helper()
	user := createUser(t, db)
	affiliate, err := RegisterAffiliate(db, user.ID, "paypal", nil, nil)
	if err != nil {
		t.Fatalf("register affiliate: %v", err)
	}
	affiliate, err = SetAffiliateStatus(db, affiliate.ID, models.AffiliateStatusActive, nil)
	if err != nil {
		t.Fatalf("activate affiliate: %v", err)
	}
	return affiliate
}

func reloadBalance(t *testing.T, db *gorm.DB, affiliateID uuid.UUID) decimal.Decimal {
	t.Helper()
	var affiliate models.Affiliate
	if err := db.First(&affiliate, "id = ?", affiliateID).Error; err != nil {
		t.Fatalf("reload affiliate: %v", err)
	}
	return affiliate.WalletBalance
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func TestRegisterAffiliate(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db)

	affiliate, err := RegisterAffiliate(db, user.ID, "paypal", nil, nil)
	if err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if affiliate.Status != models.AffiliateStatusPending {
		t.Fatalf("expected pending status, got %s", affiliate.Status)
	}
	if len(affiliate.AffiliateCode) != 8 {
		t.Fatalf("expected 8 character code, got %q", affiliate.AffiliateCode)
	}
	if !affiliate.WalletBalance.IsZero() {
		t.Fatalf("expected zero opening balance, got %s", affiliate.WalletBalance)
	}

	_, err = RegisterAffiliate(db, user.ID, "mpesa", nil, nil)
	if !errors.Is(err, ErrDuplicateRegistration) {
		t.Fatalf("expected ErrDuplicateRegistration, got %v", err)
	}
}

func TestCommissionApprovalCreditsWalletExactlyOnce(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createActiveAffiliate(t, db)

	commission, err := RecordCommission(db, affiliate.ID, mustDecimal(t, "50.00"), "sale", "order-1")
	if err != nil {
		t.Fatalf("record commission: %v", err)
	}
	if commission.Status != models.CommissionStatusPending {
		t.Fatalf("expected pending commission, got %s", commission.Status)
	}
	if balance := reloadBalance(t, db, affiliate.ID); !balance.IsZero() {
		t.Fatalf("pending commission must not credit the wallet, balance %s", balance)
	}

	approved, err := UpdateCommissionStatus(db, commission.ID, models.CommissionStatusApproved)
	if err != nil {
		t.Fatalf("approve commission: %v", err)
	}
	if approved.Status != models.CommissionStatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	if balance := reloadBalance(t, db, affiliate.ID); !balance.Equal(mustDecimal(t, "50.00")) {
		t.Fatalf("expected balance 50.00, got %s", balance)
	}

	// Second approval must not double-credit.
	_, err = UpdateCommissionStatus(db, commission.ID, models.CommissionStatusApproved)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on re-approval, got %v", err)
	}
	if balance := reloadBalance(t, db, affiliate.ID); !balance.Equal(mustDecimal(t, "50.00")) {
		t.Fatalf("re-approval changed the balance to %s", balance)
	}
}

func TestCommissionRejectionNeverCredits(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createActiveAffiliate(t, db)

	commission, err := RecordCommission(db, affiliate.ID, mustDecimal(t, "25.00"), "signup", "user-9")
	if err != nil {
		t.Fatalf("record commission: %v", err)
	}

	rejected, err := UpdateCommissionStatus(db, commission.ID, models.CommissionStatusRejected)
	if err != nil {
		t.Fatalf("reject commission: %v", err)
	}
	if rejected.Status != models.CommissionStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if balance := reloadBalance(t, db, affiliate.ID); !balance.IsZero() {
		t.Fatalf("rejection credited the wallet: %s", balance)
	}

	// Rejected is terminal.
	_, err = UpdateCommissionStatus(db, commission.ID, models.CommissionStatusApproved)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateCommissionStatusRejectsBadTargets(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createActiveAffiliate(t, db)

	commission, err := RecordCommission(db, affiliate.ID, mustDecimal(t, "10.00"), "sale", "order-2")
	if err != nil {
		t.Fatalf("record commission: %v", err)
	}

	if _, err := UpdateCommissionStatus(db, commission.ID, models.CommissionStatusPending); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for pending target, got %v", err)
	}
	if _, err := UpdateCommissionStatus(db, uuid.New(), models.CommissionStatusApproved); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown commission, got %v", err)
	}
}

func TestRecordCommissionValidation(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createActiveAffiliate(t, db)

	if _, err := RecordCommission(db, affiliate.ID, decimal.Zero, "sale", "order-3"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero amount, got %v", err)
	}
	if _, err := RecordCommission(db, uuid.New(), mustDecimal(t, "5.00"), "sale", "order-4"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown affiliate, got %v", err)
	}
}

func TestRecordCommissionDuplicateSource(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createActiveAffiliate(t, db)

	if _, err := RecordCommission(db, affiliate.ID, mustDecimal(t, "20.00"), "sale", "order-11"); err != nil {
		t.Fatalf("record commission: %v", err)
	}

	// A retried delivery of the same event must not earn twice.
	if _, err := RecordCommission(db, affiliate.ID, mustDecimal(t, "20.00"), "sale", "order-11"); !errors.Is(err, ErrDuplicateCommission) {
		t.Fatalf("expected ErrDuplicateCommission, got %v", err)
	}

	var count int64
	if err := db.Model(&models.Commission{}).Where("affiliate_id = ?", affiliate.ID).Count(&count).Error; err != nil {
		t.Fatalf("count commissions: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 commission, got %d", count)
	}

	// Same order id is fine for a different source type or affiliate.
	if _, err := RecordCommission(db, affiliate.ID, mustDecimal(t, "5.00"), "mlm", "order-11"); err != nil {
		t.Fatalf("record commission with different source type: %v", err)
	}
	other := createActiveAffiliate(t, db)
	if _, err := RecordCommission(db, other.ID, mustDecimal(t, "20.00"), "sale", "order-11"); err != nil {
		t.Fatalf("record commission for different affiliate: %v", err)
	}
}

func TestPayoutLifecycle(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createActiveAffiliate(t, db)

	commission, err := RecordCommission(db, affiliate.ID, mustDecimal(t, "50.00"), "sale", "order-5")
	if err != nil {
		t.Fatalf("record commission: %v", err)
	}
	if _, err := UpdateCommissionStatus(db, commission.ID, models.CommissionStatusApproved); err != nil {
		t.Fatalf("approve commission: %v", err)
	}

	payout, err := RequestPayout(db, affiliate.ID, mustDecimal(t, "30.00"), "paypal")
	if err != nil {
		t.Fatalf("request payout: %v", err)
	}
	if payout.Status != models.PayoutStatusPending {
		t.Fatalf("expected pending payout, got %s", payout.Status)
	}
	if balance := reloadBalance(t, db, affiliate.ID); !balance.Equal(mustDecimal(t, "20.00")) {
		t.Fatalf("funds not reserved at request time, balance %s", balance)
	}

	txnID := "batch-123"
	completed, err := CompletePayout(db, payout.ID, &txnID)
	if err != nil {
		t.Fatalf("complete payout: %v", err)
	}
	if completed.Status != models.PayoutStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
	if completed.CompletedAt == nil {
		t.Fatalf("completed payout has no completion time")
	}
	if balance := reloadBalance(t, db, affiliate.ID); !balance.Equal(mustDecimal(t, "20.00")) {
		t.Fatalf("completion must not touch the wallet, balance %s", balance)
	}

	// Completion is terminal.
	if _, err := CompletePayout(db, payout.ID, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on double completion, got %v", err)
	}
	if _, err := CancelPayout(db, payout.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition cancelling a completed payout, got %v", err)
	}
	if balance := reloadBalance(t, db, affiliate.ID); !balance.Equal(mustDecimal(t, "20.00")) {
		t.Fatalf("terminal payout mutated the wallet, balance %s", balance)
	}
}

func TestRequestPayoutInsufficientFunds(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createActiveAffiliate(t, db)

	commission, err := RecordCommission(db, affiliate.ID, mustDecimal(t, "20.00"), "sale", "order-6")
	if err != nil {
		t.Fatalf("record commission: %v", err)
	}
	if _, err := UpdateCommissionStatus(db, commission.ID, models.CommissionStatusApproved); err != nil {
		t.Fatalf("approve commission: %v", err)
	}

	_, err = RequestPayout(db, affiliate.ID, mustDecimal(t, "30.00"), "paypal")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if balance := reloadBalance(t, db, affiliate.ID); !balance.Equal(mustDecimal(t, "20.00")) {
		t.Fatalf("failed payout request changed the balance to %s", balance)
	}

	if _, err := RequestPayout(db, uuid.New(), mustDecimal(t, "5.00"), "paypal"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown affiliate, got %v", err)
	}
}

func TestReopenPayoutAfterFailedDisbursement(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createActiveAffiliate(t, db)

	commission, err := RecordCommission(db, affiliate.ID, mustDecimal(t, "50.00"), "sale", "order-8")
	if err != nil {
		t.Fatalf("record commission: %v", err)
	}
	if _, err := UpdateCommissionStatus(db, commission.ID, models.CommissionStatusApproved); err != nil {
		t.Fatalf("approve commission: %v", err)
	}

	payout, err := RequestPayout(db, affiliate.ID, mustDecimal(t, "30.00"), "paypal")
	if err != nil {
		t.Fatalf("request payout: %v", err)
	}

	// Reopen before completion is a bad transition.
	if _, err := ReopenPayout(db, payout.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition reopening a pending payout, got %v", err)
	}

	if _, err := CompletePayout(db, payout.ID, nil); err != nil {
		t.Fatalf("complete payout: %v", err)
	}

	reopened, err := ReopenPayout(db, payout.ID)
	if err != nil {
		t.Fatalf("reopen payout: %v", err)
	}
	if reopened.Status != models.PayoutStatusPending {
		t.Fatalf("expected pending after reopen, got %s", reopened.Status)
	}
	if reopened.CompletedAt != nil || reopened.TransactionID != nil {
		t.Fatalf("reopen must clear completion fields")
	}

	// Funds stay reserved the whole time.
	if balance := reloadBalance(t, db, affiliate.ID); !balance.Equal(mustDecimal(t, "20.00")) {
		t.Fatalf("reopen touched the wallet, balance %s", balance)
	}

	// The reopened payout can be completed again, but only once.
	if _, err := CompletePayout(db, payout.ID, nil); err != nil {
		t.Fatalf("complete reopened payout: %v", err)
	}
	if _, err := CompletePayout(db, payout.ID, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on second completion, got %v", err)
	}
	if _, err := ReopenPayout(db, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown payout, got %v", err)
	}
}

func TestCancelPayoutRestoresBalance(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createActiveAffiliate(t, db)

	commission, err := RecordCommission(db, affiliate.ID, mustDecimal(t, "40.00"), "sale", "order-7")
	if err != nil {
		t.Fatalf("record commission: %v", err)
	}
	if _, err := UpdateCommissionStatus(db, commission.ID, models.CommissionStatusApproved); err != nil {
		t.Fatalf("approve commission: %v", err)
	}

	payout, err := RequestPayout(db, affiliate.ID, mustDecimal(t, "15.00"), "mpesa")
	if err != nil {
		t.Fatalf("request payout: %v", err)
	}
	if balance := reloadBalance(t, db, affiliate.ID); !balance.Equal(mustDecimal(t, "25.00")) {
		t.Fatalf("expected balance 25.00 after reservation, got %s", balance)
	}

	cancelled, err := CancelPayout(db, payout.ID)
	if err != nil {
		t.Fatalf("cancel payout: %v", err)
	}
	if cancelled.Status != models.PayoutStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if balance := reloadBalance(t, db, affiliate.ID); !balance.Equal(mustDecimal(t, "40.00")) {
		t.Fatalf("cancellation did not restore the balance, got %s", balance)
	}

	// A second cancellation must not refund again.
	if _, err := CancelPayout(db, payout.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on double cancel, got %v", err)
	}
	if balance := reloadBalance(t, db, affiliate.ID); !balance.Equal(mustDecimal(t, "40.00")) {
		t.Fatalf("double cancel changed the balance to %s", balance)
	}
}

func TestWalletEqualsLedgerAcrossSequence(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createActiveAffiliate(t, db)

	amounts := []string{"10.00", "20.50", "5.25"}
	var commissions []*models.Commission
	for i, amount := range amounts {
		commission, err := RecordCommission(db, affiliate.ID, mustDecimal(t, amount), "sale", fmt.Sprintf("order-%d", i))
		if err != nil {
			t.Fatalf("record commission %d: %v", i, err)
		}
		commissions = append(commissions, commission)
	}

	if _, err := UpdateCommissionStatus(db, commissions[0].ID, models.CommissionStatusApproved); err != nil {
		t.Fatalf("approve commission 0: %v", err)
	}
	if _, err := UpdateCommissionStatus(db, commissions[1].ID, models.CommissionStatusApproved); err != nil {
		t.Fatalf("approve commission 1: %v", err)
	}
	if _, err := UpdateCommissionStatus(db, commissions[2].ID, models.CommissionStatusRejected); err != nil {
		t.Fatalf("reject commission 2: %v", err)
	}

	payout, err := RequestPayout(db, affiliate.ID, mustDecimal(t, "12.00"), "paypal")
	if err != nil {
		t.Fatalf("request payout: %v", err)
	}
	if _, err := CompletePayout(db, payout.ID, nil); err != nil {
		t.Fatalf("complete payout: %v", err)
	}

	// approved 10.00 + 20.50, reserved/paid 12.00
	if balance := reloadBalance(t, db, affiliate.ID); !balance.Equal(mustDecimal(t, "18.50")) {
		t.Fatalf("expected balance 18.50, got %s", balance)
	}
}

func TestDeleteTierGuard(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createActiveAffiliate(t, db)

	tier := models.Tier{
		Name:               "Silver",
		BaseCommissionRate: mustDecimal(t, "10.00"),
		MLMCommissionRate:  mustDecimal(t, "2.00"),
		IsActive:           true,
	}
	if err := db.Create(&tier).Error; err != nil {
		t.Fatalf("create tier: %v", err)
	}

	if _, err := SetAffiliateStatus(db, affiliate.ID, models.AffiliateStatusActive, &tier.ID); err != nil {
		t.Fatalf("assign tier: %v", err)
	}

	if err := DeleteTier(db, tier.ID); !errors.Is(err, ErrTierInUse) {
		t.Fatalf("expected ErrTierInUse, got %v", err)
	}

	unused := models.Tier{
		Name:               "Gold",
		BaseCommissionRate: mustDecimal(t, "15.00"),
		IsActive:           true,
	}
	if err := db.Create(&unused).Error; err != nil {
		t.Fatalf("create unused tier: %v", err)
	}
	if err := DeleteTier(db, unused.ID); err != nil {
		t.Fatalf("delete unused tier: %v", err)
	}
	if err := DeleteTier(db, unused.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestSetAffiliateStatusValidation(t *testing.T) {
	db := setupTestDB(t)
	affiliate := createActiveAffiliate(t, db)

	if _, err := SetAffiliateStatus(db, affiliate.ID, models.AffiliateStatus("suspended"), nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for unknown status, got %v", err)
	}
	if _, err := SetAffiliateStatus(db, uuid.New(), models.AffiliateStatusActive, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown affiliate, got %v", err)
	}

	missingTier := uuid.New()
	if _, err := SetAffiliateStatus(db, affiliate.ID, models.AffiliateStatusActive, &missingTier); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown tier, got %v", err)
	}
}
