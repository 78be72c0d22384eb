package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/otieno254/affiliate_program/models"
	"github.com/otieno254/affiliate_program/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Every wallet mutation in the program goes through this file. The wallet
// invariant is: balance = sum(approved commissions) - sum(pending + completed
// payouts). Funds are reserved when a payout is requested, so completing a
// payout never touches the wallet and cancelling one credits it back.
//
// Status transitions are conditional UPDATEs keyed on the current status.
// If RowsAffected comes back 0 the row was already moved by a concurrent
// call and the caller gets ErrInvalidTransition instead of a double credit
// or double refund.

var (
	ErrNotFound              = errors.New("record not found")
	ErrDuplicateRegistration = errors.New("user already has an affiliate account")
	ErrDuplicateCommission   = errors.New("commission already recorded for this source")
	ErrInvalidTransition     = errors.New("status transition not allowed")
	ErrInsufficientFunds     = errors.New("insufficient wallet balance")
	ErrTierInUse             = errors.New("tier is assigned to at least one affiliate")
	ErrInvalidAmount         = errors.New("amount must be greater than zero")
)

func RegisterAffiliate(db *gorm.DB, userID uuid.UUID, paymentMethod string, paymentDetails, referredByCode *string) (*models.Affiliate, error) {
	var existing models.Affiliate
	if err := db.Where("user_id = ?", userID).First(&existing).Error; err == nil {
		return nil, ErrDuplicateRegistration
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	var affiliate models.Affiliate
	err := db.Transaction(func(tx *gorm.DB) error {
		code, err := utils.GenerateUniqueAffiliateCode(tx)
		if err != nil {
			return err
		}

		affiliate = models.Affiliate{
			UserID:         userID,
			AffiliateCode:  code,
			Status:         models.AffiliateStatusPending,
			WalletBalance:  decimal.Zero,
			PaymentMethod:  paymentMethod,
			PaymentDetails: paymentDetails,
			ReferredByCode: referredByCode,
		}
		if err := tx.Create(&affiliate).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateRegistration
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

// SetAffiliateStatus is the admin transition. Activating may assign a tier.
// It never touches the wallet.
func SetAffiliateStatus(db *gorm.DB, affiliateID uuid.UUID, status models.AffiliateStatus, tierID *uuid.UUID) (*models.Affiliate, error) {
	if !status.Valid() {
		return nil, ErrInvalidTransition
	}

	var affiliate models.Affiliate
	if err := db.First(&affiliate, "id = ?", affiliateID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if tierID != nil {
		var tier models.Tier
		if err := db.First(&tier, "id = ?", *tierID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, ErrNotFound
			}
			return nil, err
		}
		affiliate.TierID = tierID
	}

	affiliate.Status = status
	if err := db.Save(&affiliate).Error; err != nil {
		return nil, err
	}
	return &affiliate, nil
}

// RecordCommission inserts a pending commission. The wallet is only credited
// when the commission is approved. The unique source index makes repeated
// deliveries of the same event a no-op: the second insert fails with
// ErrDuplicateCommission instead of earning twice.
func RecordCommission(db *gorm.DB, affiliateID uuid.UUID, amount decimal.Decimal, sourceType, sourceID string) (*models.Commission, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var affiliate models.Affiliate
	if err := db.First(&affiliate, "id = ?", affiliateID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	commission := models.Commission{
		AffiliateID: affiliateID,
		Amount:      amount,
		SourceType:  sourceType,
		SourceID:    sourceID,
		Status:      models.CommissionStatusPending,
	}
	if err := db.Create(&commission).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateCommission
		}
		return nil, err
	}
	return &commission, nil
}

// UpdateCommissionStatus moves a pending commission to approved or rejected.
// Approval credits the wallet exactly once: the status flip only applies if
// the row is still pending, so a repeated approval fails instead of
// double-crediting.
func UpdateCommissionStatus(db *gorm.DB, commissionID uuid.UUID, newStatus models.CommissionStatus) (*models.Commission, error) {
	if newStatus != models.CommissionStatusApproved && newStatus != models.CommissionStatusRejected {
		return nil, ErrInvalidTransition
	}

	var commission models.Commission
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&commission, "id = ?", commissionID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}

		now := time.Now()
		res := tx.Model(&models.Commission{}).
			Where("id = ? AND status = ?", commissionID, models.CommissionStatusPending).
			Updates(map[string]interface{}{"status": newStatus, "decided_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		if newStatus == models.CommissionStatusApproved {
			if err := tx.Model(&models.Affiliate{}).Where("id = ?", commission.AffiliateID).
				Update("wallet_balance", gorm.Expr("wallet_balance + ?", commission.Amount)).Error; err != nil {
				return err
			}
		}

		commission.Status = newStatus
		commission.DecidedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &commission, nil
}

// RequestPayout reserves funds immediately: the debit and the insufficient
// funds check are one conditional UPDATE, so two concurrent requests can
// never overdraw the wallet from the same stale read.
func RequestPayout(db *gorm.DB, affiliateID uuid.UUID, amount decimal.Decimal, method string) (*models.Payout, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var payout models.Payout
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Affiliate{}).
			Where("id = ? AND wallet_balance >= ?", affiliateID, amount).
			Update("wallet_balance", gorm.Expr("wallet_balance - ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Affiliate{}).Where("id = ?", affiliateID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrInsufficientFunds
		}

		payout = models.Payout{
			AffiliateID: affiliateID,
			Amount:      amount,
			Method:      method,
			Status:      models.PayoutStatusPending,
			RequestedAt: time.Now(),
		}
		return tx.Create(&payout).Error
	})
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// CompletePayout marks a pending payout as paid. The funds were already
// debited at request time, so there is no wallet mutation here.
func CompletePayout(db *gorm.DB, payoutID uuid.UUID, transactionID *string) (*models.Payout, error) {
	var payout models.Payout
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&payout, "id = ?", payoutID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{"status": models.PayoutStatusCompleted, "completed_at": now}
		if transactionID != nil {
			updates["transaction_id"] = *transactionID
		}

		res := tx.Model(&models.Payout{}).
			Where("id = ? AND status = ?", payoutID, models.PayoutStatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		payout.Status = models.PayoutStatusCompleted
		payout.CompletedAt = &now
		payout.TransactionID = transactionID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// ReopenPayout puts a completed payout back in the pending queue. Callers
// that disburse money first win the pending -> completed transition, then
// transfer, and reopen the row if the transfer fails. The funds stay
// reserved, so there is no wallet mutation in either direction.
func ReopenPayout(db *gorm.DB, payoutID uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&payout, "id = ?", payoutID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}

		res := tx.Model(&models.Payout{}).
			Where("id = ? AND status = ?", payoutID, models.PayoutStatusCompleted).
			Updates(map[string]interface{}{
				"status":         models.PayoutStatusPending,
				"completed_at":   nil,
				"transaction_id": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		payout.Status = models.PayoutStatusPending
		payout.CompletedAt = nil
		payout.TransactionID = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// CancelPayout returns the reserved amount to the wallet. The refund only
// happens if this call is the one that flips the row out of pending.
func CancelPayout(db *gorm.DB, payoutID uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&payout, "id = ?", payoutID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}

		res := tx.Model(&models.Payout{}).
			Where("id = ? AND status = ?", payoutID, models.PayoutStatusPending).
			Update("status", models.PayoutStatusCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		if err := tx.Model(&models.Affiliate{}).Where("id = ?", payout.AffiliateID).
			Update("wallet_balance", gorm.Expr("wallet_balance + ?", payout.Amount)).Error; err != nil {
			return err
		}

		payout.Status = models.PayoutStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// DeleteTier refuses to remove a tier that any affiliate still references.
func DeleteTier(db *gorm.DB, tierID uuid.UUID) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Affiliate{}).Where("tier_id = ?", tierID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrTierInUse
		}

		res := tx.Delete(&models.Tier{}, "id = ?", tierID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
