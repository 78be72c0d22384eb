package jobs

import (
	"log"

	"github.com/otieno254/affiliate_program/database"
	"github.com/otieno254/affiliate_program/models"
	"github.com/shopspring/decimal"
)

// ReconcileWallets recomputes every wallet from the ledger and logs any
// drift. The invariant: balance = sum(approved commissions) - sum(pending +
// completed payouts). Drift means a mutation bypassed the ledger service and
// needs a human to look at it.
func ReconcileWallets() {
	log.Println("Running job: ReconcileWallets...")

	var affiliates []models.Affiliate
	if err := database.DB.Find(&affiliates).Error; err != nil {
		log.Printf("Error loading affiliates for reconciliation: %v", err)
		return
	}

	drifted := 0
	for _, affiliate := range affiliates {
		var earnedStr, reservedStr string

		err := database.DB.Model(&models.Commission{}).
			Where("affiliate_id = ? AND status = ?", affiliate.ID, models.CommissionStatusApproved).
			Select("COALESCE(SUM(amount), 0)").Row().Scan(&earnedStr)
		if err != nil {
			log.Printf("Error summing commissions for affiliate %s: %v", affiliate.ID, err)
			continue
		}

		err = database.DB.Model(&models.Payout{}).
			Where("affiliate_id = ? AND status IN ?", affiliate.ID,
				[]models.PayoutStatus{models.PayoutStatusPending, models.PayoutStatusCompleted}).
			Select("COALESCE(SUM(amount), 0)").Row().Scan(&reservedStr)
		if err != nil {
			log.Printf("Error summing payouts for affiliate %s: %v", affiliate.ID, err)
			continue
		}

		earned, _ := decimal.NewFromString(earnedStr)
		reserved, _ := decimal.NewFromString(reservedStr)
		expected := earned.Sub(reserved)

		if !expected.Equal(affiliate.WalletBalance) {
			drifted++
			log.Printf("🔥 Wallet drift for affiliate %s (%s): stored %s, ledger says %s",
				affiliate.ID, affiliate.AffiliateCode,
				affiliate.WalletBalance.StringFixed(2), expected.StringFixed(2))
		}
	}

	if drifted == 0 {
		log.Printf("Wallet reconciliation clean: %d affiliate(s) checked.", len(affiliates))
	} else {
		log.Printf("Wallet reconciliation found %d drifted wallet(s) out of %d.", drifted, len(affiliates))
	}
}
