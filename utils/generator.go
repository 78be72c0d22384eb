package utils

import (
	"math/rand"
	"time"

	"github.com/otieno254/affiliate_program/models"
	"gorm.io/gorm"
)

const affiliateCodeLength = 8
const letterBytes = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateUniqueAffiliateCode keeps drawing random codes until one is free.
// Uniqueness is re-checked against the affiliates table, not assumed.
func GenerateUniqueAffiliateCode(tx *gorm.DB) (string, error) {
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))

	for {
		b := make([]byte, affiliateCodeLength)
		for i := range b {
			b[i] = letterBytes[seededRand.Intn(len(letterBytes))]
		}
		code := string(b)

		var affiliate models.Affiliate
		err := tx.Where("affiliate_code = ?", code).First(&affiliate).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return code, nil
			}
			return "", err
		}
	}
}
