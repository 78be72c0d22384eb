package utils

import (
	"regexp"
	"testing"

	"github.com/otieno254/affiliate_program/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

func TestGenerateUniqueAffiliateCode(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:generator_test?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Affiliate{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		code, err := GenerateUniqueAffiliateCode(db)
		if err != nil {
			t.Fatalf("generate code: %v", err)
		}
		if !codePattern.MatchString(code) {
			t.Fatalf("code %q does not match expected format", code)
		}
		if seen[code] {
			t.Fatalf("code %q generated twice", code)
		}
		seen[code] = true
	}
}

func TestGenerateUniqueAffiliateCodeSkipsTakenCodes(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:generator_taken_test?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Affiliate{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	user := models.User{FullName: "Taken", Email: "taken@example.com", Password: "x", Role: "affiliate"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	code, err := GenerateUniqueAffiliateCode(db)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	affiliate := models.Affiliate{
		UserID:        user.ID,
		AffiliateCode: code,
		Status:        models.AffiliateStatusActive,
		PaymentMethod: "paypal",
	}
	if err := db.Create(&affiliate).Error; err != nil {
		t.Fatalf("create affiliate: %v", err)
	}

	next, err := GenerateUniqueAffiliateCode(db)
	if err != nil {
		t.Fatalf("generate second code: %v", err)
	}
	if next == code {
		t.Fatalf("generator returned a code that is already taken: %q", next)
	}
}
