package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AffiliateStatus string

const (
	AffiliateStatusPending  AffiliateStatus = "pending"
	AffiliateStatusActive   AffiliateStatus = "active"
	AffiliateStatusRejected AffiliateStatus = "rejected"
)

func (s AffiliateStatus) Valid() bool {
	switch s {
	case AffiliateStatusPending, AffiliateStatusActive, AffiliateStatusRejected:
		return true
	}
	return false
}

type Affiliate struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	UserID        uuid.UUID       `gorm:"not null;uniqueIndex" json:"user_id"`
	AffiliateCode string          `gorm:"size:10;not null;uniqueIndex" json:"affiliate_code"`
	Status        AffiliateStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	TierID        *uuid.UUID      `gorm:"index" json:"tier_id"`

	// Mutated only through the ledger service.
	WalletBalance decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0.00" json:"wallet_balance"`

	PaymentMethod  string  `gorm:"size:50;not null" json:"payment_method"`
	PaymentDetails *string `gorm:"type:text" json:"-"`
	ReferredByCode *string `gorm:"size:10" json:"referred_by_code"`

	User User  `gorm:"foreignkey:UserID" json:"user"`
	Tier *Tier `gorm:"foreignkey:TierID" json:"tier,omitempty"`

	CreatedAt time.Time `json:"date_registered"`
	UpdatedAt time.Time `json:"-"`
}

func (a *Affiliate) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
