package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CommissionStatus string

const (
	CommissionStatusPending  CommissionStatus = "pending"
	CommissionStatusApproved CommissionStatus = "approved"
	CommissionStatusRejected CommissionStatus = "rejected"
)

type Commission struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	AffiliateID uuid.UUID       `gorm:"not null;index;uniqueIndex:idx_commissions_source" json:"affiliate_id"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`

	// What earned it, e.g. source_type "sale" with the order id. The composite
	// unique index makes webhook retries idempotent.
	SourceType string `gorm:"size:50;not null;uniqueIndex:idx_commissions_source" json:"source_type"`
	SourceID   string `gorm:"size:255;not null;uniqueIndex:idx_commissions_source" json:"source_id"`

	Status    CommissionStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	DecidedAt *time.Time       `json:"decided_at"`

	Affiliate Affiliate `gorm:"foreignkey:AffiliateID" json:"-"`

	CreatedAt time.Time `json:"date_earned"`
	UpdatedAt time.Time `json:"-"`
}

func (c *Commission) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
