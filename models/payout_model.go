package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "pending"
	PayoutStatusCompleted PayoutStatus = "completed"
	PayoutStatusCancelled PayoutStatus = "cancelled"
)

type Payout struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	AffiliateID uuid.UUID       `gorm:"not null;index" json:"affiliate_id"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Method      string          `gorm:"size:50;not null" json:"method"`

	Status        PayoutStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	TransactionID *string      `gorm:"size:255" json:"transaction_id"`
	AdminNotes    *string      `gorm:"type:text" json:"admin_notes"`
	RequestedAt   time.Time    `gorm:"not null" json:"date_requested"`
	CompletedAt   *time.Time   `json:"date_completed"`

	Affiliate Affiliate `gorm:"foreignkey:AffiliateID" json:"-"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (p *Payout) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
