package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Tier struct {
	ID   uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name string    `gorm:"size:100;not null;unique" json:"name"`

	// Percentages, e.g. 10.00 means 10% of the order amount.
	BaseCommissionRate decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"base_commission_rate"`
	MLMCommissionRate  decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0.00" json:"mlm_commission_rate"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

func (t *Tier) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
