package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Visit struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	AffiliateID uuid.UUID  `gorm:"not null;index" json:"affiliate_id"`
	CreativeID  *uuid.UUID `gorm:"index" json:"creative_id"`
	LandingURL  string     `gorm:"size:255" json:"landing_url"`
	UserAgent   string     `gorm:"size:255" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

func (v *Visit) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
