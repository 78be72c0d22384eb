package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Creative struct {
	ID   uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name string    `gorm:"size:255;not null" json:"name"`
	Type string    `gorm:"size:20;not null" json:"type"` // text_link, image_banner, html_snippet

	// Content may contain {{referral_url}} and {{affiliate_code}} placeholders.
	Content        string  `gorm:"type:text;not null" json:"content"`
	ImageURL       *string `gorm:"size:255" json:"image_url"`
	DestinationURL string  `gorm:"size:255;not null" json:"destination_url"`
	IsActive       bool    `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

func (cr *Creative) BeforeCreate(tx *gorm.DB) error {
	if cr.ID == uuid.Nil {
		cr.ID = uuid.New()
	}
	return nil
}

// Render substitutes the placeholders with the given affiliate's code.
// referralBase is the public tracking URL prefix, e.g. https://example.com/r.
func (cr *Creative) Render(affiliateCode, referralBase string) string {
	referralURL := strings.TrimRight(referralBase, "/") + "/" + affiliateCode
	out := strings.ReplaceAll(cr.Content, "{{referral_url}}", referralURL)
	out = strings.ReplaceAll(out, "{{affiliate_code}}", affiliateCode)
	return out
}
