package models

import "time"

// Channel is a connected WhatsApp session that outbound messages go through.
// The transport session itself lives outside the database; this row carries
// the identity and connection status used to resolve it.
type Channel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	CompanyID uint   `gorm:"index"`
	Name      string `gorm:"size:128"`
	Status    string `gorm:"size:16;default:disconnected"`
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
