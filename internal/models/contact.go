package models

import "time"

// Contact is the remote party on a ticket.
type Contact struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	CompanyID uint   `gorm:"index"`
	Name      string `gorm:"size:128"`
	Number    string `gorm:"size:32;index"`
	IsGroup   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
