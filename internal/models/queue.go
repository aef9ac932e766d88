package models

import "time"

// Queue is a tenant-scoped routing bucket for tickets. The default queue for
// a company is the one with the lowest ID (creation order).
type Queue struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	CompanyID uint   `gorm:"not null;index"`
	Name      string `gorm:"size:128"`
	CreatedAt time.Time
}

// ChannelQueue binds a queue to the messaging channel used to reply to
// tickets routed into it.
type ChannelQueue struct {
	ChannelID uint `gorm:"primaryKey"`
	QueueID   uint `gorm:"primaryKey;index"`
}
