package models

import "time"

// Ticket statuses.
const (
	TicketOpen    = "open"
	TicketPending = "pending"
	TicketClosed  = "closed"
)

// Ticket is a customer-agent conversation thread.
//
// QueueID and UserID of zero mean "unassigned". A pending ticket with both
// unset is orphaned and becomes eligible for automatic requeue once it has
// been idle longer than the staleness threshold.
type Ticket struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	CompanyID   uint   `gorm:"not null;index"`
	Status      string `gorm:"size:16;default:pending;index"`
	QueueID     uint   `gorm:"index"`
	UserID      uint   `gorm:"index"`
	ChannelID   uint
	Chatbot     bool
	LastMessage string `gorm:"type:text"`
	IsGroup     bool
	ContactID   uint
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Contact Contact `gorm:"foreignKey:ContactID"`
}
