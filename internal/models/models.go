package models

import (
	"time"
)

// Lead is a persisted lead-form submission, stored after normalization and
// regardless of the upstream relay outcome.
type Lead struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Nome             string    `gorm:"type:varchar(255);not null" json:"nome"`
	TelefoneWhatsapp string    `gorm:"type:varchar(20);not null" json:"telefone_whatsapp"`
	Payload          string    `gorm:"type:text" json:"payload"` // full normalized JSON body
	Status           string    `gorm:"type:varchar(20)" json:"status"` // forwarded, failed
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Lead) TableName() string {
	return "leads"
}

// ChatLogEntry is the audit copy of one widget message. The session store holds
// the live conversation; this table only feeds reporting.
type ChatLogEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"index;not null" json:"session_id"`
	MessageID string    `gorm:"type:varchar(64)" json:"message_id"`
	Sender    string    `gorm:"type:varchar(10);not null" json:"sender"`
	Content   string    `gorm:"type:text" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ChatLogEntry) TableName() string {
	return "chat_log"
}
