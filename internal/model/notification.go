package model

import "time"

type Notification struct {
	ID        string `gorm:"primaryKey;size:36;not null"`
	UserID    string `gorm:"size:64;index;not null"`
	Type      string `gorm:"size:64;index;not null"`
	Title     string `gorm:"size:255;not null"`
	Body      string `gorm:"size:2000"`
	Data      string `gorm:"type:text"` // json
	ReadAt    *time.Time
	CreatedAt time.Time
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
