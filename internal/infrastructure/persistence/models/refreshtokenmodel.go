package models

import "time"

// RefreshTokenModel is the persistence model for rotating refresh tokens.
type RefreshTokenModel struct {
	ID           uint   `gorm:"primarykey"`
	UserID       string `gorm:"size:36;not null;index"`
	TokenHash    string `gorm:"size:64;uniqueIndex;not null"`
	IssuedAt     time.Time
	ExpiresAt    time.Time `gorm:"not null;index"`
	RevokedAt    *time.Time
	ReplacedByID *uint
	Fingerprint  string `gorm:"size:128"`
	CreatedAt    time.Time
}

func (RefreshTokenModel) TableName() string {
	return "refresh_tokens"
}
