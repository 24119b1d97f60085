package models

import "time"

// UserModel is the persistence model for hotspot users.
type UserModel struct {
	ID                  string `gorm:"primarykey;size:36"`
	Phone               string `gorm:"size:20;uniqueIndex;not null"`
	Role                string `gorm:"size:20;not null;default:USER"`
	Active              bool   `gorm:"not null;default:true"`
	ApprovalStatus      string `gorm:"size:20;not null;default:PENDING"`
	Blocked             bool   `gorm:"not null;default:false"`
	BlockReason         string `gorm:"size:255"`
	Unlimited           bool   `gorm:"not null;default:false"`
	TotalPurchasedMB    float64
	TotalUsedMB         float64
	AutoDebtOffsetMB    float64
	ManualDebtMB        float64
	QuotaExpiresAt      *time.Time `gorm:"index"`
	LastLoginAt         *time.Time
	LastNotifiedPercent *float64
	LastNotifiedDays    *int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (UserModel) TableName() string {
	return "users"
}
