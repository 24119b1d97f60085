package models

import "time"

// DailyUsageLogModel accumulates per-user usage by business date. Date is
// stored at UTC midnight of the local business day.
type DailyUsageLogModel struct {
	ID        uint      `gorm:"primarykey"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_user_date"`
	Date      time.Time `gorm:"not null;uniqueIndex:idx_user_date"`
	UsedMB    float64   `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DailyUsageLogModel) TableName() string {
	return "daily_usage_logs"
}
