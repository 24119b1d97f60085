package models

import "time"

// DeviceModel is the persistence model for user devices. The (user, MAC)
// pair is unique; cross-user ownership checks go through the mac index.
type DeviceModel struct {
	ID             uint   `gorm:"primarykey"`
	UserID         string `gorm:"size:36;not null;uniqueIndex:idx_user_mac;index"`
	MACAddress     string `gorm:"size:17;not null;uniqueIndex:idx_user_mac;index"`
	IPAddress      string `gorm:"size:45"`
	IsAuthorized   bool   `gorm:"not null;default:false"`
	AuthorizedAt   *time.Time
	FirstSeen      time.Time `gorm:"not null"`
	LastSeen       time.Time `gorm:"not null;index"`
	LastBytesTotal uint64    `gorm:"not null;default:0"`
	UserAgent      string    `gorm:"size:512"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (DeviceModel) TableName() string {
	return "devices"
}
