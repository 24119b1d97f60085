package models

import "time"

// PackageModel is the persistence model for purchasable data packages.
type PackageModel struct {
	ID            uint   `gorm:"primarykey"`
	Name          string `gorm:"size:100;not null"`
	PriceIDR      int64  `gorm:"not null"`
	DataQuotaGB   float64
	DurationDays  int    `gorm:"not null"`
	RouterProfile string `gorm:"size:64"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (PackageModel) TableName() string {
	return "packages"
}

// TransactionModel is the persistence model for package purchases.
type TransactionModel struct {
	ID            uint   `gorm:"primarykey"`
	UserID        string `gorm:"size:36;not null;index"`
	PackageID     uint   `gorm:"not null"`
	AmountIDR     int64  `gorm:"not null"`
	Status        string `gorm:"size:20;not null;default:PENDING;index"`
	PaymentMethod string `gorm:"size:50"`
	ProviderRef   string `gorm:"size:100;uniqueIndex"`
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (TransactionModel) TableName() string {
	return "transactions"
}
