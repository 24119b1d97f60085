package billing

import (
	"fmt"
	"time"
)

// Package is a purchasable quota bundle. Its terms are immutable once a
// purchase has been applied to a user's quota.
type Package struct {
	id            uint
	name          string
	priceIDR      int64
	dataQuotaGB   float64
	durationDays  int
	routerProfile string
	createdAt     time.Time
	updatedAt     time.Time
}

func NewPackage(name string, priceIDR int64, dataQuotaGB float64, durationDays int, routerProfile string) (*Package, error) {
	if name == "" {
		return nil, fmt.Errorf("package name is required")
	}
	if priceIDR < 0 {
		return nil, fmt.Errorf("package price cannot be negative")
	}
	if dataQuotaGB < 0 {
		return nil, fmt.Errorf("package quota cannot be negative")
	}
	if durationDays <= 0 {
		return nil, fmt.Errorf("package duration must be positive")
	}

	now := time.Now()
	return &Package{
		name:          name,
		priceIDR:      priceIDR,
		dataQuotaGB:   dataQuotaGB,
		durationDays:  durationDays,
		routerProfile: routerProfile,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

func ReconstructPackage(
	id uint,
	name string,
	priceIDR int64,
	dataQuotaGB float64,
	durationDays int,
	routerProfile string,
	createdAt, updatedAt time.Time,
) (*Package, error) {
	if id == 0 {
		return nil, fmt.Errorf("package ID cannot be zero")
	}
	return &Package{
		id:            id,
		name:          name,
		priceIDR:      priceIDR,
		dataQuotaGB:   dataQuotaGB,
		durationDays:  durationDays,
		routerProfile: routerProfile,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}, nil
}

func (p *Package) ID() uint              { return p.id }
func (p *Package) Name() string          { return p.name }
func (p *Package) PriceIDR() int64       { return p.priceIDR }
func (p *Package) DataQuotaGB() float64  { return p.dataQuotaGB }
func (p *Package) DurationDays() int     { return p.durationDays }
func (p *Package) RouterProfile() string { return p.routerProfile }
func (p *Package) CreatedAt() time.Time  { return p.createdAt }
func (p *Package) UpdatedAt() time.Time  { return p.updatedAt }

func (p *Package) SetID(id uint) error {
	if p.id != 0 {
		return fmt.Errorf("package ID already set")
	}
	p.id = id
	return nil
}

// DataQuotaMB returns the bundle quota in MB.
func (p *Package) DataQuotaMB() float64 {
	return p.dataQuotaGB * 1024
}
