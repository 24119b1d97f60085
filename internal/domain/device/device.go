package device

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Device is one hardware client of a user. (User, MAC) is unique.
type Device struct {
	id             uint
	userID         uuid.UUID
	mac            MAC
	ipAddress      string
	isAuthorized   bool
	authorizedAt   *time.Time
	firstSeen      time.Time
	lastSeen       time.Time
	lastBytesTotal uint64
	userAgent      string
	createdAt      time.Time
	updatedAt      time.Time
}

func NewDevice(userID uuid.UUID, mac MAC, ip, userAgent string, now time.Time) (*Device, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user ID is required")
	}
	if mac == "" || mac.IsZero() {
		return nil, fmt.Errorf("MAC address is required")
	}

	return &Device{
		userID:    userID,
		mac:       mac,
		ipAddress: ip,
		firstSeen: now,
		lastSeen:  now,
		userAgent: userAgent,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructDevice rebuilds a device from persistence.
func ReconstructDevice(
	id uint,
	userID uuid.UUID,
	mac MAC,
	ipAddress string,
	isAuthorized bool,
	authorizedAt *time.Time,
	firstSeen, lastSeen time.Time,
	lastBytesTotal uint64,
	userAgent string,
	createdAt, updatedAt time.Time,
) (*Device, error) {
	if id == 0 {
		return nil, fmt.Errorf("device ID cannot be zero")
	}
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user ID is required")
	}

	return &Device{
		id:             id,
		userID:         userID,
		mac:            mac,
		ipAddress:      ipAddress,
		isAuthorized:   isAuthorized,
		authorizedAt:   authorizedAt,
		firstSeen:      firstSeen,
		lastSeen:       lastSeen,
		lastBytesTotal: lastBytesTotal,
		userAgent:      userAgent,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}, nil
}

func (d *Device) ID() uint                 { return d.id }
func (d *Device) UserID() uuid.UUID        { return d.userID }
func (d *Device) MAC() MAC                 { return d.mac }
func (d *Device) IPAddress() string        { return d.ipAddress }
func (d *Device) IsAuthorized() bool       { return d.isAuthorized }
func (d *Device) AuthorizedAt() *time.Time { return d.authorizedAt }
func (d *Device) FirstSeen() time.Time     { return d.firstSeen }
func (d *Device) LastSeen() time.Time      { return d.lastSeen }
func (d *Device) LastBytesTotal() uint64   { return d.lastBytesTotal }
func (d *Device) UserAgent() string        { return d.userAgent }
func (d *Device) CreatedAt() time.Time     { return d.createdAt }
func (d *Device) UpdatedAt() time.Time     { return d.updatedAt }

func (d *Device) SetID(id uint) error {
	if d.id != 0 {
		return fmt.Errorf("device ID already set")
	}
	d.id = id
	return nil
}

// Touch records a sighting, updating last-seen and optionally IP/user-agent.
func (d *Device) Touch(ip, userAgent string, now time.Time) {
	if ip != "" {
		d.ipAddress = ip
	}
	if userAgent != "" {
		d.userAgent = userAgent
	}
	d.lastSeen = now
	d.updatedAt = now
}

func (d *Device) Authorize(now time.Time) {
	d.isAuthorized = true
	d.authorizedAt = &now
	d.updatedAt = now
}

func (d *Device) Revoke(now time.Time) {
	d.isAuthorized = false
	d.authorizedAt = nil
	d.updatedAt = now
}

// RecordBytesBaseline updates the last observed cumulative byte counter.
func (d *Device) RecordBytesBaseline(total uint64, now time.Time) {
	d.lastBytesTotal = total
	d.updatedAt = now
}

// IsStale reports whether the device has not been seen for staleDays.
func (d *Device) IsStale(now time.Time, staleDays int) bool {
	if staleDays <= 0 {
		return false
	}
	return d.lastSeen.Before(now.AddDate(0, 0, -staleDays))
}
