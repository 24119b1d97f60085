package user

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser       Role = "USER"
	RoleKomandan   Role = "KOMANDAN"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

func (r Role) String() string {
	return string(r)
}

// IsQuotaManaged reports whether quota accounting and debt policy apply to
// the role. Admin roles are bypassed on the router and never metered.
func (r Role) IsQuotaManaged() bool {
	return r == RoleUser || r == RoleKomandan
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// User is the aggregate root for a hotspot account.
type User struct {
	id                  uuid.UUID
	phone               Phone
	role                Role
	active              bool
	approval            ApprovalStatus
	blocked             bool
	blockReason         string
	unlimited           bool
	totalPurchasedMB    float64
	totalUsedMB         float64
	autoDebtOffsetMB    float64
	manualDebtMB        float64
	quotaExpiresAt      *time.Time
	lastLoginAt         *time.Time
	lastNotifiedPercent *float64
	lastNotifiedDays    *int
	createdAt           time.Time
	updatedAt           time.Time
}

func NewUser(phone Phone, role Role) (*User, error) {
	if phone == "" {
		return nil, fmt.Errorf("phone is required")
	}
	if role == "" {
		role = RoleUser
	}

	now := time.Now()
	return &User{
		id:        uuid.New(),
		phone:     phone,
		role:      role,
		active:    true,
		approval:  ApprovalPending,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructUser rebuilds a user from persistence.
func ReconstructUser(
	id uuid.UUID,
	phone Phone,
	role Role,
	active bool,
	approval ApprovalStatus,
	blocked bool,
	blockReason string,
	unlimited bool,
	totalPurchasedMB, totalUsedMB, autoDebtOffsetMB, manualDebtMB float64,
	quotaExpiresAt, lastLoginAt *time.Time,
	lastNotifiedPercent *float64,
	lastNotifiedDays *int,
	createdAt, updatedAt time.Time,
) (*User, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("user ID cannot be nil")
	}
	if totalUsedMB < 0 {
		return nil, fmt.Errorf("total used quota cannot be negative")
	}

	return &User{
		id:                  id,
		phone:               phone,
		role:                role,
		active:              active,
		approval:            approval,
		blocked:             blocked,
		blockReason:         blockReason,
		unlimited:           unlimited,
		totalPurchasedMB:    totalPurchasedMB,
		totalUsedMB:         totalUsedMB,
		autoDebtOffsetMB:    autoDebtOffsetMB,
		manualDebtMB:        manualDebtMB,
		quotaExpiresAt:      quotaExpiresAt,
		lastLoginAt:         lastLoginAt,
		lastNotifiedPercent: lastNotifiedPercent,
		lastNotifiedDays:    lastNotifiedDays,
		createdAt:           createdAt,
		updatedAt:           updatedAt,
	}, nil
}

func (u *User) ID() uuid.UUID                 { return u.id }
func (u *User) Phone() Phone                  { return u.phone }
func (u *User) Role() Role                    { return u.role }
func (u *User) IsActive() bool                { return u.active }
func (u *User) Approval() ApprovalStatus      { return u.approval }
func (u *User) IsBlocked() bool               { return u.blocked }
func (u *User) BlockReason() string           { return u.blockReason }
func (u *User) IsUnlimited() bool             { return u.unlimited }
func (u *User) TotalPurchasedMB() float64     { return u.totalPurchasedMB }
func (u *User) TotalUsedMB() float64          { return u.totalUsedMB }
func (u *User) AutoDebtOffsetMB() float64     { return u.autoDebtOffsetMB }
func (u *User) ManualDebtMB() float64         { return u.manualDebtMB }
func (u *User) QuotaExpiresAt() *time.Time    { return u.quotaExpiresAt }
func (u *User) LastLoginAt() *time.Time       { return u.lastLoginAt }
func (u *User) LastNotifiedPercent() *float64 { return u.lastNotifiedPercent }
func (u *User) LastNotifiedDays() *int        { return u.lastNotifiedDays }
func (u *User) CreatedAt() time.Time          { return u.createdAt }
func (u *User) UpdatedAt() time.Time          { return u.updatedAt }

func (u *User) IsApproved() bool {
	return u.approval == ApprovalApproved
}

// DebtMB returns the total debt applied against remaining quota. Debt fields
// apply only to quota-managed, non-unlimited accounts.
func (u *User) DebtMB() float64 {
	if !u.role.IsQuotaManaged() || u.unlimited {
		return 0
	}
	return u.manualDebtMB + u.autoDebtOffsetMB
}

// RemainingMB returns remaining quota in MB. Unlimited accounts report +Inf.
func (u *User) RemainingMB() float64 {
	if u.unlimited {
		return math.Inf(1)
	}
	return u.totalPurchasedMB - u.totalUsedMB - u.DebtMB()
}

// RemainingPercent returns remaining quota as a percentage of purchased
// quota, or 100 for unlimited accounts.
func (u *User) RemainingPercent() float64 {
	if u.unlimited {
		return 100
	}
	if u.totalPurchasedMB <= 0 {
		return 0
	}
	pct := u.RemainingMB() / u.totalPurchasedMB * 100
	if pct < 0 {
		return 0
	}
	return pct
}

// UsedPercent returns used quota as a percentage of purchased quota.
func (u *User) UsedPercent() float64 {
	if u.totalPurchasedMB <= 0 {
		return 0
	}
	return u.totalUsedMB / u.totalPurchasedMB * 100
}

// IsExpired reports whether the quota expiry has passed at the given time.
func (u *User) IsExpired(now time.Time) bool {
	return u.quotaExpiresAt != nil && u.quotaExpiresAt.Before(now)
}

// AddUsage accumulates used quota, rounded to 0.01 MB.
func (u *User) AddUsage(deltaMB float64) error {
	if deltaMB < 0 {
		return fmt.Errorf("usage delta cannot be negative")
	}
	u.totalUsedMB = math.Round((u.totalUsedMB+deltaMB)*100) / 100
	u.updatedAt = time.Now()
	return nil
}

// ApplyPackage credits purchased quota and extends expiry after a successful
// purchase. Expiry extends from the later of now and the current expiry.
func (u *User) ApplyPackage(quotaMB float64, durationDays int, now time.Time) error {
	if quotaMB < 0 {
		return fmt.Errorf("package quota cannot be negative")
	}
	if durationDays <= 0 {
		return fmt.Errorf("package duration must be positive")
	}

	u.totalPurchasedMB += quotaMB

	base := now
	if u.quotaExpiresAt != nil && u.quotaExpiresAt.After(now) {
		base = *u.quotaExpiresAt
	}
	expiry := base.AddDate(0, 0, durationDays)
	u.quotaExpiresAt = &expiry

	// New credit resets notification levels so thresholds fire again.
	u.lastNotifiedPercent = nil
	u.lastNotifiedDays = nil
	u.updatedAt = now
	return nil
}

func (u *User) Block(reason string) {
	u.blocked = true
	u.blockReason = reason
	u.updatedAt = time.Now()
}

func (u *User) Unblock() {
	u.blocked = false
	u.blockReason = ""
	u.updatedAt = time.Now()
}

func (u *User) Approve() {
	u.approval = ApprovalApproved
	u.updatedAt = time.Now()
}

func (u *User) RecordLogin(now time.Time) {
	u.lastLoginAt = &now
	u.updatedAt = now
}

func (u *User) MarkNotifiedPercent(level float64) {
	u.lastNotifiedPercent = &level
	u.updatedAt = time.Now()
}

func (u *User) MarkNotifiedDays(days int) {
	u.lastNotifiedDays = &days
	u.updatedAt = time.Now()
}
