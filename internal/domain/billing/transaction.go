package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusSuccess   TransactionStatus = "SUCCESS"
	StatusExpired   TransactionStatus = "EXPIRED"
	StatusCancelled TransactionStatus = "CANCELLED"
	StatusUnknown   TransactionStatus = "UNKNOWN"
)

func (s TransactionStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusExpired || s == StatusCancelled
}

// CanTransitionTo enforces the forward-only status machine. PENDING may move
// to any terminal state; UNKNOWN resolves to any state; terminal states only
// accept their own status again (webhook replays).
func (s TransactionStatus) CanTransitionTo(target TransactionStatus) bool {
	if s == target {
		return true
	}
	switch s {
	case StatusPending:
		return target == StatusSuccess || target == StatusExpired || target == StatusCancelled
	case StatusUnknown:
		return true
	default:
		return false
	}
}

// Transaction records one package purchase attempt.
type Transaction struct {
	id            uint
	userID        uuid.UUID
	packageID     uint
	amountIDR     int64
	status        TransactionStatus
	paymentMethod string
	providerRef   string
	paidAt        *time.Time
	createdAt     time.Time
	updatedAt     time.Time
}

func NewTransaction(userID uuid.UUID, packageID uint, amountIDR int64, paymentMethod, providerRef string) (*Transaction, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user ID is required")
	}
	if packageID == 0 {
		return nil, fmt.Errorf("package ID is required")
	}
	if amountIDR < 0 {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	now := time.Now()
	return &Transaction{
		userID:        userID,
		packageID:     packageID,
		amountIDR:     amountIDR,
		status:        StatusPending,
		paymentMethod: paymentMethod,
		providerRef:   providerRef,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

func ReconstructTransaction(
	id uint,
	userID uuid.UUID,
	packageID uint,
	amountIDR int64,
	status TransactionStatus,
	paymentMethod, providerRef string,
	paidAt *time.Time,
	createdAt, updatedAt time.Time,
) (*Transaction, error) {
	if id == 0 {
		return nil, fmt.Errorf("transaction ID cannot be zero")
	}
	return &Transaction{
		id:            id,
		userID:        userID,
		packageID:     packageID,
		amountIDR:     amountIDR,
		status:        status,
		paymentMethod: paymentMethod,
		providerRef:   providerRef,
		paidAt:        paidAt,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}, nil
}

func (t *Transaction) ID() uint                  { return t.id }
func (t *Transaction) UserID() uuid.UUID         { return t.userID }
func (t *Transaction) PackageID() uint           { return t.packageID }
func (t *Transaction) AmountIDR() int64          { return t.amountIDR }
func (t *Transaction) Status() TransactionStatus { return t.status }
func (t *Transaction) PaymentMethod() string     { return t.paymentMethod }
func (t *Transaction) ProviderRef() string       { return t.providerRef }
func (t *Transaction) PaidAt() *time.Time        { return t.paidAt }
func (t *Transaction) CreatedAt() time.Time      { return t.createdAt }
func (t *Transaction) UpdatedAt() time.Time      { return t.updatedAt }

func (t *Transaction) SetID(id uint) error {
	if t.id != 0 {
		return fmt.Errorf("transaction ID already set")
	}
	t.id = id
	return nil
}

// ApplyStatus advances the status machine. A repeated webhook carrying the
// current status is a no-op and reports changed=false. Backward transitions
// are rejected.
func (t *Transaction) ApplyStatus(target TransactionStatus, now time.Time) (bool, error) {
	if target == t.status {
		return false, nil
	}
	if !t.status.CanTransitionTo(target) {
		return false, fmt.Errorf("invalid transaction status transition %s -> %s", t.status, target)
	}

	t.status = target
	if target == StatusSuccess {
		t.paidAt = &now
	}
	t.updatedAt = now
	return true, nil
}
