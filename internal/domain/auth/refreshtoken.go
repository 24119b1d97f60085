package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the persisted half of a rotating refresh credential. Only
// the sha256 of the raw token is stored.
type RefreshToken struct {
	id           uint
	userID       uuid.UUID
	tokenHash    string
	issuedAt     time.Time
	expiresAt    time.Time
	revokedAt    *time.Time
	replacedByID *uint
	fingerprint  string
}

// HashToken derives the stored digest from a raw token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func NewRefreshToken(userID uuid.UUID, rawToken, fingerprint string, ttl time.Duration, now time.Time) (*RefreshToken, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user ID is required")
	}
	if rawToken == "" {
		return nil, fmt.Errorf("raw token is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token TTL must be positive")
	}

	return &RefreshToken{
		userID:      userID,
		tokenHash:   HashToken(rawToken),
		issuedAt:    now,
		expiresAt:   now.Add(ttl),
		fingerprint: fingerprint,
	}, nil
}

func ReconstructRefreshToken(
	id uint,
	userID uuid.UUID,
	tokenHash string,
	issuedAt, expiresAt time.Time,
	revokedAt *time.Time,
	replacedByID *uint,
	fingerprint string,
) (*RefreshToken, error) {
	if id == 0 {
		return nil, fmt.Errorf("refresh token ID cannot be zero")
	}
	return &RefreshToken{
		id:           id,
		userID:       userID,
		tokenHash:    tokenHash,
		issuedAt:     issuedAt,
		expiresAt:    expiresAt,
		revokedAt:    revokedAt,
		replacedByID: replacedByID,
		fingerprint:  fingerprint,
	}, nil
}

func (t *RefreshToken) ID() uint              { return t.id }
func (t *RefreshToken) UserID() uuid.UUID     { return t.userID }
func (t *RefreshToken) TokenHash() string     { return t.tokenHash }
func (t *RefreshToken) IssuedAt() time.Time   { return t.issuedAt }
func (t *RefreshToken) ExpiresAt() time.Time  { return t.expiresAt }
func (t *RefreshToken) RevokedAt() *time.Time { return t.revokedAt }
func (t *RefreshToken) ReplacedByID() *uint   { return t.replacedByID }
func (t *RefreshToken) Fingerprint() string   { return t.fingerprint }

func (t *RefreshToken) SetID(id uint) error {
	if t.id != 0 {
		return fmt.Errorf("refresh token ID already set")
	}
	t.id = id
	return nil
}

func (t *RefreshToken) IsRevoked() bool {
	return t.revokedAt != nil
}

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return t.expiresAt.Before(now)
}

// IsUsable reports whether the token can still be rotated.
func (t *RefreshToken) IsUsable(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}

// RevokeAndLink marks this token consumed and links its replacement. Both
// writes must land in the same commit as the replacement insert.
func (t *RefreshToken) RevokeAndLink(replacementID uint, now time.Time) error {
	if t.IsRevoked() {
		return fmt.Errorf("refresh token already revoked")
	}
	t.revokedAt = &now
	t.replacedByID = &replacementID
	return nil
}
