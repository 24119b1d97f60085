package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransaction_ApplyStatus_ForwardOnly(t *testing.T) {
	now := time.Now()

	tx, err := NewTransaction(uuid.New(), 1, 50000, "qris", "order-123")
	require.NoError(t, err)

	changed, err := tx.ApplyStatus(StatusSuccess, now)
	assert.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusSuccess, tx.Status())
	require.NotNil(t, tx.PaidAt())

	// Backward transition rejected.
	_, err = tx.ApplyStatus(StatusPending, now)
	assert.Error(t, err)
	assert.Equal(t, StatusSuccess, tx.Status())
}

func TestTransaction_ApplyStatus_DuplicateWebhookNoOp(t *testing.T) {
	now := time.Now()

	tx, err := NewTransaction(uuid.New(), 1, 50000, "qris", "order-123")
	require.NoError(t, err)

	changed, err := tx.ApplyStatus(StatusSuccess, now)
	require.NoError(t, err)
	require.True(t, changed)
	firstPaidAt := *tx.PaidAt()

	changed, err = tx.ApplyStatus(StatusSuccess, now.Add(time.Minute))
	assert.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, firstPaidAt, *tx.PaidAt())
}

func TestTransaction_ApplyStatus_PendingToExpiredTerminal(t *testing.T) {
	now := time.Now()

	tx, err := NewTransaction(uuid.New(), 2, 25000, "va", "order-456")
	require.NoError(t, err)

	changed, err := tx.ApplyStatus(StatusExpired, now)
	assert.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, tx.Status().IsTerminal())

	_, err = tx.ApplyStatus(StatusSuccess, now)
	assert.Error(t, err)
}

func TestTransaction_ApplyStatus_UnknownResolves(t *testing.T) {
	now := time.Now()

	tx, err := ReconstructTransaction(
		7, uuid.New(), 2, 25000, StatusUnknown, "va", "order-789", nil, now, now,
	)
	require.NoError(t, err)

	changed, err := tx.ApplyStatus(StatusCancelled, now)
	assert.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusCancelled, tx.Status())
}
