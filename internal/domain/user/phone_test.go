package user

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewPhone_Normalization(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Phone
		wantErr bool
	}{
		{name: "local form kept", input: "081234567890", want: "081234567890"},
		{name: "plus country code", input: "+6281234567890", want: "081234567890"},
		{name: "bare country code", input: "6281234567890", want: "081234567890"},
		{name: "spaces and dashes stripped", input: "+62 812-3456-7890", want: "081234567890"},
		{name: "landline prefix rejected", input: "0211234567", wantErr: true},
		{name: "letters rejected", input: "08abc4567890", wantErr: true},
		{name: "too short", input: "0812345", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewPhone(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUser_RemainingAndDebt(t *testing.T) {
	phone, err := NewPhone("081234567890")
	assert.NoError(t, err)

	u, err := NewUser(phone, RoleUser)
	assert.NoError(t, err)
	u.Approve()

	assert.NoError(t, u.ApplyPackage(10240, 30, u.CreatedAt()))
	assert.NoError(t, u.AddUsage(8200))

	assert.InDelta(t, 2040, u.RemainingMB(), 0.001)
	assert.InDelta(t, 19.92, u.RemainingPercent(), 0.01)
}

func TestUser_DebtOnlyForQuotaManaged(t *testing.T) {
	phone, _ := NewPhone("081234567890")
	now := time.Now()

	admin, err := ReconstructUser(
		uuid.New(), phone, RoleAdmin, true, ApprovalApproved,
		false, "", false,
		1000, 0, 100, 50,
		nil, nil, nil, nil,
		now, now,
	)
	assert.NoError(t, err)
	assert.Zero(t, admin.DebtMB())

	member, err := ReconstructUser(
		uuid.New(), phone, RoleKomandan, true, ApprovalApproved,
		false, "", false,
		1000, 0, 100, 50,
		nil, nil, nil, nil,
		now, now,
	)
	assert.NoError(t, err)
	assert.InDelta(t, 150, member.DebtMB(), 0.001)
	assert.InDelta(t, 850, member.RemainingMB(), 0.001)
}

func TestUser_ApplyPackageResetsNotificationLevels(t *testing.T) {
	phone, _ := NewPhone("081234567890")
	u, _ := NewUser(phone, RoleUser)

	u.MarkNotifiedPercent(20)
	u.MarkNotifiedDays(3)
	assert.NotNil(t, u.LastNotifiedPercent())
	assert.NotNil(t, u.LastNotifiedDays())

	assert.NoError(t, u.ApplyPackage(5120, 30, time.Now()))
	assert.Nil(t, u.LastNotifiedPercent())
	assert.Nil(t, u.LastNotifiedDays())
}
