package access

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpsaring/lpsaring/internal/domain/user"
)

func testPolicy() Policy {
	return Policy{
		FupThresholdPercent: 80,
		Profiles: map[Status]string{
			StatusActive:    "AKTIF",
			StatusFup:       "FUP",
			StatusHabis:     "HABIS",
			StatusExpired:   "HABIS",
			StatusInactive:  "INACTIVE",
			StatusBlocked:   "BLOKIR",
			StatusUnlimited: "UNLIMITED",
		},
		AddressLists: map[Status]string{
			StatusActive:    "hotspot-active",
			StatusFup:       "hotspot-fup",
			StatusHabis:     "hotspot-habis",
			StatusExpired:   "hotspot-expired",
			StatusInactive:  "hotspot-inactive",
			StatusBlocked:   "hotspot-blocked",
			StatusUnlimited: "hotspot-unlimited",
		},
		AllowedBindingType: BindingRegular,
		BlockedBindingType: BindingBlocked,
	}
}

func makeUser(t *testing.T, role user.Role, mutate func(args *userArgs)) *user.User {
	t.Helper()

	args := &userArgs{
		active:      true,
		approval:    user.ApprovalApproved,
		purchasedMB: 10240,
	}
	if mutate != nil {
		mutate(args)
	}

	phone, err := user.NewPhone("081234567890")
	require.NoError(t, err)

	now := time.Now()
	u, err := user.ReconstructUser(
		uuid.New(), phone, role, args.active, args.approval,
		args.blocked, args.blockReason, args.unlimited,
		args.purchasedMB, args.usedMB, 0, args.manualDebtMB,
		args.expiresAt, nil, nil, nil,
		now, now,
	)
	require.NoError(t, err)
	return u
}

type userArgs struct {
	active       bool
	approval     user.ApprovalStatus
	blocked      bool
	blockReason  string
	unlimited    bool
	purchasedMB  float64
	usedMB       float64
	manualDebtMB float64
	expiresAt    *time.Time
}

func TestPolicy_ResolveStatus(t *testing.T) {
	p := testPolicy()
	now := time.Now()
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		u    *user.User
		want Status
	}{
		{
			name: "blocked wins over everything",
			u: makeUser(t, user.RoleUser, func(a *userArgs) {
				a.blocked = true
				a.unlimited = true
				a.expiresAt = &past
			}),
			want: StatusBlocked,
		},
		{
			name: "inactive",
			u:    makeUser(t, user.RoleUser, func(a *userArgs) { a.active = false }),
			want: StatusInactive,
		},
		{
			name: "unlimited",
			u:    makeUser(t, user.RoleUser, func(a *userArgs) { a.unlimited = true }),
			want: StatusUnlimited,
		},
		{
			name: "expired",
			u:    makeUser(t, user.RoleUser, func(a *userArgs) { a.expiresAt = &past }),
			want: StatusExpired,
		},
		{
			name: "no purchase means habis",
			u:    makeUser(t, user.RoleUser, func(a *userArgs) { a.purchasedMB = 0 }),
			want: StatusHabis,
		},
		{
			name: "remaining exhausted means habis",
			u:    makeUser(t, user.RoleUser, func(a *userArgs) { a.usedMB = 10240 }),
			want: StatusHabis,
		},
		{
			name: "debt can exhaust remaining",
			u: makeUser(t, user.RoleUser, func(a *userArgs) {
				a.usedMB = 9000
				a.manualDebtMB = 2000
			}),
			want: StatusHabis,
		},
		{
			name: "over FUP threshold",
			u:    makeUser(t, user.RoleUser, func(a *userArgs) { a.usedMB = 8500 }),
			want: StatusFup,
		},
		{
			name: "komandan subject to FUP",
			u:    makeUser(t, user.RoleKomandan, func(a *userArgs) { a.usedMB = 8500 }),
			want: StatusFup,
		},
		{
			name: "healthy active",
			u:    makeUser(t, user.RoleUser, func(a *userArgs) { a.usedMB = 1000 }),
			want: StatusActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.ResolveStatus(tt.u, now))
		})
	}
}

func TestPolicy_ResolveBindingType(t *testing.T) {
	p := testPolicy()

	regular := makeUser(t, user.RoleUser, nil)
	assert.Equal(t, BindingRegular, p.ResolveBindingType(regular, StatusActive))
	assert.Equal(t, BindingBlocked, p.ResolveBindingType(regular, StatusBlocked))

	admin := makeUser(t, user.RoleAdmin, nil)
	assert.Equal(t, BindingBypassed, p.ResolveBindingType(admin, StatusUnlimited))

	unlimited := makeUser(t, user.RoleUser, func(a *userArgs) { a.unlimited = true })
	assert.Equal(t, BindingBypassed, p.ResolveBindingType(unlimited, StatusUnlimited))
}

func TestPolicy_OtherListsExcludesTarget(t *testing.T) {
	p := testPolicy()

	others := p.OtherLists(StatusActive)
	assert.NotContains(t, others, "hotspot-active")
	assert.Contains(t, others, "hotspot-fup")
	assert.Contains(t, others, "hotspot-blocked")
	assert.Len(t, others, 6)
}
