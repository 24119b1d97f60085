package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpsaring/lpsaring/internal/application/binding"
	"github.com/lpsaring/lpsaring/internal/domain/access"
	"github.com/lpsaring/lpsaring/internal/domain/device"
	"github.com/lpsaring/lpsaring/internal/domain/user"
	"github.com/lpsaring/lpsaring/internal/infrastructure/metrics"
	"github.com/lpsaring/lpsaring/internal/infrastructure/router"
	"github.com/lpsaring/lpsaring/internal/shared/logger"
)

type nopLogger struct{}

func newNopLogger() logger.Interface { return &nopLogger{} }

func (l *nopLogger) Debugw(msg string, keysAndValues ...interface{}) {}
func (l *nopLogger) Infow(msg string, keysAndValues ...interface{})  {}
func (l *nopLogger) Warnw(msg string, keysAndValues ...interface{})  {}
func (l *nopLogger) Errorw(msg string, keysAndValues ...interface{}) {}
func (l *nopLogger) Fatalw(msg string, keysAndValues ...interface{}) {}
func (l *nopLogger) With(args ...any) logger.Interface               { return l }
func (l *nopLogger) Named(name string) logger.Interface              { return l }

type fakeUsers struct {
	list []*user.User
}

func (f *fakeUsers) Create(ctx context.Context, u *user.User) error { return nil }
func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return nil, nil
}
func (f *fakeUsers) GetByPhone(ctx context.Context, phone user.Phone) (*user.User, error) {
	return nil, nil
}
func (f *fakeUsers) Update(ctx context.Context, u *user.User) error { return nil }
func (f *fakeUsers) ListQuotaManaged(ctx context.Context) ([]*user.User, error) {
	return f.list, nil
}

type fakeDevices struct {
	byUser map[uuid.UUID][]*device.Device
}

func (f *fakeDevices) Create(ctx context.Context, d *device.Device) error { return nil }
func (f *fakeDevices) Update(ctx context.Context, d *device.Device) error { return nil }
func (f *fakeDevices) Delete(ctx context.Context, id uint) error          { return nil }
func (f *fakeDevices) GetByUserAndMAC(ctx context.Context, userID uuid.UUID, mac device.MAC) (*device.Device, error) {
	return nil, nil
}
func (f *fakeDevices) ListByUser(ctx context.Context, userID uuid.UUID) ([]*device.Device, error) {
	return f.byUser[userID], nil
}
func (f *fakeDevices) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return int64(len(f.byUser[userID])), nil
}
func (f *fakeDevices) GetAuthorizedOwner(ctx context.Context, mac device.MAC, excludeUserID uuid.UUID) (*device.Device, error) {
	return nil, nil
}
func (f *fakeDevices) ListStale(ctx context.Context, cutoff time.Time) ([]*device.Device, error) {
	return nil, nil
}
func (f *fakeDevices) ListRecentIPs(ctx context.Context, limit int) ([]string, error) {
	return nil, nil
}

type cleanupCall struct {
	ip   string
	keep string
}

type fakeState struct {
	bindings map[string]router.BindingEntry
	lists    map[string][]router.AddressListEntry
	ips      map[string]string
	cleanups []cleanupCall
}

func (f *fakeState) GetHotspotIPBindingUserMap(ctx context.Context) (map[string]router.BindingEntry, error) {
	return f.bindings, nil
}
func (f *fakeState) GetAddressListEntries(ctx context.Context, list string) ([]router.AddressListEntry, error) {
	return f.lists[list], nil
}
func (f *fakeState) GetIPByMAC(ctx context.Context, mac string) (string, error) {
	return f.ips[mac], nil
}
func (f *fakeState) CleanupAddressListsForIP(ctx context.Context, ip, keepList string, lists []string) error {
	f.cleanups = append(f.cleanups, cleanupCall{ip: ip, keep: keepList})
	return nil
}

type fakeCoordinator struct {
	policy  access.Policy
	granted []string
	blocked []string
	syncs   []string
}

func (f *fakeCoordinator) Policy() access.Policy { return f.policy }
func (f *fakeCoordinator) ComputeTarget(u *user.User) binding.Target {
	status := f.policy.ResolveStatus(u, time.Now())
	return binding.Target{
		Status:      status,
		Profile:     f.policy.ProfileFor(status),
		List:        f.policy.ListFor(status),
		OtherLists:  f.policy.OtherLists(status),
		BindingType: f.policy.ResolveBindingType(u, status),
	}
}
func (f *fakeCoordinator) ApplyGrantedBinding(ctx context.Context, u *user.User, mac device.MAC, ip string) error {
	f.granted = append(f.granted, mac.String())
	return nil
}
func (f *fakeCoordinator) ApplyBlockedBinding(ctx context.Context, u *user.User, mac device.MAC, ip string) error {
	f.blocked = append(f.blocked, mac.String())
	return nil
}
func (f *fakeCoordinator) SyncUserAddressList(ctx context.Context, u *user.User, ipHint string) error {
	f.syncs = append(f.syncs, ipHint)
	return nil
}

func auditPolicy() access.Policy {
	return access.Policy{
		FupThresholdPercent: 80,
		Profiles: map[access.Status]string{
			access.StatusActive: "AKTIF",
			access.StatusFup:    "FUP",
			access.StatusHabis:  "HABIS",
		},
		AddressLists: map[access.Status]string{
			access.StatusActive: "hotspot-active",
			access.StatusFup:    "hotspot-fup",
			access.StatusHabis:  "hotspot-habis",
		},
		AllowedBindingType: access.BindingRegular,
		BlockedBindingType: access.BindingBlocked,
	}
}

func activeAuditUser(t *testing.T) *user.User {
	t.Helper()
	exp := time.Now().Add(30 * 24 * time.Hour)
	u, err := user.ReconstructUser(
		uuid.New(), user.Phone("081234567890"), user.RoleUser,
		true, user.ApprovalApproved,
		false, "", false,
		10240, 100, 0, 0,
		&exp, nil, nil, nil,
		time.Now().Add(-time.Hour), time.Now(),
	)
	require.NoError(t, err)
	return u
}

func auditDevice(t *testing.T, userID uuid.UUID, rawMAC, ip string) *device.Device {
	t.Helper()
	mac, err := device.NormalizeMAC(rawMAC)
	require.NoError(t, err)
	seen := time.Now().Add(-time.Hour)
	d, err := device.ReconstructDevice(
		1, userID, mac, ip,
		true, &seen, seen, seen,
		0, "", seen, seen,
	)
	require.NoError(t, err)
	return d
}

func newTestAuditor(u *user.User, d *device.Device, state *fakeState) (*Auditor, *fakeCoordinator) {
	coord := &fakeCoordinator{policy: auditPolicy()}
	a := NewAuditor(
		&fakeUsers{list: []*user.User{u}},
		&fakeDevices{byUser: map[uuid.UUID][]*device.Device{u.ID(): {d}}},
		coord,
		state,
		metrics.NewForTest(),
		newNopLogger(),
	)
	return a, coord
}

func managedBinding(u *user.User, mac, ip, bindingType string) router.BindingEntry {
	return router.BindingEntry{
		ID:      "*1",
		MAC:     mac,
		Address: ip,
		Type:    bindingType,
		UserID:  u.ID().String(),
	}
}

func TestAuditCleanReport(t *testing.T) {
	u := activeAuditUser(t)
	d := auditDevice(t, u.ID(), "AA:BB:CC:11:22:33", "10.5.50.88")
	state := &fakeState{
		bindings: map[string]router.BindingEntry{
			"AA:BB:CC:11:22:33": managedBinding(u, "AA:BB:CC:11:22:33", "10.5.50.88", "regular"),
		},
		lists: map[string][]router.AddressListEntry{
			"hotspot-active": {{Address: "10.5.50.88", List: "hotspot-active"}},
		},
	}
	a, _ := newTestAuditor(u, d, state)

	report, err := a.BuildReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.UsersChecked)
	assert.Empty(t, report.Items)
}

func TestAuditMultiStatusListCleanup(t *testing.T) {
	u := activeAuditUser(t)
	d := auditDevice(t, u.ID(), "AA:BB:CC:11:22:33", "10.5.50.88")
	state := &fakeState{
		bindings: map[string]router.BindingEntry{
			"AA:BB:CC:11:22:33": managedBinding(u, "AA:BB:CC:11:22:33", "10.5.50.88", "regular"),
		},
		lists: map[string][]router.AddressListEntry{
			"hotspot-active": {{Address: "10.5.50.88", List: "hotspot-active"}},
			"hotspot-fup":    {{Address: "10.5.50.88", List: "hotspot-fup"}},
		},
	}
	a, _ := newTestAuditor(u, d, state)

	report, err := a.BuildReport(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Items, 1)

	item := report.Items[0]
	assert.Equal(t, KindAddressListMultiState, item.Kind)
	assert.Equal(t, "hotspot-active", item.ExpectedList)
	assert.ElementsMatch(t, []string{"hotspot-active", "hotspot-fup"}, item.ObservedLists)
	require.Len(t, item.Actions, 1)
	assert.Equal(t, ActionCleanupLists, item.Actions[0].Name)
	assert.Equal(t, SeverityHigh, item.Actions[0].Severity)
	assert.Equal(t, "hotspot-active", item.Actions[0].KeepList)
	assert.Equal(t, []string{"hotspot-fup"}, item.Actions[0].RemoveLists)

	require.NoError(t, a.Apply(context.Background(), report))
	require.Len(t, state.cleanups, 1)
	assert.Equal(t, "10.5.50.88", state.cleanups[0].ip)
	assert.Equal(t, "hotspot-active", state.cleanups[0].keep)
}

func TestAuditWrongBindingTypeRemediated(t *testing.T) {
	u := activeAuditUser(t)
	d := auditDevice(t, u.ID(), "AA:BB:CC:11:22:33", "10.5.50.88")
	state := &fakeState{
		bindings: map[string]router.BindingEntry{
			"AA:BB:CC:11:22:33": managedBinding(u, "AA:BB:CC:11:22:33", "10.5.50.88", "blocked"),
		},
		lists: map[string][]router.AddressListEntry{
			"hotspot-active": {{Address: "10.5.50.88", List: "hotspot-active"}},
		},
	}
	a, coord := newTestAuditor(u, d, state)

	report, err := a.BuildReport(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Items, 1)

	item := report.Items[0]
	assert.Equal(t, KindBindingWrongType, item.Kind)
	assert.Equal(t, "blocked", item.ObservedType)
	assert.Equal(t, "regular", item.ExpectedType)
	require.NotEmpty(t, item.Actions)
	assert.Equal(t, ActionUpsertBinding, item.Actions[0].Name)

	require.NoError(t, a.Apply(context.Background(), report))
	assert.Equal(t, []string{"AA:BB:CC:11:22:33"}, coord.granted)
	assert.Empty(t, coord.blocked)
}

func TestAuditMissingBindingWithoutIPResolvesFirst(t *testing.T) {
	u := activeAuditUser(t)
	d := auditDevice(t, u.ID(), "AA:BB:CC:11:22:33", "")
	state := &fakeState{
		bindings: map[string]router.BindingEntry{},
		lists:    map[string][]router.AddressListEntry{},
		ips:      map[string]string{"AA:BB:CC:11:22:33": "10.5.50.42"},
	}
	a, _ := newTestAuditor(u, d, state)

	report, err := a.BuildReport(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Items, 2)

	bindingItem := report.Items[0]
	assert.Equal(t, KindBindingMissing, bindingItem.Kind)
	require.Len(t, bindingItem.Actions, 2)
	assert.Equal(t, ActionUpsertBinding, bindingItem.Actions[0].Name)
	assert.Equal(t, ActionResolveIP, bindingItem.Actions[1].Name)

	listItem := report.Items[1]
	assert.Equal(t, KindAddressListMissing, listItem.Kind)
	assert.Equal(t, SeverityMedium, listItem.Actions[0].Severity)
}
