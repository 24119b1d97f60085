package quota

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpsaring/lpsaring/internal/application/binding"
	"github.com/lpsaring/lpsaring/internal/application/notification"
	"github.com/lpsaring/lpsaring/internal/domain/access"
	"github.com/lpsaring/lpsaring/internal/domain/device"
	"github.com/lpsaring/lpsaring/internal/domain/usage"
	"github.com/lpsaring/lpsaring/internal/domain/user"
	"github.com/lpsaring/lpsaring/internal/infrastructure/metrics"
	"github.com/lpsaring/lpsaring/internal/infrastructure/router"
	sharedConfig "github.com/lpsaring/lpsaring/internal/shared/config"
	"github.com/lpsaring/lpsaring/internal/shared/errors"
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
	list    []*user.User
	updated int
}

func (f *fakeUsers) Create(ctx context.Context, u *user.User) error { return nil }
func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return nil, nil
}
func (f *fakeUsers) GetByPhone(ctx context.Context, phone user.Phone) (*user.User, error) {
	return nil, nil
}
func (f *fakeUsers) Update(ctx context.Context, u *user.User) error {
	f.updated++
	return nil
}
func (f *fakeUsers) ListQuotaManaged(ctx context.Context) ([]*user.User, error) {
	return f.list, nil
}

type fakeDevices struct {
	byUser  map[uuid.UUID][]*device.Device
	updated []*device.Device
}

func (f *fakeDevices) Create(ctx context.Context, d *device.Device) error { return nil }
func (f *fakeDevices) Update(ctx context.Context, d *device.Device) error {
	f.updated = append(f.updated, d)
	return nil
}
func (f *fakeDevices) Delete(ctx context.Context, id uint) error { return nil }
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

type usageDeltaCall struct {
	userID uuid.UUID
	date   time.Time
	mb     float64
}

type fakeUsageLogs struct {
	deltas []usageDeltaCall
}

func (f *fakeUsageLogs) AddDelta(ctx context.Context, userID uuid.UUID, date time.Time, deltaMB float64) error {
	f.deltas = append(f.deltas, usageDeltaCall{userID: userID, date: date, mb: deltaMB})
	return nil
}
func (f *fakeUsageLogs) GetByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) (*usage.DailyUsageLog, error) {
	return nil, nil
}
func (f *fakeUsageLogs) ListByUserRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*usage.DailyUsageLog, error) {
	return nil, nil
}
func (f *fakeUsageLogs) ResetDay(ctx context.Context, userID uuid.UUID, date time.Time) error {
	return nil
}

type fakeSnapshots struct {
	hosts    map[string]router.HostUsage
	bindings map[string]router.BindingEntry
	ips      map[string]string
}

func (f *fakeSnapshots) GetHotspotHostUsageMap(ctx context.Context) (map[string]router.HostUsage, error) {
	return f.hosts, nil
}
func (f *fakeSnapshots) GetHotspotIPBindingUserMap(ctx context.Context) (map[string]router.BindingEntry, error) {
	return f.bindings, nil
}
func (f *fakeSnapshots) GetIPByMAC(ctx context.Context, mac string) (string, error) {
	return f.ips[mac], nil
}

type fakeCoordinator struct {
	policy      access.Policy
	profileSets []string
	syncHints   []string
	profileErr  error
}

func (f *fakeCoordinator) ComputeTarget(u *user.User) binding.Target {
	status := f.policy.ResolveStatus(u, time.Now())
	return binding.Target{
		Status:  status,
		Profile: f.policy.ProfileFor(status),
		List:    f.policy.ListFor(status),
	}
}
func (f *fakeCoordinator) SetUserProfile(ctx context.Context, u *user.User, profile string) error {
	if f.profileErr != nil {
		return f.profileErr
	}
	f.profileSets = append(f.profileSets, profile)
	return nil
}
func (f *fakeCoordinator) SyncUserAddressList(ctx context.Context, u *user.User, ipHint string) error {
	f.syncHints = append(f.syncHints, ipHint)
	return nil
}

type enrollCall struct {
	ip  string
	mac string
}

type fakeEnroller struct {
	calls  []enrollCall
	result *device.Device
}

func (f *fakeEnroller) RegisterOrUpdateDevice(ctx context.Context, u *user.User, ip, userAgent, mac string, allowReplace bool) (string, *device.Device, error) {
	f.calls = append(f.calls, enrollCall{ip: ip, mac: mac})
	return "OK", f.result, nil
}

type fakeLocks struct {
	denied   bool
	acquired int
}

func (f *fakeLocks) AcquireUserSyncLock(ctx context.Context, userID uuid.UUID, ttl time.Duration) (bool, func()) {
	if f.denied {
		return false, func() {}
	}
	f.acquired++
	return true, func() {}
}

type fakeBaselines struct {
	m map[string]uint64
}

func (f *fakeBaselines) Get(ctx context.Context, mac string) (uint64, bool) {
	v, ok := f.m[mac]
	return v, ok
}
func (f *fakeBaselines) Set(ctx context.Context, mac string, total uint64) {
	f.m[mac] = total
}

type sentMessage struct {
	template string
	data     map[string]string
}

type fakeNotifier struct {
	sent []sentMessage
}

func (f *fakeNotifier) Send(ctx context.Context, channel, address, templateKey string, data map[string]string) bool {
	f.sent = append(f.sent, sentMessage{template: templateKey, data: data})
	return true
}

func testQuotaPolicy() access.Policy {
	return access.Policy{
		FupThresholdPercent: 80,
		Profiles: map[access.Status]string{
			access.StatusActive:  "AKTIF",
			access.StatusFup:     "FUP",
			access.StatusHabis:   "HABIS",
			access.StatusExpired: "HABIS",
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

func approvedQuotaUser(t *testing.T, purchasedMB, usedMB float64) *user.User {
	t.Helper()
	exp := time.Now().Add(30 * 24 * time.Hour)
	u, err := user.ReconstructUser(
		uuid.New(), user.Phone("081234567890"), user.RoleUser,
		true, user.ApprovalApproved,
		false, "", false,
		purchasedMB, usedMB, 0, 0,
		&exp, nil, nil, nil,
		time.Now().Add(-time.Hour), time.Now(),
	)
	require.NoError(t, err)
	return u
}

func quotaDevice(t *testing.T, userID uuid.UUID, rawMAC string, lastBytes uint64) *device.Device {
	t.Helper()
	mac, err := device.NormalizeMAC(rawMAC)
	require.NoError(t, err)
	seen := time.Now().Add(-10 * time.Minute)
	d, err := device.ReconstructDevice(
		1, userID, mac, "10.5.50.42",
		true, &seen, seen, seen,
		lastBytes, "test-agent", seen, seen,
	)
	require.NoError(t, err)
	return d
}

type engineFixture struct {
	engine      *Engine
	users       *fakeUsers
	devices     *fakeDevices
	usageLogs   *fakeUsageLogs
	snapshots   *fakeSnapshots
	coordinator *fakeCoordinator
	enroller    *fakeEnroller
	locks       *fakeLocks
	baselines   *fakeBaselines
	notifier    *fakeNotifier
}

func newEngineFixture(u *user.User, devices []*device.Device, hosts map[string]router.HostUsage) *engineFixture {
	f := &engineFixture{
		users:       &fakeUsers{list: []*user.User{u}},
		devices:     &fakeDevices{byUser: map[uuid.UUID][]*device.Device{u.ID(): devices}},
		usageLogs:   &fakeUsageLogs{},
		snapshots:   &fakeSnapshots{hosts: hosts, bindings: map[string]router.BindingEntry{}, ips: map[string]string{}},
		coordinator: &fakeCoordinator{policy: testQuotaPolicy()},
		enroller:    &fakeEnroller{},
		locks:       &fakeLocks{},
		baselines:   &fakeBaselines{m: map[string]uint64{}},
		notifier:    &fakeNotifier{},
	}
	cfg := &sharedConfig.QuotaConfig{
		FupPercent:          80,
		NotifyPercentages:   []float64{20, 10, 5},
		ExpiryNotifyDays:    []int{3, 1},
		SyncIntervalMinutes: 5,
		SyncLockTTLSeconds:  60,
	}
	f.engine = NewEngine(
		f.users, f.devices, f.usageLogs,
		f.snapshots, f.coordinator, f.enroller,
		f.locks, f.baselines, f.notifier,
		cfg, metrics.NewForTest(), newNopLogger(),
	)
	return f
}

func TestTickAccruesHostUsageDelta(t *testing.T) {
	u := approvedQuotaUser(t, 10240, 0)
	d := quotaDevice(t, u.ID(), "aa:bb:cc:11:22:33", 0)
	hosts := map[string]router.HostUsage{
		"AA:BB:CC:11:22:33": {MAC: "AA:BB:CC:11:22:33", BytesIn: 1048576, BytesOut: 524288},
	}
	f := newEngineFixture(u, []*device.Device{d}, hosts)

	err := f.engine.Tick(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 1.50, u.TotalUsedMB(), 0.001)
	require.Len(t, f.usageLogs.deltas, 1)
	assert.InDelta(t, 1.50, f.usageLogs.deltas[0].mb, 0.001)
	assert.Equal(t, u.ID(), f.usageLogs.deltas[0].userID)

	assert.Equal(t, uint64(1572864), f.baselines.m["AA:BB:CC:11:22:33"])
	require.Len(t, f.devices.updated, 1)
	assert.Equal(t, uint64(1572864), f.devices.updated[0].LastBytesTotal())

	assert.Empty(t, f.coordinator.profileSets)
	assert.Empty(t, f.notifier.sent)
	assert.GreaterOrEqual(t, f.users.updated, 1)
}

func TestTickAppliesProfileOnStatusChange(t *testing.T) {
	u := approvedQuotaUser(t, 100, 79)
	d := quotaDevice(t, u.ID(), "aa:bb:cc:11:22:33", 0)
	// 1.5 MB delta pushes used from 79% to 80.5%, past the FUP threshold.
	hosts := map[string]router.HostUsage{
		"AA:BB:CC:11:22:33": {MAC: "AA:BB:CC:11:22:33", BytesIn: 1048576, BytesOut: 524288},
	}
	f := newEngineFixture(u, []*device.Device{d}, hosts)

	err := f.engine.Tick(context.Background())
	require.NoError(t, err)

	require.Len(t, f.coordinator.profileSets, 1)
	assert.Equal(t, "FUP", f.coordinator.profileSets[0])

	var fupNotices int
	for _, msg := range f.notifier.sent {
		if msg.template == notification.TemplateQuotaFup {
			fupNotices++
		}
	}
	assert.Equal(t, 1, fupNotices)
}

func TestTickPersistsUsageWhenProfilePushFails(t *testing.T) {
	u := approvedQuotaUser(t, 100, 79)
	d := quotaDevice(t, u.ID(), "aa:bb:cc:11:22:33", 0)
	hosts := map[string]router.HostUsage{
		"AA:BB:CC:11:22:33": {MAC: "AA:BB:CC:11:22:33", BytesIn: 1048576, BytesOut: 524288},
	}
	f := newEngineFixture(u, []*device.Device{d}, hosts)
	f.coordinator.profileErr = errors.NewTransientRouter("router unreachable", nil)

	err := f.engine.Tick(context.Background())
	require.NoError(t, err)

	// The baselines already advanced, so the user row must carry the
	// accrued usage even though the profile push failed.
	assert.InDelta(t, 80.5, u.TotalUsedMB(), 0.001)
	assert.GreaterOrEqual(t, f.users.updated, 1)
	require.Len(t, f.usageLogs.deltas, 1)
	assert.InDelta(t, 1.50, f.usageLogs.deltas[0].mb, 0.001)
	assert.Equal(t, uint64(1572864), f.baselines.m["AA:BB:CC:11:22:33"])
	assert.Empty(t, f.coordinator.profileSets)

	// Next tick sees no counter movement and no status change, yet the
	// missed push is retried once the router answers again.
	f.coordinator.profileErr = nil
	require.NoError(t, f.engine.Tick(context.Background()))

	assert.InDelta(t, 80.5, u.TotalUsedMB(), 0.001)
	require.Len(t, f.usageLogs.deltas, 1)
	require.Len(t, f.coordinator.profileSets, 1)
	assert.Equal(t, "FUP", f.coordinator.profileSets[0])
}

func TestTickAutoEnrollsManagedBinding(t *testing.T) {
	u := approvedQuotaUser(t, 10240, 0)
	enrolledMAC := "DD:EE:FF:00:11:22"
	hosts := map[string]router.HostUsage{
		enrolledMAC: {MAC: enrolledMAC, BytesIn: 40 << 20, BytesOut: 10 << 20},
	}
	f := newEngineFixture(u, nil, hosts)
	f.snapshots.bindings = map[string]router.BindingEntry{
		enrolledMAC: {MAC: enrolledMAC, Address: "10.5.50.99", UserID: u.ID().String()},
	}
	f.enroller.result = quotaDevice(t, u.ID(), enrolledMAC, 0)

	err := f.engine.Tick(context.Background())
	require.NoError(t, err)

	require.Len(t, f.enroller.calls, 1)
	assert.Equal(t, enrolledMAC, f.enroller.calls[0].mac)
	assert.Equal(t, "10.5.50.99", f.enroller.calls[0].ip)

	// Pre-enrollment traffic seeds the baseline and is never charged.
	assert.Equal(t, uint64(50<<20), f.baselines.m[enrolledMAC])
	assert.Zero(t, u.TotalUsedMB())
	assert.Empty(t, f.usageLogs.deltas)
}

func TestTickSkipsUserHeldByAnotherInstance(t *testing.T) {
	u := approvedQuotaUser(t, 10240, 0)
	hosts := map[string]router.HostUsage{
		"AA:BB:CC:11:22:33": {MAC: "AA:BB:CC:11:22:33", BytesIn: 1 << 20, BytesOut: 0},
	}
	f := newEngineFixture(u, []*device.Device{quotaDevice(t, u.ID(), "aa:bb:cc:11:22:33", 0)}, hosts)
	f.locks.denied = true

	err := f.engine.Tick(context.Background())
	require.NoError(t, err)

	assert.Zero(t, u.TotalUsedMB())
	assert.Zero(t, f.users.updated)
	assert.Empty(t, f.usageLogs.deltas)
}

func TestTickCounterResetChargesCurrentValue(t *testing.T) {
	u := approvedQuotaUser(t, 10240, 0)
	d := quotaDevice(t, u.ID(), "aa:bb:cc:11:22:33", 10<<20)
	hosts := map[string]router.HostUsage{
		"AA:BB:CC:11:22:33": {MAC: "AA:BB:CC:11:22:33", BytesIn: 2 << 20, BytesOut: 0},
	}
	f := newEngineFixture(u, []*device.Device{d}, hosts)
	f.baselines.m["AA:BB:CC:11:22:33"] = 10 << 20

	err := f.engine.Tick(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 2.0, u.TotalUsedMB(), 0.001)
	assert.Equal(t, uint64(2<<20), f.baselines.m["AA:BB:CC:11:22:33"])
}

func TestTickIPHintPrefersBindingSnapshot(t *testing.T) {
	u := approvedQuotaUser(t, 10240, 0)
	d := quotaDevice(t, u.ID(), "aa:bb:cc:11:22:33", 0)
	f := newEngineFixture(u, []*device.Device{d}, map[string]router.HostUsage{})
	f.snapshots.bindings = map[string]router.BindingEntry{
		"AA:BB:CC:11:22:33": {MAC: "AA:BB:CC:11:22:33", Address: "10.5.50.7", UserID: u.ID().String()},
	}

	err := f.engine.Tick(context.Background())
	require.NoError(t, err)

	require.Len(t, f.coordinator.syncHints, 1)
	assert.Equal(t, "10.5.50.7", f.coordinator.syncHints[0])
}
