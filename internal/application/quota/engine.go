package quota

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lpsaring/lpsaring/internal/application/notification"
	"github.com/lpsaring/lpsaring/internal/domain/access"
	"github.com/lpsaring/lpsaring/internal/domain/device"
	"github.com/lpsaring/lpsaring/internal/domain/usage"
	"github.com/lpsaring/lpsaring/internal/domain/user"
	"github.com/lpsaring/lpsaring/internal/infrastructure/metrics"
	"github.com/lpsaring/lpsaring/internal/infrastructure/router"
	"github.com/lpsaring/lpsaring/internal/shared/biztime"
	sharedConfig "github.com/lpsaring/lpsaring/internal/shared/config"
	"github.com/lpsaring/lpsaring/internal/shared/logger"
)

// Engine reconciles database quota state with live router counters. One
// Tick pulls two bulk router snapshots and then walks every quota-managed
// user; a single user's failure never aborts the tick.
type Engine struct {
	users     user.Repository
	devices   device.Repository
	usageLogs usage.Repository

	snapshots   RouterSnapshots
	coordinator Coordinator
	enroller    DeviceEnroller
	locks       Locks
	baselines   Baselines
	notifier    notification.Sender

	cfg     *sharedConfig.QuotaConfig
	metrics *metrics.Metrics
	log     logger.Interface
	now     func() time.Time

	// Users whose last profile push failed; retried next tick because the
	// persisted status no longer reads as a change.
	retryMu        sync.Mutex
	profileRetries map[uuid.UUID]bool
}

func NewEngine(
	users user.Repository,
	devices device.Repository,
	usageLogs usage.Repository,
	snapshots RouterSnapshots,
	coordinator Coordinator,
	enroller DeviceEnroller,
	locks Locks,
	baselines Baselines,
	notifier notification.Sender,
	cfg *sharedConfig.QuotaConfig,
	m *metrics.Metrics,
	log logger.Interface,
) *Engine {
	return &Engine{
		users:       users,
		devices:     devices,
		usageLogs:   usageLogs,
		snapshots:   snapshots,
		coordinator: coordinator,
		enroller:    enroller,
		locks:       locks,
		baselines:   baselines,
		notifier:    notifier,
		cfg:         cfg,
		metrics:     m,
		log:         log.Named("quota_engine"),
		now:         biztime.NowUTC,

		profileRetries: make(map[uuid.UUID]bool),
	}
}

// Tick runs one full reconciliation pass.
func (e *Engine) Tick(ctx context.Context) error {
	start := e.now()

	users, err := e.users.ListQuotaManaged(ctx)
	if err != nil {
		return fmt.Errorf("failed to load quota-managed users: %w", err)
	}
	if len(users) == 0 {
		return nil
	}

	hostUsage, err := e.snapshots.GetHotspotHostUsageMap(ctx)
	if err != nil {
		return fmt.Errorf("failed to snapshot host usage: %w", err)
	}

	bindings, err := e.snapshots.GetHotspotIPBindingUserMap(ctx)
	if err != nil {
		// The binding map only powers auto-enroll and the IP fallback;
		// delta accounting proceeds without it.
		e.log.Warnw("binding snapshot unavailable this tick", "error", err)
		bindings = nil
	}

	var failed int
	for _, u := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.metrics.QuotaSyncUsersTotal.Inc()
		if err := e.processUser(ctx, u, hostUsage, bindings); err != nil {
			failed++
			e.metrics.QuotaSyncUsersFailed.Inc()
			e.log.Errorw("user quota sync failed",
				"user_id", u.ID(), "phone", u.Phone(), "error", err)
		}
	}

	e.metrics.QuotaSyncTicks.Inc()
	e.metrics.QuotaSyncLastRunUnix.Set(float64(e.now().Unix()))
	e.log.Infow("quota sync tick completed",
		"users", len(users), "failed", failed, "elapsed", e.now().Sub(start))
	return nil
}

func (e *Engine) processUser(
	ctx context.Context,
	u *user.User,
	hostUsage map[string]router.HostUsage,
	bindings map[string]router.BindingEntry,
) error {
	ttl := time.Duration(e.cfg.SyncLockTTLSeconds) * time.Second
	ok, release := e.locks.AcquireUserSyncLock(ctx, u.ID(), ttl)
	if !ok {
		e.log.Debugw("user locked by another tick, skipping", "user_id", u.ID())
		return nil
	}
	defer release()

	userDevices, err := e.devices.ListByUser(ctx, u.ID())
	if err != nil {
		return err
	}

	userDevices = e.autoEnroll(ctx, u, userDevices, bindings, hostUsage)

	statusBefore := e.coordinator.ComputeTarget(u).Status

	deltaMB, err := e.accumulateDeltas(ctx, u, userDevices, hostUsage)
	if err != nil {
		return err
	}

	if deltaMB > 0 {
		if err := u.AddUsage(deltaMB); err != nil {
			return err
		}
		if err := e.usageLogs.AddDelta(ctx, u.ID(), biztime.LocalDate(e.now()), deltaMB); err != nil {
			return err
		}
	}

	target := e.coordinator.ComputeTarget(u)

	// Accounting is persisted before any router write. The baselines have
	// already advanced, so a failed profile push must not skip the user row.
	if err := e.users.Update(ctx, u); err != nil {
		return err
	}

	statusChanged := target.Status != statusBefore
	if statusChanged || e.profileRetryPending(u.ID()) {
		if err := e.coordinator.SetUserProfile(ctx, u, target.Profile); err != nil {
			e.setProfileRetry(u.ID(), true)
			return err
		}
		e.setProfileRetry(u.ID(), false)
		if statusChanged {
			e.notifyStatusChange(ctx, u, target.Status)
		}
	}

	ipHint := e.ipHint(ctx, userDevices, bindings)
	if err := e.coordinator.SyncUserAddressList(ctx, u, ipHint); err != nil {
		e.log.Warnw("address-list sync failed",
			"user_id", u.ID(), "error", err)
	}

	e.sendThresholdNotifications(ctx, u)
	return nil
}

func (e *Engine) profileRetryPending(id uuid.UUID) bool {
	e.retryMu.Lock()
	defer e.retryMu.Unlock()
	return e.profileRetries[id]
}

func (e *Engine) setProfileRetry(id uuid.UUID, pending bool) {
	e.retryMu.Lock()
	defer e.retryMu.Unlock()
	if pending {
		e.profileRetries[id] = true
		return
	}
	delete(e.profileRetries, id)
}

// autoEnroll registers devices the router already has managed bindings for
// but the registry does not know, up to the user's remaining slot budget.
// Newly enrolled devices get their baseline seeded from the live counter so
// pre-enrollment traffic is never charged.
func (e *Engine) autoEnroll(
	ctx context.Context,
	u *user.User,
	userDevices []*device.Device,
	bindings map[string]router.BindingEntry,
	hostUsage map[string]router.HostUsage,
) []*device.Device {
	if bindings == nil {
		return userDevices
	}

	known := make(map[string]bool, len(userDevices))
	for _, d := range userDevices {
		known[d.MAC().String()] = true
	}

	for mac, entry := range bindings {
		if entry.UserID != u.ID().String() || known[mac] {
			continue
		}
		_, d, err := e.enroller.RegisterOrUpdateDevice(ctx, u, entry.Address, "", mac, false)
		if err != nil {
			e.log.Debugw("auto-enroll rejected",
				"user_id", u.ID(), "mac", mac, "error", err)
			continue
		}
		if d != nil {
			e.log.Infow("auto-enrolled device from managed binding",
				"user_id", u.ID(), "mac", mac)
			if hu, ok := hostUsage[mac]; ok {
				e.baselines.Set(ctx, mac, hu.Total())
			}
			userDevices = append(userDevices, d)
			known[mac] = true
		}
	}
	return userDevices
}

// accumulateDeltas sums per-device byte deltas and advances baselines.
func (e *Engine) accumulateDeltas(
	ctx context.Context,
	u *user.User,
	userDevices []*device.Device,
	hostUsage map[string]router.HostUsage,
) (float64, error) {
	var totalBytes uint64
	now := e.now()

	for _, d := range userDevices {
		hu, ok := hostUsage[d.MAC().String()]
		if !ok {
			continue
		}
		current := hu.Total()

		// A registry device without a cached baseline started counting
		// at its recorded row value, zero included.
		last, hasLast := e.baselines.Get(ctx, d.MAC().String())
		if !hasLast {
			last, hasLast = d.LastBytesTotal(), true
		}

		delta := usageDelta(current, last, hasLast)
		totalBytes += delta

		e.baselines.Set(ctx, d.MAC().String(), current)
		if d.LastBytesTotal() != current {
			d.RecordBytesBaseline(current, now)
			if err := e.devices.Update(ctx, d); err != nil {
				return 0, err
			}
		}
	}

	return math.Round(bytesToMB(totalBytes)*100) / 100, nil
}

// ipHint finds a usable IP for the address-list fallback, preferring the
// binding snapshot over a live router call.
func (e *Engine) ipHint(ctx context.Context, userDevices []*device.Device, bindings map[string]router.BindingEntry) string {
	for _, d := range userDevices {
		if entry, ok := bindings[d.MAC().String()]; ok && entry.Address != "" {
			return entry.Address
		}
	}
	for _, d := range userDevices {
		if d.IPAddress() != "" {
			return d.IPAddress()
		}
	}
	for _, d := range userDevices {
		if ip, err := e.snapshots.GetIPByMAC(ctx, d.MAC().String()); err == nil && ip != "" {
			return ip
		}
	}
	return ""
}

func (e *Engine) notifyStatusChange(ctx context.Context, u *user.User, status access.Status) {
	var template string
	switch status {
	case access.StatusExpired:
		template = notification.TemplateQuotaExpired
	case access.StatusHabis:
		template = notification.TemplateQuotaExhausted
	case access.StatusFup:
		template = notification.TemplateQuotaFup
	default:
		return
	}
	e.notifier.Send(ctx, "whatsapp", string(u.Phone()), template, map[string]string{
		"phone":  string(u.Phone()),
		"status": status.String(),
	})
}

// sendThresholdNotifications fires at most one percentage and one expiry
// warning per tick, persisting the sent level so a threshold never repeats.
func (e *Engine) sendThresholdNotifications(ctx context.Context, u *user.User) {
	if u.IsUnlimited() || !u.Role().IsQuotaManaged() {
		return
	}

	dirty := false

	if level, fire := nextPercentThreshold(u.RemainingPercent(), u.LastNotifiedPercent(), e.cfg.NotifyPercentages); fire {
		sent := e.notifier.Send(ctx, "whatsapp", string(u.Phone()), notification.TemplateQuotaThreshold, map[string]string{
			"phone":             string(u.Phone()),
			"remaining_percent": fmt.Sprintf("%.2f", u.RemainingPercent()),
			"remaining_mb":      fmt.Sprintf("%.2f", u.RemainingMB()),
			"threshold":         fmt.Sprintf("%.0f", level),
		})
		if sent {
			u.MarkNotifiedPercent(level)
			dirty = true
		}
	}

	if exp := u.QuotaExpiresAt(); exp != nil {
		daysLeft := int(math.Ceil(exp.Sub(e.now()).Hours() / 24))
		if days, fire := nextDayThreshold(daysLeft, u.LastNotifiedDays(), e.cfg.ExpiryNotifyDays); fire {
			sent := e.notifier.Send(ctx, "whatsapp", string(u.Phone()), notification.TemplateExpiryWarning, map[string]string{
				"phone":     string(u.Phone()),
				"days_left": fmt.Sprintf("%d", daysLeft),
				"threshold": fmt.Sprintf("%d", days),
			})
			if sent {
				u.MarkNotifiedDays(days)
				dirty = true
			}
		}
	}

	if dirty {
		if err := e.users.Update(ctx, u); err != nil {
			e.log.Warnw("failed to persist notification level",
				"user_id", u.ID(), "error", err)
		}
	}
}
