package scheduler

import (
	"context"

	"github.com/lpsaring/lpsaring/internal/shared/logger"
)

// QuotaTicker runs one quota reconciliation pass.
type QuotaTicker interface {
	Tick(ctx context.Context) error
}

// IPWarmer refreshes the MAC identity cache for a batch of IPs.
type IPWarmer interface {
	WarmIPs(ctx context.Context, ips []string)
}

// RecentIPLister returns the most recently seen device IPs.
type RecentIPLister interface {
	ListRecentIPs(ctx context.Context, limit int) ([]string, error)
}

// StaleDeviceCleaner removes devices unseen past the stale window.
type StaleDeviceCleaner interface {
	CleanupStaleDevices(ctx context.Context) (int, error)
}

// ParityReporter builds the expected-vs-actual router state report and
// optionally remediates it.
type ParityReporter interface {
	Run(ctx context.Context, apply bool) error
}

// QuotaSyncTask adapts the quota engine to the task envelope.
func QuotaSyncTask(engine QuotaTicker) TaskFunc {
	return engine.Tick
}

// MacWarmTask touches recently seen IPs so ARP and the identity cache stay
// populated between logins.
func MacWarmTask(devices RecentIPLister, warmer IPWarmer, batch int, log logger.Interface) TaskFunc {
	if batch <= 0 {
		batch = 100
	}
	return func(ctx context.Context) error {
		ips, err := devices.ListRecentIPs(ctx, batch)
		if err != nil {
			return err
		}
		if len(ips) == 0 {
			return nil
		}
		warmer.WarmIPs(ctx, ips)
		log.Debugw("warmed mac cache", "ips", len(ips))
		return nil
	}
}

// DeviceCleanupTask runs the stale-device sweep.
func DeviceCleanupTask(cleaner StaleDeviceCleaner, log logger.Interface) TaskFunc {
	return func(ctx context.Context) error {
		removed, err := cleaner.CleanupStaleDevices(ctx)
		if err != nil {
			return err
		}
		if removed > 0 {
			log.Infow("stale device sweep finished", "removed", removed)
		}
		return nil
	}
}

// ParityAuditTask runs the hourly audit, report-only unless apply is set.
func ParityAuditTask(reporter ParityReporter, apply bool) TaskFunc {
	return func(ctx context.Context) error {
		return reporter.Run(ctx, apply)
	}
}
