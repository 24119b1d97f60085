// Package scheduler drives the periodic reconciliation tasks using gocron v2.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/lpsaring/lpsaring/internal/infrastructure/metrics"
	"github.com/lpsaring/lpsaring/internal/shared/biztime"
	sharedConfig "github.com/lpsaring/lpsaring/internal/shared/config"
	"github.com/lpsaring/lpsaring/internal/shared/errors"
	"github.com/lpsaring/lpsaring/internal/shared/logger"
)

// TaskFunc is one scheduled unit of work bounded by its context deadline.
type TaskFunc func(ctx context.Context) error

// LeaderLocks elects a single runner per task name across instances.
type LeaderLocks interface {
	AcquireTaskLeaderLock(ctx context.Context, task string, ttl time.Duration) (bool, func())
}

// Manager owns the single gocron scheduler instance. Every task runs inside
// the same envelope: leader lock, wall-time budget, panic recovery, and
// run/failure metrics.
type Manager struct {
	scheduler gocron.Scheduler
	locks     LeaderLocks
	metrics   *metrics.Metrics
	log       logger.Interface

	started   bool
	startedMu sync.RWMutex
}

// NewManager creates the scheduler in the business timezone so cron
// expressions follow local day boundaries.
func NewManager(locks LeaderLocks, m *metrics.Metrics, log logger.Interface) (*Manager, error) {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(biztime.Location()),
	)
	if err != nil {
		return nil, err
	}
	return &Manager{
		scheduler: s,
		locks:     locks,
		metrics:   m,
		log:       log.Named("scheduler"),
	}, nil
}

// runTask is the shared task envelope.
func (m *Manager) runTask(name string, budget time.Duration, fn TaskFunc) {
	lockCtx, lockCancel := context.WithTimeout(context.Background(), 10*time.Second)
	held, release := m.locks.AcquireTaskLeaderLock(lockCtx, name, budget+30*time.Second)
	lockCancel()
	if !held {
		m.metrics.TaskRuns.WithLabelValues(name, "skipped").Inc()
		m.log.Debugw("another instance leads this task, skipping", "task", name)
		return
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			m.metrics.TaskRuns.WithLabelValues(name, "panic").Inc()
			m.metrics.TaskFailures.WithLabelValues(name).Inc()
			m.log.Errorw("task panicked", "task", name, "panic", fmt.Sprintf("%v", r))
		}
	}()

	start := biztime.NowUTC()
	err := fn(ctx)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		m.metrics.TaskRuns.WithLabelValues(name, "ok").Inc()
		m.log.Debugw("task completed", "task", name, "elapsed", elapsed)
	case ctx.Err() == context.DeadlineExceeded:
		overrun := errors.New(errors.KindSchedulerOverrun,
			fmt.Sprintf("task %s exceeded its %s budget", name, budget))
		m.metrics.TaskRuns.WithLabelValues(name, "overrun").Inc()
		m.metrics.TaskFailures.WithLabelValues(name).Inc()
		m.log.Errorw("task overran its budget, partial results kept",
			"task", name, "budget", budget, "elapsed", elapsed, "error", overrun)
	default:
		m.metrics.TaskRuns.WithLabelValues(name, "error").Inc()
		m.metrics.TaskFailures.WithLabelValues(name).Inc()
		m.log.Errorw("task failed", "task", name, "elapsed", elapsed, "error", err)
	}
}

// RegisterQuotaSyncJob schedules the quota engine tick. The first run fires
// immediately so a restart never waits a full interval.
func (m *Manager) RegisterQuotaSyncJob(tick TaskFunc, intervalMinutes int) error {
	if intervalMinutes <= 0 {
		intervalMinutes = 5
	}
	interval := time.Duration(intervalMinutes) * time.Minute

	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			m.runTask("quota_sync", interval, tick)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("quota", "sync"),
		gocron.WithName("quota-sync"),
	)
	if err != nil {
		return err
	}

	m.log.Infow("registered quota sync job", "interval", interval)
	return nil
}

// RegisterMacWarmJob schedules the MAC-cache warming pass. No-op when
// warming is disabled.
func (m *Manager) RegisterMacWarmJob(warm TaskFunc, cfg *sharedConfig.WorkerConfig) error {
	if !cfg.WarmMacEnabled {
		m.log.Infow("mac cache warming disabled")
		return nil
	}
	minutes := cfg.WarmMacIntervalMinutes
	if minutes <= 0 {
		minutes = 5
	}
	interval := time.Duration(minutes) * time.Minute

	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			m.runTask("warm_mac", interval, warm)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("cache", "warm-mac"),
		gocron.WithName("warm-mac"),
	)
	if err != nil {
		return err
	}

	m.log.Infow("registered mac warm job", "interval", interval, "batch", cfg.WarmMacBatchSize)
	return nil
}

// RegisterDeviceCleanupJob schedules the daily stale-device sweep at 03:30
// business timezone, outside hotspot peak hours.
func (m *Manager) RegisterDeviceCleanupJob(cleanup TaskFunc) error {
	_, err := m.scheduler.NewJob(
		gocron.CronJob("30 3 * * *", false),
		gocron.NewTask(func() {
			m.runTask("device_cleanup", 15*time.Minute, cleanup)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("registry", "cleanup"),
		gocron.WithName("device-cleanup"),
	)
	if err != nil {
		return err
	}

	m.log.Infow("registered device cleanup job", "schedule", "daily 03:30")
	return nil
}

// RegisterParityAuditJob schedules the hourly access parity audit.
func (m *Manager) RegisterParityAuditJob(audit TaskFunc) error {
	_, err := m.scheduler.NewJob(
		gocron.CronJob("0 * * * *", false),
		gocron.NewTask(func() {
			m.runTask("parity_audit", 15*time.Minute, audit)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("audit"),
		gocron.WithName("parity-audit"),
	)
	if err != nil {
		return err
	}

	m.log.Infow("registered parity audit job", "schedule", "hourly")
	return nil
}

// Start starts the scheduler and all registered jobs.
func (m *Manager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.log.Infow("scheduler started", "job_count", len(m.scheduler.Jobs()))
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (m *Manager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	err := m.scheduler.Shutdown()
	m.started = false
	if err != nil {
		m.log.Errorw("scheduler shutdown with error", "error", err)
		return err
	}

	m.log.Infow("scheduler stopped")
	return nil
}

// IsStarted reports whether the scheduler is running.
func (m *Manager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}

// Jobs returns all registered jobs for inspection.
func (m *Manager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}
