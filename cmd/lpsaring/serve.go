package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/lpsaring/lpsaring/internal/application/audit"
	"github.com/lpsaring/lpsaring/internal/application/binding"
	"github.com/lpsaring/lpsaring/internal/application/notification"
	"github.com/lpsaring/lpsaring/internal/application/quota"
	"github.com/lpsaring/lpsaring/internal/application/registry"
	"github.com/lpsaring/lpsaring/internal/infrastructure/cache"
	"github.com/lpsaring/lpsaring/internal/infrastructure/config"
	"github.com/lpsaring/lpsaring/internal/infrastructure/database"
	"github.com/lpsaring/lpsaring/internal/infrastructure/metrics"
	"github.com/lpsaring/lpsaring/internal/infrastructure/repository"
	"github.com/lpsaring/lpsaring/internal/infrastructure/router"
	"github.com/lpsaring/lpsaring/internal/infrastructure/scheduler"
	"github.com/lpsaring/lpsaring/internal/shared/biztime"
	"github.com/lpsaring/lpsaring/internal/shared/goroutine"
	"github.com/lpsaring/lpsaring/internal/shared/logger"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the reconciliation worker",
		Long:  `Starts the scheduler with the quota sync tick, MAC-cache warming, stale-device cleanup and the hourly access parity audit, plus the Prometheus metrics endpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	if err := biztime.Init(cfg.Worker.Timezone); err != nil {
		return fmt.Errorf("failed to initialize business timezone: %w", err)
	}

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()
	if err := database.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	gdb := database.Get()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	kv := cache.NewRedisKV(redisClient)

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg, cfg.Identity.LatencyBucketsMs)

	gateway := router.NewGateway(&cfg.Mikrotik, &cfg.Logger, log)
	defer gateway.Close()

	identityCache := cache.NewIdentityCache(&cfg.Identity, &cfg.Mikrotik, gateway, kv, m, log)
	lockStore := cache.NewLockStore(kv, log)
	lastBytes := cache.NewLastBytesStore(kv, log)

	userRepo := repository.NewUserRepository(gdb)
	deviceRepo := repository.NewDeviceRepository(gdb)
	usageRepo := repository.NewUsageRepository(gdb)

	policy := binding.NewPolicy(&cfg.Access, &cfg.Device, &cfg.Quota)
	coordinator := binding.NewCoordinator(gateway, policy, &cfg.Device, &cfg.Access, log)

	registrySvc := registry.NewService(deviceRepo, identityCache, gateway, coordinator, &cfg.Device, log)

	notifier := &notification.LogSender{Log: log.Named("notify")}

	engine := quota.NewEngine(
		userRepo, deviceRepo, usageRepo,
		gateway, coordinator, registrySvc,
		lockStore, lastBytes, notifier,
		&cfg.Quota, m, log,
	)

	auditor := audit.NewAuditor(userRepo, deviceRepo, coordinator, gateway, m, log)

	manager, err := scheduler.NewManager(lockStore, m, log)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if err := manager.RegisterQuotaSyncJob(scheduler.QuotaSyncTask(engine), cfg.Quota.SyncIntervalMinutes); err != nil {
		return err
	}
	if err := manager.RegisterMacWarmJob(
		scheduler.MacWarmTask(deviceRepo, identityCache, cfg.Worker.WarmMacBatchSize, log),
		&cfg.Worker,
	); err != nil {
		return err
	}
	if err := manager.RegisterDeviceCleanupJob(scheduler.DeviceCleanupTask(registrySvc, log)); err != nil {
		return err
	}
	if err := manager.RegisterParityAuditJob(scheduler.ParityAuditTask(auditor, cfg.Worker.AuditApply)); err != nil {
		return err
	}

	metricsSrv := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           metricsMux(promReg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	goroutine.SafeGo(log, "metrics-server", func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("metrics server failed", "error", err)
		}
	})

	manager.Start()
	log.Infow("worker running",
		"metrics_addr", cfg.Worker.MetricsAddr,
		"router", cfg.Mikrotik.GetAddr(),
		"audit_apply", cfg.Worker.AuditApply)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := manager.Stop(); err != nil {
		log.Errorw("scheduler stop failed", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("metrics server shutdown failed", "error", err)
	}

	log.Infow("worker stopped")
	return nil
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
