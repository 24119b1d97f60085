package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/lpsaring/lpsaring/internal/application/audit"
	"github.com/lpsaring/lpsaring/internal/application/binding"
	"github.com/lpsaring/lpsaring/internal/infrastructure/config"
	"github.com/lpsaring/lpsaring/internal/infrastructure/database"
	"github.com/lpsaring/lpsaring/internal/infrastructure/metrics"
	"github.com/lpsaring/lpsaring/internal/infrastructure/repository"
	"github.com/lpsaring/lpsaring/internal/infrastructure/router"
	"github.com/lpsaring/lpsaring/internal/shared/biztime"
	"github.com/lpsaring/lpsaring/internal/shared/logger"
)

// newAuditCommand runs one parity audit pass from the command line, useful
// for inspection before enabling apply mode in the worker.
func newAuditCommand() *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run one access parity audit pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(apply)
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "remediate mismatches instead of reporting only")
	return cmd
}

func runAudit(apply bool) error {
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
	gdb := database.Get()

	m := metrics.New(prometheus.NewRegistry(), cfg.Identity.LatencyBucketsMs)

	gateway := router.NewGateway(&cfg.Mikrotik, &cfg.Logger, log)
	defer gateway.Close()

	userRepo := repository.NewUserRepository(gdb)
	deviceRepo := repository.NewDeviceRepository(gdb)

	policy := binding.NewPolicy(&cfg.Access, &cfg.Device, &cfg.Quota)
	coordinator := binding.NewCoordinator(gateway, policy, &cfg.Device, &cfg.Access, log)
	auditor := audit.NewAuditor(userRepo, deviceRepo, coordinator, gateway, m, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	report, err := auditor.BuildReport(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("users checked: %d, mismatches: %d\n", report.UsersChecked, len(report.Items))
	for _, item := range report.Items {
		fmt.Printf("  %s phone=%s mac=%s ip=%s expected=(%s,%s)",
			item.Kind, item.Phone, item.MAC, item.IP, item.ExpectedType, item.ExpectedList)
		if item.ObservedType != "" {
			fmt.Printf(" observed_type=%s", item.ObservedType)
		}
		if len(item.ObservedLists) > 0 {
			fmt.Printf(" observed_lists=%v", item.ObservedLists)
		}
		fmt.Println()
		for _, a := range item.Actions {
			fmt.Printf("    -> %s (%s)\n", a.Name, a.Severity)
		}
	}

	if apply && len(report.Items) > 0 {
		if err := auditor.Apply(ctx, report); err != nil {
			return err
		}
		fmt.Println("remediation applied")
	}
	return nil
}
