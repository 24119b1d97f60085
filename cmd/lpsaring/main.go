package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lpsaring",
		Short: "Hotspot access-control and quota-enforcement engine",
		Long:  `lpsaring reconciles hotspot access state between the app database, a MikroTik RouterOS edge router, and the shared cache: device bindings, quota accounting, and access parity.`,
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newAuditCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
