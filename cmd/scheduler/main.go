package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ehr/scheduler/internal/config"
	"github.com/ehr/scheduler/internal/domain/scheduling"
	"github.com/ehr/scheduler/internal/platform/db"
	"github.com/ehr/scheduler/migrations"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scheduler",
		Short: "Multi-tenant clinical scheduling service",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(gridCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduling API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run tenant schema migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations to one or more tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator, tenant string) error {
				count, err := m.Up(ctx, tenant)
				if err != nil {
					return fmt.Errorf("migrate tenant %s: %w", tenant, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "tenant %s: applied %d migration(s)\n", tenant, count)
				return nil
			})
		},
	}
	upCmd.Flags().String("tenant", "", "Comma-separated tenant ids (default: DEFAULT_TENANT)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator, tenant string) error {
				statuses, err := m.Status(ctx, tenant)
				if err != nil {
					return fmt.Errorf("migration status for %s: %w", tenant, err)
				}
				printStatus(cmd, tenant, statuses)
				return nil
			})
		},
	}
	statusCmd.Flags().String("tenant", "", "Comma-separated tenant ids (default: DEFAULT_TENANT)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(ctx context.Context, m *db.Migrator, tenant string) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flag, _ := cmd.Flags().GetString("tenant")
	tenants := tenantList(flag, cfg.DefaultTenant)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	m := db.NewMigrator(pool, migrations.FS)
	for _, tenant := range tenants {
		if err := fn(ctx, m, tenant); err != nil {
			return err
		}
	}
	return nil
}

func tenantList(flag, fallback string) []string {
	var out []string
	for _, t := range strings.Split(flag, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		out = []string{fallback}
	}
	return out
}

func printStatus(cmd *cobra.Command, tenant string, statuses []db.MigrationStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Migration status for tenant: %s\n", tenant)
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

// gridCmd prints the clock times of a window without touching the database.
func gridCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Print slot start times for a window",
		Example: "  scheduler grid --start 09:00 --end 12:00 --step 30",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			step, _ := cmd.Flags().GetInt("step")

			slots, err := scheduling.GenerateSlots(start, end, step)
			if err != nil {
				return err
			}
			for _, s := range slots {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
	cmd.Flags().String("start", "09:00", "Window start (HH:MM)")
	cmd.Flags().String("end", "17:00", "Window end, exclusive (HH:MM)")
	cmd.Flags().Int("step", 30, "Slot length in minutes")
	return cmd
}
