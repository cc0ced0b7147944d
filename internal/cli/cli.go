package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/menudesk/internal/app"
	"github.com/Additional-Code/menudesk/internal/localstore"
	"github.com/Additional-Code/menudesk/internal/migration"
	"github.com/Additional-Code/menudesk/internal/seeder"
)

// NewRootCommand builds the root menudesk CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "menudesk",
		Short:         "Restaurant order desk: ordering API, live order feed and receipt printing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newModuleCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newAutoPrintCmd())
	root.AddCommand(newLocalCmd())

	return root
}

// Execute runs the menudesk CLI.
func Execute(ctx context.Context) error {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"run"},
		Short:   "Run the HTTP and gRPC services",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := app.Module
			if withFeed, _ := cmd.Flags().GetBool("feed"); withFeed {
				opts = app.All
			}
			return runUntilDone(cmd.Context(), opts)
		},
	}
	cmd.Flags().Bool("feed", false, "Also poll FEED_TENANTS and print/announce new orders")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				version, pending, err := mig.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d, %d pending\n", version, pending)
				return nil
			})
		},
	}

	cmd.AddCommand(upCmd, downCmd, statusCmd)
	return cmd
}

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert demo orders for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			var seed *seeder.Seeder
			opts := fx.Options(app.Core, seeder.Module, fx.Populate(&seed))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				n, err := seed.Orders(ctx, tenant)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d orders for %s\n", n, tenant)
				return nil
			})
		},
	}
	cmd.Flags().String("tenant", "demo", "Tenant to seed")
	return cmd
}

func newModuleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "module",
		Short: "Scaffold modules",
	}
	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new domain module under internal/",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			files, err := Scaffold(root, args[0])
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", f)
			}
			return nil
		},
	}
	create.Flags().String("root", ".", "Repository root")
	cmd.AddCommand(create)
	return cmd
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run worker engine (receipt printing, order audit log)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), app.Worker)
		},
	})
	return cmd
}

func newAutoPrintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autoprint",
		Short: "Show or change automatic receipt printing",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the current setting",
		RunE: func(cmd *cobra.Command, args []string) error {
			var local *localstore.Store
			return runWithApp(cmd.Context(), fx.Options(app.Core, fx.Populate(&local)), func(ctx context.Context) error {
				fmt.Fprintln(cmd.OutOrStdout(), onOff(local.AutoPrint(ctx)))
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:       "set [on|off]",
		Short:     "Turn automatic printing on or off",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			var local *localstore.Store
			return runWithApp(cmd.Context(), fx.Options(app.Core, fx.Populate(&local)), func(ctx context.Context) error {
				if err := local.SetAutoPrint(ctx, enabled); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "auto-print %s\n", onOff(enabled))
				return nil
			})
		},
	})
	return cmd
}

func newLocalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local",
		Short: "Inspect the local order snapshot",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset TENANT",
		Short: "Drop a tenant's local order snapshot",
		Long:  "Drop a tenant's local order snapshot. Orders that never reached the remote store are lost.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var local *localstore.Store
			return runWithApp(cmd.Context(), fx.Options(app.Core, fx.Populate(&local)), func(ctx context.Context) error {
				return resetLocal(ctx, local, args[0], cmd.OutOrStdout())
			})
		},
	})
	return cmd
}

func resetLocal(ctx context.Context, local *localstore.Store, tenantID string, out io.Writer) error {
	// an unreadable snapshot is still dropped
	orders, err := local.LoadOrders(ctx, tenantID)
	if err != nil {
		fmt.Fprintf(out, "snapshot for %s unreadable: %v\n", tenantID, err)
	}
	offline := 0
	for _, o := range orders {
		if o.Offline {
			offline++
		}
	}
	if err := local.RemoveOrders(ctx, tenantID); err != nil {
		return fmt.Errorf("reset %s: %w", tenantID, err)
	}
	fmt.Fprintf(out, "dropped %d orders for %s (%d offline)\n", len(orders), tenantID, offline)
	return nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
	return v, nil
}

func runUntilDone(ctx context.Context, opts fx.Option) error {
	application := fx.New(opts)
	if err := application.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return application.Stop(stopCtx)
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
