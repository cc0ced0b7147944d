package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/menudesk/internal/app"
	"github.com/Additional-Code/menudesk/internal/config"
	"github.com/Additional-Code/menudesk/internal/feed"
	"github.com/Additional-Code/menudesk/internal/localstore"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow live orders, printing and announcing new ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenants, _ := cmd.Flags().GetStringSlice("tenant")
			interval, _ := cmd.Flags().GetDuration("interval")

			var (
				mgr   *feed.Manager
				local *localstore.Store
			)
			opts := fx.Options(
				app.Feed,
				fx.Decorate(func(cfg config.Config) config.Config {
					if len(tenants) > 0 {
						cfg.Feed.Tenants = tenants
					}
					if interval > 0 {
						cfg.Feed.PollInterval = interval
					}
					return cfg
				}),
				fx.Populate(&mgr, &local),
			)
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				return NewConsole(mgr, local, cmd.OutOrStdout()).Run(ctx, cmd.InOrStdin())
			})
		},
	}
	cmd.Flags().StringSlice("tenant", nil, "Tenant to follow (repeatable; defaults to FEED_TENANTS)")
	cmd.Flags().Duration("interval", 0, "Poll interval (defaults to FEED_POLL_INTERVAL)")
	return cmd
}
