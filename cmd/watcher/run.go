package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sollane/worldstate-watcher/internal/gateway"
	"github.com/sollane/worldstate-watcher/internal/monitor"
	"github.com/sollane/worldstate-watcher/internal/notify"
	"github.com/sollane/worldstate-watcher/internal/server"
	"github.com/sollane/worldstate-watcher/internal/subscription"
	"github.com/sollane/worldstate-watcher/internal/worldstate"
)

func newGateway() *gateway.HTTPClient {
	return gateway.NewClient(gateway.Options{
		URL:           cfg.Upstream.URL,
		Timeout:       cfg.UpstreamTimeout(),
		MinInterval:   time.Duration(cfg.Upstream.MinIntervalMs) * time.Millisecond,
		Jitter:        time.Duration(cfg.Upstream.JitterMs) * time.Millisecond,
		RatePerMinute: cfg.Upstream.RatePerMinute,
		RetryCount:    cfg.Upstream.RetryCount,
		RetryDelay:    time.Duration(cfg.Upstream.RetryDelaySec) * time.Second,
		MaxRetryDelay: time.Duration(cfg.Upstream.RetryMaxDelaySec) * time.Second,
	}, logger)
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the fissure watcher daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := subscription.NewStore(cfg.Subscriptions.File, cfg.Subscriptions.MaxPerOwner, logger)
			if err != nil {
				return err
			}

			gw := newGateway()
			cache := worldstate.NewCache(gw, cfg.CacheTTL(), logger)
			dispatcher := notify.New(&cfg.Notify, logger)

			hub, err := server.NewHub(logger)
			if err != nil {
				return fmt.Errorf("creating event hub: %w", err)
			}

			mon := monitor.New(monitor.Options{
				Source:     cache,
				Store:      store,
				Dispatcher: dispatcher,
				Interval:   cfg.MonitorInterval(),
				Broadcast:  hub.Broadcast,
			}, logger)

			logger.Info("watcher starting",
				zap.String("upstream", cfg.Upstream.URL),
				zap.Duration("interval", cfg.MonitorInterval()),
				zap.Int("subscriptions", store.Len()),
				zap.Bool("notify", cfg.Notify.Enabled),
				zap.Bool("server", cfg.Server.Enabled),
			)

			if cfg.Server.Enabled {
				srv := server.New(cache, mon, store, hub, logger)
				go func() {
					if err := srv.Run(ctx, cfg.Server.Listen); err != nil {
						logger.Error("status server exited", zap.Error(err))
					}
				}()
			}

			mon.Run(ctx)
			logger.Info("watcher stopped")
			return nil
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Fetch the world state once and print active fissures",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			gw := newGateway()
			cache := worldstate.NewCache(gw, cfg.CacheTTL(), logger)

			snap, err := cache.Fetch(ctx, true)
			if err != nil {
				return fmt.Errorf("fetching world state: %w", err)
			}

			events := snap.Events(worldstate.RawResolver{})
			fmt.Printf("Fetched at %s, %d active fissures\n",
				snap.FetchedAt.Format(time.RFC3339), len(events))

			now := time.Now()
			for _, ev := range events {
				left := "expired"
				if !ev.Expired(now) && !ev.Expiry.IsZero() {
					left = ev.Expiry.Sub(now).Round(time.Minute).String()
				}
				fmt.Printf("  %-10s %-20s %-8s %s (%s left)\n",
					ev.Tier, ev.MissionType, ev.Difficulty(), ev.Node, left)
			}
			return nil
		},
	}
}
