package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stackwatch/election-observer/internal/api"
	"github.com/stackwatch/election-observer/internal/metrics"
	"github.com/stackwatch/election-observer/internal/notify"
	"github.com/stackwatch/election-observer/internal/observer"
)

func runCmd() *cobra.Command {
	var (
		noUpdate bool
		noWrite  bool
		forever  bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch new badge awards, persist them, and render charts",
		Long: `Run one update cycle: fetch badge awards newer than the local data,
merge and persist them, then render the election charts.

Examples:
  # Single update cycle
  election-observer run

  # Chart from on-disk data without touching the network
  election-observer run --no-update

  # Fetch and chart but keep the data directory read-only
  election-observer run --no-write

  # Keep observing until interrupted, five minutes between cycles
  election-observer run --forever --interval 5m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			notifyCfg := notify.LoadConfig()
			if err := notifyCfg.Validate(); err != nil {
				return err
			}

			client := api.NewClient(
				cfg.API.BaseURL,
				cfg.API.Key,
				cfg.API.PageSize,
				cfg.Fetch.RatePerSecond,
				time.Duration(cfg.API.TimeoutSec)*time.Second,
				time.Duration(cfg.API.RetryDelay)*time.Second,
				cfg.API.RetryCount,
				logger,
			)

			var m *metrics.Metrics
			if cfg.Metrics.Enabled && forever {
				m = metrics.New()
				go func() {
					if err := m.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
						logger.Error("metrics endpoint failed", zap.Error(err))
					}
				}()
			}

			obs, err := observer.New(cfg, client, notify.New(notifyCfg, logger), m, logger)
			if err != nil {
				return err
			}

			return obs.Run(ctx, observer.Options{
				NoUpdate: noUpdate,
				NoWrite:  noWrite,
				Forever:  forever,
				Interval: interval,
			})
		},
	}

	cmd.Flags().BoolVarP(&noUpdate, "no-update", "n", false, "skip fetching, use on-disk data only")
	cmd.Flags().BoolVarP(&noWrite, "no-write", "m", false, "never persist merged data")
	cmd.Flags().BoolVarP(&forever, "forever", "e", false, "repeat the cycle until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 0, "delay between cycles under --forever (default from config)")

	return cmd
}
