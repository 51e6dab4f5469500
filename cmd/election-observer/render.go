package main

import (
	"github.com/spf13/cobra"

	"github.com/stackwatch/election-observer/internal/notify"
	"github.com/stackwatch/election-observer/internal/observer"
)

func renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render election charts from on-disk data",
		Long: `Render the election charts from previously persisted badge data
without fetching or writing anything.

Examples:
  election-observer render`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			obs, err := observer.New(cfg, nil, &notify.NoopNotifier{}, nil, logger)
			if err != nil {
				return err
			}

			return obs.Run(cmd.Context(), observer.Options{
				NoUpdate: true,
				NoWrite:  true,
			})
		},
	}

	return cmd
}
