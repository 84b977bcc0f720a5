package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"hubrelay/internal/app"
)

// newPollCmd runs one poll pass from the local environment. Submissions in
// the lookback window are posted to the configured Slack webhook.
func newPollCmd() *cobra.Command {
	var lookback time.Duration
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run one form submissions poll pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if lookback > 0 {
				cfg.Poller.InitialLookback = lookback
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
			comps, err := app.Build(cmd.Context(), cfg, logger, app.Options{})
			if err != nil {
				return err
			}
			if comps.Poller == nil {
				return fmt.Errorf("HUBSPOT_PRIVATE_APP_ACCESS_TOKEN and SLACK_WEBHOOK_URL must both be set")
			}

			res, err := comps.Poller.Poll(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().DurationVar(&lookback, "lookback", 0, "How far back to look (default POLL_INITIAL_LOOKBACK)")
	return cmd
}
