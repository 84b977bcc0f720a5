package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hubrelay/internal/events"
	"hubrelay/internal/notifications/slack"
)

// newComposeCmd renders the Slack payloads a webhook body would produce,
// without sending anything.
func newComposeCmd() *cobra.Command {
	var (
		tz         string
		appBaseURL string
	)
	cmd := &cobra.Command{
		Use:   "compose [body-file]",
		Short: "Render Slack payloads for a HubSpot webhook body",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(cmd, argOrStdin(args))
			if err != nil {
				return err
			}
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("loading timezone %q: %w", tz, err)
			}

			evs, err := events.FromWebhookBody(body, time.Now())
			if err != nil {
				return fmt.Errorf("normalizing body: %w", err)
			}

			opts := slack.Options{Location: loc, AppBaseURL: appBaseURL}
			payloads := make([]slack.Payload, 0, len(evs))
			for _, ev := range evs {
				payloads = append(payloads, slack.Render(slack.Compose(ev, opts)))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(payloads)
		},
	}
	cmd.Flags().StringVar(&tz, "tz", "Asia/Tokyo", "Display timezone")
	cmd.Flags().StringVar(&appBaseURL, "app-base-url", "https://app.hubspot.com", "HubSpot app base URL for record links")
	return cmd
}
