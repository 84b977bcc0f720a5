// Command relayctl is the operator CLI for the relay.
//
// Usage:
//
//	relayctl sign --url https://relay.example.com/api/webhook/hubspot body.json
//	relayctl compose body.json
//	relayctl poll --lookback 1h
//	relayctl params put --env dev SLACK_WEBHOOK_URL < url.txt
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "relayctl",
		Short:         "Operate the HubSpot to Slack relay",
		SilenceUsage: true,
	}
	root.AddCommand(newSignCmd(), newComposeCmd(), newPollCmd(), newParamsCmd())
	return root
}

// readInput reads the named file, or stdin when name is "-" or empty.
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "" || name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return b, nil
}

func argOrStdin(args []string) string {
	if len(args) == 0 {
		return "-"
	}
	return args[0]
}
