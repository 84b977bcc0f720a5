package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"hubrelay/internal/security"
)

type signOptions struct {
	secret    string
	scheme    string
	method    string
	url       string
	timestamp int64
}

// newSignCmd prints the headers HubSpot would send with a body, for replaying
// captured webhooks against a deployment.
func newSignCmd() *cobra.Command {
	opts := signOptions{}
	cmd := &cobra.Command{
		Use:   "sign [body-file]",
		Short: "Print HubSpot signature headers for a request body",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(cmd, argOrStdin(args))
			if err != nil {
				return err
			}
			headers, err := signHeaders(opts, body, time.Now())
			if err != nil {
				return err
			}
			for _, name := range []string{
				security.HeaderSignatureVersion,
				security.HeaderSignature,
				security.HeaderSignatureV3,
				security.HeaderRequestTimestamp,
			} {
				if v := headers.Get(name); v != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, v)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.secret, "secret", os.Getenv("HUBSPOT_PRIVATE_APP_CLIENT_SECRET"), "Client secret (default $HUBSPOT_PRIVATE_APP_CLIENT_SECRET)")
	cmd.Flags().StringVar(&opts.scheme, "scheme", "v3", "Signature scheme: v3 or legacy")
	cmd.Flags().StringVar(&opts.method, "method", http.MethodPost, "HTTP method covered by a v3 signature")
	cmd.Flags().StringVar(&opts.url, "url", "", "Full request URL covered by a v3 signature")
	cmd.Flags().Int64Var(&opts.timestamp, "timestamp", 0, "Request timestamp in epoch ms (default now)")
	return cmd
}

func signHeaders(opts signOptions, body []byte, now time.Time) (http.Header, error) {
	if opts.secret == "" {
		return nil, fmt.Errorf("a client secret is required (--secret)")
	}
	h := http.Header{}
	switch opts.scheme {
	case "legacy", "v1":
		h.Set(security.HeaderSignature, security.SignLegacy(opts.secret, body))
	case "v3":
		if opts.url == "" {
			return nil, fmt.Errorf("--url is required for v3 signatures")
		}
		ts := opts.timestamp
		if ts == 0 {
			ts = now.UnixMilli()
		}
		tsStr := strconv.FormatInt(ts, 10)
		h.Set(security.HeaderSignatureVersion, "v3")
		h.Set(security.HeaderSignatureV3, security.SignV3(opts.secret, opts.method, opts.url, body, tsStr))
		h.Set(security.HeaderRequestTimestamp, tsStr)
	default:
		return nil, fmt.Errorf("unknown scheme %q (want v3 or legacy)", opts.scheme)
	}
	return h, nil
}
