package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const ssmOperationTimeout = 15 * time.Second

// cronSecretBytes is 256 bits, hex-encoded to 64 characters.
const cronSecretBytes = 32

var validEnvironments = map[string]bool{
	"dev":     true,
	"staging": true,
	"prod":    true,
}

// parameter maps an environment variable to its Parameter Store key.
type parameter struct {
	EnvVar string
	Key    string
	Secure bool
}

// parameterInventory lists every value the relay can read from Parameter
// Store through an <ENV_VAR>_SSM_PARAM pointer.
var parameterInventory = []parameter{
	{EnvVar: "HUBSPOT_PRIVATE_APP_CLIENT_SECRET", Key: "hubspot/private_app_client_secret", Secure: true},
	{EnvVar: "HUBSPOT_PRIVATE_APP_ACCESS_TOKEN", Key: "hubspot/private_app_access_token", Secure: true},
	{EnvVar: "HUBSPOT_PUBLIC_APP_CLIENT_ID", Key: "hubspot/public_app_client_id"},
	{EnvVar: "HUBSPOT_PUBLIC_APP_CLIENT_SECRET", Key: "hubspot/public_app_client_secret", Secure: true},
	{EnvVar: "SLACK_WEBHOOK_URL", Key: "slack/webhook_url", Secure: true},
	{EnvVar: "CRON_SECRET", Key: "cron/secret", Secure: true},
}

func lookupParameter(envVar string) (parameter, bool) {
	for _, p := range parameterInventory {
		if p.EnvVar == envVar {
			return p, true
		}
	}
	return parameter{}, false
}

// SSMClient is the subset of the SSM API used by the params commands.
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// ParamStore reads and writes the relay's parameters under
// /{environment}/hubrelay/.
type ParamStore struct {
	client SSMClient
	env    string
	logger *slog.Logger
}

func NewParamStore(client SSMClient, env string, logger *slog.Logger) *ParamStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParamStore{client: client, env: env, logger: logger}
}

// Path returns the absolute parameter path for key.
func (s *ParamStore) Path(key string) string {
	return fmt.Sprintf("/%s/hubrelay/%s", s.env, key)
}

// Put writes p. Secret values are never logged.
func (s *ParamStore) Put(ctx context.Context, p parameter, value string, overwrite bool) error {
	if value == "" {
		return fmt.Errorf("value for %s must not be empty", p.EnvVar)
	}
	path := s.Path(p.Key)
	paramType := ssmtypes.ParameterTypeString
	if p.Secure {
		paramType = ssmtypes.ParameterTypeSecureString
	}

	opCtx, cancel := context.WithTimeout(ctx, ssmOperationTimeout)
	defer cancel()

	_, err := s.client.PutParameter(opCtx, &ssm.PutParameterInput{
		Name:      aws.String(path),
		Value:     aws.String(value),
		Type:      paramType,
		Overwrite: aws.Bool(overwrite),
	})
	if err != nil {
		var exists *ssmtypes.ParameterAlreadyExists
		if errors.As(err, &exists) {
			return fmt.Errorf("parameter %q already exists (use --overwrite): %w", path, err)
		}
		return fmt.Errorf("writing parameter %q: %w", path, err)
	}

	if p.Secure {
		s.logger.Info("parameter written", "path", path, "type", string(paramType), "value_length", len(value))
	} else {
		s.logger.Info("parameter written", "path", path, "type", string(paramType), "value", value)
	}
	return nil
}

// Get reads p, decrypting SecureStrings. ok is false when the parameter does
// not exist.
func (s *ParamStore) Get(ctx context.Context, p parameter) (value string, ok bool, err error) {
	path := s.Path(p.Key)

	opCtx, cancel := context.WithTimeout(ctx, ssmOperationTimeout)
	defer cancel()

	out, err := s.client.GetParameter(opCtx, &ssm.GetParameterInput{
		Name:           aws.String(path),
		WithDecryption: aws.Bool(p.Secure),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading parameter %q: %w", path, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", false, fmt.Errorf("parameter %q has no value", path)
	}
	return aws.ToString(out.Parameter.Value), true, nil
}

// Export reads every inventory parameter present in the store. Missing ones
// are skipped.
func (s *ParamStore) Export(ctx context.Context) (map[string]string, error) {
	env := make(map[string]string, len(parameterInventory))
	for _, p := range parameterInventory {
		v, ok, err := s.Get(ctx, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.logger.Warn("parameter not found, skipping", "path", s.Path(p.Key))
			continue
		}
		env[p.EnvVar] = v
	}
	return env, nil
}

func generateToken() (string, error) {
	buf := make([]byte, cronSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

type paramsFlags struct {
	env     string
	profile string
	region  string
}

// storeFactory builds the ParamStore for a command. Tests replace it.
var storeFactory = func(ctx context.Context, f paramsFlags, logger *slog.Logger) (*ParamStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if f.region != "" {
		opts = append(opts, awsconfig.WithRegion(f.region))
	}
	if f.profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(f.profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewParamStore(ssm.NewFromConfig(cfg), f.env, logger), nil
}

func newParamsCmd() *cobra.Command {
	flags := paramsFlags{}
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Manage the relay's Parameter Store values",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !validEnvironments[flags.env] {
				return fmt.Errorf("invalid environment %q (must be dev, staging, or prod)", flags.env)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&flags.env, "env", "", "Target environment (dev/staging/prod) [required]")
	cmd.PersistentFlags().StringVar(&flags.profile, "profile", "", "AWS CLI profile")
	cmd.PersistentFlags().StringVar(&flags.region, "region", "us-east-1", "AWS region")

	open := func(cmd *cobra.Command) (*ParamStore, error) {
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelInfo}))
		return storeFactory(cmd.Context(), flags, logger)
	}

	cmd.AddCommand(newParamsPutCmd(open), newParamsGenerateCmd(open), newParamsExportCmd(open), newParamsListCmd(open))
	return cmd
}

type storeOpener func(cmd *cobra.Command) (*ParamStore, error)

func newParamsPutCmd(open storeOpener) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "put ENV_VAR",
		Short: "Store a value read from stdin and print its pointer variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := lookupParameter(args[0])
			if !ok {
				return fmt.Errorf("unknown parameter %q", args[0])
			}
			value, err := readLine(cmd.InOrStdin())
			if err != nil {
				return err
			}
			store, err := open(cmd)
			if err != nil {
				return err
			}
			if err := store.Put(cmd.Context(), p, value, overwrite); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s_SSM_PARAM=%s\n", p.EnvVar, store.Path(p.Key))
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing value")
	return cmd
}

func newParamsGenerateCmd(open storeOpener) *cobra.Command {
	var overwrite bool
	return &cobra.Command{
		Use:   "generate-cron-secret",
		Short: "Generate and store a random CRON_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := generateToken()
			if err != nil {
				return err
			}
			store, err := open(cmd)
			if err != nil {
				return err
			}
			p, _ := lookupParameter("CRON_SECRET")
			if err := store.Put(cmd.Context(), p, token, overwrite); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s_SSM_PARAM=%s\n", p.EnvVar, store.Path(p.Key))
			return nil
		},
	}
}

func newParamsExportCmd(open storeOpener) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored values to a dotenv file for local runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			env, err := store.Export(cmd.Context())
			if err != nil {
				return err
			}
			env["APP_ENV"] = "local"
			if err := godotenv.Write(env, out); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			if err := os.Chmod(out, 0o600); err != nil {
				return fmt.Errorf("restricting %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d values to %s\n", len(env), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", ".env", "Output path")
	return cmd
}

func newParamsListCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show which parameters are set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			rows := make([]string, 0, len(parameterInventory))
			for _, p := range parameterInventory {
				_, ok, err := store.Get(cmd.Context(), p)
				if err != nil {
					return err
				}
				state := "missing"
				if ok {
					state = "set"
				}
				rows = append(rows, fmt.Sprintf("%-36s %-8s %s", p.EnvVar, state, store.Path(p.Key)))
			}
			sort.Strings(rows)
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(rows, "\n"))
			return nil
		},
	}
}

// readLine returns the first line of r, trimmed.
func readLine(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("reading value: %w", err)
		}
		return "", fmt.Errorf("no value on stdin")
	}
	return strings.TrimSpace(sc.Text()), nil
}
