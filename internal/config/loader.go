// loader.go resolves the relay configuration at process start.
//
// Order of operations:
//  1. Pin time.Local to UTC so that only the composer applies a display zone.
//  2. Load .env (missing file is fine, existing variables win).
//  3. Outside APP_ENV=local, resolve every FOO_SSM_PARAM pointer into FOO.
//  4. Populate Config from envconfig tags.
//  5. Attach linker-injected build metadata.
//  6. Validate with go-playground/validator.
package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError wraps a loading failure with its category.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix marks pointer variables: SLACK_WEBHOOK_URL_SSM_PARAM holds
// the parameter path whose value becomes SLACK_WEBHOOK_URL.
const ssmParamSuffix = "_SSM_PARAM"

const localEnv = "local"

// ssmResolveTimeout bounds the whole SSM step during a cold start.
const ssmResolveTimeout = 30 * time.Second

// osEnv is the slice of the process environment the loader touches. Tests
// replace it with an in-memory map.
type osEnv struct {
	lookup  func(key string) (string, bool)
	set     func(key, value string) error
	environ func() []string
}

func processEnv() osEnv {
	return osEnv{
		lookup:  os.LookupEnv,
		set:     os.Setenv,
		environ: os.Environ,
	}
}

// LoadConfig loads and validates the relay configuration. provider may be
// nil when APP_ENV is local or no _SSM_PARAM pointers are present.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return load(provider, processEnv())
}

func load(provider SecretProvider, env osEnv) (*Config, error) {
	time.Local = time.UTC

	_ = godotenv.Load()

	if appEnv, _ := env.lookup("APP_ENV"); appEnv != localEnv {
		if err := resolvePointers(provider, env); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{Type: ErrParsing, Message: "failed to process environment configuration", Err: err}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{Type: ErrValidation, Message: "configuration validation failed", Err: err}
	}

	return &cfg, nil
}

// ResolveSecrets runs only the SSM pointer step. Worker entrypoints that
// read a handful of variables directly call it before anything else.
func ResolveSecrets(provider SecretProvider) error {
	env := processEnv()
	if appEnv, _ := env.lookup("APP_ENV"); appEnv == localEnv {
		return nil
	}
	return resolvePointers(provider, env)
}

// resolvePointers fetches every pending _SSM_PARAM pointer in one batch and
// writes the values into the environment. A target variable that is already
// set is left alone.
func resolvePointers(provider SecretProvider, env osEnv) error {
	// path -> target variable
	pending := make(map[string]string)

	for _, entry := range env.environ() {
		key, path, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasSuffix(key, ssmParamSuffix) || path == "" {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, set := env.lookup(target); set {
			continue
		}
		pending[path] = target
	}

	if len(pending) == 0 {
		return nil
	}

	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	if provider == nil {
		targets := make([]string, 0, len(paths))
		for _, p := range paths {
			targets = append(targets, pending[p])
		}
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: "a SecretProvider is required to resolve: " + strings.Join(targets, ", "),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), ssmResolveTimeout)
	defer cancel()

	values, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, p := range paths {
		target := pending[p]
		v, ok := values[p]
		if !ok {
			missing = append(missing, target)
			continue
		}
		if err := env.set(target, v); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: "failed to set resolved value for " + target,
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: "SSM parameters not found for: " + strings.Join(missing, ", "),
		}
	}
	return nil
}
