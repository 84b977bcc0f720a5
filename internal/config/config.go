// Package config defines the configuration structure for the relay. It is
// loaded once at process initialization (Lambda cold start or server boot)
// and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Credentials that only some routes need (HubSpot token, Slack webhook URL)
// are optional at load time. Handlers check them per request and answer 500
// when they are missing, so that one misconfigured path does not take down
// the others.
package config

import (
	"time"

	"hubrelay/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Config is the top-level configuration struct.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"hubrelay"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	AWSRegion   string `envconfig:"AWS_REGION" default:"us-east-1"`

	Server        ServerConfig
	HubSpot       HubSpotConfig
	OAuth         OAuthConfig
	Slack         SlackConfig
	Poller        PollerConfig
	Fanout        FanoutConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// PublicBaseURL is the externally visible scheme+host used to rebuild the
	// request URL for v3 signature checks. When empty, https://<Host> is used.
	PublicBaseURL  string        `envconfig:"PUBLIC_BASE_URL" validate:"omitempty,url"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"25s"`
}

// HubSpotConfig holds the private app credentials and API endpoints.
type HubSpotConfig struct {
	ClientSecret SecretString `envconfig:"HUBSPOT_PRIVATE_APP_CLIENT_SECRET"`
	AccessToken  SecretString `envconfig:"HUBSPOT_PRIVATE_APP_ACCESS_TOKEN"`

	// RequireSignature rejects webhook calls without a signature header when
	// a client secret is configured.
	RequireSignature bool          `envconfig:"HUBSPOT_REQUIRE_SIGNATURE" default:"false"`
	MaxRequestAge    time.Duration `envconfig:"HUBSPOT_MAX_REQUEST_AGE" default:"5m"`

	// EnrichSubmissions fetches the latest submission of a form when a
	// form_submission webhook arrives without field values.
	EnrichSubmissions bool `envconfig:"HUBSPOT_ENRICH_SUBMISSIONS" default:"true"`

	APIBaseURL string        `envconfig:"HUBSPOT_API_BASE_URL" default:"https://api.hubapi.com" validate:"required,url"`
	AppBaseURL string        `envconfig:"HUBSPOT_APP_BASE_URL" default:"https://app.hubspot.com" validate:"required,url"`
	Timeout    time.Duration `envconfig:"HUBSPOT_TIMEOUT" default:"10s"`
}

// OAuthConfig holds the public app credentials used by the install flow.
type OAuthConfig struct {
	ClientID     string       `envconfig:"HUBSPOT_PUBLIC_APP_CLIENT_ID"`
	ClientSecret SecretString `envconfig:"HUBSPOT_PUBLIC_APP_CLIENT_SECRET"`
	RedirectURI  string       `envconfig:"HUBSPOT_PUBLIC_APP_REDIRECT_URI" validate:"omitempty,url"`
	Scopes       []string     `envconfig:"HUBSPOT_OAUTH_SCOPES" default:"oauth,crm.objects.contacts.read,crm.objects.contacts.write,forms"`
}

// SlackConfig holds the notification sink settings.
type SlackConfig struct {
	WebhookURL      SecretString  `envconfig:"SLACK_WEBHOOK_URL"`
	Timeout         time.Duration `envconfig:"SLACK_TIMEOUT" default:"10s"`
	UserAgent       string        `envconfig:"SLACK_USER_AGENT" default:"HubRelay/1.0"`
	DisplayTimezone string        `envconfig:"DISPLAY_TIMEZONE" default:"Asia/Tokyo" validate:"required,timezone"`
}

// PollerConfig holds settings for the submissions poll pass.
type PollerConfig struct {
	CronSecret       SecretString  `envconfig:"CRON_SECRET"`
	SubmissionsLimit int           `envconfig:"POLL_SUBMISSIONS_LIMIT" default:"5" validate:"min=1,max=50"`
	Concurrency      int           `envconfig:"POLL_CONCURRENCY" default:"1" validate:"min=1,max=16"`
	InitialLookback  time.Duration `envconfig:"POLL_INITIAL_LOOKBACK" default:"5m"`
}

// FanoutMode selects how webhook notifications are delivered after the
// request has been acknowledged.
type FanoutMode string

const (
	FanoutAsync FanoutMode = "async"
	FanoutQueue FanoutMode = "queue"
)

// FanoutConfig holds settings for detached webhook fan-out.
type FanoutConfig struct {
	Mode     FanoutMode `envconfig:"FANOUT_MODE" default:"async" validate:"oneof=async queue"`
	QueueURL string     `envconfig:"FANOUT_QUEUE_URL" validate:"required_if=Mode queue,omitempty,url"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	EnableMetrics   bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"HubRelay"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment values.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)

// DisplayLocation resolves the configured display timezone. It falls back
// to UTC when the zone database lacks the name; LoadConfig has already
// validated it, so the fallback only matters for hand-built configs.
func (c SlackConfig) DisplayLocation() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
