// Package config defines the configuration of the Golden Batch simulator
// binaries. Configuration is loaded once at process start and is immutable
// thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> struct tag defaults (Lowest)
//
// Any invalid value causes loading to fail before any component is built.
package config

import "time"

// Config is the top-level configuration struct. Sub-components receive only
// the subset they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"goldenbatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Predictor PredictorConfig
	Retry     RetryConfig
	Panel     PanelConfig
	Stub      StubConfig
	Metrics   MetricsConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// PredictorConfig describes the remote prediction service and the transport
// used to reach it.
type PredictorConfig struct {
	URL              string        `envconfig:"PREDICTOR_URL" default:"http://localhost:5000/simulate" validate:"required,url"`
	Timeout          time.Duration `envconfig:"PREDICTOR_TIMEOUT" default:"10s" validate:"gt=0"`
	UserAgent        string        `envconfig:"PREDICTOR_USER_AGENT" default:"GoldenBatch-Panel/1.0"`
	BreakerThreshold uint32        `envconfig:"PREDICTOR_BREAKER_THRESHOLD" default:"10" validate:"min=1"`
	BreakerCooldown  time.Duration `envconfig:"PREDICTOR_BREAKER_COOLDOWN" default:"30s" validate:"gt=0"`
}

// RetryConfig bounds the simulation retry loop. The delay before attempt k
// (k >= 1) is 2^k * BaseDelay.
type RetryConfig struct {
	MaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"5" validate:"min=1,max=16"`
	BaseDelay   time.Duration `envconfig:"RETRY_BASE_DELAY" default:"1s" validate:"gte=0"`
}

// PanelConfig holds the control panel HTTP API settings.
type PanelConfig struct {
	Port            string        `envconfig:"PANEL_PORT" default:"8080" validate:"required,numeric"`
	ShutdownTimeout time.Duration `envconfig:"PANEL_SHUTDOWN_TIMEOUT" default:"10s"`
}

// StubConfig holds the reference prediction service settings.
type StubConfig struct {
	Port string `envconfig:"STUB_PORT" default:"5000" validate:"required,numeric"`
	// Rule is a CEL boolean expression over temperature, pressure and speed.
	Rule string `envconfig:"STUB_RULE" default:"temperature > 180.0 && pressure < 30.0" validate:"required"`
}

// MetricsConfig holds telemetry settings.
type MetricsConfig struct {
	Enabled   bool   `envconfig:"METRICS_ENABLED" default:"false"`
	Namespace string `envconfig:"METRIC_NAMESPACE" default:"GoldenBatch"`
	Region    string `envconfig:"AWS_REGION" default:"us-east-1"`
	// EndpointURL points the CloudWatch client at LocalStack; empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
	BufferSize  int    `envconfig:"METRICS_BUFFER_SIZE" default:"64" validate:"min=1"`
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
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
