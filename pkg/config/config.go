package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultBase64ImageMaxLength is the longest base64 image URL recorded before it is redacted
const DefaultBase64ImageMaxLength = 32000

// TraceConfig is the masking policy applied to every captured attribute.
// It is built once at startup and only read afterwards.
type TraceConfig struct {
	HideInputs               bool `yaml:"hide_inputs"`
	HideOutputs              bool `yaml:"hide_outputs"`
	HideInputMessages        bool `yaml:"hide_input_messages"`
	HideOutputMessages       bool `yaml:"hide_output_messages"`
	HideInputImages          bool `yaml:"hide_input_images"`
	HideInputText            bool `yaml:"hide_input_text"`
	HideOutputText           bool `yaml:"hide_output_text"`
	HideEmbeddingVectors     bool `yaml:"hide_embedding_vectors"`
	HideInvocationParameters bool `yaml:"hide_invocation_parameters"`
	Base64ImageMaxLength     int  `yaml:"base64_image_max_length"`
	PIIRedaction             bool `yaml:"pii_redaction"`
}

// DefaultTraceConfig returns a policy that records everything
func DefaultTraceConfig() TraceConfig {
	return TraceConfig{
		Base64ImageMaxLength: DefaultBase64ImageMaxLength,
	}
}

// TraceConfigFromEnv builds the masking policy from TRACEAI_* environment variables
func TraceConfigFromEnv() TraceConfig {
	cfg := DefaultTraceConfig()
	cfg.applyEnv(os.LookupEnv)
	return cfg
}

// Environment variable names read by TraceConfigFromEnv and Config.ApplyEnv
const (
	EnvHideInputs               = "TRACEAI_HIDE_INPUTS"
	EnvHideOutputs              = "TRACEAI_HIDE_OUTPUTS"
	EnvHideInputMessages        = "TRACEAI_HIDE_INPUT_MESSAGES"
	EnvHideOutputMessages       = "TRACEAI_HIDE_OUTPUT_MESSAGES"
	EnvHideInputImages          = "TRACEAI_HIDE_INPUT_IMAGES"
	EnvHideInputText            = "TRACEAI_HIDE_INPUT_TEXT"
	EnvHideOutputText           = "TRACEAI_HIDE_OUTPUT_TEXT"
	EnvHideEmbeddingVectors     = "TRACEAI_HIDE_EMBEDDING_VECTORS"
	EnvHideInvocationParameters = "TRACEAI_HIDE_LLM_INVOCATION_PARAMETERS"
	EnvBase64ImageMaxLength     = "TRACEAI_BASE64_IMAGE_MAX_LENGTH"
	EnvPIIRedaction             = "TRACEAI_PII_REDACTION"

	EnvServiceName         = "TRACEAI_SERVICE_NAME"
	EnvLogLevel            = "TRACEAI_LOG_LEVEL"
	EnvOTelEndpoint        = "TRACEAI_OTEL_ENDPOINT"
	EnvOTelInsecure        = "TRACEAI_OTEL_INSECURE"
	EnvLangfuseEnabled     = "TRACEAI_LANGFUSE_ENABLED"
	EnvLangfuseEnvironment = "TRACEAI_LANGFUSE_ENVIRONMENT"
)

type lookupFunc func(string) (string, bool)

func (c *TraceConfig) applyEnv(lookup lookupFunc) {
	boolVar(lookup, EnvHideInputs, &c.HideInputs)
	boolVar(lookup, EnvHideOutputs, &c.HideOutputs)
	boolVar(lookup, EnvHideInputMessages, &c.HideInputMessages)
	boolVar(lookup, EnvHideOutputMessages, &c.HideOutputMessages)
	boolVar(lookup, EnvHideInputImages, &c.HideInputImages)
	boolVar(lookup, EnvHideInputText, &c.HideInputText)
	boolVar(lookup, EnvHideOutputText, &c.HideOutputText)
	boolVar(lookup, EnvHideEmbeddingVectors, &c.HideEmbeddingVectors)
	boolVar(lookup, EnvHideInvocationParameters, &c.HideInvocationParameters)
	boolVar(lookup, EnvPIIRedaction, &c.PIIRedaction)
	if v, ok := lookup(EnvBase64ImageMaxLength); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Base64ImageMaxLength = n
		}
	}
}

func boolVar(lookup lookupFunc, name string, dst *bool) {
	v, ok := lookup(name)
	if !ok {
		return
	}
	if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
		*dst = b
	}
}

// OTelConfig contains configuration for the OTLP exporter
type OTelConfig struct {
	// Enabled determines whether spans are exported over OTLP
	Enabled bool `yaml:"enabled"`

	// CollectorEndpoint is the host:port of the OpenTelemetry collector
	CollectorEndpoint string `yaml:"collector_endpoint"`

	// Insecure disables transport security towards the collector
	Insecure bool `yaml:"insecure"`

	// Headers are sent with every export request
	Headers map[string]string `yaml:"headers"`
}

// LangfuseConfig contains configuration for the Langfuse export sink.
// Credentials are read by the Langfuse client from LANGFUSE_PUBLIC_KEY,
// LANGFUSE_SECRET_KEY and LANGFUSE_HOST.
type LangfuseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Environment string `yaml:"environment"`
}

// LoggingConfig contains configuration for the instrumentation logger
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Config is the root configuration of the tracing core
type Config struct {
	ServiceName string         `yaml:"service_name"`
	Logging     LoggingConfig  `yaml:"logging"`
	OTel        OTelConfig     `yaml:"otel"`
	Langfuse    LangfuseConfig `yaml:"langfuse"`
	Masking     TraceConfig    `yaml:"masking"`
}

// Default returns the configuration used when nothing is supplied
func Default() *Config {
	return &Config{
		ServiceName: "traceai",
		Logging:     LoggingConfig{Level: "info"},
		Masking:     DefaultTraceConfig(),
	}
}

// FromEnv returns the default configuration overridden by the environment
func FromEnv() (*Config, error) {
	cfg := Default()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads a YAML configuration file and applies environment overrides on top
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML document over the default configuration
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields that have a matching environment variable set
func (c *Config) ApplyEnv() {
	c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup lookupFunc) {
	if v, ok := lookup(EnvServiceName); ok && v != "" {
		c.ServiceName = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v, ok := lookup(EnvOTelEndpoint); ok && v != "" {
		c.OTel.CollectorEndpoint = v
		c.OTel.Enabled = true
	}
	boolVar(lookup, EnvOTelInsecure, &c.OTel.Insecure)
	boolVar(lookup, EnvLangfuseEnabled, &c.Langfuse.Enabled)
	if v, ok := lookup(EnvLangfuseEnvironment); ok && v != "" {
		c.Langfuse.Environment = v
	}
	c.Masking.applyEnv(lookup)
}

// Validate checks the configuration for values that cannot work
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("%w: service name is required", ErrInvalidConfig)
	}
	if c.OTel.Enabled && c.OTel.CollectorEndpoint == "" {
		return fmt.Errorf("%w: otel collector endpoint is required when otel is enabled", ErrInvalidConfig)
	}
	if c.Masking.Base64ImageMaxLength < 0 {
		return fmt.Errorf("%w: base64 image max length must not be negative", ErrInvalidConfig)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}
	return nil
}
