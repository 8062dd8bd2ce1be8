package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidLLMNames lists the provider names main registers.
// Used by [Validate] to warn about unrecognised provider names.
var ValidLLMNames = []string{"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"}

// MaxRetriesLimit caps retry.max_retries.
const MaxRetriesLimit = 10

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if p := cfg.Server.APIPrefix; p != "" && !strings.HasPrefix(p, "/") {
		errs = append(errs, fmt.Errorf("server.api_prefix %q must start with /", p))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}
	for i, o := range cfg.Server.CORS.AllowOrigins {
		if o != "*" && !strings.Contains(o, "://") {
			errs = append(errs, fmt.Errorf("server.cors.allow_origins[%d] %q must include a scheme", i, o))
		}
	}
	if rl := cfg.Server.RateLimit; rl.RequestsPerSecond < 0 || rl.Burst < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit values must not be negative (requests_per_second %g, burst %d)", rl.RequestsPerSecond, rl.Burst))
	}

	// Telemetry
	switch cfg.Telemetry.TraceExporter {
	case "", TraceExporterNone, TraceExporterStdout, TraceExporterOTLP:
	default:
		errs = append(errs, fmt.Errorf("telemetry.trace_exporter %q is invalid; valid values: none, stdout, otlp", cfg.Telemetry.TraceExporter))
	}

	if r := cfg.Telemetry.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio %g must be between 0 and 1", r))
	}

	// Providers
	if cfg.Providers.Simplify.Name == "" {
		errs = append(errs, errors.New("providers.simplify.name is required"))
	}
	for _, c := range Components {
		validateProviderName("providers."+c, cfg.Providers.Entry(c).Name)
	}
	for i, fb := range cfg.Providers.Fallbacks {
		prefix := fmt.Sprintf("providers.fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName(prefix, fb.Name)
	}

	// Retry
	if n := cfg.Retry.Retries(); n < 0 || n > MaxRetriesLimit {
		errs = append(errs, fmt.Errorf("retry.max_retries %d is out of range [0, %d]", n, MaxRetriesLimit))
	}
	if cfg.Retry.Delay < 0 {
		errs = append(errs, fmt.Errorf("retry.delay %s must not be negative", cfg.Retry.Delay))
	}

	// Circuit breaker
	if cfg.CircuitBreaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("circuit_breaker.max_failures %d must not be negative", cfg.CircuitBreaker.MaxFailures))
	}
	if cfg.CircuitBreaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("circuit_breaker.reset_timeout %s must not be negative", cfg.CircuitBreaker.ResetTimeout))
	}
	if cfg.CircuitBreaker.HalfOpenMax < 0 {
		errs = append(errs, fmt.Errorf("circuit_breaker.half_open_max %d must not be negative", cfg.CircuitBreaker.HalfOpenMax))
	}

	// Diagram
	if cfg.Diagram.MaxChars < 0 {
		errs = append(errs, fmt.Errorf("diagram.max_chars %d must not be negative", cfg.Diagram.MaxChars))
	}
	if cfg.Diagram.MaxLabelChars < 0 {
		errs = append(errs, fmt.Errorf("diagram.max_label_chars %d must not be negative", cfg.Diagram.MaxLabelChars))
	}
	if cfg.Diagram.MaxChars > 0 && cfg.Diagram.MaxLabelChars > cfg.Diagram.MaxChars {
		slog.Warn("diagram.max_label_chars exceeds diagram.max_chars; the label limit can never trigger",
			"max_chars", cfg.Diagram.MaxChars,
			"max_label_chars", cfg.Diagram.MaxLabelChars,
		)
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not one of
// [ValidLLMNames].
func validateProviderName(field, name string) {
	if name == "" || slices.Contains(ValidLLMNames, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"field", field,
		"name", name,
		"known", ValidLLMNames,
	)
}
