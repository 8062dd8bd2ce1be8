package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/aurasync/internal/config"
	"github.com/MrWong99/aurasync/pkg/provider/llm"
	"github.com/MrWong99/aurasync/pkg/provider/llm/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  api_prefix: /v1
  cors:
    allow_origins: ["https://aurasync.example"]
    allow_extension_origins: false
  rate_limit:
    requests_per_second: 5
    burst: 10

providers:
  simplify:
    name: gemini
    api_key: g-test
    model: gemini-2.5-flash
  diagram:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  fallbacks:
    - name: anthropic
      api_key: a-test
      model: claude-3-5-haiku-latest

retry:
  max_retries: 0
  delay: 500ms

circuit_breaker:
  max_failures: 3
  reset_timeout: 10s

diagram:
  max_chars: 1500
  max_label_chars: 60
  long_word_highlights: false
  sound_alike_highlights: false

profiles:
  seed_file: profiles.yaml
  postgres_dsn: postgres://aurasync@localhost:5432/aurasync

telemetry:
  trace_exporter: otlp
  otlp_endpoint: collector:4318
  otlp_insecure: true
  otlp_headers:
    x-tenant: lab
  sample_ratio: 0.25
`

func mustLoad(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: unexpected error: %v", err)
	}
	return cfg
}

// ── schema ───────────────────────────────────────────────────────────────────

func TestLoadFromReader_Sample(t *testing.T) {
	t.Parallel()

	cfg := mustLoad(t, sampleYAML)

	if cfg.Server.ListenAddr != ":9090" || cfg.Server.LogLevel != config.LogDebug || cfg.Server.APIPrefix != "/v1" {
		t.Errorf("server=%+v", cfg.Server)
	}
	if cfg.Server.CORS.ExtensionsAllowed() {
		t.Error("extension origins should be disabled")
	}
	if got := cfg.Server.CORS.AllowOrigins; len(got) != 1 || got[0] != "https://aurasync.example" {
		t.Errorf("allow_origins=%v", got)
	}
	if cfg.Retry.Retries() != 0 {
		t.Errorf("retries=%d, want explicit 0", cfg.Retry.Retries())
	}
	if cfg.Retry.Delay != 500*time.Millisecond {
		t.Errorf("delay=%s, want 500ms", cfg.Retry.Delay)
	}
	if cfg.CircuitBreaker.MaxFailures != 3 || cfg.CircuitBreaker.ResetTimeout != 10*time.Second {
		t.Errorf("circuit_breaker=%+v", cfg.CircuitBreaker)
	}
	if cfg.CircuitBreaker.HalfOpenMax != config.DefaultHalfOpenMax {
		t.Errorf("half_open_max=%d, want default", cfg.CircuitBreaker.HalfOpenMax)
	}
	if cfg.Diagram.MaxChars != 1500 || cfg.Diagram.MaxLabelChars != 60 || cfg.Diagram.LongWords() {
		t.Errorf("diagram=%+v", cfg.Diagram)
	}
	if cfg.Diagram.SoundAlike() {
		t.Error("sound_alike_highlights should be off")
	}
	if cfg.Profiles.SeedFile != "profiles.yaml" || cfg.Profiles.PostgresDSN == "" {
		t.Errorf("profiles=%+v", cfg.Profiles)
	}
	if rl := cfg.Server.RateLimit; rl.RequestsPerSecond != 5 || rl.Burst != 10 {
		t.Errorf("rate_limit=%+v", rl)
	}
	tel := cfg.Telemetry
	if tel.TraceExporter != config.TraceExporterOTLP || tel.OTLPEndpoint != "collector:4318" || !tel.OTLPInsecure ||
		tel.OTLPHeaders["x-tenant"] != "lab" || tel.SampleRatio != 0.25 {
		t.Errorf("telemetry=%+v", tel)
	}
	if len(cfg.Providers.Fallbacks) != 1 || cfg.Providers.Fallbacks[0].Name != "anthropic" {
		t.Errorf("fallbacks=%+v", cfg.Providers.Fallbacks)
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := mustLoad(t, "providers:\n  simplify:\n    name: gemini\n")

	if cfg.Server.ListenAddr != ":8080" || cfg.Server.APIPrefix != "/api" || cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("server=%+v", cfg.Server)
	}
	if got := cfg.Server.CORS.AllowOrigins; len(got) != 1 || got[0] != "http://localhost:5173" {
		t.Errorf("allow_origins=%v, want the local web client", got)
	}
	if !cfg.Server.CORS.ExtensionsAllowed() {
		t.Error("extension origins should default to allowed")
	}
	if cfg.Retry.Retries() != 2 || cfg.Retry.Delay != 1200*time.Millisecond {
		t.Errorf("retry=%d x %s, want 2 x 1.2s", cfg.Retry.Retries(), cfg.Retry.Delay)
	}
	if cfg.Diagram.MaxChars != 2200 || cfg.Diagram.MaxLabelChars != 90 || !cfg.Diagram.LongWords() || !cfg.Diagram.SoundAlike() {
		t.Errorf("diagram=%+v", cfg.Diagram)
	}
	if cfg.CircuitBreaker.MaxFailures != 5 || cfg.CircuitBreaker.ResetTimeout != 30*time.Second || cfg.CircuitBreaker.HalfOpenMax != 3 {
		t.Errorf("circuit_breaker=%+v", cfg.CircuitBreaker)
	}
	if cfg.Telemetry.TraceExporter != config.TraceExporterNone {
		t.Errorf("trace_exporter=%q, want none", cfg.Telemetry.TraceExporter)
	}
	if cfg.Server.RateLimit.RequestsPerSecond != 0 || cfg.Server.RateLimit.Burst != 0 {
		t.Errorf("rate_limit=%+v, want disabled", cfg.Server.RateLimit)
	}
}

func TestApplyDefaults_RateLimitBurst(t *testing.T) {
	t.Parallel()

	cfg := mustLoad(t, "server:\n  rate_limit:\n    requests_per_second: 2.5\nproviders:\n  simplify:\n    name: gemini\n")
	if cfg.Server.RateLimit.Burst != 3 {
		t.Errorf("burst=%d, want 3 (ceil of the rate)", cfg.Server.RateLimit.Burst)
	}
}

func TestProvidersEntry_InheritsFromSimplify(t *testing.T) {
	t.Parallel()

	cfg := mustLoad(t, sampleYAML)
	tests := []struct {
		component string
		wantName  string
		wantModel string
	}{
		{config.ComponentSimplify, "gemini", "gemini-2.5-flash"},
		{config.ComponentContinue, "gemini", "gemini-2.5-flash"},
		{config.ComponentVisual, "gemini", "gemini-2.5-flash"},
		{config.ComponentDiagram, "openai", "gpt-4o-mini"},
	}
	for _, tc := range tests {
		e := cfg.Providers.Entry(tc.component)
		if e.Name != tc.wantName || e.Model != tc.wantModel {
			t.Errorf("Entry(%q)=%s/%s, want %s/%s", tc.component, e.Name, e.Model, tc.wantName, tc.wantModel)
		}
	}
}

// ── registry ─────────────────────────────────────────────────────────────────

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	want := &mock.Provider{}
	var gotEntry config.ProviderEntry
	r.Register("gemini", func(e config.ProviderEntry) (llm.Provider, error) {
		gotEntry = e
		return want, nil
	})
	r.Register("openai", func(config.ProviderEntry) (llm.Provider, error) {
		return nil, errors.New("missing key")
	})

	p, err := r.Create(config.ProviderEntry{Name: "gemini", Model: "gemini-2.5-flash"})
	if err != nil {
		t.Fatalf("Create: unexpected error: %v", err)
	}
	if p != want || gotEntry.Model != "gemini-2.5-flash" {
		t.Errorf("factory got entry %+v", gotEntry)
	}
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{}); err != nil {
		t.Errorf("Complete: %v", err)
	}

	if _, err := r.Create(config.ProviderEntry{Name: "openai"}); err == nil || !strings.Contains(err.Error(), "missing key") {
		t.Errorf("factory error not propagated: %v", err)
	}
	if _, err := r.Create(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got %v", err)
	}

	names := r.Names()
	if strings.Join(names, ",") != "gemini,openai" {
		t.Errorf("Names=%v, want sorted [gemini openai]", names)
	}
}

func TestRegistry_Chain(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	for _, name := range []string{"gemini", "openai", "anthropic"} {
		r.Register(name, func(config.ProviderEntry) (llm.Provider, error) { return &mock.Provider{}, nil })
	}
	providers := config.ProvidersConfig{
		Simplify:  config.ProviderEntry{Name: "gemini"},
		Diagram:   config.ProviderEntry{Name: "openai"},
		Fallbacks: []config.ProviderEntry{{Name: "anthropic"}, {Name: "gemini"}},
	}

	tests := []struct {
		component string
		want      []string
	}{
		{config.ComponentSimplify, []string{"simplify/gemini", "simplify/anthropic#1", "simplify/gemini#2"}},
		{config.ComponentDiagram, []string{"diagram/openai", "diagram/anthropic#1", "diagram/gemini#2"}},
		{config.ComponentVisual, []string{"visual/gemini", "visual/anthropic#1", "visual/gemini#2"}},
	}
	for _, tc := range tests {
		t.Run(tc.component, func(t *testing.T) {
			t.Parallel()
			chain, err := r.Chain(tc.component, providers)
			if err != nil {
				t.Fatalf("Chain: %v", err)
			}
			var got []string
			for _, l := range chain {
				if l.Provider == nil {
					t.Errorf("%s: nil provider", l.Label)
				}
				got = append(got, l.Label)
			}
			if strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Errorf("labels = %v, want %v", got, tc.want)
			}
		})
	}

	broken := config.ProvidersConfig{
		Simplify:  config.ProviderEntry{Name: "gemini"},
		Fallbacks: []config.ProviderEntry{{Name: "anthropic"}, {Name: "gemini"}, {Name: "ghost"}},
	}
	_, err := r.Chain(config.ComponentSimplify, broken)
	if !errors.Is(err, config.ErrProviderNotRegistered) || !strings.Contains(err.Error(), "fallback 3") {
		t.Errorf("err = %v, want ErrProviderNotRegistered naming fallback 3", err)
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("../../configs/example.yaml")
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if got := cfg.Providers.Entry(config.ComponentDiagram).Name; got != "openai" {
		t.Errorf("diagram provider = %q, want openai", got)
	}
	if len(cfg.Providers.Fallbacks) != 1 || cfg.Providers.Fallbacks[0].Name != "ollama" {
		t.Errorf("fallbacks = %+v", cfg.Providers.Fallbacks)
	}
	if cfg.Retry.Delay != 1200*time.Millisecond {
		t.Errorf("retry delay = %s", cfg.Retry.Delay)
	}
}
