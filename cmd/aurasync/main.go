// Command aurasync is the main entry point for the AuraSync assist server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/aurasync/internal/assist"
	"github.com/MrWong99/aurasync/internal/config"
	"github.com/MrWong99/aurasync/internal/diagram"
	"github.com/MrWong99/aurasync/internal/gateway"
	"github.com/MrWong99/aurasync/internal/health"
	"github.com/MrWong99/aurasync/internal/observe"
	"github.com/MrWong99/aurasync/internal/profile"
	"github.com/MrWong99/aurasync/internal/profile/postgres"
	"github.com/MrWong99/aurasync/internal/resilience"
	"github.com/MrWong99/aurasync/internal/server"
	"github.com/MrWong99/aurasync/pkg/provider/llm"
	"github.com/MrWong99/aurasync/pkg/provider/llm/anyllm"
	oaillm "github.com/MrWong99/aurasync/pkg/provider/llm/openai"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "aurasync: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "aurasync: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	if cfg.Server.LogLevel != config.LogDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	slog.Info("aurasync starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		Telemetry:      cfg.Telemetry,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	gens, chains, err := buildGenerators(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Profiles ──────────────────────────────────────────────────────────────
	profiles, closeProfiles, err := openProfileStore(ctx, cfg.Profiles)
	if err != nil {
		slog.Error("failed to open profile store", "err", err)
		return 1
	}
	defer closeProfiles()
	if cfg.Profiles.SeedFile != "" {
		sf, err := profile.LoadSeedFile(cfg.Profiles.SeedFile)
		if err != nil {
			slog.Error("failed to load profile seed", "err", err)
			return 1
		}
		n, err := profile.Import(ctx, profiles, sf)
		if err != nil {
			slog.Error("failed to import profile seed", "err", err)
			return 1
		}
		slog.Info("profiles seeded", "file", cfg.Profiles.SeedFile, "count", n)
	}

	// ── Pipeline and HTTP surface ─────────────────────────────────────────────
	svc, err := assist.New(gens,
		assist.WithMetrics(metrics),
		assist.WithLimits(diagram.Limits{MaxChars: cfg.Diagram.MaxChars, MaxLabelChars: cfg.Diagram.MaxLabelChars}),
		assist.WithLongWordHighlights(cfg.Diagram.LongWords()),
		assist.WithSoundAlikeHighlights(cfg.Diagram.SoundAlike()),
	)
	if err != nil {
		slog.Error("failed to initialise assist service", "err", err)
		return 1
	}

	checks := health.New(
		health.ProvidersChecker(chains),
		health.Checker{Name: "profiles", Check: func(ctx context.Context) error {
			_, err := profiles.Len(ctx)
			return err
		}},
	)
	srv, err := server.New(cfg.Server, svc, profiles,
		server.WithMetrics(metrics),
		server.WithHealth(checks),
	)
	if err != nil {
		slog.Error("failed to initialise http server", "err", err)
		return 1
	}

	printStartupSummary(cfg)
	slog.Info("server ready; press Ctrl+C to shut down")

	runErr := srv.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders registers every any-llm-go backend under its
// config name. "openai" is then replaced by the native client.
func registerBuiltinProviders(reg *config.Registry) {
	for _, backend := range anyllm.Backends() {
		reg.Register(backend, anyLLMFactory(backend))
	}
	reg.Register("openai", newOpenAI)
}

// anyLLMFactory builds a backend from api_key and base_url. Local servers
// such as ollama take only the base URL.
func anyLLMFactory(backend string) config.Factory {
	return func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		p, err := anyllm.New(backend, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// newOpenAI also reads the organization and timeout options.
func newOpenAI(entry config.ProviderEntry) (llm.Provider, error) {
	var opts []oaillm.Option
	if entry.BaseURL != "" {
		opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
	}
	if org := optString(entry.Options, "organization"); org != "" {
		opts = append(opts, oaillm.WithOrganization(org))
	}
	if d, err := time.ParseDuration(optString(entry.Options, "timeout")); err == nil && d > 0 {
		opts = append(opts, oaillm.WithTimeout(d))
	}
	p, err := oaillm.New(entry.APIKey, entry.Model, opts...)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// buildGenerators creates one gateway per pipeline component. Each gateway
// retries on top of a failover chain made of the component's provider and
// every configured fallback.
func buildGenerators(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (assist.Generators, map[string]health.Failover, error) {
	cb := resilience.CircuitBreakerConfig{
		MaxFailures:  cfg.CircuitBreaker.MaxFailures,
		ResetTimeout: cfg.CircuitBreaker.ResetTimeout,
		HalfOpenMax:  cfg.CircuitBreaker.HalfOpenMax,
		OnStateChange: func(name string, _, to resilience.State) {
			m.RecordCircuitTransition(context.Background(), name, to.String())
		},
	}

	gws := make(map[string]*gateway.Gateway, len(config.Components))
	chains := make(map[string]health.Failover, len(config.Components))
	for _, component := range config.Components {
		entry := cfg.Providers.Entry(component)
		labeled, err := reg.Chain(component, cfg.Providers)
		if err != nil {
			return assist.Generators{}, nil, err
		}
		backends := make([]resilience.Backend[llm.Provider], len(labeled))
		for i, l := range labeled {
			backends[i] = resilience.Backend[llm.Provider]{Name: l.Label, Value: l.Provider}
		}
		chain, err := resilience.NewLLMChain(cb, backends...)
		if err != nil {
			return assist.Generators{}, nil, fmt.Errorf("%s: %w", component, err)
		}
		chains[component] = chain

		opts := []gateway.Option{
			gateway.WithMaxRetries(cfg.Retry.Retries()),
			gateway.WithDelay(cfg.Retry.Delay),
			gateway.WithMetrics(m),
		}
		if t, ok := optFloat(entry.Options, "temperature"); ok {
			opts = append(opts, gateway.WithTemperature(t))
		}
		if n, ok := optFloat(entry.Options, "max_tokens"); ok {
			opts = append(opts, gateway.WithMaxTokens(int(n)))
		}
		gw, err := gateway.New(component, chain, opts...)
		if err != nil {
			return assist.Generators{}, nil, fmt.Errorf("%s gateway: %w", component, err)
		}
		gws[component] = gw
	}

	return assist.Generators{
		Simplify: gws[config.ComponentSimplify],
		Continue: gws[config.ComponentContinue],
		Visual:   gws[config.ComponentVisual],
		Diagram:  gws[config.ComponentDiagram],
	}, chains, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

// openProfileStore returns the PostgreSQL store when a DSN is configured and
// an in-memory store otherwise.
func openProfileStore(ctx context.Context, cfg config.ProfilesConfig) (profile.Store, func(), error) {
	if cfg.PostgresDSN == "" {
		return profile.NewMemStore(), func() {}, nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	store, err := postgres.NewStore(connectCtx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        AuraSync startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	for _, c := range config.Components {
		e := cfg.Providers.Entry(c)
		printRow(c, providerLabel(e.Name, e.Model))
	}
	printRow("fallbacks", fmt.Sprintf("%d", len(cfg.Providers.Fallbacks)))
	printRow("retries", fmt.Sprintf("%d x %s", cfg.Retry.Retries(), cfg.Retry.Delay))
	printRow("diagram limit", fmt.Sprintf("%d / %d", cfg.Diagram.MaxChars, cfg.Diagram.MaxLabelChars))
	printRow("listen addr", cfg.Server.ListenAddr+cfg.Server.APIPrefix)
	printRow("traces", cfg.Telemetry.TraceExporter)
	if cfg.Profiles.PostgresDSN != "" {
		printRow("profiles", "postgres")
	} else {
		printRow("profiles", "memory")
	}
	if rl := cfg.Server.RateLimit; rl.RequestsPerSecond > 0 {
		printRow("rate limit", fmt.Sprintf("%g/s burst %d", rl.RequestsPerSecond, rl.Burst))
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func providerLabel(name, model string) string {
	if name == "" {
		return "(not configured)"
	}
	if model != "" {
		return name + " / " + model
	}
	return name
}

func printRow(kind, value string) {
	if r := []rune(value); len(r) > 19 {
		value = string(r[:16]) + "…"
	}
	fmt.Printf("║  %-13s   : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optFloat extracts a numeric value from a provider Options map. YAML decodes
// whole numbers as int and the rest as float64; both are accepted.
func optFloat(opts map[string]any, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case int:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
