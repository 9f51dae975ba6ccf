// Package main implements the pcbench HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/assemblylab/pcbench/engine/assess"
	"github.com/assemblylab/pcbench/pkg/fn"
	"github.com/assemblylab/pcbench/pkg/metrics"
	"github.com/assemblylab/pcbench/pkg/mid"
	"github.com/assemblylab/pcbench/pkg/ollama"
	"github.com/assemblylab/pcbench/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port             string
	CORSOrigin       string
	ServiceName      string
	MaxBodyBytes     int64
	OllamaURL        string
	OllamaModel      string
	OllamaTimeout    time.Duration
	Mode             assess.Mode
	LLMRatePerSec    float64
	LLMBurst         int
	LLMRetries       int
	BreakerThreshold int
	BreakerTimeout   time.Duration
}

func loadConfig() Config {
	return Config{
		Port:             envOr("PORT", "8080"),
		CORSOrigin:       envOr("CORS_ORIGIN", "*"),
		ServiceName:      envOr("OTEL_SERVICE_NAME", "pcbench-api"),
		MaxBodyBytes:     int64(envInt("MAX_BODY_BYTES", 1<<20)),
		OllamaURL:        envOr("OLLAMA_BASE_URL", "http://localhost:11434/v1"),
		OllamaModel:      envOr("OLLAMA_MODEL", ollama.DefaultModel),
		OllamaTimeout:    time.Duration(envInt("OLLAMA_TIMEOUT_MS", 0)) * time.Millisecond,
		Mode:             assess.ParseMode(envOr("ANALYSIS_MODE", string(assess.ModeHybrid))),
		LLMRatePerSec:    envFloat("LLM_RATE_PER_SEC", 0),
		LLMBurst:         envInt("LLM_BURST", 4),
		LLMRetries:       envInt("LLM_RETRIES", 1),
		BreakerThreshold: envInt("BREAKER_THRESHOLD", 5),
		BreakerTimeout:   envDuration("BREAKER_TIMEOUT", 30*time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

// newService wires the model client behind the limiter, breaker and retry
// policy. Rules mode skips the client entirely.
func newService(cfg Config, am *metrics.AnalysisMetrics, logger *slog.Logger) *assess.Service {
	var gen assess.Generator
	if cfg.Mode != assess.ModeRules {
		client := ollama.NewClient(cfg.OllamaURL, cfg.OllamaModel,
			ollama.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
			ollama.WithTimeout(cfg.OllamaTimeout))
		logger.Info("model client ready", "url", cfg.OllamaURL, "model", client.Model())
		gen = client
	}

	retry := fn.DefaultRetry
	retry.MaxAttempts = max(1, cfg.LLMRetries)

	breaker := resilience.NewBreaker(resilience.BreakerOpts{
		FailThreshold: cfg.BreakerThreshold,
		Timeout:       cfg.BreakerTimeout,
		HalfOpenMax:   1,
		OnStateChange: func(from, to resilience.State) {
			am.BreakerState(int(to))
			logger.Warn("model breaker state changed", "from", from.String(), "to", to.String())
		},
	})

	return assess.NewService(gen, assess.Config{
		Mode:    cfg.Mode,
		Retry:   retry,
		Breaker: breaker,
		Limiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.LLMRatePerSec, Burst: cfg.LLMBurst}),
		Metrics: am,
		Logger:  logger,
	})
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()
	svc := newService(cfg, metrics.NewAnalysisMetrics(reg), logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newHandler(cfg, svc, reg, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "mode", svc.Mode(), "model", cfg.OllamaModel)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func newHandler(cfg Config, svc *assess.Service, reg *metrics.Registry, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth(svc))
	mux.Handle("GET /metrics", reg.Handler())
	mux.HandleFunc("POST /api/connectivity", handleConnectivity(svc, logger))
	mux.HandleFunc("POST /api/facts", handleFacts(logger))
	mux.HandleFunc("POST /api/suggest", handleSuggest(svc, logger))

	return mid.Chain(mux,
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin, headerPath),
		mid.BodyLimit(cfg.MaxBodyBytes),
		mid.OTel(cfg.ServiceName),
	)
}
