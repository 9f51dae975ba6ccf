// Package main implements the pcbench NATS analysis worker. It answers scene
// snapshots published on a request subject with a verdict, sharing load with
// other workers through a queue group.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/assemblylab/pcbench/engine/assess"
	"github.com/assemblylab/pcbench/engine/domain"
	"github.com/assemblylab/pcbench/pkg/fn"
	"github.com/assemblylab/pcbench/pkg/metrics"
	"github.com/assemblylab/pcbench/pkg/natsutil"
	"github.com/assemblylab/pcbench/pkg/ollama"
	"github.com/assemblylab/pcbench/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	NATSURL          string
	Subject          string
	Queue            string
	EventsSubject    string
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
		NATSURL:          envOr("NATS_URL", nats.DefaultURL),
		Subject:          envOr("NATS_SUBJECT", "pcbench.connectivity.analyze"),
		Queue:            envOr("NATS_QUEUE", "pcbench-analyzers"),
		EventsSubject:    envOr("NATS_EVENTS_SUBJECT", "pcbench.connectivity.verdicts"),
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
		logger.Error("analyzer exited with error", "err", err)
		os.Exit(1)
	}
}

func newService(cfg Config, logger *slog.Logger) *assess.Service {
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

	return assess.NewService(gen, assess.Config{
		Mode:  cfg.Mode,
		Retry: retry,
		Breaker: resilience.NewBreaker(resilience.BreakerOpts{
			FailThreshold: cfg.BreakerThreshold,
			Timeout:       cfg.BreakerTimeout,
			HalfOpenMax:   1,
			OnStateChange: func(from, to resilience.State) {
				logger.Warn("model breaker state changed", "from", from.String(), "to", to.String())
			},
		}),
		Limiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.LLMRatePerSec, Burst: cfg.LLMBurst}),
		Metrics:      metrics.NewAnalysisMetrics(metrics.New()),
		Logger:       logger,
		WaitForToken: true,
	})
}

// serve registers the verdict responder on nc. When cfg.EventsSubject is set,
// every result is also published there for watchers such as grade -watch.
func serve(nc *nats.Conn, cfg Config, svc *assess.Service, logger *slog.Logger) (*nats.Subscription, error) {
	return natsutil.Serve(nc, cfg.Subject, cfg.Queue, logger, func(ctx context.Context, data []byte) domain.Verdict {
		res := svc.AnalyzeJSON(ctx, data)
		logger.Info("scene analysed", "path", res.Path, "score", res.Verdict.Score, "valid", res.Verdict.IsValid)
		if cfg.EventsSubject != "" {
			if err := natsutil.Publish(ctx, nc, cfg.EventsSubject, res); err != nil {
				logger.Warn("publish verdict event", "subject", cfg.EventsSubject, "err", err)
			}
		}
		return res.Verdict
	})
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nc, err := nats.Connect(cfg.NATSURL, nats.Name("pcbench-analyzer"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	svc := newService(cfg, logger)
	sub, err := serve(nc, cfg, svc, logger)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", cfg.Subject, err)
	}
	logger.Info("analyzer listening", "subject", cfg.Subject, "queue", cfg.Queue, "events", cfg.EventsSubject, "mode", svc.Mode())

	<-ctx.Done()
	logger.Info("shutdown signal received")
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	return nc.Drain()
}
