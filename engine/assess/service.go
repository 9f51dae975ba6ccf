// Package assess orchestrates a connectivity analysis. It asks a text
// generator for a verdict, audits that verdict against the rule engine's
// facts, and degrades to the rule engine on any failure. Callers always get a
// verdict, never an error.
package assess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/assemblylab/pcbench/engine/domain"
	"github.com/assemblylab/pcbench/engine/grading"
	"github.com/assemblylab/pcbench/engine/reconcile"
	"github.com/assemblylab/pcbench/pkg/fn"
	"github.com/assemblylab/pcbench/pkg/metrics"
	"github.com/assemblylab/pcbench/pkg/ollama"
	"github.com/assemblylab/pcbench/pkg/resilience"
)

// Generator produces free text from a prompt. *ollama.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Mode selects how much the model is trusted.
type Mode string

const (
	// ModeHybrid audits the model verdict against the facts.
	ModeHybrid Mode = "hybrid"
	// ModeAI returns the normalised model verdict unchanged.
	ModeAI Mode = "ai"
	// ModeRules never calls the model.
	ModeRules Mode = "rules"
)

// ParseMode maps a configuration string to a Mode; unknown values select hybrid.
func ParseMode(s string) Mode {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAI, ModeRules:
		return m
	default:
		return ModeHybrid
	}
}

// ErrNoGenerator is returned by Suggest when no model is configured.
var ErrNoGenerator = errors.New("no text generator configured")

// Config holds the service's collaborators. Nil fields get defaults.
type Config struct {
	Mode    Mode
	Retry   fn.RetryOpts
	Breaker *resilience.Breaker
	Limiter *resilience.Limiter
	Metrics *metrics.AnalysisMetrics
	Logger  *slog.Logger
	// WaitForToken makes a saturated limiter block until a token frees up or
	// ctx ends, instead of falling back at once.
	WaitForToken bool
}

// Result is a verdict plus how it was produced.
type Result struct {
	Verdict domain.Verdict `json:"verdict"`
	Path    string         `json:"path"`
	Reason  string         `json:"reason,omitempty"`
}

// Service runs analyses. It holds no per-request state and is safe for
// concurrent use.
type Service struct {
	gen     Generator
	mode    Mode
	retry   fn.RetryOpts
	breaker *resilience.Breaker
	limiter *resilience.Limiter
	wait    bool
	metrics *metrics.AnalysisMetrics
	log     *slog.Logger
}

// NewService creates a Service. A nil generator forces rules mode.
func NewService(gen Generator, cfg Config) *Service {
	s := &Service{
		gen:     gen,
		mode:    cfg.Mode,
		retry:   cfg.Retry,
		breaker: cfg.Breaker,
		limiter: cfg.Limiter,
		wait:    cfg.WaitForToken,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
	}
	if s.mode == "" {
		s.mode = ModeHybrid
	}
	if s.gen == nil {
		s.mode = ModeRules
	}
	if s.retry.MaxAttempts == 0 {
		s.retry = fn.DefaultRetry
	}
	if s.retry.Retryable == nil {
		s.retry.Retryable = Retryable
	}
	if s.breaker == nil {
		s.breaker = resilience.NewBreaker(resilience.DefaultBreakerOpts)
	}
	if s.limiter == nil {
		s.limiter = resilience.NewLimiter(resilience.LimiterOpts{})
	}
	if s.metrics == nil {
		s.metrics = metrics.NewAnalysisMetrics(metrics.New())
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Mode returns the effective analysis mode.
func (s *Service) Mode() Mode { return s.mode }

// Retryable reports whether a model failure may succeed on another attempt:
// transport errors and 5xx answers are retried, 4xx answers and cancellation
// are not.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *ollama.StatusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusInternalServerError
	}
	return !errors.Is(err, ollama.ErrEmptyResponse)
}

// generate is the guarded model call: rate limit, then breaker, then retries.
func (s *Service) generate() fn.Stage[string, string] {
	var call fn.Stage[string, string] = func(ctx context.Context, prompt string) fn.Result[string] {
		s.metrics.LLMStarted()
		defer s.metrics.LLMDone()
		text, err := s.gen.Generate(ctx, prompt)
		if err != nil {
			s.metrics.LLMError()
		}
		return fn.FromPair(text, err)
	}
	guarded := resilience.BreakerStage(s.breaker, fn.RetryStage(s.retry, call))
	if s.wait {
		return resilience.LimiterStageWait(s.limiter, guarded)
	}
	return resilience.LimiterStage(s.limiter, guarded)
}

func (s *Service) pipeline() fn.Stage[domain.Scene, domain.Verdict] {
	ask := fn.Then(fn.MapStage(AnalysisPrompt), fn.TracedStage("assess.generate", s.generate()))
	return fn.TracedStage("assess.pipeline", fn.Then(ask, fn.TryStage(ExtractVerdict)))
}

// Analyze grades a scene. Components that fail validation are dropped first.
func (s *Service) Analyze(ctx context.Context, scene domain.Scene) (res Result) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("analysis panicked", "panic", fmt.Sprint(p))
			res = s.fallback(domain.Scene{}, grading.ReasonInternal)
		}
		s.metrics.Analysis(res.Path, start)
	}()

	scene, errs := domain.Sanitize(scene)
	for _, err := range errs {
		s.log.Warn("dropping component", "err", err)
	}

	if s.mode == ModeRules {
		return Result{Verdict: grading.Fallback(scene, grading.ReasonRules), Path: metrics.PathRules}
	}

	ai, err := s.pipeline()(ctx, scene).Unwrap()
	if err != nil {
		reason := Reason(err)
		s.log.Warn("model analysis failed, using rule engine", "reason", reason, "err", err)
		return s.fallback(scene, reason)
	}

	if s.mode == ModeAI {
		return Result{Verdict: ai, Path: metrics.PathAI}
	}
	return Result{Verdict: reconcile.Apply(ai, scene), Path: metrics.PathHybrid}
}

// AnalyzeJSON decodes a scene and analyses it. An undecodable body is graded
// as an empty scene with the invalid-request reason.
func (s *Service) AnalyzeJSON(ctx context.Context, body []byte) Result {
	scene, err := domain.DecodeScene(body)
	if err != nil {
		s.log.Warn("invalid analysis request", "err", err)
		start := time.Now()
		res := s.fallback(domain.Scene{}, grading.ReasonInvalidRequest)
		s.metrics.Analysis(res.Path, start)
		return res
	}
	return s.Analyze(ctx, scene)
}

func (s *Service) fallback(scene domain.Scene, reason string) Result {
	s.metrics.Fallback(reason)
	return Result{Verdict: grading.Fallback(scene, reason), Path: metrics.PathFallback, Reason: reason}
}

// Reason maps a pipeline failure to the reason tag shown to the student.
func Reason(err error) string {
	var se *ollama.StatusError
	switch {
	case errors.As(err, &se):
		return grading.ReasonStatus(se.Code)
	case errors.Is(err, resilience.ErrRateLimited):
		return grading.ReasonSaturated
	case errors.Is(err, ErrInvalidReply), errors.Is(err, ollama.ErrEmptyResponse):
		return grading.ReasonInvalidReply
	default:
		return grading.ReasonUnavailable
	}
}
