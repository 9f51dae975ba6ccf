package assess

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/assemblylab/pcbench/engine/domain"
	"github.com/assemblylab/pcbench/engine/grading"
	"github.com/assemblylab/pcbench/engine/reconcile"
	"github.com/assemblylab/pcbench/pkg/fn"
	"github.com/assemblylab/pcbench/pkg/metrics"
	"github.com/assemblylab/pcbench/pkg/ollama"
	"github.com/assemblylab/pcbench/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reply struct {
	text string
	err  error
}

// fakeGen replays canned replies; the last one repeats.
type fakeGen struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
	panics  bool
}

func (g *fakeGen) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.panics {
		panic("boom")
	}
	g.prompts = append(g.prompts, prompt)
	r := g.replies[min(len(g.prompts), len(g.replies))-1]
	return r.text, r.err
}

func (g *fakeGen) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func gen(replies ...reply) *fakeGen { return &fakeGen{replies: replies} }

func scene(withHDMI bool) domain.Scene {
	s := domain.Scene{
		Components: []domain.Component{
			{ID: "cu", Type: domain.TypeCentralUnit},
			{ID: "mon", Type: domain.TypeMonitor},
			{ID: "kbd", Type: domain.TypeKeyboard},
			{ID: "mouse", Type: domain.TypeMouse},
			{ID: "strip", Type: domain.TypePowerStrip},
		},
		Connections: map[string][]domain.Connection{
			"cu":    {{ToPortID: "power-strip-1", Kind: domain.KindPower}},
			"mon":   {{ToPortID: "power-strip-2", Kind: domain.KindPower}},
			"kbd":   {{ToPortID: "usb1", Kind: domain.KindData}},
			"mouse": {{ToPortID: "usb2", Kind: domain.KindData}},
			"strip": {{ToPortID: "wall-outlet", Kind: domain.KindPower}},
		},
	}
	if withHDMI {
		s.Connections["mon"] = append(s.Connections["mon"], domain.Connection{ToPortID: "hdmi1", Kind: domain.KindData})
	}
	return s
}

const overclaim = "<think>looks fine</think>\n```json\n{\"isValid\": true, \"score\": 95, \"feedback\": \"Parfait\", \"issues\": []}\n```"

func TestAnalyze_RulesMode(t *testing.T) {
	svc := NewService(nil, Config{Mode: ModeHybrid})
	assert.Equal(t, ModeRules, svc.Mode())

	res := svc.Analyze(context.Background(), scene(true))
	assert.Equal(t, metrics.PathRules, res.Path)
	assert.Empty(t, res.Reason)
	assert.True(t, res.Verdict.IsValid)
	assert.Equal(t, 100, res.Verdict.Score)
	assert.True(t, strings.HasPrefix(res.Verdict.Feedback, "["+grading.ReasonRules+"]"))
}

func TestAnalyze_HybridCorrectsOverclaim(t *testing.T) {
	g := gen(reply{text: overclaim})
	svc := NewService(g, Config{})

	res := svc.Analyze(context.Background(), scene(false))
	assert.Equal(t, metrics.PathHybrid, res.Path)
	assert.False(t, res.Verdict.IsValid)
	assert.Contains(t, res.Verdict.Issues, reconcile.IssueNoDisplayPath)
	assert.Equal(t, 95-reconcile.PenaltyNoDisplayPath, res.Verdict.Score)
	assert.NotEqual(t, "Parfait", res.Verdict.Feedback)

	require.Equal(t, 1, g.calls())
	assert.Contains(t, g.prompts[0], "COMPONENTS PLACED")
	assert.Contains(t, g.prompts[0], "SCENE_JSON=")
}

func TestAnalyze_AIModeKeepsModelVerdict(t *testing.T) {
	svc := NewService(gen(reply{text: overclaim}), Config{Mode: ModeAI})

	res := svc.Analyze(context.Background(), scene(false))
	assert.Equal(t, metrics.PathAI, res.Path)
	assert.True(t, res.Verdict.IsValid)
	assert.Equal(t, 95, res.Verdict.Score)
	assert.Equal(t, "Parfait", res.Verdict.Feedback)
	assert.Empty(t, res.Verdict.Issues)
}

func TestAnalyze_FallbackReasons(t *testing.T) {
	tests := []struct {
		name   string
		reply  reply
		reason string
	}{
		{"server error", reply{err: &ollama.StatusError{Code: 503}}, grading.ReasonStatus(503)},
		{"transport", reply{err: errors.New("connection refused")}, grading.ReasonUnavailable},
		{"empty", reply{err: ollama.ErrEmptyResponse}, grading.ReasonInvalidReply},
		{"prose", reply{text: "Everything looks good to me."}, grading.ReasonInvalidReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := metrics.New()
			svc := NewService(gen(tt.reply), Config{Metrics: metrics.NewAnalysisMetrics(reg)})

			res := svc.Analyze(context.Background(), scene(true))
			assert.Equal(t, metrics.PathFallback, res.Path)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, grading.Fallback(scene(true), tt.reason), res.Verdict)
			assert.Contains(t, reg.Render(), "pcbench_fallbacks_total")
		})
	}
}

func TestAnalyze_RateLimited(t *testing.T) {
	g := gen(reply{text: overclaim})
	svc := NewService(g, Config{Limiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: 0.001, Burst: 1})})

	first := svc.Analyze(context.Background(), scene(true))
	assert.Equal(t, metrics.PathHybrid, first.Path)

	second := svc.Analyze(context.Background(), scene(true))
	assert.Equal(t, grading.ReasonSaturated, second.Reason)
	assert.Equal(t, 1, g.calls())
}

func TestAnalyze_WaitForToken(t *testing.T) {
	g := gen(reply{text: overclaim})
	svc := NewService(g, Config{
		Limiter:      resilience.NewLimiter(resilience.LimiterOpts{Rate: 20, Burst: 1}),
		WaitForToken: true,
	})

	for range 3 {
		res := svc.Analyze(context.Background(), scene(true))
		assert.Equal(t, metrics.PathHybrid, res.Path)
	}
	assert.Equal(t, 3, g.calls())

	slow := NewService(g, Config{
		Limiter:      resilience.NewLimiter(resilience.LimiterOpts{Rate: 0.001, Burst: 1}),
		WaitForToken: true,
	})
	slow.Analyze(context.Background(), scene(true))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := slow.Analyze(ctx, scene(true))
	assert.Equal(t, grading.ReasonSaturated, res.Reason)
	assert.Equal(t, 4, g.calls())
}

func TestAnalyze_BreakerOpens(t *testing.T) {
	g := gen(reply{err: errors.New("connection refused")})
	br := resilience.NewBreaker(resilience.BreakerOpts{FailThreshold: 1, Timeout: time.Hour, HalfOpenMax: 1})
	svc := NewService(g, Config{Breaker: br})

	svc.Analyze(context.Background(), scene(true))
	assert.Equal(t, resilience.StateOpen, br.State())

	res := svc.Analyze(context.Background(), scene(true))
	assert.Equal(t, grading.ReasonUnavailable, res.Reason)
	assert.Equal(t, 1, g.calls())
}

func TestAnalyze_RetriesServerErrorsOnly(t *testing.T) {
	retry := fn.RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond}

	g := gen(reply{err: &ollama.StatusError{Code: 502}}, reply{text: overclaim})
	res := NewService(g, Config{Retry: retry}).Analyze(context.Background(), scene(true))
	assert.Equal(t, metrics.PathHybrid, res.Path)
	assert.Equal(t, 2, g.calls())

	g = gen(reply{err: &ollama.StatusError{Code: 404}})
	res = NewService(g, Config{Retry: retry}).Analyze(context.Background(), scene(true))
	assert.Equal(t, grading.ReasonStatus(404), res.Reason)
	assert.Equal(t, 1, g.calls())
}

func TestAnalyze_RecoversPanic(t *testing.T) {
	svc := NewService(&fakeGen{panics: true}, Config{})
	res := svc.Analyze(context.Background(), scene(true))
	assert.Equal(t, metrics.PathFallback, res.Path)
	assert.Equal(t, grading.ReasonInternal, res.Reason)
	assert.False(t, res.Verdict.IsValid)
}

func TestAnalyze_DropsInvalidComponents(t *testing.T) {
	s := scene(true)
	s.Components = append(s.Components, domain.Component{ID: "toaster", Type: "toaster"})
	res := NewService(nil, Config{}).Analyze(context.Background(), s)
	assert.Equal(t, 100, res.Verdict.Score)
}

func TestAnalyzeJSON(t *testing.T) {
	g := gen(reply{text: overclaim})
	svc := NewService(g, Config{})

	res := svc.AnalyzeJSON(context.Background(), []byte(`{"components": [`))
	assert.Equal(t, grading.ReasonInvalidRequest, res.Reason)
	assert.Equal(t, grading.Fallback(domain.Scene{}, grading.ReasonInvalidRequest), res.Verdict)
	assert.Zero(t, g.calls())

	res = svc.AnalyzeJSON(context.Background(), []byte(`{"components": [{"id": "cu", "type": "central-unit"}], "connections": {}}`))
	assert.Equal(t, metrics.PathHybrid, res.Path)
	assert.Equal(t, 1, g.calls())
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(errors.New("dial tcp: refused")))
	assert.True(t, Retryable(&ollama.StatusError{Code: 500}))
	assert.False(t, Retryable(&ollama.StatusError{Code: 400}))
	assert.False(t, Retryable(context.Canceled))
	assert.False(t, Retryable(ollama.ErrEmptyResponse))
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeAI, ParseMode(" AI "))
	assert.Equal(t, ModeRules, ParseMode("rules"))
	assert.Equal(t, ModeHybrid, ParseMode("whatever"))
	assert.Equal(t, ModeHybrid, ParseMode(""))
}
