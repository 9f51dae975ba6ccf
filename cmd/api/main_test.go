package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/assemblylab/pcbench/engine/assess"
	"github.com/assemblylab/pcbench/engine/grading"
	"github.com/assemblylab/pcbench/pkg/metrics"
	"github.com/assemblylab/pcbench/pkg/mid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullScene = `{
	"components": [
		{"id": "cu", "type": "central-unit"},
		{"id": "mon", "type": "monitor"},
		{"id": "kbd", "type": "keyboard"},
		{"id": "mouse", "type": "mouse"},
		{"id": "strip", "type": "power-strip"}
	],
	"connections": {
		"cu": [{"toPortId": "power-strip-1", "connectionType": "power"}],
		"mon": [{"toPortId": "power-strip-2", "connectionType": "power"}, {"toPortId": "hdmi1", "connectionType": "data"}],
		"kbd": [{"toPortId": "usb1", "connectionType": "data"}],
		"mouse": [{"toPortId": "usb2", "connectionType": "data"}],
		"strip": [{"toPortId": "wall-outlet", "connectionType": "power"}]
	}
}`

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// newTestServer builds the full handler against a fake Ollama answering with
// reply, or in rules mode when reply is empty.
func newTestServer(t *testing.T, reply string) (http.Handler, *metrics.Registry) {
	t.Helper()
	cfg := Config{
		CORSOrigin:       "*",
		ServiceName:      "pcbench-test",
		MaxBodyBytes:     1 << 16,
		Mode:             assess.ModeRules,
		LLMBurst:         4,
		LLMRetries:       1,
		BreakerThreshold: 5,
		BreakerTimeout:   time.Second,
	}
	if reply != "" {
		ollamaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"response": reply, "done": true})
		}))
		t.Cleanup(ollamaSrv.Close)
		cfg.OllamaURL = ollamaSrv.URL
		cfg.Mode = assess.ModeHybrid
	}
	reg := metrics.New()
	svc := newService(cfg, metrics.NewAnalysisMetrics(reg), testLogger())
	return newHandler(cfg, svc, reg, testLogger()), reg
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

type verdict struct {
	IsValid     bool     `json:"isValid"`
	Score       int      `json:"score"`
	Feedback    string   `json:"feedback"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealthEndpoint(t *testing.T) {
	h, _ := newTestServer(t, "")
	rec := do(h, http.MethodGet, "/api/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(mid.RequestIDHeader))
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "rules", body["mode"])
}

func TestConnectivity_RulesMode(t *testing.T) {
	h, reg := newTestServer(t, "")
	rec := do(h, http.MethodPost, "/api/connectivity", fullScene)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, metrics.PathRules, rec.Header().Get(headerPath))
	v := decode[verdict](t, rec)
	assert.True(t, v.IsValid)
	assert.Equal(t, 100, v.Score)
	assert.NotNil(t, v.Issues)

	m := do(h, http.MethodGet, "/metrics", "")
	assert.Contains(t, m.Body.String(), `pcbench_analyses_total{path="rules"} 1`)
	assert.Contains(t, reg.Render(), "pcbench_analysis_duration_seconds_count 1")
}

func TestConnectivity_MalformedBody(t *testing.T) {
	h, _ := newTestServer(t, "")
	rec := do(h, http.MethodPost, "/api/connectivity", `{"components": [`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, metrics.PathFallback, rec.Header().Get(headerPath))
	v := decode[verdict](t, rec)
	assert.False(t, v.IsValid)
	assert.True(t, strings.HasPrefix(v.Feedback, "["+grading.ReasonInvalidRequest+"]"))
}

func TestConnectivity_HybridAgainstModel(t *testing.T) {
	h, _ := newTestServer(t, `{"isValid": true, "score": 90, "feedback": "ok", "issues": ["Le moniteur n'est pas connecté"]}`)
	rec := do(h, http.MethodPost, "/api/connectivity", fullScene)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, metrics.PathHybrid, rec.Header().Get(headerPath))
	v := decode[verdict](t, rec)
	assert.True(t, v.IsValid)
	assert.Equal(t, 90, v.Score)
	assert.Empty(t, v.Issues)
}

func TestConnectivity_BodyTooLarge(t *testing.T) {
	h, _ := newTestServer(t, "")
	rec := do(h, http.MethodPost, "/api/connectivity", `{"components": [], "pad": "`+strings.Repeat("x", 1<<17)+`"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, metrics.PathFallback, rec.Header().Get(headerPath))
}

func TestFactsEndpoint(t *testing.T) {
	h, _ := newTestServer(t, "")
	rec := do(h, http.MethodPost, "/api/facts", fullScene)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Basic map[string]bool `json:"basic"`
		Facts struct {
			MonitorConnectedToHDMI    bool     `json:"monitorConnectedToHdmi"`
			PowerStripConnectedToWall bool     `json:"powerStripConnectedToWall"`
			DataConnected             []string `json:"deviceDataConnectedTypes"`
		} `json:"facts"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Facts.MonitorConnectedToHDMI)
	assert.True(t, body.Facts.PowerStripConnectedToWall)
	assert.ElementsMatch(t, []string{"keyboard", "mouse", "monitor"}, body.Facts.DataConnected)
	assert.NotEmpty(t, body.Basic)

	rec = do(h, http.MethodPost, "/api/facts", "nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFactsEndpoint_Wiring(t *testing.T) {
	h, _ := newTestServer(t, "")

	resp := decode[FactsResponse](t, do(h, http.MethodPost, "/api/facts", fullScene))
	assert.Zero(t, resp.Wiring.Misplaced)
	assert.Empty(t, resp.Wiring.Errors)

	miswired := `{
		"components": [
			{"id": "cu", "type": "central-unit"},
			{"id": "mon", "type": "monitor"},
			{"id": "printer", "type": "printer"}
		],
		"connections": {
			"mon": [{"toPortId": "usb3", "connectionType": "data"}],
			"printer": [{"toPortId": "hdmi1", "connectionType": "power"}],
			"ghost": [{"toPortId": "usb4", "connectionType": "data"}]
		}
	}`
	rec := do(h, http.MethodPost, "/api/facts", miswired)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[FactsResponse](t, rec)
	assert.Equal(t, 1, resp.Wiring.Misplaced)
	require.Len(t, resp.Wiring.Errors, 2)
	assert.Contains(t, resp.Wiring.Errors[0], "connection kind does not match port")
	assert.Contains(t, resp.Wiring.Errors[1], "ghost")
}

func TestSuggestEndpoint(t *testing.T) {
	h, _ := newTestServer(t, `{"monitor": "4K", "keyboard": "silencieux", "mouse": "ergonomique", "other": "lampe"}`)

	rec := do(h, http.MethodPost, "/api/suggest", `{"activity": "bureautique"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SuggestResponse](t, rec)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "4K", resp.Data.Monitor)

	rec = do(h, http.MethodPost, "/api/suggest", `{"activity": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid input.", decode[SuggestResponse](t, rec).Error)

	rec = do(h, http.MethodPost, "/api/suggest", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggestEndpoint_RulesMode(t *testing.T) {
	h, _ := newTestServer(t, "")
	rec := do(h, http.MethodPost, "/api/suggest", `{"activity": "gaming"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, decode[SuggestResponse](t, rec).Success)
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestServer(t, "")
	rec := do(h, http.MethodOptions, "/api/connectivity", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(h, http.MethodPost, "/api/connectivity", fullScene)
	exposed := rec.Header().Get("Access-Control-Expose-Headers")
	assert.Contains(t, exposed, headerPath)
	assert.Contains(t, exposed, mid.RequestIDHeader)
	assert.NotEmpty(t, rec.Header().Get(headerPath))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ANALYSIS_MODE", "RULES")
	t.Setenv("OLLAMA_TIMEOUT_MS", "2500")
	t.Setenv("LLM_RATE_PER_SEC", "0.5")
	t.Setenv("BREAKER_TIMEOUT", "not-a-duration")

	cfg := loadConfig()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, assess.ModeRules, cfg.Mode)
	assert.Equal(t, 2500*time.Millisecond, cfg.OllamaTimeout)
	assert.Equal(t, 0.5, cfg.LLMRatePerSec)
	assert.Equal(t, 30*time.Second, cfg.BreakerTimeout)
	assert.Equal(t, "deepseek-r1:8b", cfg.OllamaModel)
	assert.Equal(t, "http://localhost:11434/v1", cfg.OllamaURL)
}
