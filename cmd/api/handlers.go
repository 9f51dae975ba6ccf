package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/assemblylab/pcbench/engine/assess"
	"github.com/assemblylab/pcbench/engine/connectivity"
	"github.com/assemblylab/pcbench/engine/domain"
	"github.com/assemblylab/pcbench/pkg/mid"
)

// headerPath tells the client how a verdict was produced.
const headerPath = "X-Analysis-Path"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func handleHealth(svc *assess.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "mode": string(svc.Mode())})
	}
}

// handleConnectivity always answers 200 with a verdict; an unreadable or
// malformed body is graded as an invalid request.
func handleConnectivity(svc *assess.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			logger.Warn("read connectivity body", "err", err, "request_id", mid.RequestIDFrom(r.Context()))
			body = nil
		}
		res := svc.AnalyzeJSON(r.Context(), body)
		w.Header().Set(headerPath, res.Path)
		writeJSON(w, http.StatusOK, res.Verdict)
	}
}

// FactsResponse is the JSON response for POST /api/facts.
type FactsResponse struct {
	Basic  connectivity.BasicResult `json:"basic"`
	Facts  connectivity.Facts       `json:"facts"`
	Wiring WiringReport             `json:"wiring"`
}

// WiringReport replays the edges onto the standard port layout: Misplaced
// counts devices in a port meant for another device, Errors lists edges the
// layout refuses.
type WiringReport struct {
	Misplaced int      `json:"misplaced"`
	Errors    []string `json:"errors"`
}

func replayWiring(s domain.Scene) WiringReport {
	_, misplaced, errs := domain.Replay(s, domain.StandardPorts())
	r := WiringReport{Misplaced: misplaced, Errors: make([]string, 0, len(errs))}
	for _, err := range errs {
		r.Errors = append(r.Errors, err.Error())
	}
	return r
}

func handleFacts(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		scene, err := domain.DecodeScene(body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		scene, dropped := domain.Sanitize(scene)
		if len(dropped) > 0 {
			logger.Debug("facts: dropped components", "count", len(dropped))
		}
		basic, facts := connectivity.Inspect(scene)
		writeJSON(w, http.StatusOK, FactsResponse{Basic: basic, Facts: facts, Wiring: replayWiring(scene)})
	}
}

// SuggestRequest is the JSON body for POST /api/suggest.
type SuggestRequest struct {
	Activity string `json:"activity"`
}

// SuggestResponse mirrors the {success, data|error} envelope of the UI.
type SuggestResponse struct {
	Success bool               `json:"success"`
	Data    *assess.Suggestion `json:"data,omitempty"`
	Error   string             `json:"error,omitempty"`
}

func handleSuggest(svc *assess.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SuggestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, SuggestResponse{Error: "Invalid input."})
			return
		}

		sg, err := svc.Suggest(r.Context(), req.Activity)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, SuggestResponse{Success: true, Data: &sg})
		case errors.Is(err, domain.ErrInvalidActivity):
			writeJSON(w, http.StatusBadRequest, SuggestResponse{Error: "Invalid input."})
		case errors.Is(err, assess.ErrNoGenerator):
			writeJSON(w, http.StatusServiceUnavailable, SuggestResponse{Error: "Suggestions are disabled."})
		default:
			logger.Error("suggest failed", "err", err, "request_id", mid.RequestIDFrom(r.Context()))
			writeJSON(w, http.StatusBadGateway, SuggestResponse{Error: "Failed to get configuration suggestion."})
		}
	}
}
