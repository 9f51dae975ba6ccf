// Package ollama is a minimal client for Ollama's /api/generate endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "deepseek-r1:8b"

// ErrEmptyResponse is returned when the server answers 200 with no text.
var ErrEmptyResponse = errors.New("ollama generate: empty response")

// StatusError is returned for any non-200 answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama generate: status %d", e.Code)
}

// Options are the sampling options sent with every request.
type Options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

// Client calls a local Ollama server.
type Client struct {
	baseURL   string
	model     string
	keepAlive string
	options   Options
	client    *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.client = hc } }

// WithTimeout bounds each call. Zero means no timeout.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.client.Timeout = d } }

// NewClient creates a client. A trailing /v1 on baseURL (the OpenAI-compatible
// prefix) is stripped so both forms of the URL work.
func NewClient(baseURL, model string, opts ...Option) *Client {
	if model == "" {
		model = DefaultModel
	}
	c := &Client{
		baseURL:   NormalizeBaseURL(baseURL),
		model:     model,
		keepAlive: "30m",
		options:   Options{Temperature: 0, NumPredict: 800},
		client:    &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NormalizeBaseURL trims trailing slashes and a trailing /v1.
func NormalizeBaseURL(u string) string {
	u = strings.TrimRight(u, "/")
	u = strings.TrimSuffix(u, "/v1")
	return strings.TrimRight(u, "/")
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

type generateReq struct {
	Model     string  `json:"model"`
	Prompt    string  `json:"prompt"`
	Stream    bool    `json:"stream"`
	Format    string  `json:"format,omitempty"`
	Options   Options `json:"options"`
	KeepAlive string  `json:"keep_alive,omitempty"`
}

type generateResp struct {
	Response string `json:"response"`
}

// Generate sends prompt and returns the model's raw text. JSON output mode is
// requested; callers still have to extract the object from the text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateReq{
		Model:     c.model,
		Prompt:    prompt,
		Stream:    false,
		Format:    "json",
		Options:   c.options,
		KeepAlive: c.keepAlive,
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{Code: resp.StatusCode, Body: string(snippet)}
	}

	var result generateResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ollama generate decode: %w", err)
	}
	text := strings.TrimSpace(result.Response)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
