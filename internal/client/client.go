// Package client talks to a running signalbot server over HTTP.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"signalbot/internal/api"
	"signalbot/internal/models"
	"signalbot/internal/notify"
)

const maxEventSize = 1 << 20

// ClientOption configures Client.
type ClientOption func(*Client)

// Client is a typed client for the signalbot HTTP API.
type Client struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	stream  *http.Client // no overall timeout, for Events
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: 90 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	c.stream = &http.Client{Transport: c.client.Transport}
	return c
}

// WithTimeout sets client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// ErrorDetail is one entry of an error response.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Status  int
	Details []ErrorDetail
}

func (e *APIError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
	}
	msgs := make([]string, len(e.Details))
	for i, d := range e.Details {
		msgs[i] = d.Message
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, strings.Join(msgs, "; "))
}

// Code returns the code of the first error detail.
func (e *APIError) Code() string {
	if len(e.Details) == 0 {
		return ""
	}
	return e.Details[0].Code
}

// IsCode reports whether err is an APIError whose first detail has code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code() == code
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Prompt sends a single prompt to the language model.
func (c *Client) Prompt(ctx context.Context, prompt string) (string, error) {
	var out api.TextResponse
	err := c.do(ctx, http.MethodPost, "/api/prompt", api.PromptRequest{Prompt: prompt}, &out)
	return out.Response, err
}

// Chat sends a conversation to the language model.
func (c *Client) Chat(ctx context.Context, messages []models.ChatMessage) (string, error) {
	var out api.TextResponse
	err := c.do(ctx, http.MethodPost, "/api/chat", api.ChatRequest{Messages: messages}, &out)
	return out.Response, err
}

// AnalyzeMarket submits raw market data for analysis.
func (c *Client) AnalyzeMarket(ctx context.Context, raw []byte) ([]models.TradeSignal, error) {
	var out []models.TradeSignal
	err := c.do(ctx, http.MethodPost, "/api/analyze", raw, &out)
	return out, err
}

// ExecuteTrades executes qualifying signals.
func (c *Client) ExecuteTrades(ctx context.Context) ([]models.Trade, error) {
	var out []models.Trade
	err := c.do(ctx, http.MethodPost, "/api/execute", nil, &out)
	return out, err
}

// GetBotState fetches the bot state.
func (c *Client) GetBotState(ctx context.Context) (models.BotState, error) {
	var out models.BotState
	err := c.do(ctx, http.MethodGet, "/api/state", nil, &out)
	return out, err
}

// GetTradeHistory fetches every recorded trade.
func (c *Client) GetTradeHistory(ctx context.Context) ([]models.Trade, error) {
	var out []models.Trade
	err := c.do(ctx, http.MethodGet, "/api/trades", nil, &out)
	return out, err
}

// GetSignals fetches every recorded signal.
func (c *Client) GetSignals(ctx context.Context) ([]models.TradeSignal, error) {
	var out []models.TradeSignal
	err := c.do(ctx, http.MethodGet, "/api/signals", nil, &out)
	return out, err
}

// ToggleBot sets the activity flag.
func (c *Client) ToggleBot(ctx context.Context, active bool) (models.BotState, error) {
	var out models.BotState
	err := c.do(ctx, http.MethodPost, "/api/toggle", api.ToggleRequest{Active: &active}, &out)
	return out, err
}

// UpdateStrategy sets the strategy label and risk level.
func (c *Client) UpdateStrategy(ctx context.Context, strategy string, riskLevel float64) (models.BotState, error) {
	var out models.BotState
	req := api.StrategyRequest{Strategy: strategy, RiskLevel: &riskLevel}
	err := c.do(ctx, http.MethodPost, "/api/strategy", req, &out)
	return out, err
}

// Summary fetches the dashboard summary.
func (c *Client) Summary(ctx context.Context) (models.Summary, error) {
	var out models.Summary
	err := c.do(ctx, http.MethodGet, "/api/summary", nil, &out)
	return out, err
}

// Health fetches the server health. An unhealthy server is reported in the
// result, not as an error.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var out api.HealthResponse
	err := c.do(ctx, http.MethodGet, "/healthz", nil, &out)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable && out.Status != "" {
		return out, nil
	}
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, dest interface{}) error {
	req, err := c.buildRequest(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	return decodeEnvelope(resp.StatusCode, raw, dest)
}

// decodeEnvelope unpacks a response body. Non-2xx statuses become an
// *APIError.
func decodeEnvelope(status int, raw []byte, dest interface{}) error {
	ok := status >= 200 && status < 300

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if !ok {
			return &APIError{Status: status}
		}
		return fmt.Errorf("decode json: %w", err)
	}

	if !ok {
		apiErr := &APIError{Status: status}
		if json.Unmarshal(env.Data, &apiErr.Details) != nil {
			// Not an error list; let the caller see the payload.
			if dest != nil && len(env.Data) > 0 {
				_ = json.Unmarshal(env.Data, dest)
			}
		}
		return apiErr
	}

	if dest == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// Events subscribes to the server's event stream and calls fn for every
// event until ctx is cancelled, the server ends the stream or fn returns an
// error. With no types every event is delivered.
func (c *Client) Events(ctx context.Context, fn func(notify.Event) error, types ...notify.EventType) error {
	path := "/api/events"
	if len(types) > 0 {
		q := url.Values{}
		for _, t := range types {
			q.Add("type", string(t))
		}
		path += "?" + q.Encode()
	}

	req, err := c.buildRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return decodeEnvelope(resp.StatusCode, raw, nil)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if data.Len() == 0 {
				continue
			}
			var e notify.Event
			if err := json.Unmarshal([]byte(data.String()), &e); err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			data.Reset()
			if err := fn(e); err != nil {
				return err
			}
			continue
		}
		if v, ok := strings.CutPrefix(line, "data:"); ok {
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(v, " "))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

func (c *Client) buildRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var r io.Reader
	contentType := ""
	switch v := body.(type) {
	case nil:
	case []byte:
		r = bytes.NewReader(v)
		contentType = "application/octet-stream"
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal json: %w", err)
		}
		r = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "signalbot-cli/1.0")
	return req, nil
}
