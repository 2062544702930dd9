// Package automation hands bridged traffic to the downstream workflow
// engine and carries its replies back.
package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/businessgohq/bridge/internal/config"
)

// Request is one message for the workflow engine to act on.
type Request struct {
	TenantID    int64  `json:"tenant_id"`
	Phone       string `json:"phone"`
	Text        string `json:"text"`
	DisplayName string `json:"display_name,omitempty"`

	// BusinessToken authorizes operator traffic. Customers have none.
	BusinessToken string `json:"-"`
}

// Result is what the engine produced: an optional reply to deliver and
// the workflow run it started, if any.
type Result struct {
	Reply      string `json:"reply,omitempty"`
	WorkflowID string `json:"workflow_id,omitempty"`
}

// Engine routes messages into the workflow system. Customer and operator
// traffic land on different hooks since operators act with a grant.
type Engine interface {
	HandleCustomer(ctx context.Context, req Request) (Result, error)
	HandleOperator(ctx context.Context, req Request) (Result, error)
}

// NewEngine picks the engine for the configuration: the HTTP engine when
// a base URL is set and enabled, otherwise the no-op engine.
func NewEngine(log *slog.Logger, cfg config.AutomationConfig) Engine {
	if !cfg.Enabled || cfg.BaseURL == "" {
		return NopEngine{}
	}
	return NewHTTPEngine(log, cfg)
}

// NopEngine drops every message without replying. Used when no workflow
// engine is wired up; the bridge still records all traffic.
type NopEngine struct{}

func (NopEngine) HandleCustomer(context.Context, Request) (Result, error) { return Result{}, nil }
func (NopEngine) HandleOperator(context.Context, Request) (Result, error) { return Result{}, nil }

// HTTPEngine forwards messages to the workflow engine over HTTP.
type HTTPEngine struct {
	baseURL    string
	logger     *slog.Logger
	httpClient *http.Client
}

func NewHTTPEngine(log *slog.Logger, cfg config.AutomationConfig) *HTTPEngine {
	if log == nil {
		log = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPEngine{
		baseURL:    cfg.BaseURL,
		logger:     log.With(slog.String("service", "automation")),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (e *HTTPEngine) HandleCustomer(ctx context.Context, req Request) (Result, error) {
	return e.post(ctx, "/hooks/customer", req)
}

func (e *HTTPEngine) HandleOperator(ctx context.Context, req Request) (Result, error) {
	return e.post(ctx, "/hooks/operator", req)
}

func (e *HTTPEngine) post(ctx context.Context, path string, req Request) (Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshal automation request: %w", err)
	}
	url := e.baseURL + path

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build automation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.BusinessToken != "" {
		httpReq.Header.Set("x-business-token", req.BusinessToken)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("automation request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read automation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e.logger.Error("automation rejected message",
			slog.String("url", url),
			slog.Int("status", resp.StatusCode),
			slog.String("body_prefix", prefix(string(respBody), 200)),
		)
		return Result{}, fmt.Errorf("automation status %d", resp.StatusCode)
	}

	var result Result
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return Result{}, fmt.Errorf("parse automation response: %w", err)
		}
	}
	return result, nil
}

func prefix(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
