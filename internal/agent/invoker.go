// Package agent calls external analysis services ("agents") over HTTP.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"claimflow/internal/config"
	"claimflow/internal/domain"
	"claimflow/internal/placeholder"
	"claimflow/internal/port"
)

const (
	defaultTimeout     = 120 * time.Second
	defaultSuccessCode = http.StatusOK
	maxResponseBytes   = 32 << 20
)

// Invoker implements port.AgentInvoker.
type Invoker struct {
	client      *http.Client
	props       placeholder.PropertySource
	timeout     time.Duration
	successCode int
	now         func() time.Time
}

// NewInvoker creates an invoker with an instrumented HTTP transport. props
// supplies the tenant-scoped agent credentials.
func NewInvoker(cfg *config.AgentConfig, props placeholder.PropertySource) *Invoker {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.MaxIdleConns > 0 {
		transport.MaxIdleConnsPerHost = cfg.MaxIdleConns
	}
	return NewInvokerWithClient(cfg, props, &http.Client{Transport: otelhttp.NewTransport(transport)})
}

// NewInvokerWithClient creates an invoker using the given client (for testing).
func NewInvokerWithClient(cfg *config.AgentConfig, props placeholder.PropertySource, client *http.Client) *Invoker {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = defaultTimeout
	}
	successCode := cfg.SuccessCode
	if successCode == 0 {
		successCode = defaultSuccessCode
	}
	return &Invoker{
		client:      client,
		props:       props,
		timeout:     timeout,
		successCode: successCode,
		now:         time.Now,
	}
}

type requestBody struct {
	AgentID string         `json:"agentid"`
	Data    map[string]any `json:"data"`
}

// Invoke POSTs {"agentid", "data"} to the endpoint and wraps the response in an
// envelope. A non-success status and a transport failure both return
// *domain.AgentCallFailedError. Missing credentials are a configuration error.
func (i *Invoker) Invoke(ctx context.Context, req port.AgentRequest) (*domain.ResultEnvelope, error) {
	url := req.Endpoint.URL()
	if url == "" {
		return nil, domain.MissingConfig("endpoint for agent %q", req.AgentID)
	}

	data := req.Data
	if data == nil {
		data = map[string]any{}
	}
	body, err := json.Marshal(requestBody{AgentID: req.AgentID, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshaling request for agent %s: %w", req.AgentID, err)
	}

	timeout := i.timeout
	if req.Endpoint.TimeoutSecs > 0 {
		timeout = time.Duration(req.Endpoint.TimeoutSecs) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request for agent %s: %w", req.AgentID, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if err := i.authorize(httpReq, req); err != nil {
		return nil, err
	}

	start := i.now()
	resp, err := i.client.Do(httpReq)
	if err != nil {
		zap.L().Warn("agent.Invoke: transport failure",
			zap.String("agent_id", req.AgentID), zap.String("url", url), zap.Error(err))
		return nil, &domain.AgentCallFailedError{AgentID: req.AgentID, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.AgentCallFailedError{AgentID: req.AgentID, StatusCode: resp.StatusCode, Err: err}
	}

	successCode := i.successCode
	if req.Endpoint.SuccessCode != 0 {
		successCode = req.Endpoint.SuccessCode
	}
	if resp.StatusCode != successCode {
		zap.L().Warn("agent.Invoke: unexpected status",
			zap.String("agent_id", req.AgentID), zap.Int("status", resp.StatusCode), zap.Int("want", successCode))
		return nil, &domain.AgentCallFailedError{
			AgentID:    req.AgentID,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	zap.L().Info("agent.Invoke: completed",
		zap.String("agent_id", req.AgentID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", i.now().Sub(start)))

	return &domain.ResultEnvelope{
		AgentID:     req.AgentID,
		StatusCode:  resp.StatusCode,
		Success:     true,
		RawResponse: string(respBody),
		Timestamp:   i.now().UTC(),
	}, nil
}
