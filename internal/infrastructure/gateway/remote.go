// Package gateway provides the two persistence variants of the submission
// gateway: a remote HTTP service and a local key-value fallback.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erp/orderdesk/internal/domain/shared"
	"github.com/erp/orderdesk/internal/domain/trade"
	"go.uber.org/zap"
)

// maxResponseBytes caps how much of a remote response body is read
const maxResponseBytes = 10 << 20

// RemoteConfig configures the remote gateway
type RemoteConfig struct {
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
}

// RemoteGateway persists records by calling the order service over HTTP.
// It never retries; a failed call is reported as a transport error.
type RemoteGateway struct {
	httpClient *http.Client
	baseURL    string
	direction  trade.Direction
	headers    map[string]string
	logger     *zap.Logger
}

// NewRemoteGateway creates a new RemoteGateway
func NewRemoteGateway(direction trade.Direction, cfg RemoteConfig, logger *zap.Logger) (*RemoteGateway, error) {
	if !direction.IsValid() {
		return nil, fmt.Errorf("invalid direction %q", direction)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
		"User-Agent":   "orderdesk/1.0",
	}
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &RemoteGateway{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		direction:  direction,
		headers:    headers,
		logger:     logger,
	}, nil
}

// Mode returns GatewayModeRemote
func (g *RemoteGateway) Mode() trade.GatewayMode {
	return trade.GatewayModeRemote
}

// Direction returns the direction the gateway serves
func (g *RemoteGateway) Direction() trade.Direction {
	return g.direction
}

// Submit posts the record to <base>/sales or <base>/purchases
func (g *RemoteGateway) Submit(ctx context.Context, record trade.SubmissionRecord) (*trade.SubmitResult, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return nil, shared.NewTransportError("submit", 0, fmt.Errorf("marshaling record: %w", err))
	}

	status, respBody, err := g.do(ctx, http.MethodPost, g.collectionURL(nil), body)
	if err != nil {
		return nil, shared.NewTransportError("submit", status, err)
	}

	result := &trade.SubmitResult{
		OK:     true,
		Source: trade.SourceRemote,
		Raw:    json.RawMessage(respBody),
	}
	var saved trade.SubmissionRecord
	if payload := unwrapEnvelope(respBody); len(payload) > 0 && json.Unmarshal(payload, &saved) == nil && saved.DocumentNumber != "" {
		result.Data = &saved
	} else {
		submitted := record
		result.Data = &submitted
	}

	g.logger.Debug("Order submitted to remote service",
		zap.String("direction", g.direction.String()),
		zap.String("document_number", record.DocumentNumber),
		zap.Int("status", status),
	)
	return result, nil
}

// GetByID fetches <base>/<resource>/{id}. A 404 yields nil, nil, the same
// not-found answer the local gateway gives; other failures are TransportErrors.
func (g *RemoteGateway) GetByID(ctx context.Context, id string) (*trade.SubmissionRecord, error) {
	target := g.collectionURL(nil) + "/" + url.PathEscape(id)

	status, body, err := g.do(ctx, http.MethodGet, target, nil)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, shared.NewTransportError("get", status, err)
	}

	var rec trade.SubmissionRecord
	if err := json.Unmarshal(unwrapEnvelope(body), &rec); err != nil {
		return nil, shared.NewTransportError("get", status, fmt.Errorf("decoding record: %w", err))
	}
	return &rec, nil
}

// List fetches <base>/<resource> with the page, size and q parameters
func (g *RemoteGateway) List(ctx context.Context, query trade.ListQuery) ([]trade.SubmissionRecord, error) {
	params := url.Values{}
	if query.Page > 0 {
		params.Set("page", strconv.Itoa(query.Page))
	}
	if query.Size > 0 {
		params.Set("size", strconv.Itoa(query.Size))
	}
	if query.Q != "" {
		params.Set("q", query.Q)
	}

	status, body, err := g.do(ctx, http.MethodGet, g.collectionURL(params), nil)
	if err != nil {
		return nil, shared.NewTransportError("list", status, err)
	}

	payload := unwrapEnvelope(body)
	var records []trade.SubmissionRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		var page struct {
			Items []trade.SubmissionRecord `json:"items"`
		}
		if err2 := json.Unmarshal(payload, &page); err2 != nil {
			return nil, shared.NewTransportError("list", status, fmt.Errorf("decoding records: %w", err))
		}
		records = page.Items
	}
	if records == nil {
		records = []trade.SubmissionRecord{}
	}
	return records, nil
}

func (g *RemoteGateway) collectionURL(params url.Values) string {
	u := g.baseURL + "/" + g.direction.ResourcePath()
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// do executes one request. It returns the status code whenever a response
// was received, and an error for network failures and non-2xx statuses.
func (g *RemoteGateway) do(ctx context.Context, method, target string, body []byte) (int, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	for k, v := range g.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn("Remote order service unreachable",
			zap.String("method", method),
			zap.String("url", target),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, respBody, fmt.Errorf("unexpected status %d from %s %s", resp.StatusCode, method, target)
	}
	return resp.StatusCode, respBody, nil
}

// unwrapEnvelope returns the data member of a {"success": ..., "data": ...}
// response, or the body itself when it is not enveloped.
func unwrapEnvelope(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return trimmed
	}
	_, hasSuccess := env["success"]
	data, hasData := env["data"]
	if hasSuccess && hasData {
		return data
	}
	return trimmed
}
