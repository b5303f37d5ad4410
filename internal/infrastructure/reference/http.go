// Package reference provides the products, suppliers and customers that
// orders refer to, either from the reference endpoints or from config.
package reference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/erp/orderdesk/internal/domain/trade"
	"go.uber.org/zap"
)

const maxResponseBytes = 4 << 20

// HTTPClient reads reference data from GET <base>/products, /suppliers and
// /customers. Plain arrays, {"success","data"} envelopes and {"items"} pages
// are all accepted.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewHTTPClient creates a client for the reference endpoints under baseURL
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}, nil
}

// Products implements trade.ReferenceData
func (c *HTTPClient) Products(ctx context.Context) ([]trade.Product, error) {
	var products []trade.Product
	if err := c.getList(ctx, "products", &products); err != nil {
		return nil, err
	}
	return products, nil
}

// Suppliers implements trade.ReferenceData
func (c *HTTPClient) Suppliers(ctx context.Context) ([]trade.Party, error) {
	var parties []trade.Party
	if err := c.getList(ctx, "suppliers", &parties); err != nil {
		return nil, err
	}
	return parties, nil
}

// Customers implements trade.ReferenceData
func (c *HTTPClient) Customers(ctx context.Context) ([]trade.Party, error) {
	var parties []trade.Party
	if err := c.getList(ctx, "customers", &parties); err != nil {
		return nil, err
	}
	return parties, nil
}

func (c *HTTPClient) getList(ctx context.Context, resource string, out any) error {
	target := c.baseURL + "/" + resource
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Reference endpoint unreachable", zap.String("url", target), zap.Error(err))
		return fmt.Errorf("fetching %s: %w", resource, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading %s response: %w", resource, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: unexpected status %d", resource, resp.StatusCode)
	}
	if err := decodeList(body, out); err != nil {
		return fmt.Errorf("decoding %s: %w", resource, err)
	}
	return nil
}

// decodeList decodes an array, or the array found under "data" or "items"
func decodeList(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return err
	}
	for _, key := range []string{"data", "items"} {
		if inner, ok := env[key]; ok {
			return decodeList(inner, out)
		}
	}
	return fmt.Errorf("response is neither a list nor an envelope")
}

var _ trade.ReferenceData = (*HTTPClient)(nil)
