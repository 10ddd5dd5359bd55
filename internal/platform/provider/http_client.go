package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/vendweave-gateway/internal/config"
	applog "github.com/vendweave-gateway/internal/logger"
)

const (
	pollPath      = "/api/sdk/laravel/poll"
	verifyPath    = "/api/sdk/laravel/verify"
	confirmPath   = "/api/sdk/laravel/confirm"
	reservePath   = "/api/sdk/laravel/reserve-reference"
	redactedValue = "***REDACTED***"
)

var sensitiveKeys = map[string]bool{"api_key": true, "api_secret": true, "secret": true, "password": true}

// HTTPClient implements Client over the provider's JSON API
type HTTPClient struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	apiSecret  string
	storeSlug  string
	limits     PollingLimits
	logger     *slog.Logger
}

// NewHTTPClient builds a client with the configured connect and total timeouts
func NewHTTPClient(logger *slog.Logger, cfg *config.ProviderConfig, polling *config.PollingConfig) *HTTPClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout

	return &HTTPClient{
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		storeSlug:  cfg.StoreSlug,
		limits: PollingLimits{
			Interval:    polling.Interval,
			MaxRequests: polling.MaxAttempts,
			Timeout:     polling.Timeout,
		},
		logger: logger.With("component", "provider_client"),
	}
}

func (c *HTTPClient) Poll(ctx context.Context, req Request) (*Response, error) {
	return c.post(ctx, pollPath, c.orderPayload(req, true))
}

func (c *HTTPClient) Verify(ctx context.Context, req Request) (*Response, error) {
	return c.post(ctx, verifyPath, c.orderPayload(req, true))
}

func (c *HTTPClient) Confirm(ctx context.Context, trxID, reference string) (*Response, error) {
	payload := map[string]interface{}{"trx_id": trxID}
	if reference != "" {
		payload["reference"] = reference
	}
	return c.post(ctx, confirmPath, payload)
}

func (c *HTTPClient) ReserveReference(ctx context.Context, req Request) (*Response, error) {
	return c.post(ctx, reservePath, c.orderPayload(req, false))
}

func (c *HTTPClient) StoreSlug() string {
	return c.storeSlug
}

func (c *HTTPClient) PollingLimits() PollingLimits {
	return c.limits
}

func (c *HTTPClient) orderPayload(req Request, withStore bool) map[string]interface{} {
	payload := map[string]interface{}{
		"wc_order_id":     req.OrderID,
		"expected_amount": req.Amount.StringFixed(2),
		"payment_method":  req.PaymentMethod,
	}
	if withStore {
		payload["store_slug"] = c.storeSlug
	}
	if req.TrxID != "" {
		payload["trx_id"] = req.TrxID
	}
	if req.Reference != "" {
		payload["reference"] = req.Reference
	}
	return payload
}

func (c *HTTPClient) post(ctx context.Context, path string, payload map[string]interface{}) (*Response, error) {
	if c.apiKey == "" || c.apiSecret == "" || c.storeSlug == "" {
		return nil, ErrInvalidCredentials
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ConnectionError{Message: "failed to encode provider request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, &ConnectionError{Message: "failed to build provider request", Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-Store-Secret", c.apiSecret)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	if correlationID := applog.CorrelationIDFromContext(ctx); correlationID != "" {
		httpReq.Header.Set("X-Correlation-ID", correlationID)
	}

	c.logger.Info("Provider request",
		"path", path,
		"store_slug", c.storeSlug,
		"params", sanitizeForLog(payload),
	)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Provider connection failed", "path", path, "error", err)
		return nil, &ConnectionError{Message: "unable to connect to provider", Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &ConnectionError{Message: "failed to read provider response", Err: err}
	}

	c.logger.Info("Provider response", "path", path, "status_code", httpResp.StatusCode)

	if httpResp.StatusCode == http.StatusUnauthorized {
		return nil, ErrInvalidCredentials
	}

	decoded, decodeErr := decodeBody(raw)
	if httpResp.StatusCode >= http.StatusInternalServerError {
		return nil, &ConnectionError{Message: fmt.Sprintf("provider returned server error: %s", serverMessage(decoded))}
	}
	if decodeErr != nil {
		return nil, &ConnectionError{Message: "failed to decode provider response", Err: decodeErr}
	}

	return &Response{HTTPStatus: httpResp.StatusCode, Body: decoded}, nil
}

// decodeBody keeps numbers as json.Number so amounts are parsed exactly. An empty body decodes to an empty object.
func decodeBody(raw []byte) (interface{}, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]interface{}{}, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var body interface{}
	if err := decoder.Decode(&body); err != nil {
		return nil, err
	}
	if body == nil {
		return map[string]interface{}{}, nil
	}
	return body, nil
}

func serverMessage(body interface{}) string {
	if m, ok := body.(map[string]interface{}); ok {
		if msg, ok := m["message"].(string); ok && msg != "" {
			return msg
		}
	}
	return "Unknown error"
}

func sanitizeForLog(payload map[string]interface{}) map[string]interface{} {
	clean := make(map[string]interface{}, len(payload))
	for key, value := range payload {
		if sensitiveKeys[strings.ToLower(key)] {
			clean[key] = redactedValue
			continue
		}
		clean[key] = value
	}
	return clean
}

var _ Client = (*HTTPClient)(nil)
