// Package payment holds the adapters of the Culqi, MercadoPago and PayPhone gateways.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/backoffice/saas/internal/domain/billing"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const maxResponseBody = 1 << 20

// HTTPError is a non-2xx gateway answer
type HTTPError struct {
	Gateway    billing.GatewayType
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s %s failed with status %d: %s", e.Gateway, e.Method, e.Path, e.StatusCode, e.Body)
}

// Unwrap lets callers match billing.ErrGatewayRequestFailed
func (e *HTTPError) Unwrap() error { return billing.ErrGatewayRequestFailed }

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// apiClient is the JSON transport shared by the adapters. GET requests are
// retried with exponential backoff; POSTs are sent once since they create
// charges or refunds.
type apiClient struct {
	gateway    billing.GatewayType
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
	maxRetries int
	logger     *zap.Logger
}

func newAPIClient(gateway billing.GatewayType, baseURL string, headers map[string]string, logger *zap.Logger) *apiClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &apiClient{
		gateway:    gateway,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		headers:    headers,
		maxRetries: 3,
		logger:     logger.With(zap.String("gateway", string(gateway))),
	}
}

type requestOption func(*http.Request)

func withHeader(key, value string) requestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// do sends body as JSON and decodes the answer into out. The raw response
// body is returned for auditing.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any, opts ...requestOption) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("%s: failed to marshal request: %w", c.gateway, err)
		}
	}

	var raw []byte
	operation := func() error {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%s: failed to create request: %w", c.gateway, err))
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}
		for _, opt := range opts {
			opt(req)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", billing.ErrGatewayRequestFailed, c.gateway, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return fmt.Errorf("%s: failed to read response: %w", c.gateway, err)
		}
		if resp.StatusCode >= 300 {
			httpErr := &HTTPError{Gateway: c.gateway, Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(data)}
			if retryableStatus(resp.StatusCode) {
				return httpErr
			}
			return backoff.Permanent(httpErr)
		}
		raw = data
		return nil
	}

	retries := 0
	if method == http.MethodGet {
		retries = c.maxRetries
	}
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 200 * time.Millisecond
	expBackoff.MaxInterval = 2 * time.Second
	expBackoff.Multiplier = 2.0
	expBackoff.MaxElapsedTime = 20 * time.Second

	start := time.Now()
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(retries)), ctx))
	if err != nil {
		c.logger.Warn("Gateway request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, err
	}
	c.logger.Debug("Gateway request succeeded",
		zap.String("method", method),
		zap.String("path", path),
		zap.Duration("duration", time.Since(start)))

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return raw, fmt.Errorf("%w: %s: %v", billing.ErrGatewayInvalidResponse, c.gateway, err)
		}
	}
	return raw, nil
}
