package backend

import (
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

	"github.com/boutique/storefront/internal/metrics"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxBodySize = 4 << 20 // 4MB

type Config struct {
	BaseURL         string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
	// Transport defaults to http.DefaultTransport, wrapped for tracing.
	Transport http.RoundTripper
}

// Client talks to the shop's REST backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	metrics    *metrics.Metrics
	log        logrus.FieldLogger
}

func New(cfg Config, log logrus.FieldLogger, m *metrics.Metrics) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrBaseURL
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	c := &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		metrics: m,
		log:     log.WithField("component", "backend"),
	}

	failures := cfg.BreakerFailures
	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// a caller giving up is not a backend failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})

	return c, nil
}

// do issues a call as the caller in ctx. A 401 is retried once after
// refreshing the access token, when a refresh token is available.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) (int, error) {
	creds := CredentialsFrom(ctx)
	status, err := c.roundTrip(ctx, method, path, in, out, creds)
	if status != http.StatusUnauthorized || creds == nil || creds.refreshToken() == "" {
		return status, err
	}

	if errRefresh := c.refresh(ctx, creds); errRefresh != nil {
		c.log.WithError(errRefresh).Warn("token refresh failed")
		return status, err
	}
	return c.roundTrip(ctx, method, path, in, out, creds)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out interface{}, creds *Credentials) (int, error) {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to encode %s %s: %w", method, path, err)
		}
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		req, err := c.newRequest(ctx, method, path, payload, creds)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		// server errors count against the breaker, client errors do not
		if resp.StatusCode >= http.StatusInternalServerError {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
			return nil, newAPIError(method, path, resp.StatusCode, body)
		}
		return resp, nil
	})
	endpoint := endpointLabel(path)
	if err != nil {
		status := StatusCode(err)
		c.metrics.ObserveBackend(method, endpoint, status, time.Since(start))
		c.log.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": status,
		}).WithError(err).Warn("backend call failed")

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		if status != 0 {
			return status, err
		}
		return 0, fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	took := time.Since(start)
	c.metrics.ObserveBackend(method, endpoint, resp.StatusCode, took)
	c.log.WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      resp.StatusCode,
		"duration_ms": took.Milliseconds(),
	}).Debug("backend call")

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return resp.StatusCode, newAPIError(method, path, resp.StatusCode, body)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return resp.StatusCode, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte, creds *Credentials) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds != nil {
		if token := creds.Access(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// endpointLabel collapses numeric path segments so metrics stay low-cardinality.
func endpointLabel(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p != "" && strings.Trim(p, "0123456789") == "" {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

// decodeList accepts either a bare JSON array or a paginated {"results": [...]}.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var page struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, err
	}
	if page.Results == nil {
		return []T{}, nil
	}
	return page.Results, nil
}

func getList[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var raw json.RawMessage
	if _, err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	items, err := decodeList[T](raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode list %s: %w", path, err)
	}
	return items, nil
}
