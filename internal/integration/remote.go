package integration

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

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
)

const maxResponseBytes = 8 << 20

// RemoteOptions configures the HTTP client an adapter uses to reach its
// provider. Zero values fall back to provider defaults.
type RemoteOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
	Timeout    time.Duration
	// Breaker overrides the per-adapter circuit breaker, mainly for tests.
	Breaker *gobreaker.CircuitBreaker
}

type remoteClient struct {
	provider  string
	baseURL   string
	base      *http.Client
	userAgent string
	headers   map[string]string
	breaker   *gobreaker.CircuitBreaker
	logger    internal.Logger
}

func newRemoteClient(provider, defaultBaseURL string, opts RemoteOptions, headers map[string]string, logger internal.Logger) *remoteClient {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	breaker := opts.Breaker
	if breaker == nil {
		breaker = newBreaker(strings.ToLower(provider)+"-api", logger)
	}
	return &remoteClient{
		provider:  provider,
		baseURL:   baseURL,
		base:      httpClient,
		userAgent: strings.TrimSpace(opts.UserAgent),
		headers:   headers,
		breaker:   breaker,
		logger:    logger,
	}
}

func newBreaker(name string, logger internal.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("circuit breaker %s changed from %s to %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Only provider outages count; a bad token for one user must not
			// open the breaker for everyone.
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var remote *RemoteAPIError
			if errors.As(err, &remote) {
				return remote.StatusCode < 500 && remote.StatusCode != http.StatusTooManyRequests
			}
			return false
		},
	})
}

// call performs one authenticated request and decodes a JSON response into
// out. op names the step for error messages.
func (c *remoteClient) call(ctx context.Context, token *oauth2.Token, op, method, path string, body, out any) error {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.send(ctx, token, op, method, path, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &TransportError{Provider: c.provider, Op: op, Err: err}
		}
		return err
	}
	if out == nil {
		return nil
	}
	data, _ := result.([]byte)
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Errorf("%s %s: undecodable response: %v", c.provider, op, err)
		return &RemoteAPIError{Provider: c.provider, Op: op, StatusCode: http.StatusOK, Body: "unexpected response body: " + snippet(data)}
	}
	return nil
}

func (c *remoteClient) send(ctx context.Context, token *oauth2.Token, op, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode request: %w", c.provider, op, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s %s: build request: %w", c.provider, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{
		Transport: &oauth2.Transport{Source: oauth2.StaticTokenSource(token), Base: c.base.Transport},
		Timeout:   c.base.Timeout,
	}
	resp, err := client.Do(req)
	if err != nil {
		c.logger.Errorf("%s %s: transport failure: %v", c.provider, op, err)
		return nil, &TransportError{Provider: c.provider, Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Provider: c.provider, Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Errorf("%s %s: status %d: %s", c.provider, op, resp.StatusCode, snippet(data))
		return nil, &RemoteAPIError{Provider: c.provider, Op: op, StatusCode: resp.StatusCode, Body: snippet(data)}
	}
	return data, nil
}
