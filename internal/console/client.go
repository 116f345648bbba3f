package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	apihttp "github.com/GriffinCanCode/uartd/internal/api/http"
	"github.com/GriffinCanCode/uartd/internal/api/middleware"
	"github.com/GriffinCanCode/uartd/internal/infrastructure/resilience"
)

// APIError is a non-2xx answer from uartd.
type APIError struct {
	Status  int
	Message string
	Reason  string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("uartd: %d %s (%s)", e.Status, e.Message, e.Reason)
	}
	return fmt.Sprintf("uartd: %d %s", e.Status, e.Message)
}

// ClientConfig configures the API client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// RequestsPerSecond caps the client's own request rate; 0 is unlimited.
	RequestsPerSecond float64
}

// DefaultClientConfig returns the configuration used by uartcon.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:    "http://localhost:8080",
		Timeout:    10 * time.Second,
		MaxRetries: 3,
	}
}

// Client calls the uartd session API with retries, client-side rate
// limiting and a circuit breaker.
type Client struct {
	resty   *resty.Client
	base    *url.URL
	limiter *rate.Limiter
	breaker *resilience.Breaker
	dialer  *websocket.Dialer
}

// NewClient creates an API client for cfg.BaseURL.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", cfg.BaseURL)
	}

	// Create underlying retryable client
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil // Disable logging
	retryClient.CheckRetry = checkRetry

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(base.String()).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "uartcon/"+apihttp.Version)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, int(cfg.RequestsPerSecond)))
	}

	breaker := resilience.New("uartd-api", resilience.Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		resty:   restyClient,
		base:    base,
		limiter: limiter,
		breaker: breaker,
		dialer:  websocket.DefaultDialer,
	}, nil
}

// checkRetry retries connection failures and 429s. Other answers, including
// 503 policy rejections, are final.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return resp.StatusCode == http.StatusTooManyRequests, nil
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// do runs one request through the limiter and the breaker. Transport errors
// and gateway failures count against the breaker.
func (c *Client) do(ctx context.Context, fn func(r *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	var apiErr *APIError
	resp, err := resilience.Do(c.breaker, func() (*resty.Response, error) {
		resp, err := fn(c.resty.R().SetContext(ctx))
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			apiErr = decodeError(resp)
			if resp.StatusCode() >= 500 && resp.StatusCode() != http.StatusServiceUnavailable {
				return resp, apiErr
			}
		}
		return resp, nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, fmt.Errorf("uartd unavailable: %w", err)
	}
	if apiErr != nil {
		return resp, apiErr
	}
	return resp, err
}

func decodeError(resp *resty.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
	var body struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	if json.Unmarshal(resp.Body(), &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Reason = body.Reason
	}
	return apiErr
}

// CreateSession opens a session for label.
func (c *Client) CreateSession(ctx context.Context, label string, args map[string]string) (*apihttp.SessionView, error) {
	var view apihttp.SessionView
	_, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader(middleware.HeaderSessionLabel, label).
			SetBody(map[string]any{"args": args}).
			SetResult(&view).
			Post("/sessions")
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// CloseSession closes a session.
func (c *Client) CloseSession(ctx context.Context, sid string) error {
	_, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.Delete("/sessions/" + url.PathEscape(sid))
	})
	return err
}

// Load copies p into the session dataspace and returns how many bytes fit.
func (c *Client) Load(ctx context.Context, sid string, p []byte) (int, error) {
	var result struct {
		Loaded int `json:"loaded"`
	}
	_, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("Content-Type", "application/octet-stream").
			SetBody(p).
			SetResult(&result).
			Put("/sessions/" + url.PathEscape(sid) + "/dataspace")
	})
	return result.Loaded, err
}

// Write asks the session to send the first n dataspace bytes to the UART.
func (c *Client) Write(ctx context.Context, sid string, n int) error {
	_, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("len", strconv.Itoa(n)).
			Post("/sessions/" + url.PathEscape(sid) + "/write")
	})
	return err
}

// Read asks the session to move up to n pending bytes into the dataspace.
func (c *Client) Read(ctx context.Context, sid string, n int) (int, error) {
	var result struct {
		Transferred int `json:"transferred"`
	}
	_, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("len", strconv.Itoa(n)).
			SetResult(&result).
			Post("/sessions/" + url.PathEscape(sid) + "/read")
	})
	return result.Transferred, err
}

// Fetch copies the first n dataspace bytes out of the session.
func (c *Client) Fetch(ctx context.Context, sid string, n int) ([]byte, error) {
	resp, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("len", strconv.Itoa(n)).
			Get("/sessions/" + url.PathEscape(sid) + "/dataspace")
	})
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// Dial opens the session's notification stream.
func (c *Client) Dial(ctx context.Context, sid string) (*websocket.Conn, error) {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/sessions/" + url.PathEscape(sid) + "/stream"

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("stream handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("stream dial failed: %w", err)
	}
	return conn, nil
}
