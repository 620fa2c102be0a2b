// Package vespa is a client for the Vespa shop administration backend. It
// owns the access/refresh token lifecycle: requests carry the current access
// token, a 401 triggers at most one token refresh followed by exactly one
// retry, and error bodies are normalized into typed errors.
package vespa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBaseURL = "http://localhost:8000/api"
	DefaultTimeout = 30 * time.Second

	headerRequestID = "X-Request-Id"
)

type ClientOpts struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// Session holds the credentials. Defaults to an in-memory session.
	Session *Session
	// Timeout bounds each HTTP round trip. Defaults to DefaultTimeout.
	Timeout time.Duration
	// RefreshLeeway refreshes the access token before sending a request when
	// the token expires within this duration. Zero disables proactive refresh.
	RefreshLeeway time.Duration
	Metrics       *Metrics
	// OnSessionExpired is called when the session is found to be expired.
	// A failed refresh calls it once from the shared refresh goroutine, no
	// matter how many requests were waiting on that refresh. A 401 with no
	// refresh token stored calls it on the requesting goroutine. It may be
	// called concurrently and must not block.
	OnSessionExpired func(err error)
	// HTTPClient replaces the underlying transport client, mostly for tests.
	HTTPClient *http.Client
}

// RequestOptions describes a single API call. The zero value is a GET.
type RequestOptions struct {
	Method string
	// Query is appended to any query string already present in the endpoint.
	Query url.Values
	// Body is sent as JSON when non-nil.
	Body any
	// Headers override the default headers on the first attempt. On a retry
	// after refresh, Authorization is always replaced with the new token.
	Headers map[string]string
}

// Client is safe for concurrent use.
type Client struct {
	httpClient       *resty.Client
	baseURL          string
	session          *Session
	refreshes        singleflight.Group
	metrics          *Metrics
	onSessionExpired func(err error)
	refreshLeeway    time.Duration
}

func NewClient(opts ClientOpts) *Client {
	c := &Client{
		baseURL:          DefaultBaseURL,
		session:          opts.Session,
		metrics:          opts.Metrics,
		onSessionExpired: opts.OnSessionExpired,
		refreshLeeway:    opts.RefreshLeeway,
	}
	if opts.BaseURL != "" {
		c.baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if c.session == nil {
		c.session = &Session{}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := resty.New()
	if opts.HTTPClient != nil {
		httpClient = resty.NewWithClient(opts.HTTPClient)
	}
	c.httpClient = httpClient.
		SetDebug(false).
		SetLogger(restyLogger{}).
		SetBaseURL(c.baseURL).
		SetTimeout(timeout).
		SetHeaders(
			map[string]string{
				"Content-Type": "application/json",
				"Accept":       "application/json",
				"User-Agent":   "vespa-admin",
			},
		)

	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Session() *Session {
	return c.session
}

// Request performs an API call and returns the JSON response body. An empty
// 2xx body yields nil, nil. A 2xx body that is not valid JSON returns the
// decoder's *json.SyntaxError unwrapped.
func (c *Client) Request(ctx context.Context, endpoint string, opts *RequestOptions) (json.RawMessage, error) {
	res, err := c.do(ctx, endpoint, opts)
	if err != nil {
		return nil, err
	}
	return handleResponse(res)
}

// RequestInto is Request followed by json.Unmarshal into dest. dest is left
// untouched when the response body is empty.
func (c *Client) RequestInto(ctx context.Context, endpoint string, opts *RequestOptions, dest any) error {
	raw, err := c.Request(ctx, endpoint, opts)
	if err != nil {
		return err
	}
	if raw == nil || dest == nil {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// do sends the request, refreshing and retrying once on 401. The returned
// response may still be a non-2xx one.
func (c *Client) do(ctx context.Context, endpoint string, opts *RequestOptions) (*resty.Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	endpoint = normalizeEndpoint(endpoint)
	requestID := uuid.NewString()

	access, refresh := c.session.Credentials()
	if c.refreshLeeway > 0 && access != "" && refresh != "" && tokenExpiresWithin(access, c.refreshLeeway) {
		log.Debug().Str("requestId", requestID).Msg("access token about to expire, refreshing before request")
		fresh, err := c.refreshAfter(ctx, access)
		if err != nil {
			return nil, err
		}
		access = fresh
	}

	res, err := c.send(ctx, method, endpoint, opts, access, requestID, false)
	if err != nil {
		return nil, err
	}
	if res.StatusCode() != http.StatusUnauthorized {
		return res, nil
	}

	fresh, err := c.refreshAfter(ctx, access)
	if errors.Is(err, ErrNoRefreshToken) {
		expired := &SessionExpiredError{Err: newAPIError(res)}
		c.sessionExpired(expired)
		return nil, expired
	}
	if err != nil {
		return nil, err
	}

	log.Debug().Str("requestId", requestID).Str("endpoint", endpoint).Msg("retrying request with refreshed token")
	return c.send(ctx, method, endpoint, opts, fresh, requestID, true)
}

func (c *Client) send(ctx context.Context, method, endpoint string, opts *RequestOptions, access, requestID string, retry bool) (*resty.Response, error) {
	req := c.httpClient.R().
		SetContext(ctx).
		SetHeader(headerRequestID, requestID)

	if access != "" {
		req.SetHeader("Authorization", "Bearer "+access)
	}
	if len(opts.Headers) > 0 {
		req.SetHeaders(opts.Headers)
	}
	if retry && access != "" {
		req.SetHeader("Authorization", "Bearer "+access)
	}
	if len(opts.Query) > 0 {
		req.SetQueryParamsFromValues(opts.Query)
	}
	if opts.Body != nil {
		req.SetBody(opts.Body)
	}

	start := time.Now()
	res, err := req.Execute(method, endpoint)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.observeRequest(method, 0, elapsed)
		log.Error().Err(err).
			Str("method", method).
			Str("endpoint", endpoint).
			Str("requestId", requestID).
			Msg("api request failed")
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}

	c.metrics.observeRequest(method, res.StatusCode(), elapsed)
	log.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", res.StatusCode()).
		Dur("duration", elapsed).
		Str("requestId", requestID).
		Bool("retry", retry).
		Msg("api request")

	return res, nil
}

// refreshAfter returns an access token to retry with after failed was
// rejected. If another goroutine already replaced failed, the current token
// is returned without calling the backend. Concurrent callers share one
// refresh call.
func (c *Client) refreshAfter(ctx context.Context, failed string) (string, error) {
	access, refresh := c.session.Credentials()
	if access != "" && access != failed {
		c.metrics.observeRefresh(refreshSkipped)
		return access, nil
	}
	if refresh == "" {
		return "", ErrNoRefreshToken
	}

	// The shared call outlives any single caller's cancellation
	ch := c.refreshes.DoChan(refresh, func() (any, error) {
		return c.refreshAccessToken(context.WithoutCancel(ctx), refresh)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}

// refreshAccessToken exchanges the refresh token for a new access token. On
// failure the credentials are cleared and a *SessionExpiredError returned.
// The refresh token itself is never rotated.
func (c *Client) refreshAccessToken(ctx context.Context, refresh string) (string, error) {
	c.session.setRefreshPending(true)
	defer c.session.setRefreshPending(false)

	log.Info().Msg("attempting token refresh")

	access, err := c.requestAccessToken(ctx, refresh)
	if err != nil {
		c.metrics.observeRefresh(refreshFailure)
		log.Warn().Err(err).Msg("token refresh failed, clearing credentials")
		c.session.ClearCredentials(ctx)
		expired := &SessionExpiredError{Err: err}
		c.sessionExpired(expired)
		return "", expired
	}

	c.session.SetCredentials(ctx, access, refresh)
	c.metrics.observeRefresh(refreshSuccess)
	log.Info().Msg("token refresh successful")
	return access, nil
}

func (c *Client) requestAccessToken(ctx context.Context, refresh string) (string, error) {
	start := time.Now()
	res, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]string{"refresh": refresh}).
		Post("/auth/refresh/")
	if err != nil {
		c.metrics.observeRequest(http.MethodPost, 0, time.Since(start))
		return "", fmt.Errorf("refresh access token: %w", err)
	}
	c.metrics.observeRequest(http.MethodPost, res.StatusCode(), time.Since(start))

	if !res.IsSuccess() {
		return "", newAPIError(res)
	}

	var result struct {
		Access string `json:"access"`
	}
	if err := json.Unmarshal(res.Body(), &result); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if result.Access == "" {
		return "", ErrNoAccessToken
	}
	return result.Access, nil
}

func (c *Client) sessionExpired(err *SessionExpiredError) {
	if c.onSessionExpired != nil {
		c.onSessionExpired(err)
	}
}

func handleResponse(res *resty.Response) (json.RawMessage, error) {
	if !res.IsSuccess() {
		return nil, newAPIError(res)
	}

	body := res.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		var v any
		return nil, json.Unmarshal(body, &v)
	}
	return json.RawMessage(body), nil
}

func normalizeEndpoint(endpoint string) string {
	if endpoint == "" || endpoint[0] != '/' {
		return "/" + endpoint
	}
	return endpoint
}

// restyLogger routes resty's internal warnings through zerolog.
type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...any) {
	log.Error().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (restyLogger) Warnf(format string, v ...any) {
	log.Warn().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (restyLogger) Debugf(format string, v ...any) {
	log.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
