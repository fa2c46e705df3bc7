package ghclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/issueradar/issueradar/internal/constants"
	"github.com/issueradar/issueradar/internal/log"
)

// rateLimitTransport wraps an http.RoundTripper to handle GitHub rate limits
type rateLimitTransport struct {
	base  http.RoundTripper
	state *RateLimitState
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Check if we're already rate limited before making the request
	if t.state.IsLimited() {
		return nil, ErrRateLimited
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	// Parse and update rate limit state from response headers
	remaining, limit, resetAt := parseRateLimitHeaders(resp)
	if remaining >= 0 && limit > 0 {
		t.state.Update(remaining, limit, resetAt)
	}

	if remaining <= constants.RateLimitLowWatermark && remaining > 0 {
		log.Debug("rate limit low", "remaining", remaining, "resets_at", resetAt.Format(time.RFC3339))
	}

	// Primary limit exhausted (403 with remaining 0) or explicit 429
	if resp.StatusCode == http.StatusTooManyRequests ||
		(resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0") {
		if resetAt.IsZero() {
			resetAt = time.Now().Add(time.Minute)
		}
		t.state.SetLimited(true, resetAt)
		_ = resp.Body.Close()
		return nil, ErrRateLimited
	}

	return resp, nil
}

// parseRateLimitHeaders extracts rate limit info from response headers.
func parseRateLimitHeaders(resp *http.Response) (remaining, limit int, resetAt time.Time) {
	remaining = -1
	limit = -1

	if remainingStr := resp.Header.Get("X-RateLimit-Remaining"); remainingStr != "" {
		if rem, err := strconv.Atoi(remainingStr); err == nil {
			remaining = rem
		}
	}

	if limitStr := resp.Header.Get("X-RateLimit-Limit"); limitStr != "" {
		if lim, err := strconv.Atoi(limitStr); err == nil {
			limit = lim
		}
	}

	if resetStr := resp.Header.Get("X-RateLimit-Reset"); resetStr != "" {
		if resetTime, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			resetAt = time.Unix(resetTime, 0)
		}
	}

	return remaining, limit, resetAt
}

// Client wraps the GitHub API client
type Client struct {
	client *gh.Client
	// token is intentionally unexported. NEVER add String(), MarshalJSON(),
	// or any method that could expose this value in logs or serialized output.
	token string
}

type clientOptions struct {
	baseURL    string
	httpClient *http.Client
	state      *RateLimitState
}

// Option configures a Client.
type Option func(*clientOptions)

// WithBaseURL points the client at a different API root, such as a test server.
func WithBaseURL(u string) Option {
	return func(o *clientOptions) {
		o.baseURL = u
	}
}

// WithHTTPClient sets the HTTP client whose transport performs the requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// WithRateLimitState tracks limits in s instead of the process-wide state.
func WithRateLimitState(s *RateLimitState) Option {
	return func(o *clientOptions) {
		o.state = s
	}
}

// NewClient creates a new GitHub client. An empty token makes anonymous requests,
// which GitHub limits to 60 per hour.
func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	o := &clientOptions{state: globalRateLimitState}
	for _, opt := range opts {
		opt(o)
	}

	base := http.DefaultTransport
	timeout := constants.DefaultHTTPTimeout
	if o.httpClient != nil {
		if o.httpClient.Transport != nil {
			base = o.httpClient.Transport
		}
		timeout = o.httpClient.Timeout
	}

	var transport http.RoundTripper = base
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: base})
		transport = oauth2.NewClient(ctx, ts).Transport
	}

	hc := &http.Client{
		Transport: &rateLimitTransport{base: transport, state: o.state},
		Timeout:   timeout,
	}
	client := gh.NewClient(hc)

	if o.baseURL != "" {
		u, err := url.Parse(o.baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL %q: %w", o.baseURL, err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		client.BaseURL = u
	}

	log.Trace("github client created", "authenticated", token != "", "base_url", client.BaseURL.String())

	return &Client{
		client: client,
		token:  token,
	}, nil
}

// Authenticated reports whether requests carry a token.
func (c *Client) Authenticated() bool {
	return c.token != ""
}

// Login returns the login of the token's owner, or "anonymous" without a token.
func (c *Client) Login(ctx context.Context) (string, error) {
	if !c.Authenticated() {
		return "anonymous", nil
	}
	user, _, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("failed to get authenticated user: %w", wrapError(err))
	}
	return user.GetLogin(), nil
}

// RateLimits fetches the current GitHub API rate limit status.
func (c *Client) RateLimits(ctx context.Context) (*gh.RateLimits, error) {
	limits, _, err := c.client.RateLimit.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limits: %w", wrapError(err))
	}
	return limits, nil
}
