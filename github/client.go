// Package github wraps every outbound call to the GitHub REST API. It owns
// the rate-limit budget, error classification, and the dry-run short-circuit
// for mutating calls.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ddev/ddev-add-on-monitoring/logger"
	"github.com/ddev/ddev-add-on-monitoring/models"
)

const defaultBaseURL = "https://api.github.com"

// perPage is GitHub's maximum page size, used for every paginated listing.
const perPage = 100

var rateLimitMessage = regexp.MustCompile(`(?i)rate limit`)

// Client is the GitHub API gateway. All reads and mutations funnel through
// it so budget tracking and dry-run policy apply uniformly.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    *url.URL
	budget     *RateBudget
	dryRun     bool
}

// NewClient creates a gateway using the given token and shared rate budget.
// In dry-run mode mutating calls are faked while reads stay real.
func NewClient(token string, budget *RateBudget, dryRun bool) *Client {
	baseURL, _ := url.Parse(defaultBaseURL)
	logger.Info("Initializing GitHub client",
		zap.String("base_url", baseURL.String()),
		zap.Bool("dry_run", dryRun))
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		budget:  budget,
		dryRun:  dryRun,
	}
}

// DryRun reports whether mutating calls are being faked.
func (c *Client) DryRun() bool {
	return c.dryRun
}

// Budget exposes the shared rate budget for summary reporting.
func (c *Client) Budget() *RateBudget {
	return c.budget
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// do performs one API call. The budget is checked before the call and
// overwritten from response headers after it; a budget below the low-water
// mark short-circuits to RateLimitError without touching the network.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.budget.Exhausted() {
		logger.Warn("Skipping API call, rate budget exhausted",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("remaining", c.budget.Remaining()))
		return &RateLimitError{Endpoint: path, Remaining: c.budget.Remaining()}
	}

	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})
	if query != nil {
		reqURL.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &APIError{Endpoint: path, Message: "encode request body: " + err.Error()}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return &APIError{Endpoint: path, Message: "create request: " + err.Error()}
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("API call failed",
			zap.Error(err),
			zap.String("method", method),
			zap.String("path", path))
		return &APIError{Endpoint: path, Message: err.Error()}
	}
	defer resp.Body.Close()

	c.updateBudget(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.classifyFailure(path, resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			logger.Error("Failed to decode response",
				zap.Error(err),
				zap.String("path", path))
			return &MalformedResponseError{Endpoint: path, Err: err}
		}
	}
	return nil
}

// updateBudget is the only place the tracked budget is mutated.
func (c *Client) updateBudget(resp *http.Response) {
	v := resp.Header.Get("X-RateLimit-Remaining")
	if v == "" {
		return
	}
	remaining, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	c.budget.Update(remaining)
}

// classifyFailure turns a non-2xx response into a typed error. 403 or a
// rate-limit message signature means RateLimitError; everything else is an
// APIError with the server message preserved.
func (c *Client) classifyFailure(path string, resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &MalformedResponseError{Endpoint: path, Err: err}
	}

	var apiErr struct {
		Message string `json:"message"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &apiErr); err != nil {
			return &MalformedResponseError{Endpoint: path, Err: err}
		}
	}

	if resp.StatusCode == http.StatusForbidden || rateLimitMessage.MatchString(apiErr.Message) {
		logger.Warn("Rate limited by API",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("message", apiErr.Message))
		return &RateLimitError{Endpoint: path, Remaining: c.budget.Remaining()}
	}

	return &APIError{Endpoint: path, StatusCode: resp.StatusCode, Message: apiErr.Message}
}

// FetchRateLimit queries the rate-limit status endpoint, replacing the
// conservative startup default with real telemetry.
func (c *Client) FetchRateLimit(ctx context.Context) (models.RateLimit, error) {
	var resp struct {
		Resources struct {
			Core struct {
				Limit     int   `json:"limit"`
				Remaining int   `json:"remaining"`
				Reset     int64 `json:"reset"`
			} `json:"core"`
		} `json:"resources"`
	}
	if err := c.get(ctx, "/rate_limit", nil, &resp); err != nil {
		return models.RateLimit{}, err
	}
	rl := models.RateLimit{
		Limit:     resp.Resources.Core.Limit,
		Remaining: resp.Resources.Core.Remaining,
		Reset:     time.Unix(resp.Resources.Core.Reset, 0),
	}
	logger.Info("Fetched rate limit status",
		zap.Int("limit", rl.Limit),
		zap.Int("remaining", rl.Remaining),
		zap.Time("reset", rl.Reset))
	return rl, nil
}
