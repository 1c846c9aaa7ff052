// Package devops is a small client for the pull request, iteration, work
// item and comment thread endpoints of the review service.
package devops

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

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/reviewpilot/reviewpilot/internal/auth"
	"github.com/reviewpilot/reviewpilot/pkg/models"
)

const (
	// DefaultAPIVersion is sent as api-version on every request
	DefaultAPIVersion = "7.1"
	// DefaultPageSize is the $top used by paged queries
	DefaultPageSize = 100

	userAgent = "reviewpilot"
)

// Config holds what a Client needs besides the pull request it talks about
type Config struct {
	Credential auth.Credential
	APIVersion string
	HTTPClient *http.Client
	// Limiter throttles outgoing requests; nil selects the default of 5 requests per second.
	Limiter *rate.Limiter
}

// Client talks to the review service REST API
type Client struct {
	cred       auth.Credential
	apiVersion string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client; the credential is mandatory
func NewClient(cfg Config) (*Client, error) {
	if cfg.Credential.IsZero() {
		return nil, fmt.Errorf("devops: %w", auth.ErrEmptySecret)
	}
	c := &Client{
		cred:       cfg.Credential,
		apiVersion: cfg.APIVersion,
		httpClient: cfg.HTTPClient,
		limiter:    cfg.Limiter,
	}
	if c.apiVersion == "" {
		c.apiVersion = DefaultAPIVersion
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(rate.Every(200*time.Millisecond), 5)
	}
	return c, nil
}

// repoURL builds <collection>/<project>/_apis/git/repositories/<repo><path>?api-version=...
func (c *Client) repoURL(ref models.PullRequestRef, path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", c.apiVersion)
	return fmt.Sprintf("%s/%s/_apis/git/repositories/%s%s?%s",
		strings.TrimSuffix(ref.CollectionURI, "/"),
		url.PathEscape(ref.Project),
		url.PathEscape(ref.Repository),
		path,
		query.Encode())
}

func (c *Client) pullRequestURL(ref models.PullRequestRef, path string, query url.Values) string {
	return c.repoURL(ref, "/pullRequests/"+strconv.Itoa(ref.ID)+path, query)
}

// do sends one request and decodes a JSON response into out when out is non-nil
func (c *Client) do(ctx context.Context, method, rawURL string, body interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.cred.Apply(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debug().Str("method", method).Str("url", rawURL).Msg("review service request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Method:     method,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(respBody),
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", rawURL, err)
	}
	return nil
}
