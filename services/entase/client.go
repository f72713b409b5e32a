// Package entase implements the client side of the Entase ticketing API:
// authenticated fetches with retry, pagination across the API's several
// "next page" conventions, and normalization of upstream records into the
// canonical production/event shapes the sync engine works with.
package entase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	// DefaultRetries is the retry budget for transient failures.
	DefaultRetries = 3
	// DefaultBackoff is the base delay; attempt n waits backoff * 2^n.
	DefaultBackoff = 500 * time.Millisecond

	maxErrorBodyBytes = 4096
)

var ErrMissingAPIKey = errors.New("entase: API key not configured")

// retryableStatuses are the HTTP statuses retried with backoff. Everything
// else fails immediately as a RequestError.
var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:      true, // 408
	http.StatusConflict:            true, // 409
	http.StatusTooEarly:            true, // 425
	http.StatusTooManyRequests:     true, // 429
	http.StatusInternalServerError: true, // 500
	http.StatusBadGateway:          true, // 502
	http.StatusServiceUnavailable:  true, // 503
	http.StatusGatewayTimeout:      true, // 504
}

// RequestError is returned for HTTP failures, carrying the last response.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("entase: request failed with status %d: %s", e.Status, e.Body)
}

// Retryable reports whether the status is worth retrying.
func (e *RequestError) Retryable() bool {
	return retryableStatuses[e.Status]
}

// Client issues authenticated requests against the Entase API.
type Client struct {
	httpc   *http.Client
	baseURL string
	apiKey  string
}

// NewClient creates an Entase API client. A nil httpc gets a default client
// with a 30 second timeout.
func NewClient(apiKey, baseURL string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpc:   httpc,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// FetchOptions tune a single Fetch call. Zero values fall back to the
// package defaults; a negative Retries disables retrying entirely, so the
// call gets exactly one attempt.
type FetchOptions struct {
	Params  url.Values
	Retries int
	Backoff time.Duration
}

// Fetch performs an authenticated GET against path and decodes the JSON
// response. An empty response body yields nil. Transient failures (the
// retryable status set and transport errors) are retried with exponential
// backoff up to the retry budget; other failures surface immediately.
func (c *Client) Fetch(ctx context.Context, path string, opts FetchOptions) (any, error) {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(opts.Params) > 0 {
		q := url.Values{}
		for key, vals := range opts.Params {
			for _, v := range vals {
				if strings.TrimSpace(v) == "" {
					continue
				}
				q.Add(key, v)
			}
		}
		if encoded := q.Encode(); encoded != "" {
			u += "?" + encoded
		}
	}
	return c.FetchURL(ctx, u, opts.Retries, opts.Backoff)
}

// FetchURL performs an authenticated GET against an exact URL. Used by the
// pagination walker when the API hands back a cursor URL that must be
// followed verbatim.
func (c *Client) FetchURL(ctx context.Context, rawURL string, retries int, backoff time.Duration) (any, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	switch {
	case retries < 0:
		// Negative means "single attempt, no retries".
		retries = 0
	case retries == 0:
		retries = DefaultRetries
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	var result any
	err := retry.Do(
		func() error {
			var err error
			result, err = c.doRequest(ctx, rawURL)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(retries)+1),
		retry.Delay(backoff),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxJitter(0),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// doRequest performs one attempt. Non-retryable failures are wrapped in
// retry.Unrecoverable so the retry loop surfaces them immediately.
func (c *Client) doRequest(ctx context.Context, rawURL string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("entase: create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		// Transport failures get the same backoff schedule as retryable
		// statuses.
		return nil, fmt.Errorf("entase: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		reqErr := &RequestError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if reqErr.Retryable() {
			return nil, reqErr
		}
		return nil, retry.Unrecoverable(reqErr)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("entase: read response: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}

	var result any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("entase: parse response: %w", err))
	}
	return result, nil
}
