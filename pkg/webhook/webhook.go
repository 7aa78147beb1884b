// Package webhook posts decode reports to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ccollicutt/tracekit/pkg/config"
	"github.com/ccollicutt/tracekit/pkg/logging"
	"github.com/ccollicutt/tracekit/pkg/output"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = config.DefaultWebhookTimeout

// RunIDHeader carries the report's run id so receivers can deduplicate.
const RunIDHeader = "X-Tracekit-Run-Id"

// maxResponseBody caps how much of a response is kept.
const maxResponseBody = 1 << 20

// DefaultRetryBackoff is the wait before the first retry. It doubles on
// each further attempt.
const DefaultRetryBackoff = 500 * time.Millisecond

// Client sends decode reports to webhook endpoints.
type Client struct {
	httpClient *http.Client
	logger     logrus.FieldLogger
	backoff    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used by Send and Dispatch.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithRetryBackoff sets the wait before the first retry.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.backoff = d
	}
}

// NewClient creates a new webhook client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		logger:     logging.Discard(),
		backoff:    DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendOptions configures a webhook request.
type SendOptions struct {
	URL     string
	Token   string        // Bearer token (optional)
	Timeout time.Duration // Per-attempt timeout (uses DefaultTimeout if zero)
	Retries int           // Extra attempts after a transient failure
}

// Response is the outcome of the last delivery attempt.
type Response struct {
	StatusCode int
	Body       string
	Duration   time.Duration // across all attempts
	Attempts   int
	Error      error
}

// Success returns true if the webhook was sent successfully (2xx status).
func (r *Response) Success() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Send posts a decode report to a webhook endpoint. Connection errors and
// 429 or 5xx answers are retried up to opts.Retries times.
func (c *Client) Send(ctx context.Context, report *output.Report, opts SendOptions) *Response {
	start := time.Now()
	resp := &Response{}
	defer func() { resp.Duration = time.Since(start) }()

	payload, err := json.Marshal(report)
	if err != nil {
		resp.Error = fmt.Errorf("encoding report: %w", err)
		return resp
	}

	wait := c.backoff
	for {
		resp.Attempts++
		if !c.post(ctx, payload, report.RunID, opts, resp) || resp.Attempts > opts.Retries {
			return resp
		}

		c.logger.WithFields(logrus.Fields{
			"url":     opts.URL,
			"attempt": resp.Attempts,
			"wait":    wait,
		}).WithError(resp.Error).Debug("retrying webhook")

		select {
		case <-ctx.Done():
			return resp
		case <-time.After(wait):
		}
		wait *= 2
	}
}

// post makes one delivery attempt, recording its outcome in resp, and
// reports whether the failure is worth retrying.
func (c *Client) post(ctx context.Context, payload []byte, runID string, opts SendOptions, resp *Response) bool {
	resp.StatusCode, resp.Body, resp.Error = 0, "", nil

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, opts.URL, bytes.NewReader(payload))
	if err != nil {
		resp.Error = fmt.Errorf("creating request: %w", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "tracekit-webhook")
	req.Header.Set(RunIDHeader, runID)
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		resp.Error = fmt.Errorf("request failed: %w", err)
		return ctx.Err() == nil
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	resp.StatusCode = httpResp.StatusCode
	resp.Body = string(body)
	if err != nil {
		resp.Error = fmt.Errorf("reading response: %w", err)
		return ctx.Err() == nil
	}

	if resp.StatusCode >= 400 {
		resp.Error = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}

// ShouldFire reports whether a webhook with the given trigger fires for a
// report. An empty or unknown trigger behaves like on_issues.
func ShouldFire(trigger config.WebhookTrigger, report *output.Report) bool {
	switch trigger {
	case config.WebhookTriggerAlways:
		return true
	case config.WebhookTriggerNever:
		return false
	default:
		return report.HasIssues() || report.HasFailures()
	}
}

// Dispatch sends the report to every hook whose trigger fires and returns
// the number of successful deliveries. Failures are logged, never returned.
func (c *Client) Dispatch(ctx context.Context, hooks []config.WebhookConfig, report *output.Report) int {
	sent := 0
	for _, wh := range hooks {
		if !ShouldFire(wh.Trigger, report) {
			continue
		}

		name := wh.Name
		if name == "" {
			name = wh.URL
		}
		log := c.logger.WithFields(logrus.Fields{"webhook": name, "run_id": report.RunID})

		resp := c.Send(ctx, report, SendOptions{
			URL:     wh.URL,
			Token:   wh.Token,
			Timeout: wh.Timeout,
			Retries: wh.Retries,
		})
		if !resp.Success() {
			log.WithError(resp.Error).WithField("attempts", resp.Attempts).Warn("webhook delivery failed")
			continue
		}

		log.WithFields(logrus.Fields{
			"status":   resp.StatusCode,
			"duration": resp.Duration,
		}).Info("webhook sent")
		sent++
	}
	return sent
}
