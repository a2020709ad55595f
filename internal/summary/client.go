package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseDelay  = 500 * time.Millisecond
	defaultMaxRetries = 3

	// maxResponseBodyBytes caps how much of a response is read at all;
	// a body past this limit is a broken peer, not a summary.
	maxResponseBodyBytes = 4 << 20

	// maxErrorBodyBytes caps how much of a failed response is carried
	// inside an HTTPError.
	maxErrorBodyBytes = 4 << 10
)

// Client posts JSON to the summarization service and retries rate-limited
// calls with a deterministic exponential backoff. Retry state lives on the
// stack of each call; a Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	log        *slog.Logger

	// sleep is swapped out by tests to observe the backoff sequence.
	sleep func(ctx context.Context, d time.Duration) error
}

// ClientOptions tune the retry and timeout behavior of a Client.
// Zero values fall back to the defaults (3 retries, 500ms base delay,
// no overall request timeout).
type ClientOptions struct {
	MaxRetries     int
	BaseDelay      time.Duration
	RequestTimeout time.Duration
}

func NewClient(baseURL string, opts ClientOptions, log *slog.Logger) *Client {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: opts.RequestTimeout},
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		log:        log,
		sleep:      sleepContext,
	}
}

// PostJSON sends one POST with a JSON-encoded body and returns the parsed
// response body. HTTP 429 is retried up to the configured maximum with an
// exponentially doubling delay; any other non-2xx status fails immediately
// with an HTTPError. A 2xx body that is not valid JSON fails with a
// ParseError carrying the raw text.
func (c *Client) PostJSON(ctx context.Context, path string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	delay := c.baseDelay

	for attempt := 0; ; attempt++ {
		raw, retryable, err := c.postOnce(ctx, path, payload)
		if err == nil {
			return raw, nil
		}

		if !retryable || attempt >= c.maxRetries {
			return nil, err
		}

		c.log.WarnContext(ctx, "Rate limited, backing off",
			"path", path,
			"attempt", attempt+1,
			"maxRetries", c.maxRetries,
			"delay", delay)

		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return nil, sleepErr
		}

		delay *= 2
	}
}

func (c *Client) postOnce(ctx context.Context, path string, payload []byte) (json.RawMessage, bool, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+path,
		bytes.NewReader(payload),
	)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, &NetworkError{Err: err}
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			c.log.WarnContext(ctx, "Failed to close response body",
				"error", err,
				"path", path)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, false, &NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{
			Status: resp.StatusCode,
			Body:   truncate(string(data), maxErrorBodyBytes),
		}

		return nil, resp.StatusCode == http.StatusTooManyRequests, httpErr
	}

	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, false, &ParseError{Raw: string(data), Err: err}
	}

	return json.RawMessage(data), false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
