package nyt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/covid-case-metrics/internal/observability"
	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
)

const (
	// DefaultURL is the raw us-counties.csv in the NYT covid-19-data repository.
	DefaultURL = "https://raw.githubusercontent.com/nytimes/covid-19-data/master/us-counties.csv"

	defaultAttempts = 3
	initialBackoff  = 500 * time.Millisecond
	maxBackoff      = 10 * time.Second
)

// errNotModified means the upstream copy matches the cached ETag.
var errNotModified = errors.New("feed not modified")

// Client downloads the county case feed over HTTP. A copy already on disk is
// revalidated with its ETag and kept when upstream reports no change.
type Client struct {
	httpClient *http.Client
	feedURL    string
	attempts   int
	backoff    time.Duration
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a feed client. An empty feedURL uses DefaultURL.
func NewClient(feedURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if feedURL == "" {
		feedURL = DefaultURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		feedURL:  feedURL,
		attempts: defaultAttempts,
		backoff:  initialBackoff,
		metrics:  metrics,
		logger:   logger,
	}
}

// Download fetches the feed into dest, retrying transient failures with
// exponential backoff. Client errors (4xx) are not retried.
func (c *Client) Download(ctx context.Context, dest string) error {
	start := time.Now()
	defer func() {
		c.metrics.FeedFetchDuration.Observe(time.Since(start).Seconds())
	}()

	backoff := c.backoff
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		err := c.fetch(ctx, dest)
		switch {
		case err == nil:
			c.logger.Info("feed downloaded", "url", c.feedURL, "dest", dest, "attempt", attempt)
			return nil
		case errors.Is(err, errNotModified):
			c.logger.Info("feed unchanged, using cached copy", "dest", dest)
			return nil
		case ctx.Err() != nil:
			return fmt.Errorf("download feed: %w", ctx.Err())
		case !retryable(err):
			return err
		}

		lastErr = err
		if attempt == c.attempts {
			break
		}
		c.logger.Warn("feed download failed, retrying",
			"error", err, "attempt", attempt, "backoff", backoff)
		if !sharedretry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = sharedretry.NextBackoff(backoff, maxBackoff)
	}
	return fmt.Errorf("download feed after %d attempts: %w", c.attempts, lastErr)
}

func (c *Client) fetch(ctx context.Context, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if etag := c.cachedETag(dest); etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &statusError{err: fmt.Errorf("feed request: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return errNotModified
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{
			status: resp.StatusCode,
			err:    fmt.Errorf("feed server error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	if err := writeAtomic(dest, resp.Body); err != nil {
		return err
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		if err := os.WriteFile(etagPath(dest), []byte(etag), 0o600); err != nil {
			c.logger.Warn("could not store feed etag", "error", err)
		}
	}
	return nil
}

// cachedETag returns the stored ETag when dest and its sidecar both exist.
func (c *Client) cachedETag(dest string) string {
	if _, err := os.Stat(dest); err != nil {
		return ""
	}
	b, err := os.ReadFile(etagPath(dest))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func etagPath(dest string) string { return dest + ".etag" }

// writeAtomic copies body to a temp file beside dest and renames it into
// place, so a failed download never truncates the previous copy.
func writeAtomic(dest string, body io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create feed dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp feed: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return &statusError{err: fmt.Errorf("read feed body: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp feed: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("replace feed: %w", err)
	}
	return nil
}

// statusError marks transport and server failures; status is 0 for transport errors.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	return se.status == 0 || se.status >= 500 || se.status == http.StatusTooManyRequests
}
