// Package fetch downloads remote resume documents to temporary files and
// reduces HTML job descriptions to plain text.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/TedTes/genres-sub000/internal/retry"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultMaxBytes caps downloaded documents at 10 MiB.
const DefaultMaxBytes int64 = 10 << 20

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; ResumeOptimizer/1.0)"

// Error represents an error during URL fetching.
type Error struct {
	URL       string
	Message   string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether a fetch error is worth retrying.
func IsRetryable(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Retryable
}

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	MaxBytes  int64
	Retry     retry.Policy
	Client    *http.Client
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
		MaxBytes:  DefaultMaxBytes,
		Retry:     retry.DefaultPolicy(),
	}
}

// Download is a document saved to a temporary file. The caller owns the
// file and must call Cleanup on every exit path.
type Download struct {
	URL         string
	Path        string
	ContentType string
	Size        int64
}

// Cleanup removes the temporary file. It is safe to call more than once.
func (d *Download) Cleanup() error {
	if d == nil || d.Path == "" {
		return nil
	}
	err := os.Remove(d.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ToTemp downloads urlStr into a temporary file named with pattern
// (see os.CreateTemp). Transient failures are retried under opts.Retry.
// On error no file is left behind.
func ToTemp(ctx context.Context, urlStr, pattern string, opts *Options) (*Download, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := validateURL(urlStr); err != nil {
		return nil, err
	}

	policy := opts.Retry
	policy.Retryable = IsRetryable

	var dl *Download
	err := policy.Do(ctx, func(ctx context.Context) error {
		var err error
		dl, err = downloadOnce(ctx, urlStr, pattern, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dl, nil
}

func validateURL(urlStr string) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Host == "" || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		return &Error{URL: urlStr, Message: "invalid URL", Cause: err}
	}
	return nil
}

func downloadOnce(ctx context.Context, urlStr, pattern string, opts *Options) (*Download, error) {
	resp, err := get(ctx, urlStr, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to create temp file", Cause: err}
	}
	dl := &Download{URL: urlStr, Path: tmp.Name(), ContentType: resp.Header.Get("Content-Type")}

	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	n, copyErr := io.Copy(tmp, io.LimitReader(resp.Body, maxBytes+1))
	closeErr := tmp.Close()
	switch {
	case copyErr != nil:
		_ = dl.Cleanup()
		return nil, &Error{URL: urlStr, Message: "failed to read response body", Retryable: true, Cause: copyErr}
	case closeErr != nil:
		_ = dl.Cleanup()
		return nil, &Error{URL: urlStr, Message: "failed to write temp file", Cause: closeErr}
	case n > maxBytes:
		_ = dl.Cleanup()
		return nil, &Error{URL: urlStr, Message: fmt.Sprintf("document exceeds %d bytes", maxBytes)}
	}
	dl.Size = n
	return dl, nil
}

// get issues the request and turns non-200 responses into errors.
func get(ctx context.Context, urlStr string, opts *Options) (*http.Response, error) {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to create request", Cause: err}
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "HTTP request failed", Retryable: ctx.Err() == nil, Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &Error{
			URL:       urlStr,
			Message:   fmt.Sprintf("HTTP status %d", resp.StatusCode),
			Retryable: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}
	return resp, nil
}
