// Package fetch retrieves raw document bytes with bounded timeout, bounded
// retry, and an explicit permanent-vs-transient failure classification.
package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ErrNotFound is returned for HTTP 404. The document is gone; callers must
// skip it without retrying.
var ErrNotFound = errors.New("document not found")

// transientErr wraps failures worth retrying: network errors, 5xx, 429.
type transientErr struct{ err error }

func (e *transientErr) Error() string { return e.err.Error() }
func (e *transientErr) Unwrap() error { return e.err }

// IsNotFound reports whether err is the permanent 404 classification.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTransient reports whether err was classified as retriable. After Fetch
// returns, a transient error means retries were exhausted.
func IsTransient(err error) bool {
	var te *transientErr
	return errors.As(err, &te)
}

// Config controls fetcher behaviour. Zero values pick the defaults below.
type Config struct {
	Timeout      time.Duration // per-request timeout (default 30s)
	MaxRetries   int           // retries after the first attempt (default 3)
	BackoffBase  time.Duration // first backoff wait, doubles each retry (default 2s)
	MaxRedirects int           // redirect depth bound (default 10)
	InsecureTLS  bool          // skip cert verification for flaky government hosts
	MaxBodyBytes int64         // response size cap (default 64 MB)
}

type Fetcher struct {
	client      *http.Client
	maxRetries  int
	backoffBase time.Duration
	maxBody     int64
}

func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 10
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 20
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	maxRedirects := cfg.MaxRedirects
	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	return &Fetcher{
		client:      client,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
		maxBody:     cfg.MaxBodyBytes,
	}
}

// Fetch downloads url and returns the body bytes. HTTP 404 returns
// ErrNotFound immediately. Transient failures are retried with exponential
// backoff before giving up.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			wait := f.backoffBase * time.Duration(1<<uint(attempt-1))
			log.Printf("fetch: retry %d/%d for %s after %v: %v", attempt, f.maxRetries, url, wait, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		data, err := f.fetchOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("fetch %s: retries exhausted: %w", url, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "pyqbank/1.0 (+batch question-paper ingestion)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &transientErr{err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return nil, &transientErr{err: fmt.Errorf("server returned %d for %s", resp.StatusCode, url)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, &transientErr{err: fmt.Errorf("read body: %w", err)}
	}
	return data, nil
}
