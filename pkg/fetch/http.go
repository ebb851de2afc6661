package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"os"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"
	"golang.org/x/net/publicsuffix"

	"github.com/umputun/announcer/pkg/domain"
)

// maxFeedSize limits in-memory bodies, the exchange feed is a few megabytes at most
const maxFeedSize = 64 << 20

// HTTP fetches with Go http client, retrying with backoff inside a single attempt
type HTTP struct {
	transport  http.RoundTripper
	userAgent  string
	warmupURL  string
	retries    int
	retryDelay time.Duration
	opts       Options
}

// NewHTTP makes http strategy
func NewHTTP(opts Options) *HTTP {
	return &HTTP{
		transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: opts.ConnectTimeout}).DialContext,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   opts.ConnectTimeout,
			ResponseHeaderTimeout: opts.ConnectTimeout * 2,
		},
		userAgent:  opts.UserAgent,
		warmupURL:  opts.WarmupURL,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		opts:       opts,
	}
}

// Name returns strategy name
func (h *HTTP) Name() string { return "http" }

// Attempt fetches the target. Each attempt uses its own cookie jar, so no state is shared between calls.
func (h *HTTP) Attempt(ctx context.Context, target Target) domain.DownloadResult {
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, h.opts.timeout(target))
	defer cancel()

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return failed(h.Name(), target, fmt.Errorf("make cookie jar: %w", err), started)
	}
	client := &http.Client{Transport: h.transport, Jar: jar}

	if h.warmupURL != "" {
		// cookies from the landing page are required by some endpoints, failure here is not fatal
		if err := h.warmup(ctx, client); err != nil {
			lgr.Printf("[DEBUG] warmup %s failed: %v", h.warmupURL, err)
		}
	}

	var data []byte
	retrier := repeater.NewBackoff(h.retries, h.retryDelay, repeater.WithMaxDelay(10*time.Second))
	err = retrier.Do(ctx, func() error {
		var getErr error
		data, getErr = h.get(ctx, client, target)
		return getErr
	})
	if err != nil {
		_ = os.Remove(target.partPath())
		return failed(h.Name(), target, err, started)
	}

	if target.Path != "" {
		return commitFile(h.Name(), target, started)
	}
	return succeeded(h.Name(), data, started)
}

func (h *HTTP) warmup(ctx context.Context, client *http.Client) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.warmupURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	addBrowserHeaders(req, h.userAgent, Target{URL: h.warmupURL})
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
	return nil
}

// get performs a single request, for file targets the body is streamed into the part file
func (h *HTTP) get(ctx context.Context, client *http.Client, target Target) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	addBrowserHeaders(req, h.userAgent, target)
	if h.warmupURL != "" {
		req.Header.Set("Referer", h.warmupURL)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if target.Path == "" {
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if len(data) == 0 {
			return nil, errors.New("empty response")
		}
		return data, nil
	}

	fh, err := os.OpenFile(target.partPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", target.partPath(), err)
	}
	n, copyErr := io.Copy(fh, resp.Body)
	if err := fh.Close(); err != nil && copyErr == nil {
		copyErr = err
	}
	if copyErr != nil {
		return nil, fmt.Errorf("write %s: %w", target.partPath(), copyErr)
	}
	if n == 0 {
		return nil, errors.New("empty response")
	}
	return nil, nil
}
