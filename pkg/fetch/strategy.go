package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/umputun/announcer/pkg/domain"
)

// StrategyExisting is reported when a file target is already on disk
const StrategyExisting = "existing"

// Strategy performs a single attempt to retrieve a remote resource with one mechanism.
// Failures are reported in the result, never as panics or hard errors.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, target Target) domain.DownloadResult
}

// Target describes what to fetch and where to put it
type Target struct {
	URL   string
	Path  string             // destination file, empty to keep the body in memory
	Check func([]byte) error // optional content check for in-memory targets
}

// Validate checks the target can be attempted at all
func (t Target) Validate() error {
	if strings.TrimSpace(t.URL) == "" {
		return fmt.Errorf("%w: empty url", domain.ErrInvalidTarget)
	}
	u, err := url.Parse(t.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidTarget, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: unsupported url %q", domain.ErrInvalidTarget, t.URL)
	}
	return nil
}

// Kind returns "file" for file targets and "feed" for in-memory ones
func (t Target) Kind() string {
	if t.Path != "" {
		return "file"
	}
	return "feed"
}

func (t Target) partPath() string {
	return t.Path + ".part"
}

// CheckRSS rejects content that doesn't look like an rss document,
// the exchange answers blocked clients with an html page and status 200.
func CheckRSS(data []byte) error {
	s := string(data)
	if !strings.Contains(s, "<rss") || !strings.Contains(s, "</rss>") {
		return errors.New("response is not an rss document")
	}
	return nil
}

func succeeded(name string, data []byte, started time.Time) domain.DownloadResult {
	return domain.DownloadResult{
		OK:       true,
		Data:     data,
		Size:     int64(len(data)),
		Strategy: name,
		Duration: time.Since(started),
	}
}

func failed(name string, target Target, err error, started time.Time) domain.DownloadResult {
	return domain.DownloadResult{
		Strategy: name,
		Err:      &domain.TransientFetchError{Strategy: name, URL: target.URL, Err: err},
		Duration: time.Since(started),
	}
}

// commitFile moves a complete part file into place, empty files are dropped
func commitFile(name string, target Target, started time.Time) domain.DownloadResult {
	part := target.partPath()
	fi, err := os.Stat(part)
	if err != nil {
		return failed(name, target, fmt.Errorf("no output file: %w", err), started)
	}
	if fi.Size() == 0 {
		_ = os.Remove(part)
		return failed(name, target, errors.New("empty response"), started)
	}
	if err := os.Rename(part, target.Path); err != nil {
		_ = os.Remove(part)
		return failed(name, target, fmt.Errorf("rename %s: %w", part, err), started)
	}
	return domain.DownloadResult{
		OK:       true,
		Path:     target.Path,
		Size:     fi.Size(),
		Strategy: name,
		Duration: time.Since(started),
	}
}

// writeFile stores in-memory data into the target file through a part file
func writeFile(name string, target Target, data []byte, started time.Time) domain.DownloadResult {
	if err := os.WriteFile(target.partPath(), data, 0o600); err != nil {
		_ = os.Remove(target.partPath())
		return failed(name, target, fmt.Errorf("write %s: %w", target.partPath(), err), started)
	}
	return commitFile(name, target, started)
}

// Options configures strategies built by New
type Options struct {
	UserAgent      string
	ConnectTimeout time.Duration
	FeedTimeout    time.Duration
	FileTimeout    time.Duration
	Retries        int
	RetryDelay     time.Duration
	WarmupURL      string
	CurlPath       string
	WgetPath       string
	BrowserPath    string
}

func (o Options) timeout(target Target) time.Duration {
	if target.Kind() == "file" {
		return o.FileTimeout
	}
	return o.FeedTimeout
}

// New makes an ordered list of strategies from their names
func New(names []string, opts Options) ([]Strategy, error) {
	if opts.Retries < 1 {
		opts.Retries = 1
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Second
	}
	if opts.FeedTimeout == 0 {
		opts.FeedTimeout = 2 * time.Minute
	}
	if opts.FileTimeout == 0 {
		opts.FileTimeout = 5 * time.Minute
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 30 * time.Second
	}

	res := make([]Strategy, 0, len(names))
	for _, name := range names {
		switch name {
		case "http":
			res = append(res, NewHTTP(opts))
		case "curl":
			res = append(res, NewCurl(opts))
		case "wget":
			res = append(res, NewWget(opts))
		case "browser":
			res = append(res, NewBrowser(opts))
		default:
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
	}
	return res, nil
}
