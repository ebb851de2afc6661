package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/announcer/pkg/domain"
	"github.com/umputun/announcer/pkg/metrics"
)

// Downloader tries strategies in the given order until one succeeds.
// It adds no retries of its own, strategy diversity is the point.
type Downloader struct {
	downloadLog string
	failedLog   string
}

// DownloaderConfig holds optional log files, empty path disables the log
type DownloaderConfig struct {
	DownloadLog string
	FailedLog   string
}

// NewDownloader makes a fallback downloader
func NewDownloader(cfg DownloaderConfig) *Downloader {
	return &Downloader{downloadLog: cfg.DownloadLog, failedLog: cfg.FailedLog}
}

// Download fetches the target with the first strategy that succeeds.
// The returned error is set only for invalid targets or empty strategy list, all fetch
// failures are reported in the result, with Err listing every strategy and its error.
func (d *Downloader) Download(ctx context.Context, target Target, strategies []Strategy) (domain.DownloadResult, error) {
	if err := target.Validate(); err != nil {
		return domain.DownloadResult{Err: err}, err
	}
	if len(strategies) == 0 {
		err := fmt.Errorf("%w: no strategies for %s", domain.ErrInvalidTarget, target.URL)
		return domain.DownloadResult{Err: err}, err
	}

	if target.Path != "" {
		if fi, err := os.Stat(target.Path); err == nil && fi.Size() > 0 {
			lgr.Printf("[DEBUG] already exists: %s", target.Path)
			return domain.DownloadResult{OK: true, Path: target.Path, Size: fi.Size(), Strategy: StrategyExisting}, nil
		}
		if err := os.MkdirAll(filepath.Dir(target.Path), 0o750); err != nil {
			res := failed("", target, fmt.Errorf("make directory: %w", err), time.Now())
			d.logFailure(target, res.Err)
			return res, nil
		}
	}

	errs := make([]error, 0, len(strategies))
	var last domain.DownloadResult
	for _, s := range strategies {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		res := s.Attempt(ctx, target)
		if res.OK && target.Path == "" && target.Check != nil {
			if err := target.Check(res.Data); err != nil {
				res = domain.DownloadResult{
					Strategy: s.Name(),
					Err:      &domain.TransientFetchError{Strategy: s.Name(), URL: target.URL, Err: err},
					Duration: res.Duration,
				}
			}
		}
		res.Strategy = s.Name()
		metrics.ObserveFetch(s.Name(), target.Kind(), res.Duration, res.OK)

		if res.OK {
			lgr.Printf("[DEBUG] %s fetched %s with %s, %d bytes in %v", target.Kind(), target.URL, s.Name(), res.Size, res.Duration)
			d.logSuccess(target, res)
			return res, nil
		}

		lgr.Printf("[DEBUG] %s failed for %s: %v", s.Name(), target.URL, res.Err)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), res.Err))
		d.cleanup(target)
		last = res
	}

	last.OK = false
	last.Err = fmt.Errorf("all strategies failed for %s: %w", target.URL, errors.Join(errs...))
	d.logFailure(target, last.Err)
	return last, nil
}

// cleanup removes leftovers of a failed attempt, the target didn't exist before the first attempt
func (d *Downloader) cleanup(target Target) {
	if target.Path == "" {
		return
	}
	_ = os.Remove(target.partPath())
	_ = os.Remove(target.Path)
}

func (d *Downloader) logSuccess(target Target, res domain.DownloadResult) {
	if d.downloadLog == "" || target.Path == "" {
		return
	}
	line := fmt.Sprintf("%s: %s - %d bytes - %s", time.Now().Format(time.RFC3339), filepath.Base(target.Path), res.Size, res.Strategy)
	if err := appendLine(d.downloadLog, line); err != nil {
		lgr.Printf("[WARN] can't write download log: %v", err)
	}
}

func (d *Downloader) logFailure(target Target, err error) {
	if d.failedLog == "" || target.Path == "" {
		return
	}
	line := fmt.Sprintf("%s: FAILED - %s -> %s: %v", time.Now().Format(time.RFC3339), target.URL, filepath.Base(target.Path), err)
	if err := appendLine(d.failedLog, line); err != nil {
		lgr.Printf("[WARN] can't write failed downloads log: %v", err)
	}
}

func appendLine(path, line string) error {
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) //nolint:gosec // path comes from config
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := fmt.Fprintln(fh, line); err != nil {
		_ = fh.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return fh.Close()
}
