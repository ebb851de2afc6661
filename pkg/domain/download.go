package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTarget returned for a download target that can't be attempted at all
var ErrInvalidTarget = errors.New("invalid download target")

// DownloadResult is the outcome of a single fetch attempt or of a whole fallback chain
type DownloadResult struct {
	OK       bool
	Data     []byte // set for in-memory targets, e.g. the feed itself
	Path     string // set for file targets
	Size     int64
	Strategy string
	Err      error
	Duration time.Duration
}

// TransientFetchError is a network or process failure of a single strategy.
// It is never fatal, the next strategy or the next poll cycle retries.
type TransientFetchError struct {
	Strategy string
	URL      string
	Err      error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("%s fetch %s: %v", e.Strategy, e.URL, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// CacheLoadError reports an unreadable seen-items cache. Callers log it and go on with an empty cache.
type CacheLoadError struct {
	Path string
	Err  error
}

func (e *CacheLoadError) Error() string {
	return fmt.Sprintf("load cache %s: %v", e.Path, e.Err)
}

func (e *CacheLoadError) Unwrap() error { return e.Err }
