// Package monitor polls the exchange announcements feed and downloads attachments of new items
package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/time/rate"

	"github.com/umputun/announcer/pkg/domain"
	"github.com/umputun/announcer/pkg/feed"
	"github.com/umputun/announcer/pkg/fetch"
	"github.com/umputun/announcer/pkg/metrics"
)

//go:generate moq -out mocks/downloader.go -pkg mocks -skip-ensure -fmt goimports . Downloader
//go:generate moq -out mocks/seen_store.go -pkg mocks -skip-ensure -fmt goimports . SeenStore

// Downloader fetches a target trying strategies in order
type Downloader interface {
	Download(ctx context.Context, target fetch.Target, strategies []fetch.Strategy) (domain.DownloadResult, error)
}

// SeenStore keeps identifiers of processed items
type SeenStore interface {
	Contains(id string) bool
	Mark(id string, ts time.Time)
	Len() int
	Clear()
	Load() error
	Save() error
}

// Parser converts feed document into items
type Parser interface {
	Parse(data []byte) ([]domain.FeedItem, error)
}

// State of the monitor
type State int32

// monitor states
const (
	StateIdle State = iota
	StatePolling
)

func (s State) String() string {
	if s == StatePolling {
		return "polling"
	}
	return "idle"
}

// Params holds monitor dependencies and configuration
type Params struct {
	Downloader     Downloader
	Seen           SeenStore
	Parser         Parser
	FeedStrategies []fetch.Strategy
	FileStrategies []fetch.Strategy

	FeedURL      string
	DownloadDir  string
	Interval     time.Duration
	Lookback     time.Duration // zero disables the window
	MaxItems     int           // zero means no cap
	Extensions   []string      // allowed attachment extensions, e.g. ".pdf"
	DownloadRate time.Duration // minimal spacing between attachment downloads, zero for none
	ClearCache   bool          // drop seen items on load

	Now func() time.Time // optional clock
}

// Monitor polls the feed and downloads attachments of items not seen before
type Monitor struct {
	Params
	limiter *rate.Limiter
	state   atomic.Int32
	cycleMu sync.Mutex
}

// CycleReport summarizes a single poll cycle
type CycleReport struct {
	Total       int // items in the feed
	InWindow    int // items within the lookback window, after the cap
	New         int // items not seen before
	SkippedSeen int
	Downloaded  int // attachments downloaded or already on disk
	Failed      int // attachments failed with every strategy
	Marked      int // items added to the seen cache
	Err         error
	Duration    time.Duration
}

// New makes a monitor. Interval defaults to 5 minutes.
func New(params Params) *Monitor {
	if params.Interval <= 0 {
		params.Interval = 5 * time.Minute
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	if params.Parser == nil {
		params.Parser = feed.NewParser()
	}
	exts := make([]string, 0, len(params.Extensions))
	for _, ext := range params.Extensions {
		exts = append(exts, strings.ToLower(ext))
	}
	params.Extensions = exts

	limit := rate.Inf
	if params.DownloadRate > 0 {
		limit = rate.Every(params.DownloadRate)
	}
	return &Monitor{Params: params, limiter: rate.NewLimiter(limit, 1)}
}

// State returns current monitor state
func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Load reads the seen cache, unreadable cache is logged and replaced with an empty one
func (m *Monitor) Load() error {
	if err := m.Seen.Load(); err != nil {
		var cacheErr *domain.CacheLoadError
		if !errors.As(err, &cacheErr) {
			return fmt.Errorf("load seen cache: %w", err)
		}
		if !errors.Is(err, os.ErrNotExist) {
			lgr.Printf("[WARN] %v, starting with empty cache", err)
		}
	}
	if m.ClearCache {
		m.Seen.Clear()
		if err := m.Seen.Save(); err != nil {
			return fmt.Errorf("save cleared cache: %w", err)
		}
		lgr.Printf("[INFO] seen cache cleared")
	}
	metrics.SeenItems.Set(float64(m.Seen.Len()))
	lgr.Printf("[INFO] loaded %d seen items", m.Seen.Len())
	return nil
}

// Run loads the cache, runs a cycle immediately and then one per interval until ctx is done
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.Load(); err != nil {
		return err
	}
	lgr.Printf("[INFO] monitor started for %s, interval %v, lookback %v", m.FeedURL, m.Interval, m.Lookback)

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	// run immediately on start
	m.Cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			lgr.Printf("[INFO] monitor stopped")
			return nil
		case <-ticker.C:
			m.Cycle(ctx)
		}
	}
}

// Cycle fetches the feed once and processes new items. Cycles never overlap.
// Items with failed attachments stay unseen and are retried next cycle.
func (m *Monitor) Cycle(ctx context.Context) (report CycleReport) {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()
	m.state.Store(int32(StatePolling))
	started := time.Now()
	defer func() {
		m.state.Store(int32(StateIdle))
		report.Duration = time.Since(started)
		metrics.ObserveCycle(report.Err)
		metrics.SeenItems.Set(float64(m.Seen.Len()))
		if report.Err != nil {
			lgr.Printf("[WARN] poll cycle failed: %v", report.Err)
			return
		}
		lgr.Printf("[INFO] poll cycle completed in %v: total %d, in window %d, new %d, seen %d, downloaded %d, failed %d",
			report.Duration.Round(time.Millisecond), report.Total, report.InWindow, report.New, report.SkippedSeen,
			report.Downloaded, report.Failed)
	}()

	items, err := m.fetchItems(ctx)
	if err != nil {
		report.Err = err
		return report
	}
	report.Total = len(items)

	now := m.Now()
	items = m.window(items, now)
	report.InWindow = len(items)

	for _, item := range items {
		if ctx.Err() != nil {
			report.Err = ctx.Err()
			return report
		}
		if m.Seen.Contains(item.ID) {
			report.SkippedSeen++
			metrics.ItemsProcessed.WithLabelValues("seen").Inc()
			continue
		}
		report.New++
		metrics.ItemsProcessed.WithLabelValues("new").Inc()

		downloaded, failed, err := m.processItem(ctx, item, now)
		report.Downloaded += downloaded
		report.Failed += failed
		if err != nil {
			report.Err = err
			return report
		}
		if failed > 0 {
			metrics.ItemsProcessed.WithLabelValues("failed").Inc()
			continue
		}

		metrics.ItemsProcessed.WithLabelValues("downloaded").Inc()
		m.Seen.Mark(item.ID, now)
		report.Marked++
		if err := m.Seen.Save(); err != nil {
			lgr.Printf("[WARN] can't save seen cache: %v", err)
		}
	}
	return report
}

// Search fetches the feed and returns items with title containing company, case-insensitive
func (m *Monitor) Search(ctx context.Context, company string) ([]domain.FeedItem, error) {
	company = strings.ToLower(strings.TrimSpace(company))
	if company == "" {
		return nil, errors.New("empty company name")
	}
	items, err := m.fetchItems(ctx)
	if err != nil {
		return nil, err
	}
	res := []domain.FeedItem{}
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Title), company) {
			res = append(res, item)
		}
	}
	return res, nil
}

func (m *Monitor) fetchItems(ctx context.Context) ([]domain.FeedItem, error) {
	res, err := m.Downloader.Download(ctx, fetch.Target{URL: m.FeedURL, Check: fetch.CheckRSS}, m.FeedStrategies)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	if !res.OK {
		return nil, fmt.Errorf("fetch feed: %w", res.Err)
	}
	lgr.Printf("[DEBUG] feed fetched with %s, %d bytes", res.Strategy, len(res.Data))

	items, err := m.Parser.Parse(res.Data)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return items, nil
}

// window keeps items within lookback, newest first, capped at MaxItems.
// Items without a parsed date are kept and sorted as the newest.
func (m *Monitor) window(items []domain.FeedItem, now time.Time) []domain.FeedItem {
	res := make([]domain.FeedItem, 0, len(items))
	for _, item := range items {
		if item.InWindow(now, m.Lookback) {
			res = append(res, item)
		}
	}

	key := func(item domain.FeedItem) time.Time {
		if item.HasPublished() {
			return item.Published
		}
		return now
	}
	slices.SortStableFunc(res, func(a, b domain.FeedItem) int {
		return key(b).Compare(key(a))
	})

	if m.MaxItems > 0 && len(res) > m.MaxItems {
		res = res[:m.MaxItems]
	}
	return res
}

// processItem downloads allowed attachments of the item, returns counts of downloaded and failed files.
// The error is set only if ctx is done.
func (m *Monitor) processItem(ctx context.Context, item domain.FeedItem, now time.Time) (downloaded, failed int, err error) {
	lgr.Printf("[INFO] new announcement: %s, %s", item.Title, item.RawPubDate)
	if item.Subject != "" {
		lgr.Printf("[DEBUG] subject: %s", item.Subject)
	}

	for i, link := range item.Attachments {
		if !m.allowed(link) {
			lgr.Printf("[DEBUG] skip attachment %s, extension not allowed", link)
			continue
		}
		if err := m.limiter.Wait(ctx); err != nil {
			return downloaded, failed, fmt.Errorf("wait for download slot: %w", err)
		}

		target := fetch.Target{URL: link, Path: filepath.Join(m.DownloadDir, feed.AttachmentFilename(item, i, now))}
		res, dlErr := m.Downloader.Download(ctx, target, m.FileStrategies)
		switch {
		case dlErr != nil:
			lgr.Printf("[WARN] can't download %s: %v", link, dlErr)
			failed++
		case !res.OK:
			lgr.Printf("[WARN] failed to download %s: %v", link, res.Err)
			failed++
		default:
			lgr.Printf("[INFO] downloaded %s (%d bytes, %s)", filepath.Base(res.Path), res.Size, res.Strategy)
			downloaded++
		}
	}
	return downloaded, failed, nil
}

func (m *Monitor) allowed(link string) bool {
	if len(m.Extensions) == 0 {
		return true
	}
	return slices.Contains(m.Extensions, domain.AttachmentExt(link))
}
