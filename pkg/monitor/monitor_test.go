package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/announcer/pkg/domain"
	"github.com/umputun/announcer/pkg/feed"
	"github.com/umputun/announcer/pkg/fetch"
	"github.com/umputun/announcer/pkg/monitor/mocks"
	"github.com/umputun/announcer/pkg/seen"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>NSE Announcements</title>
	<item>
		<title>Beta Ltd</title>
		<link>https://nsearchives.nseindia.com/corporate/b.xml</link>
		<description>Shareholding |SUBJECT: Shareholding Pattern</description>
		<pubDate>08-Aug-2025 14:00:00</pubDate>
	</item>
	<item>
		<title>Alpha Ltd</title>
		<link>https://nsearchives.nseindia.com/corporate/a.pdf</link>
		<description>Board meeting |SUBJECT: Board Meeting Intimation</description>
		<pubDate>08-Aug-2025 14:31:29</pubDate>
	</item>
	<item>
		<title>Gamma Ltd</title>
		<link>https://nsearchives.nseindia.com/corporate/c.pdf</link>
		<pubDate>01-Aug-2025 10:00:00</pubDate>
	</item>
	<item>
		<title>Delta Ltd</title>
		<link>https://www.nseindia.com/companies/delta.html</link>
		<pubDate>sometime today</pubDate>
	</item>
</channel>
</rss>`

// corp is the exchange attachments location used in test feeds
const corp = "https://nsearchives.nseindia.com/corporate/"

func itemID(title, date, link string) string {
	return feed.ItemID(domain.FeedItem{Title: title, RawPubDate: date, Link: link})
}

var testNow = time.Date(2025, 8, 8, 9, 30, 0, 0, time.UTC) // 15:00 IST

// fakeDownloader serves the feed and records file downloads, urls in fail set fail with every strategy
type fakeDownloader struct {
	mu    sync.Mutex
	feed  string
	fail  map[string]bool
	files map[string]int
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{feed: testFeed, fail: map[string]bool{}, files: map[string]int{}}
}

func (f *fakeDownloader) mock() *mocks.DownloaderMock {
	return &mocks.DownloaderMock{
		DownloadFunc: func(_ context.Context, target fetch.Target, _ []fetch.Strategy) (domain.DownloadResult, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if target.Path == "" {
				return domain.DownloadResult{OK: true, Data: []byte(f.feed), Strategy: "http"}, nil
			}
			f.files[target.URL]++
			if f.fail[target.URL] {
				return domain.DownloadResult{Strategy: "wget", Err: errors.New("all strategies failed")}, nil
			}
			return domain.DownloadResult{OK: true, Path: target.Path, Size: 10, Strategy: "curl"}, nil
		},
	}
}

func newTestMonitor(t *testing.T, dl Downloader, store SeenStore) *Monitor {
	t.Helper()
	return New(Params{
		Downloader:   dl,
		Seen:         store,
		FeedURL:      "https://nsearchives.nseindia.com/content/RSS/Online_announcements.xml",
		DownloadDir:  t.TempDir(),
		Interval:     time.Hour,
		Lookback:     24 * time.Hour,
		MaxItems:     20,
		Extensions:   []string{".PDF", ".xml"},
		DownloadRate: 0,
		Now:          func() time.Time { return testNow },
	})
}

func TestMonitor_Cycle(t *testing.T) {
	fd := newFakeDownloader()
	dl := fd.mock()
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	store := seen.New(cachePath)
	m := newTestMonitor(t, dl, store)

	report := m.Cycle(context.Background())
	require.NoError(t, report.Err)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 3, report.InWindow, "old item dropped, undated kept")
	assert.Equal(t, 3, report.New)
	assert.Equal(t, 0, report.SkippedSeen)
	assert.Equal(t, 2, report.Downloaded)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 3, report.Marked, "item without allowed attachments is marked too")

	assert.True(t, store.Contains(itemID("Alpha Ltd", "08-Aug-2025 14:31:29", corp+"a.pdf")))
	assert.True(t, store.Contains(itemID("Beta Ltd", "08-Aug-2025 14:00:00", corp+"b.xml")))
	assert.True(t, store.Contains(itemID("Delta Ltd", "sometime today", "https://www.nseindia.com/companies/delta.html")))
	assert.False(t, store.Contains(itemID("Gamma Ltd", "01-Aug-2025 10:00:00", corp+"c.pdf")))
	assert.Equal(t, 0, fd.files["https://www.nseindia.com/companies/delta.html"])

	// feed target checked for rss, files go to download dir with safe names
	calls := dl.DownloadCalls()
	require.Len(t, calls, 3)
	assert.Empty(t, calls[0].Target.Path)
	assert.NotNil(t, calls[0].Target.Check)
	paths := []string{filepath.Base(calls[1].Target.Path), filepath.Base(calls[2].Target.Path)}
	assert.ElementsMatch(t, []string{"Alpha_Ltd_08Aug2025_143129_8ba6970c.pdf", "Beta_Ltd_08Aug2025_140000_7a5b89bf.xml"}, paths)
	assert.Equal(t, m.DownloadDir, filepath.Dir(calls[1].Target.Path))

	// cache persisted
	loaded := seen.New(cachePath)
	require.NoError(t, loaded.Load())
	assert.Equal(t, 3, loaded.Len())

	// seen items are not downloaded again
	report = m.Cycle(context.Background())
	require.NoError(t, report.Err)
	assert.Equal(t, 0, report.New)
	assert.Equal(t, 3, report.SkippedSeen)
	assert.Equal(t, 0, report.Downloaded)
	assert.Len(t, dl.DownloadCalls(), 4, "only the feed fetched")
	assert.Equal(t, StateIdle, m.State())
}

func TestMonitor_CycleFailedItemRetried(t *testing.T) {
	fd := newFakeDownloader()
	fd.fail["https://nsearchives.nseindia.com/corporate/b.xml"] = true
	store := seen.New(filepath.Join(t.TempDir(), "cache.json"))
	m := newTestMonitor(t, fd.mock(), store)

	report := m.Cycle(context.Background())
	require.NoError(t, report.Err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Downloaded)
	assert.Equal(t, 2, report.Marked)
	assert.False(t, store.Contains(itemID("Beta Ltd", "08-Aug-2025 14:00:00", corp+"b.xml")), "failed item stays unseen")

	// next cycle retries the failed item only
	fd.mu.Lock()
	fd.fail = map[string]bool{}
	fd.mu.Unlock()
	report = m.Cycle(context.Background())
	require.NoError(t, report.Err)
	assert.Equal(t, 1, report.New)
	assert.Equal(t, 2, report.SkippedSeen)
	assert.Equal(t, 1, report.Downloaded)
	assert.True(t, store.Contains(itemID("Beta Ltd", "08-Aug-2025 14:00:00", corp+"b.xml")))
	assert.Equal(t, 2, fd.files["https://nsearchives.nseindia.com/corporate/b.xml"])
	assert.Equal(t, 1, fd.files["https://nsearchives.nseindia.com/corporate/a.pdf"])
}

func TestMonitor_CycleSameCompanyAndSecond(t *testing.T) {
	fd := newFakeDownloader()
	fd.feed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>NSE Announcements</title>
	<item><title>Alpha Ltd</title><link>` + corp + `a1.pdf</link><pubDate>08-Aug-2025 14:31:29</pubDate></item>
	<item><title>Alpha Ltd</title><link>` + corp + `a2.pdf</link><pubDate>08-Aug-2025 14:31:29</pubDate></item>
</channel></rss>`
	dl := fd.mock()
	store := seen.New(filepath.Join(t.TempDir(), "cache.json"))
	m := newTestMonitor(t, dl, store)

	report := m.Cycle(context.Background())
	require.NoError(t, report.Err)
	assert.Equal(t, 2, report.New)
	assert.Equal(t, 0, report.SkippedSeen)
	assert.Equal(t, 2, report.Downloaded)
	assert.Equal(t, 2, report.Marked)
	assert.Equal(t, 1, fd.files[corp+"a1.pdf"])
	assert.Equal(t, 1, fd.files[corp+"a2.pdf"])
	assert.True(t, store.Contains(itemID("Alpha Ltd", "08-Aug-2025 14:31:29", corp+"a1.pdf")))
	assert.True(t, store.Contains(itemID("Alpha Ltd", "08-Aug-2025 14:31:29", corp+"a2.pdf")))

	calls := dl.DownloadCalls()
	require.Len(t, calls, 3)
	assert.NotEqual(t, calls[1].Target.Path, calls[2].Target.Path, "each announcement gets its own file")
}

func TestMonitor_CycleFeedUnavailable(t *testing.T) {
	dl := &mocks.DownloaderMock{
		DownloadFunc: func(context.Context, fetch.Target, []fetch.Strategy) (domain.DownloadResult, error) {
			return domain.DownloadResult{Strategy: "browser", Err: errors.New("all strategies failed for feed")}, nil
		},
	}
	store := &mocks.SeenStoreMock{LenFunc: func() int { return 0 }}
	m := newTestMonitor(t, dl, store)

	report := m.Cycle(context.Background())
	require.Error(t, report.Err)
	assert.Contains(t, report.Err.Error(), "fetch feed")
	assert.Equal(t, 0, report.Total)
	assert.Len(t, dl.DownloadCalls(), 1)
	assert.Equal(t, StateIdle, m.State())
}

func TestMonitor_CycleBadFeed(t *testing.T) {
	fd := newFakeDownloader()
	fd.feed = "<rss><channel><item>broken"
	m := newTestMonitor(t, fd.mock(), &mocks.SeenStoreMock{LenFunc: func() int { return 0 }})

	report := m.Cycle(context.Background())
	require.Error(t, report.Err)
	assert.Contains(t, report.Err.Error(), "parse feed")
}

func TestMonitor_CycleMaxItems(t *testing.T) {
	fd := newFakeDownloader()
	store := seen.New(filepath.Join(t.TempDir(), "cache.json"))
	m := newTestMonitor(t, fd.mock(), store)
	m.MaxItems = 2

	report := m.Cycle(context.Background())
	require.NoError(t, report.Err)
	assert.Equal(t, 2, report.InWindow)
	assert.True(t, store.Contains(itemID("Delta Ltd", "sometime today", "https://www.nseindia.com/companies/delta.html")), "undated item counts as newest")
	assert.True(t, store.Contains(itemID("Alpha Ltd", "08-Aug-2025 14:31:29", corp+"a.pdf")))
	assert.False(t, store.Contains(itemID("Beta Ltd", "08-Aug-2025 14:00:00", corp+"b.xml")))
}

func TestMonitor_CycleNoLookback(t *testing.T) {
	fd := newFakeDownloader()
	store := seen.New(filepath.Join(t.TempDir(), "cache.json"))
	m := newTestMonitor(t, fd.mock(), store)
	m.Lookback = 0

	report := m.Cycle(context.Background())
	require.NoError(t, report.Err)
	assert.Equal(t, 4, report.InWindow)
	assert.True(t, store.Contains(itemID("Gamma Ltd", "01-Aug-2025 10:00:00", corp+"c.pdf")))
}

func TestMonitor_CycleStateAndSaveError(t *testing.T) {
	var m *Monitor
	var states []State
	dl := &mocks.DownloaderMock{
		DownloadFunc: func(_ context.Context, target fetch.Target, _ []fetch.Strategy) (domain.DownloadResult, error) {
			states = append(states, m.State())
			if target.Path == "" {
				return domain.DownloadResult{OK: true, Data: []byte(testFeed)}, nil
			}
			return domain.DownloadResult{OK: true, Path: target.Path, Strategy: fetch.StrategyExisting}, nil
		},
	}
	marked := map[string]bool{}
	store := &mocks.SeenStoreMock{
		ContainsFunc: func(id string) bool { return marked[id] },
		MarkFunc:     func(id string, _ time.Time) { marked[id] = true },
		SaveFunc:     func() error { return errors.New("disk full") },
		LenFunc:      func() int { return len(marked) },
	}
	m = newTestMonitor(t, dl, store)

	report := m.Cycle(context.Background())
	require.NoError(t, report.Err, "save failure is not a cycle failure")
	assert.Equal(t, 3, report.Marked)
	assert.Len(t, store.SaveCalls(), 3)
	for _, s := range states {
		assert.Equal(t, StatePolling, s)
	}
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, "idle", m.State().String())
	assert.Equal(t, "polling", StatePolling.String())
}

func TestMonitor_CycleCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fd := newFakeDownloader()
	inner := fd.mock()
	dl := &mocks.DownloaderMock{
		DownloadFunc: func(ctx context.Context, target fetch.Target, strategies []fetch.Strategy) (domain.DownloadResult, error) {
			res, err := inner.Download(ctx, target, strategies)
			cancel()
			return res, err
		},
	}
	store := seen.New(filepath.Join(t.TempDir(), "cache.json"))
	m := newTestMonitor(t, dl, store)

	report := m.Cycle(ctx)
	require.ErrorIs(t, report.Err, context.Canceled)
	assert.Equal(t, 0, store.Len())
	assert.Len(t, dl.DownloadCalls(), 1)
}

func TestMonitor_Load(t *testing.T) {
	t.Run("cache error swallowed", func(t *testing.T) {
		store := &mocks.SeenStoreMock{
			LoadFunc: func() error { return &domain.CacheLoadError{Path: "cache.json", Err: errors.New("bad json")} },
			LenFunc:  func() int { return 0 },
		}
		m := newTestMonitor(t, &mocks.DownloaderMock{}, store)
		require.NoError(t, m.Load())
		assert.Len(t, store.LoadCalls(), 1)
	})

	t.Run("other error returned", func(t *testing.T) {
		store := &mocks.SeenStoreMock{LoadFunc: func() error { return errors.New("boom") }}
		m := newTestMonitor(t, &mocks.DownloaderMock{}, store)
		require.Error(t, m.Load())
	})

	t.Run("clear cache", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.json")
		store := seen.New(path)
		store.Mark("x", time.Now())
		require.NoError(t, store.Save())

		m := newTestMonitor(t, &mocks.DownloaderMock{}, seen.New(path))
		m.ClearCache = true
		require.NoError(t, m.Load())
		assert.Equal(t, 0, m.Seen.Len())

		loaded := seen.New(path)
		require.NoError(t, loaded.Load())
		assert.Equal(t, 0, loaded.Len())
	})
}

func TestMonitor_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fd := newFakeDownloader()
	inner := fd.mock()
	dl := &mocks.DownloaderMock{
		DownloadFunc: func(ctx context.Context, target fetch.Target, strategies []fetch.Strategy) (domain.DownloadResult, error) {
			if target.Path != "" && strings.HasSuffix(target.URL, "b.xml") {
				defer cancel() // stop after the first cycle reached the second item
			}
			return inner.Download(ctx, target, strategies)
		},
	}
	path := filepath.Join(t.TempDir(), "cache.json")
	m := newTestMonitor(t, dl, seen.New(path))

	done := make(chan error)
	go func() { done <- m.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("monitor didn't stop")
	}
	_, err := os.Stat(path)
	require.NoError(t, err, "cache saved")
}

func TestMonitor_Search(t *testing.T) {
	fd := newFakeDownloader()
	m := newTestMonitor(t, fd.mock(), &mocks.SeenStoreMock{})

	items, err := m.Search(context.Background(), "  ALPHA ")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Alpha Ltd", items[0].Title)
	assert.Equal(t, "Board Meeting Intimation", items[0].Subject)

	items, err = m.Search(context.Background(), "ltd")
	require.NoError(t, err)
	assert.Len(t, items, 4)

	items, err = m.Search(context.Background(), "omega")
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = m.Search(context.Background(), " ")
	require.Error(t, err)
}
