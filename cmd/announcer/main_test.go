package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/announcer/pkg/seen"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	orig := stdout
	stdout = buf
	t.Cleanup(func() { stdout = orig })
	return buf
}

func writeConfig(t *testing.T, dir, feedURL, extra string) string {
	t.Helper()
	if feedURL == "" {
		feedURL = "https://example.com/rss.xml"
	}
	content := fmt.Sprintf(`
database:
  dsn: "file:%s"
monitor:
  feed_url: %s
  cache_file: %s
  download_dir: %s
  download_rate: 1ms
  feed_strategies: [http]
  file_strategies: [http]
fetch:
  retries: 1
`, filepath.Join(dir, "users.db"), feedURL, filepath.Join(dir, "cache.json"), filepath.Join(dir, "downloads")) + extra
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// feedServer serves an announcements feed with one fresh item and its pdf
func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	ist := time.FixedZone("IST", 5*3600+1800)
	mux := http.NewServeMux()
	var ts *httptest.Server
	mux.HandleFunc("/rss.xml", func(w http.ResponseWriter, _ *http.Request) {
		pubDate := time.Now().In(ist).Add(-time.Minute).Format("02-Jan-2006 15:04:05")
		_, _ = fmt.Fprintf(w, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Announcements</title>
<item><title>Acme Ltd</title><link>%s/files/acme.pdf</link>
<description>Results |SUBJECT: Financial Results</description><pubDate>%s</pubDate></item>
</channel></rss>`, ts.URL, pubDate)
	})
	mux.HandleFunc("/files/acme.pdf", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("%PDF-1.4 acme results"))
	})
	ts = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestRun_MissingConfig(t *testing.T) {
	err := run(context.Background(), Opts{Config: "non-existent-config.yml"}, "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestRun_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("invalid: yaml: content: ["), 0o600))

	err := run(context.Background(), Opts{Config: path}, "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestRun_UnknownCommand(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "", "")
	err := run(context.Background(), Opts{Config: path}, "blah")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "blah"`)
}

func TestRun_MonitorOnce(t *testing.T) {
	ts := feedServer(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, ts.URL+"/rss.xml", "")

	out := captureStdout(t)
	opts := Opts{Config: path, Monitor: MonitorCmd{Once: true}}
	require.NoError(t, run(context.Background(), opts, "monitor"))
	assert.Equal(t, "items: 1, new: 1, downloaded: 1, failed: 0\n", out.String())

	files, err := filepath.Glob(filepath.Join(dir, "downloads", "Acme_Ltd_*.pdf"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	body, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 acme results", string(body))

	cache, err := os.ReadFile(filepath.Join(dir, "cache.json"))
	require.NoError(t, err)
	assert.Contains(t, string(cache), "Acme Ltd")

	// second run sees the item
	out.Reset()
	require.NoError(t, run(context.Background(), opts, "monitor"))
	assert.Equal(t, "items: 1, new: 0, downloaded: 0, failed: 0\n", out.String())

	// stats over the download dir
	out.Reset()
	require.NoError(t, run(context.Background(), Opts{Config: path}, "stats"))
	assert.Contains(t, out.String(), "files: 1\npdf files: 1\nxml files: 0\n")
	assert.Contains(t, out.String(), filepath.Base(files[0]))

	// search the feed
	out.Reset()
	searchOpts := Opts{Config: path}
	searchOpts.Search.Args.Company = "acme"
	require.NoError(t, run(context.Background(), searchOpts, "search"))
	assert.Contains(t, out.String(), `found 1 announcements for "acme"`)
	assert.Contains(t, out.String(), "Acme Ltd: Financial Results")
	assert.Contains(t, out.String(), ts.URL+"/files/acme.pdf")
}

func TestRun_MonitorFeedDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	dir := t.TempDir()
	path := writeConfig(t, dir, ts.URL+"/rss.xml", "")

	err := run(context.Background(), Opts{Config: path, Monitor: MonitorCmd{Once: true}}, "monitor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch feed")
}

func TestRun_Upload(t *testing.T) {
	var (
		mu      sync.Mutex
		deleted []string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		_, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"doc_id": "doc-" + hdr.Filename})
	})
	mux.HandleFunc("GET /status/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	})
	mux.HandleFunc("GET /query", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"answer": r.URL.Query().Get("query")})
	})
	mux.HandleFunc("DELETE /delete/{id}", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		deleted = append(deleted, r.PathValue("id"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	dir := t.TempDir()
	downloads := filepath.Join(dir, "downloads")
	require.NoError(t, os.MkdirAll(downloads, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(downloads, "a.pdf"), []byte("pdf a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(downloads, "b.pdf"), []byte("pdf b"), 0o600))

	path := writeConfig(t, dir, "", fmt.Sprintf(`docai:
  base_url: %s
  api_key: secret-key
  poll_interval: 1ms
  upload_log: %s
`, ts.URL, filepath.Join(dir, "uploaded.csv")))

	t.Run("single file", func(t *testing.T) {
		out := captureStdout(t)
		opts := Opts{Config: path}
		opts.Upload.Query = "list the dates"
		opts.Upload.Args.File = filepath.Join(downloads, "a.pdf")
		require.NoError(t, run(context.Background(), opts, "upload"))
		assert.Equal(t, `{"answer":"list the dates"}`, strings.TrimSpace(out.String()))
		mu.Lock()
		assert.Equal(t, []string{"doc-a.pdf"}, deleted)
		mu.Unlock()
	})

	t.Run("batch", func(t *testing.T) {
		out := captureStdout(t)
		opts := Opts{Config: path}
		opts.Upload.Batch = true
		require.NoError(t, run(context.Background(), opts, "upload"))
		assert.Contains(t, out.String(), `a.pdf: {"answer":"Summarize this document"}`)
		assert.Contains(t, out.String(), "processed: 2, failed: 0, skipped: 0")

		// ledger prevents repeated uploads
		out.Reset()
		require.NoError(t, run(context.Background(), opts, "upload"))
		assert.Contains(t, out.String(), "processed: 0, failed: 0, skipped: 2")
	})

	t.Run("no file", func(t *testing.T) {
		err := run(context.Background(), Opts{Config: path}, "upload")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "file name or --batch is required")
	})
}

func TestRun_UploadNotConfigured(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "", "")
	opts := Opts{Config: path}
	opts.Upload.Args.File = "a.pdf"
	err := run(context.Background(), opts, "upload")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docai.base_url is not configured")
}

func TestRun_ServerStartStop(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	path := writeConfig(t, t.TempDir(), "", "")
	opts := Opts{Config: path, Server: ServerCmd{Listen: fmt.Sprintf("127.0.0.1:%d", port), NoMonitor: true}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- run(ctx, opts, "server") }()

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/ping")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := http.Post(baseURL+"/api/register", "application/json", strings.NewReader(`{"username":"u1","password":"p1"}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, err = http.Post(baseURL+"/api/login", "application/json", strings.NewReader(`{"username":"u1","password":"p1"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(baseURL + "/api/health")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"database":"ok"`)
	assert.Contains(t, string(body), `"users":1`)

	resp, err = http.Get(baseURL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `announcer_auth_requests_total{operation="register",status="success"}`)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server didn't stop")
	}
}

func TestRun_ServerNoMonitorClearCache(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	dir := t.TempDir()
	cache := seen.New(filepath.Join(dir, "cache.json"))
	cache.Mark("Acme Ltd-08-Aug-2025 14:31:29-https://x/a.pdf", time.Now())
	require.NoError(t, cache.Save())

	path := writeConfig(t, dir, "", "")
	opts := Opts{Config: path, Server: ServerCmd{Listen: fmt.Sprintf("127.0.0.1:%d", port), NoMonitor: true, ClearCache: true}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- run(ctx, opts, "server") }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/ping", port))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server didn't stop")
	}

	loaded := seen.New(filepath.Join(dir, "cache.json"))
	require.NoError(t, loaded.Load())
	assert.Equal(t, 0, loaded.Len(), "cache cleared even without monitor loop")
}
