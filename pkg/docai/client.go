// Package docai is a client of the document AI service: upload a document, wait until it is indexed,
// query it and delete it afterwards.
package docai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"
)

// maxResponseSize limits service responses
const maxResponseSize = 16 << 20

// Status of an uploaded document
type Status string

// document statuses
const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// ErrNotReady returned when a document wasn't indexed within the polling budget
var ErrNotReady = errors.New("document processing not complete")

// Config holds client settings
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	PollInterval time.Duration
	MaxPolls     int
}

// Client talks to the document AI service
type Client struct {
	baseURL      string
	apiKey       string
	client       *http.Client
	pollInterval time.Duration
	maxPolls     int
}

// Result of a processed document
type Result struct {
	File   string
	DocID  string
	Answer json.RawMessage
}

// New makes a client, defaults are 60s timeout and 12 polls 5s apart
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 12
	}
	return &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		client:       &http.Client{Timeout: cfg.Timeout},
		pollInterval: cfg.PollInterval,
		maxPolls:     cfg.MaxPolls,
	}
}

// Upload sends the file as multipart "file" field and returns the document id
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	fh, err := os.Open(path) //nolint:gosec // path comes from the download dir or the command line
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, fh); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := c.request(ctx, http.MethodPost, "/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		DocID string `json:"doc_id"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}
	if resp.DocID == "" {
		return "", fmt.Errorf("upload %s: no doc_id in response", filepath.Base(path))
	}
	lgr.Printf("[DEBUG] uploaded %s, doc_id %s", filepath.Base(path), resp.DocID)
	return resp.DocID, nil
}

// Status returns processing status of the document
func (c *Client) Status(ctx context.Context, docID string) (Status, error) {
	req, err := c.request(ctx, http.MethodGet, "/status/"+url.PathEscape(docID), http.NoBody)
	if err != nil {
		return "", err
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("status %s: %w", docID, err)
	}
	switch strings.ToLower(resp.Status) {
	case "success", "ready", "completed", "done":
		return StatusReady, nil
	case "failed", "failure", "error":
		return StatusFailed, nil
	default:
		return StatusPending, nil
	}
}

// Query asks the document a question, the answer is returned as is
func (c *Client) Query(ctx context.Context, docID, query string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("doc_id", docID)
	req, err := c.request(ctx, http.MethodGet, "/query?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, err
	}
	var resp json.RawMessage
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("query %s: %w", docID, err)
	}
	return resp, nil
}

// Delete removes the document from the service
func (c *Client) Delete(ctx context.Context, docID string) error {
	req, err := c.request(ctx, http.MethodDelete, "/delete/"+url.PathEscape(docID), http.NoBody)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("delete %s: %w", docID, err)
	}
	return nil
}

// WaitReady polls document status until it is ready, failed or the polls are exhausted
func (c *Client) WaitReady(ctx context.Context, docID string) error {
	var status Status
	retrier := repeater.NewFixed(c.maxPolls, c.pollInterval)
	err := retrier.Do(ctx, func() error {
		var err error
		status, err = c.Status(ctx, docID)
		if err != nil {
			lgr.Printf("[DEBUG] status check for %s failed: %v", docID, err)
			return err
		}
		if status == StatusPending {
			return ErrNotReady
		}
		return nil
	})

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case err == nil && status == StatusFailed:
		return fmt.Errorf("document %s processing failed", docID)
	case err != nil:
		return fmt.Errorf("wait for %s: %w", docID, err)
	}
	return nil
}

// Process uploads the file, waits for indexing, queries it and deletes the document.
// The document is deleted even if waiting or query failed.
func (c *Client) Process(ctx context.Context, path, query string) (Result, error) {
	res := Result{File: filepath.Base(path)}
	docID, err := c.Upload(ctx, path)
	if err != nil {
		return res, err
	}
	res.DocID = docID
	return c.finish(ctx, res, query)
}

// finish runs the steps after upload
func (c *Client) finish(ctx context.Context, res Result, query string) (Result, error) {
	defer func() {
		if err := c.Delete(context.WithoutCancel(ctx), res.DocID); err != nil {
			lgr.Printf("[WARN] %v", err)
		}
	}()

	if err := c.WaitReady(ctx, res.DocID); err != nil {
		return res, err
	}
	if query == "" {
		return res, nil
	}
	answer, err := c.Query(ctx, res.DocID, query)
	if err != nil {
		return res, err
	}
	res.Answer = answer
	return res, nil
}

func (c *Client) request(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if c.baseURL == "" {
		return nil, errors.New("document AI base url is not set")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// do sends the request and decodes json response into res, nil res discards the body
func (c *Client) do(req *http.Request, res any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d, %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if res == nil {
		return nil
	}
	if err := json.Unmarshal(data, res); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
