package fetch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/umputun/announcer/pkg/domain"
)

// fetchScript downloads a resource from inside the page, so cookies and
// browser fingerprint of the session apply. Result is base64 encoded body.
const fetchScript = `(async () => {
	const resp = await fetch(%s, {credentials: "include"});
	if (!resp.ok) { throw new Error("unexpected status code: " + resp.status); }
	const buf = new Uint8Array(await resp.arrayBuffer());
	let bin = "";
	for (let i = 0; i < buf.length; i += 0x8000) {
		bin += String.fromCharCode.apply(null, buf.subarray(i, i + 0x8000));
	}
	return btoa(bin);
})()`

// Browser fetches with headless chrome, the slowest and most robust strategy
type Browser struct {
	execPath string
	opts     Options
}

// NewBrowser makes browser strategy
func NewBrowser(opts Options) *Browser {
	return &Browser{execPath: opts.BrowserPath, opts: opts}
}

// Name returns strategy name
func (b *Browser) Name() string { return "browser" }

// Attempt starts a fresh browser, opens the origin of the target to get cookies and fetches the target from the page
func (b *Browser) Attempt(ctx context.Context, target Target) domain.DownloadResult {
	started := time.Now()

	u, err := url.Parse(target.URL)
	if err != nil {
		return failed(b.Name(), target, fmt.Errorf("parse url: %w", err), started)
	}
	origin := u.Scheme + "://" + u.Host + "/"

	quoted, err := json.Marshal(target.URL)
	if err != nil {
		return failed(b.Name(), target, fmt.Errorf("quote url: %w", err), started)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.UserAgent(b.opts.UserAgent))
	if b.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(b.execPath))
	}

	ctx, cancel := context.WithTimeout(ctx, b.opts.timeout(target))
	defer cancel()
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	var encoded string
	err = chromedp.Run(taskCtx,
		chromedp.Navigate(origin),
		chromedp.Evaluate(fmt.Sprintf(fetchScript, quoted), &encoded, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return failed(b.Name(), target, fmt.Errorf("browser fetch: %w", err), started)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return failed(b.Name(), target, fmt.Errorf("decode body: %w", err), started)
	}
	if len(data) == 0 {
		return failed(b.Name(), target, errors.New("empty response"), started)
	}

	if target.Path != "" {
		return writeFile(b.Name(), target, data, started)
	}
	return succeeded(b.Name(), data, started)
}
