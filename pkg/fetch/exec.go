package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/umputun/announcer/pkg/domain"
)

// processGrace is added on top of the tool's own time limit before the process is killed
const processGrace = 30 * time.Second

// Curl fetches by running curl process, it gets through where Go client is blocked by fingerprinting
type Curl struct {
	path string
	opts Options
}

// NewCurl makes curl strategy
func NewCurl(opts Options) *Curl {
	return &Curl{path: opts.CurlPath, opts: opts}
}

// Name returns strategy name
func (c *Curl) Name() string { return "curl" }

// Attempt runs curl once, curl's own --retry handles repetition
func (c *Curl) Attempt(ctx context.Context, target Target) domain.DownloadResult {
	started := time.Now()
	timeout := c.opts.timeout(target)

	args := []string{
		"-s", "-S", "-L", "-f",
		"--compressed",
		"--connect-timeout", seconds(c.opts.ConnectTimeout),
		"--max-time", seconds(timeout),
		"--retry", strconv.Itoa(max(c.opts.Retries-1, 0)),
		"--retry-delay", "3",
		"--user-agent", c.opts.UserAgent,
		"--header", "Accept-Language: en-US,en;q=0.9",
	}
	if target.Path != "" {
		args = append(args, "--header", "Accept: "+fileAccept, "-o", target.partPath())
	} else {
		args = append(args, "--header", "Accept: "+feedAccept)
	}
	args = append(args, target.URL)

	return runTool(ctx, c.Name(), c.path, args, target, timeout+processGrace, started)
}

// Wget fetches by running wget process
type Wget struct {
	path string
	opts Options
}

// NewWget makes wget strategy
func NewWget(opts Options) *Wget {
	return &Wget{path: opts.WgetPath, opts: opts}
}

// Name returns strategy name
func (w *Wget) Name() string { return "wget" }

// Attempt runs wget once, wget's own --tries handles repetition
func (w *Wget) Attempt(ctx context.Context, target Target) domain.DownloadResult {
	started := time.Now()
	timeout := w.opts.timeout(target)

	out := "-"
	if target.Path != "" {
		out = target.partPath()
	}
	args := []string{
		"--quiet",
		"-O", out,
		"--timeout=" + seconds(w.opts.ConnectTimeout),
		"--tries=" + strconv.Itoa(max(w.opts.Retries, 1)),
		"--user-agent=" + w.opts.UserAgent,
		"--header=Accept-Language: en-US,en;q=0.9",
		target.URL,
	}

	return runTool(ctx, w.Name(), w.path, args, target, timeout+processGrace, started)
}

// runTool executes an external downloader and turns its outcome into a result
func runTool(ctx context.Context, name, bin string, args []string, target Target, timeout time.Duration, started time.Time) domain.DownloadResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...) //nolint:gosec // binary and args come from config
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if target.Path != "" {
			_ = os.Remove(target.partPath())
		}
		switch {
		case errors.Is(err, exec.ErrNotFound):
			return failed(name, target, fmt.Errorf("%s not found: %w", bin, err), started)
		case ctx.Err() != nil:
			return failed(name, target, fmt.Errorf("%s timed out: %w", bin, ctx.Err()), started)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return failed(name, target, fmt.Errorf("%w: %s", err, msg), started)
		}
		return failed(name, target, err, started)
	}

	if target.Path != "" {
		return commitFile(name, target, started)
	}
	data := bytes.TrimSpace(stdout.Bytes())
	if len(data) == 0 {
		return failed(name, target, errors.New("empty response"), started)
	}
	return succeeded(name, data, started)
}

func seconds(d time.Duration) string {
	return strconv.Itoa(int(d.Round(time.Second) / time.Second))
}
