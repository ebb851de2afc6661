package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/announcer/pkg/config"
	"github.com/umputun/announcer/pkg/docai"
	"github.com/umputun/announcer/pkg/fetch"
	"github.com/umputun/announcer/pkg/metrics"
	"github.com/umputun/announcer/pkg/monitor"
	"github.com/umputun/announcer/pkg/repository"
	"github.com/umputun/announcer/pkg/seen"
	"github.com/umputun/announcer/pkg/service"
	"github.com/umputun/announcer/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"config.yml" description:"configuration file"`

	Server  ServerCmd  `command:"server" description:"run api server with announcement monitor"`
	Monitor MonitorCmd `command:"monitor" description:"poll announcements and download attachments"`
	Upload  UploadCmd  `command:"upload" description:"process downloaded documents with document ai service"`
	Stats   StatsCmd   `command:"stats" description:"show downloaded files stats"`
	Search  SearchCmd  `command:"search" description:"show current announcements of a company"`

	// common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

// ServerCmd runs api server and, unless disabled, the monitor
type ServerCmd struct {
	Listen     string `short:"l" long:"listen" env:"LISTEN" description:"listen address, overrides config"`
	NoMonitor  bool   `long:"no-monitor" env:"NO_MONITOR" description:"don't poll announcements"`
	ClearCache bool   `long:"clear-cache" description:"drop seen items before start"`
}

// MonitorCmd polls announcements without api server
type MonitorCmd struct {
	Once       bool `long:"once" description:"run a single poll cycle and exit"`
	ClearCache bool `long:"clear-cache" description:"drop seen items before start"`
}

// UploadCmd sends a file, or every new file of download directory, to document ai service
type UploadCmd struct {
	Batch bool   `short:"b" long:"batch" description:"process all files of download directory not uploaded yet"`
	Query string `short:"q" long:"query" description:"query text, overrides config"`
	Args  struct {
		File string `positional-arg-name:"file"`
	} `positional-args:"yes"`
}

// StatsCmd has no options
type StatsCmd struct{}

// SearchCmd looks up company announcements in the current feed
type SearchCmd struct {
	Args struct {
		Company string `positional-arg-name:"company" required:"yes"`
	} `positional-args:"yes"`
}

var revision = "unknown"

// stdout receives command results, logs go to lgr
var stdout io.Writer = os.Stdout

func main() {
	_ = godotenv.Load() // .env is optional, must be loaded before flags read env

	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	parser.SubcommandsOptional = true
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	if parser.Active == nil {
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}

	setupLog(opts.Debug, opts.NoColor)
	log.Printf("[DEBUG] announcer version %s, command %s", revision, parser.Active.Name)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	err := run(ctx, opts, parser.Active.Name)
	cancel()

	if err != nil {
		log.Printf("[ERROR] %s failed: %v", parser.Active.Name, err)
		os.Exit(1)
	}
}

// run loads configuration and executes the command
func run(ctx context.Context, opts Opts, command string) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if secrets := cfg.Secrets(); len(secrets) > 0 {
		setupLog(opts.Debug, opts.NoColor, secrets...)
	}

	switch command {
	case "server":
		return runServer(ctx, cfg, opts)
	case "monitor":
		return runMonitor(ctx, cfg, opts.Monitor)
	case "upload":
		return runUpload(ctx, cfg, opts.Upload)
	case "stats":
		return runStats(cfg)
	case "search":
		return runSearch(ctx, cfg, opts.Search.Args.Company)
	}
	return fmt.Errorf("unknown command %q", command)
}

func runServer(ctx context.Context, cfg *config.Config, opts Opts) error {
	if opts.Server.Listen != "" {
		cfg.Server.Listen = opts.Server.Listen
	}

	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}
	defer func() {
		if err := repos.Close(); err != nil {
			lgr.Printf("[WARN] can't close database: %v", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.MustRegister(registry)

	mon, err := makeMonitor(cfg, opts.Server.ClearCache)
	if err != nil {
		return err
	}
	if opts.Server.NoMonitor && opts.Server.ClearCache {
		// monitor loop won't run, clear the cache here
		if err := mon.Load(); err != nil {
			return err
		}
	}

	srv := server.New(cfg, service.NewAuthService(repos.User, 0), server.Params{
		Announcements: mon,
		Store:         repos,
		Gatherer:      registry,
		Version:       revision,
		Debug:         opts.Debug,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if !opts.Server.NoMonitor {
		g.Go(func() error { return mon.Run(gctx) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	lgr.Printf("[INFO] shutdown complete")
	return nil
}

func runMonitor(ctx context.Context, cfg *config.Config, opts MonitorCmd) error {
	mon, err := makeMonitor(cfg, opts.ClearCache)
	if err != nil {
		return err
	}
	if !opts.Once {
		return mon.Run(ctx)
	}

	if err := mon.Load(); err != nil {
		return err
	}
	report := mon.Cycle(ctx)
	if report.Err != nil {
		return report.Err
	}
	fmt.Fprintf(stdout, "items: %d, new: %d, downloaded: %d, failed: %d\n",
		report.InWindow, report.New, report.Downloaded, report.Failed)
	return nil
}

func runUpload(ctx context.Context, cfg *config.Config, opts UploadCmd) error {
	if cfg.DocAI.BaseURL == "" {
		return errors.New("docai.base_url is not configured")
	}
	query := cfg.DocAI.Query
	if opts.Query != "" {
		query = opts.Query
	}
	client := docai.New(docai.Config{
		BaseURL:      cfg.DocAI.BaseURL,
		APIKey:       cfg.DocAI.APIKey,
		Timeout:      cfg.DocAI.Timeout,
		PollInterval: cfg.DocAI.PollInterval,
		MaxPolls:     cfg.DocAI.MaxPolls,
	})

	if opts.Batch {
		report, err := client.ProcessBatch(ctx, cfg.Monitor.DownloadDir, query, docai.NewLedger(cfg.DocAI.UploadLog))
		for _, res := range report.Results {
			fmt.Fprintf(stdout, "%s: %s\n", res.File, res.Answer)
		}
		fmt.Fprintf(stdout, "processed: %d, failed: %d, skipped: %d\n", report.Processed, report.Failed, report.Skipped)
		return err
	}

	if opts.Args.File == "" {
		return errors.New("file name or --batch is required")
	}
	res, err := client.Process(ctx, opts.Args.File, query)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s\n", res.Answer)
	return nil
}

func runStats(cfg *config.Config) error {
	st, err := monitor.CollectStats(cfg.Monitor.DownloadDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "files: %d\npdf files: %d\nxml files: %d\ntotal size: %.2f MB\n",
		st.Total(), st.PDFCount, st.XMLCount, float64(st.TotalSize)/(1024*1024))
	if len(st.Recent) > 0 {
		fmt.Fprintln(stdout, "recent downloads:")
	}
	for _, f := range st.Recent {
		fmt.Fprintf(stdout, "  %s  %s  %d bytes\n", f.Modified.Format("2006-01-02 15:04:05"), f.Name, f.Size)
	}
	return nil
}

func runSearch(ctx context.Context, cfg *config.Config, company string) error {
	mon, err := makeMonitor(cfg, false)
	if err != nil {
		return err
	}
	items, err := mon.Search(ctx, company)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "found %d announcements for %q\n", len(items), company)
	for _, item := range items {
		line := item.RawPubDate + "  " + item.Title
		if item.Subject != "" {
			line += ": " + item.Subject
		}
		fmt.Fprintln(stdout, line)
		for _, link := range item.Attachments {
			fmt.Fprintln(stdout, "  "+link)
		}
	}
	return nil
}

// makeMonitor wires strategies, downloader and seen cache from config
func makeMonitor(cfg *config.Config, clearCache bool) (*monitor.Monitor, error) {
	fetchOpts := fetch.Options{
		UserAgent:      cfg.Fetch.UserAgent,
		ConnectTimeout: cfg.Fetch.ConnectTimeout,
		FeedTimeout:    cfg.Fetch.FeedTimeout,
		FileTimeout:    cfg.Fetch.FileTimeout,
		Retries:        cfg.Fetch.Retries,
		WarmupURL:      cfg.Fetch.WarmupURL,
		CurlPath:       cfg.Fetch.CurlPath,
		WgetPath:       cfg.Fetch.WgetPath,
		BrowserPath:    cfg.Fetch.BrowserPath,
	}
	feedStrategies, err := fetch.New(cfg.Monitor.FeedStrategies, fetchOpts)
	if err != nil {
		return nil, fmt.Errorf("feed strategies: %w", err)
	}
	fileStrategies, err := fetch.New(cfg.Monitor.FileStrategies, fetchOpts)
	if err != nil {
		return nil, fmt.Errorf("file strategies: %w", err)
	}

	return monitor.New(monitor.Params{
		Downloader: fetch.NewDownloader(fetch.DownloaderConfig{
			DownloadLog: cfg.Monitor.DownloadLog,
			FailedLog:   cfg.Monitor.FailedLog,
		}),
		Seen:           seen.New(cfg.Monitor.CacheFile),
		FeedStrategies: feedStrategies,
		FileStrategies: fileStrategies,
		FeedURL:        cfg.Monitor.FeedURL,
		DownloadDir:    cfg.Monitor.DownloadDir,
		Interval:       cfg.Monitor.Interval,
		Lookback:       cfg.Monitor.Lookback,
		MaxItems:       cfg.Monitor.MaxItems,
		Extensions:     cfg.Monitor.Extensions,
		DownloadRate:   cfg.Monitor.DownloadRate,
		ClearCache:     clearCache,
	}), nil
}

func setupLog(dbg, noColor bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if !noColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}

