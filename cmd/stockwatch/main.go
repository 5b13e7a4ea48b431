package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/stockwatch"
	"github.com/fwojciec/stockwatch/email"
	"github.com/fwojciec/stockwatch/fs"
	"github.com/fwojciec/stockwatch/goquery"
	"github.com/fwojciec/stockwatch/htmltomarkdown"
	swhttp "github.com/fwojciec/stockwatch/http"
	"github.com/fwojciec/stockwatch/readability"
	"github.com/fwojciec/stockwatch/rod"
	swslog "github.com/fwojciec/stockwatch/slog"
	"github.com/fwojciec/stockwatch/sqlite"
	"github.com/fwojciec/stockwatch/telegram"
	"github.com/fwojciec/stockwatch/trafilatura"
	"github.com/fwojciec/stockwatch/watch"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, stockwatch.ErrorMessage(err))
		stop()
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Getenv reads environment overrides. Defaults to os.Getenv.
	Getenv func(string) string

	// Services for end-to-end testing. When set they replace the
	// configured implementations.
	Targets  stockwatch.TargetService
	Fetcher  stockwatch.Fetcher
	Notifier stockwatch.Notifier

	closers []func() error
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{Getenv: os.Getenv}
}

// Close releases everything opened by Run, in reverse order.
func (m *Main) Close() error {
	var err error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if cerr := m.closers[i](); cerr != nil && err == nil {
			err = cerr
		}
	}
	m.closers = nil
	return err
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("stockwatch"),
		kong.Description("Watch product pages and get notified when they come back in stock."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return stockwatch.Errorf(stockwatch.EINVALID, "no command specified. Run 'stockwatch --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return stockwatch.Errorf(stockwatch.EINVALID, "%s", err)
	}
	cmd := strings.Fields(kongCtx.Command())[0]

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	deps.Logger = logger

	configPath := ResolveConfigPath(cli.Config)
	cfg, err := LoadConfig(configPath, m.Getenv)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Hint: check %s\n", configPath)
		return err
	}
	deps.Config = cfg

	defer m.Close()

	targets, err := m.openTargets(cfg, logger)
	if err != nil {
		return err
	}

	fetcher, err := m.openFetcher(cfg, logger)
	if err != nil {
		return err
	}

	var limiter *watch.HostLimiter
	if cfg.HostRate > 0 {
		limiter = watch.NewHostLimiter(cfg.HostRate)
	}
	checker := &watch.Checker{
		Fetcher:    fetcher,
		Classifier: newClassifier(cfg),
		Limiter:    limiter,
		Timeout:    time.Duration(cfg.FetchTimeout) * time.Second,
		Title:      goquery.Title,
		Logger:     logger,
	}
	tracker := watch.NewTracker(cfg.RepeatNotificationCap)
	deps.Service = &watch.Service{
		Targets: targets,
		Tracker: tracker,
		Checker: checker,
	}

	if cmd == "run" {
		if err := m.wireRun(ctx, deps, logger); err != nil {
			return err
		}
	}

	return kongCtx.Run(deps)
}

// openTargets opens the configured watch-list store.
func (m *Main) openTargets(cfg *Config, logger *slog.Logger) (stockwatch.TargetService, error) {
	if m.Targets != nil {
		return m.Targets, nil
	}

	var targets stockwatch.TargetService
	switch cfg.Store {
	case StoreFile:
		targets = fs.NewTargetService(cfg.TargetsFile, fs.WithLegacyFile(cfg.LegacyURLsFile))
	default:
		if dir := filepath.Dir(cfg.DBPath); dir != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
		db := sqlite.NewDB(cfg.DBPath)
		if err := db.Open(); err != nil {
			return nil, fmt.Errorf("%w: %v", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "failed to open database at %q, set STOCKWATCH_DB to use another path", cfg.DBPath), err)
		}
		m.closers = append(m.closers, db.Close)
		targets = sqlite.NewTargetService(db)
	}
	return swslog.NewLoggingTargetService(targets, logger), nil
}

// openFetcher starts the configured page fetcher.
func (m *Main) openFetcher(cfg *Config, logger *slog.Logger) (stockwatch.Fetcher, error) {
	fetcher := m.Fetcher
	timeout := time.Duration(cfg.FetchTimeout) * time.Second
	if fetcher == nil {
		switch cfg.Fetcher {
		case FetcherBrowser:
			f, err := rod.NewFetcher(
				rod.WithFetchTimeout(timeout),
				rod.WithRenderDelay(time.Duration(cfg.RenderDelay)*time.Millisecond),
				rod.WithLogger(logger),
			)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "failed to start browser, Chrome or Chromium must be installed"), err)
			}
			fetcher = f
		default:
			fetcher = swhttp.NewFetcher(swhttp.WithTimeout(timeout), swhttp.WithUserAgent(cfg.UserAgent))
		}
	}
	wrapped := swslog.NewLoggingFetcher(fetcher, logger)
	m.closers = append(m.closers, wrapped.Close)
	return wrapped, nil
}

// wireRun builds the notification pipeline, the scheduler and the chat bot.
func (m *Main) wireRun(ctx context.Context, deps *Dependencies, logger *slog.Logger) error {
	cfg := deps.Config

	var notifiers stockwatch.Notifiers
	if m.Notifier != nil {
		notifiers = append(notifiers, m.Notifier)
	} else {
		if err := cfg.ValidateNotifications(); err != nil {
			return err
		}
		if cfg.Telegram.BotToken != "" {
			client := telegram.NewClient(cfg.Telegram.BotToken)
			me, err := client.GetMe(ctx)
			if err != nil {
				return fmt.Errorf("verify Telegram bot: %w", err)
			}
			logger.Info("telegram bot verified", "username", me.Username)

			chat := string(cfg.Telegram.ChatID)
			notifiers = append(notifiers, swslog.NewLoggingNotifier(telegram.NewNotifier(client, chat), "telegram", logger))

			bot := telegram.NewBot(client, chat, deps.Service)
			bot.Logger = logger
			deps.Bot = bot
		}
		if cfg.Email.Enabled() {
			sink := email.NewNotifier(cfg.Email.SMTP(), email.WithConverter(htmltomarkdown.NewConverter()))
			notifiers = append(notifiers, swslog.NewLoggingNotifier(sink, "email", logger))
		}
	}

	var notifier stockwatch.Notifier = notifiers
	if len(notifiers) == 1 {
		notifier = notifiers[0]
	}
	deps.Dispatcher = watch.NewDispatcher(notifier, watch.WithDispatcherLogger(logger))
	deps.Scheduler = &watch.Scheduler{
		Targets:     deps.Service.Targets,
		Checker:     deps.Service.Checker,
		Tracker:     deps.Service.Tracker,
		Dispatcher:  deps.Dispatcher,
		Interval:    cfg.Interval(),
		Cooldown:    time.Duration(cfg.Cooldown) * time.Second,
		Concurrency: cfg.Concurrency,
		Logger:      logger,
	}
	return nil
}

// newClassifier builds the stock classifier for the configured scope.
func newClassifier(cfg *Config) stockwatch.Classifier {
	switch cfg.ClassifyScope {
	case ScopeText:
		return goquery.NewClassifier(cfg.OutOfStockKeywords, goquery.WithVisibleText())
	case ScopeMain:
		var extractor stockwatch.Extractor = trafilatura.NewExtractor()
		if cfg.Extractor == ExtractorReadability {
			extractor = readability.NewExtractor()
		}
		return goquery.NewClassifier(cfg.OutOfStockKeywords, goquery.WithExtractor(extractor))
	default:
		return goquery.NewClassifier(cfg.OutOfStockKeywords)
	}
}
