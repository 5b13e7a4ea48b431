package rod

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fwojciec/stockwatch"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// Recycling defaults. A watcher polling a handful of shops every minute
// renders DefaultMaxPages within hours; slower polls hit DefaultMaxAge or
// sit idle between cycles.
const (
	DefaultMaxPages    = 200
	DefaultMaxAge      = 6 * time.Hour
	DefaultIdleTimeout = 10 * time.Minute
)

// RecyclePolicy decides when the browser is replaced or shut down.
// A zero field disables that limit.
type RecyclePolicy struct {
	// MaxPages replaces the browser after it rendered this many pages.
	MaxPages int64
	// MaxAge replaces the browser once it has been running this long.
	MaxAge time.Duration
	// IdleTimeout shuts the browser down when no page was open for this
	// long. The next page launches a new one.
	IdleTimeout time.Duration
}

// DefaultRecyclePolicy returns the policy used when none is configured.
func DefaultRecyclePolicy() RecyclePolicy {
	return RecyclePolicy{
		MaxPages:    DefaultMaxPages,
		MaxAge:      DefaultMaxAge,
		IdleTimeout: DefaultIdleTimeout,
	}
}

// Due reports whether a browser launched at launched that has rendered
// pages pages should be replaced before the next page, and why.
func (p RecyclePolicy) Due(pages int64, launched, now time.Time) (reason string, due bool) {
	switch {
	case p.MaxPages > 0 && pages >= p.MaxPages:
		return "page limit", true
	case p.MaxAge > 0 && !launched.IsZero() && now.Sub(launched) >= p.MaxAge:
		return "max age", true
	default:
		return "", false
	}
}

// BrowserManager owns the Chrome process behind a Fetcher. It hands out
// stealth pages, replaces the browser according to its RecyclePolicy and
// closes it while the watcher sleeps between cycles. A browser is never
// replaced while one of its pages is open.
//
// BrowserManager is safe for concurrent use.
type BrowserManager struct {
	policy RecyclePolicy
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	launched time.Time
	pages    int64
	open     int
	idle     *time.Timer
	idleGen  uint64
	launches int
	closed   bool
}

// ManagerOption configures a BrowserManager.
type ManagerOption func(*BrowserManager)

// WithRecyclePolicy replaces DefaultRecyclePolicy.
func WithRecyclePolicy(p RecyclePolicy) ManagerOption {
	return func(bm *BrowserManager) {
		bm.policy = p
	}
}

// WithManagerLogger sets the logger for browser lifecycle events.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(bm *BrowserManager) {
		bm.logger = logger
	}
}

// NewBrowserManager launches a headless Chrome browser right away, so a
// missing browser is reported at startup rather than on the first check.
// Close must be called when the BrowserManager is no longer needed.
func NewBrowserManager(opts ...ManagerOption) (*BrowserManager, error) {
	bm := &BrowserManager{
		policy: DefaultRecyclePolicy(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(bm)
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	if err := bm.replaceBrowser(); err != nil {
		return nil, err
	}
	bm.scheduleIdle()
	return bm, nil
}

// Page opens a stealth page, launching or replacing the browser first when
// needed. The returned release func closes the page and must be called
// exactly once.
func (bm *BrowserManager) Page() (*rod.Page, func(), error) {
	bm.mu.Lock()
	if bm.closed {
		bm.mu.Unlock()
		return nil, nil, stockwatch.Errorf(stockwatch.EINVALID, "browser is closed")
	}
	bm.stopIdle()

	if err := bm.ensureBrowser(); err != nil {
		bm.scheduleIdle()
		bm.mu.Unlock()
		return nil, nil, err
	}
	browser := bm.browser
	bm.open++
	bm.pages++
	bm.mu.Unlock()

	page, err := stealth.Page(browser)
	if err != nil {
		bm.release()
		return nil, nil, fmt.Errorf("opening page: %w", err)
	}

	var once sync.Once
	return page, func() {
		once.Do(func() {
			_ = page.Close()
			bm.release()
		})
	}, nil
}

// Launches returns how many browsers have been started so far.
func (bm *BrowserManager) Launches() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.launches
}

// LauncherPID returns the process ID of the current browser launcher, or 0
// while no browser is running.
func (bm *BrowserManager) LauncherPID() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if bm.launcher == nil {
		return 0
	}
	return bm.launcher.PID()
}

// Close shuts the browser down. Close is safe to call multiple times.
func (bm *BrowserManager) Close() error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.closed {
		return nil
	}
	bm.closed = true
	bm.stopIdle()
	return bm.closeBrowser()
}

// ensureBrowser makes sure a browser is running and replaces a browser the
// policy retired once none of its pages is open. Must be called with mu held.
func (bm *BrowserManager) ensureBrowser() error {
	if bm.browser == nil {
		return bm.replaceBrowser()
	}
	if bm.open > 0 {
		return nil
	}
	reason, due := bm.policy.Due(bm.pages, bm.launched, bm.now())
	if !due {
		return nil
	}
	bm.logger.Info("recycling browser", "reason", reason, "pages", bm.pages)
	if err := bm.replaceBrowser(); err != nil {
		// The old browser still works; try again before the next page.
		bm.logger.Warn("browser recycle failed", "err", err)
	}
	return nil
}

// replaceBrowser launches a browser and closes the previous one. If the
// launch fails the previous browser is kept. Must be called with mu held.
func (bm *BrowserManager) replaceBrowser() error {
	browser, lnchr, err := launchBrowser()
	if err != nil {
		return fmt.Errorf("%w: %v", stockwatch.Errorf(stockwatch.EUNAVAILABLE, "browser unavailable"), err)
	}
	_ = bm.closeBrowser()

	bm.browser = browser
	bm.launcher = lnchr
	bm.launched = bm.now()
	bm.pages = 0
	bm.launches++
	return nil
}

// closeBrowser shuts down the current browser and launcher.
// Must be called with mu held.
func (bm *BrowserManager) closeBrowser() error {
	var err error
	if bm.browser != nil {
		err = bm.browser.Close()
		bm.browser = nil
	}
	if bm.launcher != nil {
		bm.launcher.Kill()
		bm.launcher = nil
	}
	return err
}

func (bm *BrowserManager) release() {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	bm.open--
	if bm.open == 0 && !bm.closed {
		bm.scheduleIdle()
	}
}

// scheduleIdle arms the idle shutdown. Must be called with mu held.
func (bm *BrowserManager) scheduleIdle() {
	if bm.policy.IdleTimeout <= 0 {
		return
	}
	bm.stopIdle()
	gen := bm.idleGen
	bm.idle = time.AfterFunc(bm.policy.IdleTimeout, func() { bm.shutdownIdle(gen) })
}

// stopIdle disarms the idle shutdown. A timer that already fired is
// ignored through the generation check. Must be called with mu held.
func (bm *BrowserManager) stopIdle() {
	bm.idleGen++
	if bm.idle != nil {
		bm.idle.Stop()
		bm.idle = nil
	}
}

func (bm *BrowserManager) shutdownIdle(gen uint64) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if gen != bm.idleGen || bm.closed || bm.open > 0 || bm.browser == nil {
		return
	}
	bm.logger.Debug("closing idle browser", "pages", bm.pages)
	if err := bm.closeBrowser(); err != nil {
		bm.logger.Warn("closing idle browser", "err", err)
	}
}

// launchBrowser starts Chrome with the automation markers removed so shops
// see a regular browser.
func launchBrowser() (*rod.Browser, *launcher.Launcher, error) {
	lnchr := launcher.New().
		Delete("enable-automation").
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-hang-monitor").
		Leakless(true).
		Headless(true)

	u, err := lnchr.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		lnchr.Kill()
		return nil, nil, fmt.Errorf("connecting to browser: %w", err)
	}
	return browser, lnchr, nil
}
