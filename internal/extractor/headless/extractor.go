// Package headless implements a browser-driven extractor for listing pages
// that render through JavaScript.
package headless

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Dev-pucci/webscraping-app/internal/scrape"
)

// Config controls the browser and its pacing.
type Config struct {
	// BaseURL is the site root, e.g. https://www.kilimall.co.ke.
	BaseURL string
	// UserAgent overrides the browser user agent when set.
	UserAgent string
	// NavigationTimeout caps one page navigation plus rendering.
	NavigationTimeout time.Duration
	// MaxParallel bounds concurrent tabs across all tasks; 0 means unbounded.
	MaxParallel int
}

const (
	defaultBaseURL    = "https://www.kilimall.co.ke"
	defaultNavTimeout = 30 * time.Second

	// listingSelector is the container Vue renders products into; waiting on
	// it is how we know the dynamic content arrived.
	listingSelector = ".listings"

	maxScrollRounds = 5
)

// Extractor drives one headless browser for the lifetime of a task. Each
// FetchPage opens a fresh tab.
type Extractor struct {
	cfg           Config
	limiter       chan struct{}
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	logger        *zap.Logger
}

// FetchPage renders one listing page and parses the settled DOM.
func (e *Extractor) FetchPage(ctx context.Context, req scrape.PageRequest) ([]scrape.Record, error) {
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	pageURL, err := e.pageURL(req)
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(e.browserCtx)
	defer cancelTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, e.cfg.NavigationTimeout)
	defer cancel()

	// Stop rendering when the caller gives up, not just on the nav timeout.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-tabCtx.Done():
		}
	}()

	var html string
	actions := chromedp.Tasks{
		e.networkSetupAction(),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(listingSelector, chromedp.ByQuery),
		scrollToBottom(),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(tabCtx, actions); err != nil {
		return nil, fmt.Errorf("render %s: %w", pageURL, err)
	}

	records, err := parseListing(html, e.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	e.logger.Debug("page rendered",
		zap.String("url", pageURL),
		zap.Int("records", len(records)))
	return records, nil
}

// Close shuts down the browser and its allocator.
func (e *Extractor) Close() error {
	e.browserCancel()
	e.allocCancel()
	return nil
}

func (e *Extractor) pageURL(req scrape.PageRequest) (string, error) {
	switch req.Kind {
	case scrape.KindSearch:
		return fmt.Sprintf("%s/search?q=%s&page=%d", e.cfg.BaseURL, url.QueryEscape(req.Query), req.Page), nil
	case scrape.KindCategory:
		if req.Page == 1 {
			return req.CategoryURL, nil
		}
		sep := "?"
		if strings.Contains(req.CategoryURL, "?") {
			sep = "&"
		}
		return fmt.Sprintf("%s%spage=%d", req.CategoryURL, sep, req.Page), nil
	default:
		return "", fmt.Errorf("unsupported task kind %q", req.Kind)
	}
}

func (e *Extractor) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if e.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(e.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// scrollToBottom triggers lazy loading by scrolling until the page height
// stops growing, bounded to a few rounds.
func scrollToBottom() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var lastHeight int64
		if err := chromedp.Evaluate("document.body.scrollHeight", &lastHeight).Do(ctx); err != nil {
			return err
		}
		for i := 0; i < maxScrollRounds; i++ {
			if err := chromedp.Evaluate("window.scrollTo(0, document.body.scrollHeight); undefined", nil).Do(ctx); err != nil {
				return err
			}
			if err := chromedp.Sleep(500 * time.Millisecond).Do(ctx); err != nil {
				return err
			}
			var height int64
			if err := chromedp.Evaluate("document.body.scrollHeight", &height).Do(ctx); err != nil {
				return err
			}
			if height == lastHeight {
				break
			}
			lastHeight = height
		}
		return nil
	})
}

func (e *Extractor) acquire(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	select {
	case e.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (e *Extractor) release() {
	if e.limiter == nil {
		return
	}
	select {
	case <-e.limiter:
	default:
	}
}

// Factory launches one browser per task. Launch failure is a setup error and
// fails the whole task.
type Factory struct {
	cfg     Config
	limiter chan struct{}
	logger  *zap.Logger
}

// NewFactory builds the factory. The tab limiter is shared by every
// extractor the factory creates.
func NewFactory(cfg Config, logger *zap.Logger) *Factory {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}
	return &Factory{cfg: cfg, limiter: limiter, logger: logger}
}

// New starts a headless browser and returns the task's extractor.
func (f *Factory) New(ctx context.Context) (scrape.Extractor, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(1920, 1080),
	)
	if f.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser now so a broken Chrome install surfaces as a task
	// setup failure instead of a per-page error.
	startCtx, cancel := context.WithTimeout(browserCtx, f.cfg.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start headless browser: %w", err)
	}
	select {
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, ctx.Err()
	default:
	}

	return &Extractor{
		cfg:           f.cfg,
		limiter:       f.limiter,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		logger:        f.logger,
	}, nil
}
