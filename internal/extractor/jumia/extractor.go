// Package jumia implements a plain-HTTP extractor for Jumia listing pages.
package jumia

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/Dev-pucci/webscraping-app/internal/scrape"
)

// Config controls collector behavior.
type Config struct {
	// BaseURL is the site root, e.g. https://www.jumia.co.ke.
	BaseURL string
	// UserAgent is sent on every request.
	UserAgent string
	// Timeout caps a single page request.
	Timeout time.Duration
}

const (
	defaultBaseURL   = "https://www.jumia.co.ke"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	defaultTimeout   = 10 * time.Second
)

// Extractor fetches listing pages over HTTP and parses product cards. Safe
// for concurrent use; every fetch clones the base collector.
type Extractor struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds an Extractor with a pooled transport shared across fetches.
func New(cfg Config, logger *zap.Logger) *Extractor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base := colly.NewCollector(
		colly.Async(false),
		colly.UserAgent(cfg.UserAgent),
		colly.IgnoreRobotsTxt(),
	)
	base.WithTransport(newHTTPTransport())
	base.SetRequestTimeout(cfg.Timeout)

	return &Extractor{
		cfg:           cfg,
		baseCollector: base,
		logger:        logger,
	}
}

// FetchPage retrieves and parses one listing page. An empty page is a valid
// result, not an error.
func (e *Extractor) FetchPage(ctx context.Context, req scrape.PageRequest) ([]scrape.Record, error) {
	pageURL, err := e.pageURL(req)
	if err != nil {
		return nil, err
	}

	var (
		records  []scrape.Record
		fetchErr error
	)
	collector := e.baseCollector.Clone()
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
	})
	collector.OnHTML("article.prd", func(el *colly.HTMLElement) {
		records = append(records, parseCard(el.DOM, e.cfg.BaseURL))
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(pageURL)
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("page fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit %s: %w", pageURL, err)
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("fetch %s: %w", pageURL, fetchErr)
		}
	}

	e.logger.Debug("page parsed",
		zap.String("url", pageURL),
		zap.Int("records", len(records)))
	return records, nil
}

// Close implements scrape.Extractor; the HTTP extractor holds no resources
// beyond pooled connections.
func (e *Extractor) Close() error {
	return nil
}

// pageURL builds the listing URL for the request. Category page 1 uses the
// locator unchanged, matching how the site paginates.
func (e *Extractor) pageURL(req scrape.PageRequest) (string, error) {
	switch req.Kind {
	case scrape.KindSearch:
		return fmt.Sprintf("%s/catalog/?q=%s&page=%d", e.cfg.BaseURL, url.QueryEscape(req.Query), req.Page), nil
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

// Factory yields the shared Extractor for each task. HTTP extraction has no
// per-task setup cost, so one instance serves all tasks.
type Factory struct {
	extractor *Extractor
}

// NewFactory wraps an Extractor as a scrape.ExtractorFactory.
func NewFactory(extractor *Extractor) *Factory {
	return &Factory{extractor: extractor}
}

// New returns the shared extractor.
func (f *Factory) New(context.Context) (scrape.Extractor, error) {
	return sharedExtractor{f.extractor}, nil
}

// sharedExtractor suppresses Close so one task finishing does not tear down
// the instance other tasks are using.
type sharedExtractor struct {
	*Extractor
}

func (sharedExtractor) Close() error { return nil }

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
