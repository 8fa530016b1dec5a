package scraper

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/async-research/youtube-scraper/internal/config"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Navigator drives a single browser tab.
type Navigator interface {
	Open(ctx context.Context, url string) error
	WaitFor(ctx context.Context, selector string) error
	Scroll(ctx context.Context, times int) error
	Document(ctx context.Context) (*goquery.Document, error)
	Close() error
}

// ChromeSession is a Navigator backed by one Chrome process.
type ChromeSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	timeout     time.Duration
	scrollPause time.Duration
	body        string
	closeOnce   sync.Once
}

func NewChromeSession(browser config.BrowserConfig, scrape config.ScrapeConfig) (*ChromeSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", browser.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(browser.WindowWidth, browser.WindowHeight),
	)
	if browser.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(browser.ExecPath))
	}
	if browser.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(browser.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Debugf))

	// start the browser so launch failures surface here rather than on first use
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, errors.Wrap(err, "failed to start chrome")
	}

	log.WithField("headless", browser.Headless).Info("Started Chrome session")

	return &ChromeSession{
		ctx: ctx,
		cancel: func() {
			cancel()
			allocCancel()
		},
		timeout:     browser.Timeout,
		scrollPause: scrape.ScrollPause,
		body:        scrape.Selectors.Body,
	}, nil
}

func (c *ChromeSession) run(ctx context.Context, what string, actions ...chromedp.Action) error {
	runCtx, cancel := c.stepContext(ctx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return errors.Wrapf(ErrNavigationTimeout, "%s after %s", what, c.timeout)
	}
	return errors.Wrap(err, what)
}

// stepContext bounds a single step by the session timeout while still honouring
// cancellation of the caller's context.
func (c *ChromeSession) stepContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	stop := context.AfterFunc(parent, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (c *ChromeSession) Open(ctx context.Context, url string) error {
	log.WithField("url", url).Debug("Opening page")
	return c.run(ctx, "open "+url, chromedp.Navigate(url))
}

func (c *ChromeSession) WaitFor(ctx context.Context, selector string) error {
	return c.run(ctx, "wait for "+selector, chromedp.WaitReady(selector, chromedp.ByQuery))
}

// Scroll presses PageDown on the page body, pausing before every key press so the
// page can lazy-load the next batch.
func (c *ChromeSession) Scroll(ctx context.Context, times int) error {
	for i := 0; i < times; i++ {
		err := c.run(ctx, "scroll",
			chromedp.Sleep(c.scrollPause),
			chromedp.WaitVisible(c.body, chromedp.ByQuery),
			chromedp.SendKeys(c.body, kb.PageDown, chromedp.ByQuery),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *ChromeSession) Document(ctx context.Context) (*goquery.Document, error) {
	var html string
	if err := c.run(ctx, "capture page", chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse page")
	}
	return doc, nil
}

// Close shuts the browser down. Safe to call more than once.
func (c *ChromeSession) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		log.Info("Closed Chrome session")
	})
	return nil
}
