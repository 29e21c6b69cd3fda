// Package browser manages headless chrome sessions. A Session owns one
// browser process and one tab for the duration of a single plan execution.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"github.com/webrunner/webrunner/config"
	"github.com/webrunner/webrunner/log"
)

const (
	interactTimeout = 15 * time.Second
	evalTimeout     = 30 * time.Second
	readyPollEvery  = 100 * time.Millisecond
)

// Launcher knows how to start browser sessions. It is built once from the
// process configuration and is safe for concurrent use; every session gets
// its own browser process.
type Launcher struct {
	cfg      *config.Config
	baseOpts []chromedp.ExecAllocatorOption
}

func NewLauncher(cfg *config.Config) *Launcher {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(1920, 1080), // init with a desktop view (sometimes pages look different on mobile, eg buttons are missing)
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(defaultUserAgent),
	)
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}
	return &Launcher{cfg: cfg, baseOpts: opts}
}

// NewSession launches a browser process and opens one tab. When direct is
// true the configured proxy is bypassed, which serves the interpreter's
// retry-without-proxy path.
func (l *Launcher) NewSession(ctx context.Context, direct bool) (*Session, error) {
	logger := log.LoggerFromContext(ctx)

	opts := make([]chromedp.ExecAllocatorOption, len(l.baseOpts), len(l.baseOpts)+1)
	copy(opts, l.baseOpts)
	proxied := l.cfg.Proxy.Enabled() && !direct
	if proxied {
		logger.Debug("launching chrome with proxy", slog.String("proxy", l.cfg.Proxy.ServerURL()))
		opts = append(opts, chromedp.ProxyServer(l.cfg.Proxy.ServerURL()))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	s := &Session{
		cfg:         l.cfg,
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		proxied:     proxied,
	}

	if proxied && l.cfg.Proxy.HasAuth() {
		s.listenForProxyAuth()
	}
	if err := chromedp.Run(tabCtx, s.setupActions(proxied && l.cfg.Proxy.HasAuth())...); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}
	return s, nil
}

// A Session is one live browser instance plus one tab. It is exclusively
// owned by one plan execution and must be closed on every exit path; Close
// is idempotent.
type Session struct {
	cfg         *config.Config
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	proxied     bool
	closeOnce   sync.Once
}

// Navigate opens the given url with a bounded timeout. An error here means
// the navigation itself failed at the browser level.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	logger := log.LoggerFromContext(ctx)
	logger.Debug("navigating", slog.String("url", url))
	navCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(navCtx, chromedp.Navigate(url))
}

// WaitReady polls document.readyState until it reports complete or the
// timeout elapses. It never errors, it only reports whether the document
// settled in time.
func (s *Session) WaitReady(ctx context.Context, timeout time.Duration) bool {
	pollCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(readyPollEvery)
	defer ticker.Stop()
	for {
		var state string
		if err := chromedp.Run(pollCtx, chromedp.Evaluate(`document.readyState`, &state)); err == nil {
			if strings.EqualFold(state, "complete") {
				return true
			}
		}
		select {
		case <-pollCtx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// WaitVisible reports whether the selector became visible within the
// timeout. It never errors.
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) bool {
	waitCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	err := chromedp.Run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
	return err == nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	clickCtx, cancel := context.WithTimeout(s.ctx, interactTimeout)
	defer cancel()
	return chromedp.Run(clickCtx, chromedp.Click(selector, chromedp.NodeVisible, chromedp.ByQuery))
}

func (s *Session) Type(ctx context.Context, selector, text string) error {
	typeCtx, cancel := context.WithTimeout(s.ctx, interactTimeout)
	defer cancel()
	return chromedp.Run(typeCtx,
		chromedp.Click(selector, chromedp.NodeVisible, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

// Evaluate runs a self-contained script in the page context and unmarshals
// its result into out.
func (s *Session) Evaluate(ctx context.Context, script string, out any) error {
	evalCtx, cancel := context.WithTimeout(s.ctx, evalTimeout)
	defer cancel()
	return chromedp.Run(evalCtx, chromedp.Evaluate(script, out))
}

// OuterHTML captures the full rendered document.
func (s *Session) OuterHTML(ctx context.Context) (string, error) {
	evalCtx, cancel := context.WithTimeout(s.ctx, evalTimeout)
	defer cancel()
	var body string
	err := chromedp.Run(evalCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		node, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		body, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
		return err
	}))
	return body, err
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	evalCtx, cancel := context.WithTimeout(s.ctx, interactTimeout)
	defer cancel()
	var urlStr string
	err := chromedp.Run(evalCtx, chromedp.Location(&urlStr))
	return urlStr, err
}

// AutoScroll scrolls the viewport down one viewport height at a time with a
// jittered pause in between, to trigger lazy-loaded content. It never
// errors; a scroll that has no effect simply wastes time up to the
// iteration cap.
func (s *Session) AutoScroll(ctx context.Context, iterations int) {
	logger := log.LoggerFromContext(ctx)
	if iterations <= 0 {
		iterations = s.cfg.ScrollIterations
	}
	for i := 0; i < iterations; i++ {
		if err := chromedp.Run(s.ctx, chromedp.Evaluate(`window.scrollBy(0, window.innerHeight);`, nil)); err != nil {
			logger.Debug("scroll increment failed", slog.String("err", err.Error()))
			return
		}
		pause := s.cfg.ScrollPause() + time.Duration(rand.Intn(300))*time.Millisecond
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(pause):
		}
	}
}

// Close tears down the tab and the browser process. Safe to call more than
// once and on a session that never fully opened.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.cancelTab != nil {
			s.cancelTab()
		}
		if s.cancelAlloc != nil {
			s.cancelAlloc()
		}
	})
}
