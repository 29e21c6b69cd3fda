package browser

import (
	"context"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptLanguage   = "en-US,en;q=0.9"

	// Pages probe navigator.webdriver to detect automation. The override has
	// to be installed before any page script runs.
	webdriverOverrideScript = `Object.defineProperty(navigator, 'webdriver', { get: () => undefined });`
)

// setupActions returns the per-session fingerprint setup that runs once,
// before the first navigation.
func (s *Session) setupActions(authProxy bool) []chromedp.Action {
	actions := []chromedp.Action{}
	if authProxy {
		actions = append(actions, fetch.Enable().WithHandleAuthRequests(true))
	}
	actions = append(actions,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": acceptLanguage}),
		emulation.SetUserAgentOverride(defaultUserAgent).
			WithAcceptLanguage(acceptLanguage).
			WithPlatform("Win32"),
		emulation.SetAutomationOverride(false),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(webdriverOverrideScript).Do(ctx)
			return err
		}),
	)
	return actions
}

// listenForProxyAuth answers the proxy's auth challenge with the configured
// credentials. With auth handling enabled the fetch domain also pauses every
// request, so paused requests have to be continued explicitly.
func (s *Session) listenForProxyAuth() {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *fetch.EventRequestPaused:
			go func() {
				c := chromedp.FromContext(s.ctx)
				execCtx := cdp.WithExecutor(s.ctx, c.Target)
				_ = fetch.ContinueRequest(e.RequestID).Do(execCtx)
			}()
		case *fetch.EventAuthRequired:
			go func() {
				c := chromedp.FromContext(s.ctx)
				execCtx := cdp.WithExecutor(s.ctx, c.Target)
				_ = fetch.ContinueWithAuth(e.RequestID, &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: s.cfg.Proxy.User,
					Password: s.cfg.Proxy.Password,
				}).Do(execCtx)
			}()
		}
	})
}
