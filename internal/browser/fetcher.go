// Package browser drives a headless browser to obtain WAF clearance cookies
// from a provider's login page.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/anyrouter/checkin/internal/config"
	"github.com/anyrouter/checkin/internal/cookies"
)

// UserAgent is presented both by the browser and by the HTTP client so the
// WAF sees a consistent fingerprint across the cookie fetch and the API calls.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

// ErrBrowserLaunch is returned when the browser could not be started.
var ErrBrowserLaunch = errors.New("browser launch failed")

// Fetcher implements cookies.WAFCookieSource with a throwaway browser per
// fetch. Each call launches a fresh instance with a clean profile, mirroring
// an incognito visit.
type Fetcher struct {
	chromePath      string
	pageLoadTimeout time.Duration
	logger          *slog.Logger
}

// New creates a Fetcher.
func New(cfg *config.Config, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		chromePath:      cfg.ChromePath,
		pageLoadTimeout: cfg.PageLoadTimeout,
		logger:          logger,
	}
}

// FetchWAFCookies visits the login URL and returns the allow-listed WAF
// cookies issued during the page load. The result may be a subset of the
// allow-list; the caller decides how many cookies are enough.
func (f *Fetcher) FetchWAFCookies(ctx context.Context, loginURL string) (map[string]string, error) {
	f.logger.Info("starting browser to get WAF cookies", "url", loginURL)

	l := launcher.New()
	if f.chromePath != "" {
		l = l.Bin(f.chromePath)
	}
	l = l.
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-infobars").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("window-size", "1920,1080").
		Set("lang", "en-US,en")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, errors.Join(ErrBrowserLaunch, err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, errors.Join(ErrBrowserLaunch, err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			f.logger.Warn("error closing browser", "error", err)
		}
	}()

	page, err := CreateStealthPage(browser)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: UserAgent}); err != nil {
		f.logger.Warn("failed to set user agent", "error", err)
	}

	page = page.Timeout(f.pageLoadTimeout)
	if err := page.Navigate(loginURL); err != nil {
		return nil, err
	}
	if err := page.WaitLoad(); err != nil {
		return nil, err
	}
	f.waitReady(ctx, page)

	raw, err := page.Cookies(nil)
	if err != nil {
		return nil, err
	}

	all := make(map[string]string, len(raw))
	for _, c := range raw {
		all[c.Name] = c.Value
	}
	waf := cookies.FilterWAF(all)
	f.logger.Info("collected cookies from login page", "total", len(all), "waf", len(waf))
	return waf, nil
}

// waitReady polls for document.readyState === "complete" for up to five
// seconds; if the page never settles it falls back to a flat wait, which is
// usually enough for the WAF's redirect dance to finish.
func (f *Fetcher) waitReady(ctx context.Context, page *rod.Page) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := page.Eval(`() => document.readyState`)
		if err == nil && result.Value.Str() == "complete" {
			return
		}
		time.Sleep(500 * time.Millisecond)
	}

	f.logger.Debug("page never reached readyState complete, using fallback wait")
	select {
	case <-ctx.Done():
	case <-time.After(3 * time.Second):
	}
}
