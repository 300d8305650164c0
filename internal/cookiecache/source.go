package cookiecache

import (
	"context"
	"log/slog"

	"github.com/anyrouter/checkin/internal/cookies"
)

// CachedSource wraps a WAF cookie source with the persistent cache. Cache
// hits skip the browser entirely; misses and expired entries fall through to
// the wrapped source and the fresh cookies are stored.
type CachedSource struct {
	store  *Store
	inner  cookies.WAFCookieSource
	logger *slog.Logger
}

// NewCachedSource wraps inner with the cache.
func NewCachedSource(store *Store, inner cookies.WAFCookieSource, logger *slog.Logger) *CachedSource {
	return &CachedSource{store: store, inner: inner, logger: logger}
}

// FetchWAFCookies implements cookies.WAFCookieSource.
func (c *CachedSource) FetchWAFCookies(ctx context.Context, loginURL string) (map[string]string, error) {
	cached, err := c.store.Load(loginURL)
	if err != nil {
		c.logger.Warn("cookie cache read failed", "url", loginURL, "error", err)
	}
	if len(cached) > 0 {
		c.logger.Info("using cached WAF cookies", "url", loginURL, "count", len(cached))
		return cached, nil
	}

	fresh, err := c.inner.FetchWAFCookies(ctx, loginURL)
	if err != nil {
		return nil, err
	}
	if len(fresh) > 0 {
		if err := c.store.Save(loginURL, fresh); err != nil {
			c.logger.Warn("cookie cache write failed", "url", loginURL, "error", err)
		}
	}
	return fresh, nil
}

// Invalidate drops the cached cookies for a login URL. Called when a request
// made with cached cookies still hits the challenge page.
func (c *CachedSource) Invalidate(loginURL string) {
	if err := c.store.Invalidate(loginURL); err != nil {
		c.logger.Warn("cookie cache invalidate failed", "url", loginURL, "error", err)
	}
}
