// Package cookies prepares the cookie set carried on check-in requests,
// merging user session cookies with WAF clearance cookies when the provider
// sits behind a WAF challenge.
package cookies

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/anyrouter/checkin/internal/config"
)

// WAFAllowList is the fixed set of cookie names recognised as WAF clearance
// tokens. Anything else returned by the browser is discarded.
var WAFAllowList = []string{"acw_tc", "cdn_sec_tc", "acw_sc__v2"}

// ErrNoWAFCookies is returned when the browser obtained none of the
// allow-listed cookies.
var ErrNoWAFCookies = errors.New("no WAF cookies obtained")

// WAFCookieSource fetches WAF clearance cookies by driving a real browser to
// the provider's login page. Implementations must return only allow-listed
// cookie names.
type WAFCookieSource interface {
	FetchWAFCookies(ctx context.Context, loginURL string) (map[string]string, error)
}

// Parse decodes raw cookie material that is either a JSON object or a
// ";"-delimited "key=value" string.
func Parse(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return map[string]string{}
	}

	var asMap map[string]string
	if err := json.Unmarshal(raw, &asMap); err == nil {
		return asMap
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return ParseHeader(asString)
	}

	return map[string]string{}
}

// ParseHeader splits a Cookie-header style string into a map.
func ParseHeader(s string) map[string]string {
	result := map[string]string{}
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if key, value, found := strings.Cut(part, "="); found {
			result[key] = value
		}
	}
	return result
}

// FilterWAF keeps only allow-listed cookie names with non-empty values.
func FilterWAF(all map[string]string) map[string]string {
	filtered := map[string]string{}
	for _, name := range WAFAllowList {
		if value, ok := all[name]; ok && value != "" {
			filtered[name] = value
		}
	}
	return filtered
}

// Prepare builds the cookie set for one check-in attempt. Providers without
// WAF protection use the user cookies unchanged and the source is never
// invoked. For WAF providers the source is asked for clearance cookies;
// obtaining at least one allow-listed cookie counts as success. User cookies
// are overlaid last, so they win on a name collision.
func Prepare(ctx context.Context, logger *slog.Logger, provider config.Provider, userCookies map[string]string, source WAFCookieSource) (map[string]string, error) {
	if !provider.RequiresWAF {
		logger.Info("using user cookies directly, no WAF bypass needed")
		return userCookies, nil
	}

	wafCookies, err := source.FetchWAFCookies(ctx, provider.LoginURL())
	if err != nil {
		return nil, err
	}
	wafCookies = FilterWAF(wafCookies)
	if len(wafCookies) == 0 {
		return nil, ErrNoWAFCookies
	}

	var missing []string
	for _, name := range WAFAllowList {
		if _, ok := wafCookies[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		logger.Info("some WAF cookies not found, may not be required", "missing", missing)
	}
	logger.Info("got WAF cookies", "count", len(wafCookies))

	merged := make(map[string]string, len(wafCookies)+len(userCookies))
	for name, value := range wafCookies {
		merged[name] = value
	}
	for name, value := range userCookies {
		merged[name] = value
	}
	return merged, nil
}
