package checkin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/anyrouter/checkin/internal/browser"
	"github.com/anyrouter/checkin/internal/challenge"
	"github.com/anyrouter/checkin/internal/config"
)

// quotaDivisor converts raw API quota units into currency units.
const quotaDivisor = 500000

// Client performs the authenticated API calls for one check-in attempt. It
// carries a prepared cookie set and the fixed browser-like header block; each
// attempt gets its own Client which is closed on every exit path.
type Client struct {
	http     *http.Client
	provider config.Provider
	apiUser  string
	logger   *slog.Logger
}

// NewClient builds a Client whose cookie jar is pre-loaded with the prepared
// cookies, scoped to the provider's domain.
func NewClient(provider config.Provider, apiUser string, cookieSet map[string]string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	base, err := url.Parse(provider.Domain)
	if err != nil {
		return nil, fmt.Errorf("provider domain: %w", err)
	}

	httpCookies := make([]*http.Cookie, 0, len(cookieSet))
	for name, value := range cookieSet {
		httpCookies = append(httpCookies, &http.Cookie{Name: name, Value: value})
	}
	jar.SetCookies(base, httpCookies)

	return &Client{
		http:     &http.Client{Jar: jar, Timeout: timeout},
		provider: provider,
		apiUser:  apiUser,
		logger:   logger,
	}, nil
}

// Close tears down the attempt's transport state.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// headers returns the fixed header block carried on every request. The WAF
// correlates these with the browser fingerprint used for the cookie fetch.
func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("User-Agent", browser.UserAgent)
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	h.Set("Referer", c.provider.Domain)
	h.Set("Origin", c.provider.Domain)
	h.Set("Connection", "keep-alive")
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set(c.provider.APIUserHeader, c.apiUser)
	return h
}

type userInfoPayload struct {
	Success bool `json:"success"`
	Data    struct {
		Quota     float64 `json:"quota"`
		UsedQuota float64 `json:"used_quota"`
	} `json:"data"`
}

// FetchUserInfo calls the user-info endpoint and classifies the response.
// Classification order: JSON success, then WAF signature match, then
// malformed. Transport faults carry a truncated error description.
func (c *Client) FetchUserInfo(ctx context.Context) UserInfoResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.provider.UserInfoURL(), nil)
	if err != nil {
		return UserInfoResult{Error: "Failed to get user info: " + truncateError(err), Verdict: challenge.VerdictTransport}
	}
	req.Header = c.headers()

	resp, err := c.http.Do(req)
	if err != nil {
		return UserInfoResult{Error: "Failed to get user info: " + truncateError(err), Verdict: challenge.VerdictTransport}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return UserInfoResult{Error: "Failed to get user info: " + truncateError(err), Verdict: challenge.VerdictTransport}
	}

	c.logger.Debug("user info response",
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"preview", preview(string(body), 300),
	)

	if resp.StatusCode != http.StatusOK {
		return UserInfoResult{
			Error:   fmt.Sprintf("Failed to get user info: HTTP %d", resp.StatusCode),
			Verdict: challenge.VerdictHTTPError,
		}
	}

	var payload userInfoPayload
	if err := json.Unmarshal(body, &payload); err == nil && payload.Success {
		return UserInfoResult{
			Success:   true,
			Quota:     roundCents(payload.Data.Quota / quotaDivisor),
			UsedQuota: roundCents(payload.Data.UsedQuota / quotaDivisor),
			Verdict:   challenge.VerdictSuccess,
		}
	}

	if sig, blocked := challenge.DetectWAF(resp.Header.Get("Content-Type"), string(body)); blocked {
		c.logger.Warn("WAF verification page detected", "signature", sig)
		return UserInfoResult{Error: "WAF verification page detected", Verdict: challenge.VerdictWAFBlocked}
	}

	c.logger.Warn("invalid user info response, not JSON and not a known WAF page")
	return UserInfoResult{Error: "Invalid response format", Verdict: challenge.VerdictMalformed}
}

// PerformCheckin posts the explicit sign-in call. Only used for providers
// that do not auto-check-in on the info fetch.
func (c *Client) PerformCheckin(ctx context.Context) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.SignInURL(), nil)
	if err != nil {
		return false, truncateError(err)
	}
	req.Header = c.headers()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, truncateError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, truncateError(err)
	}

	c.logger.Info("check-in response", "status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		// Some providers answer with plain text.
		if strings.Contains(strings.ToLower(string(body)), "success") {
			return true, ""
		}
		return false, "Invalid response format"
	}

	if numberEquals(result["ret"], 1) || numberEquals(result["code"], 0) || truthy(result["success"]) {
		return true, ""
	}

	msg, ok := result["msg"].(string)
	if !ok {
		msg, ok = result["message"].(string)
	}
	if !ok || msg == "" {
		msg = "Unknown error"
	}
	return false, msg
}

func numberEquals(v any, want float64) bool {
	n, ok := v.(float64)
	return ok && n == want
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func preview(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
