// Package checkin implements the per-account check-in flow: cookie
// preparation, the authenticated API calls, and the bounded retry loop
// around them.
package checkin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anyrouter/checkin/internal/challenge"
	"github.com/anyrouter/checkin/internal/config"
	"github.com/anyrouter/checkin/internal/cookies"
	"github.com/anyrouter/checkin/internal/logging"
)

// cookieInvalidator is implemented by caching cookie sources. A WAF-blocked
// response means the cookies that were just used are stale.
type cookieInvalidator interface {
	Invalidate(loginURL string)
}

// Runner executes the retry state machine for single accounts. Attempts are
// bounded at MaxRetries+1 with a fixed delay in between; exponential backoff
// is deliberately not used because the WAF reacts to request cadence, not
// backoff curves.
type Runner struct {
	cfg       *config.Config
	providers map[string]config.Provider
	source    cookies.WAFCookieSource
	logger    *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg *config.Config, providers map[string]config.Provider, source cookies.WAFCookieSource, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:       cfg,
		providers: providers,
		source:    source,
		logger:    logger,
	}
}

// attemptResult is what one attempt produced. retryable attempts are repeated
// while the attempt budget lasts.
type attemptResult struct {
	success   bool
	userInfo  *UserInfoResult
	retryable bool
}

// CheckAccount runs the full check-in flow for one account. All failures are
// contained and surfaced in the return values; the run is never aborted from
// here.
func (r *Runner) CheckAccount(ctx context.Context, account config.Account, index int) (bool, *UserInfoResult) {
	name := account.DisplayName(index)
	ctx = logging.WithAccount(ctx, name)
	logger := logging.FromContext(ctx, r.logger)

	provider, ok := r.providers[account.ProviderName()]
	if !ok {
		logger.ErrorContext(ctx, "provider not found in configuration", "provider", account.ProviderName())
		return false, nil
	}
	logger.InfoContext(ctx, "using provider", "provider", account.ProviderName(), "domain", provider.Domain)

	userCookies := cookies.Parse(account.Cookies)
	if len(userCookies) == 0 {
		logger.ErrorContext(ctx, "invalid cookie configuration")
		return false, nil
	}

	maxAttempts := r.cfg.MaxRetries + 1
	var lastInfo *UserInfoResult

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			logger.InfoContext(ctx, "retrying",
				"attempt", fmt.Sprintf("%d/%d", attempt+1, maxAttempts),
				"delay", r.cfg.RetryDelay,
			)
			if err := sleep(ctx, r.cfg.RetryDelay); err != nil {
				return false, lastInfo
			}
		}

		result := r.attempt(ctx, logger, provider, account, userCookies, attempt == maxAttempts-1)
		if result.userInfo != nil {
			lastInfo = result.userInfo
		}
		if result.retryable && attempt < maxAttempts-1 {
			continue
		}
		return result.success, lastInfo
	}

	logger.ErrorContext(ctx, "all retry attempts exhausted")
	return false, lastInfo
}

// attempt performs one full prepare+fetch+checkin cycle. Panics from the
// browser layer are recovered and treated as a retryable fault so a flaky
// cookie fetch cannot take the whole run down.
func (r *Runner) attempt(ctx context.Context, logger *slog.Logger, provider config.Provider, account config.Account, userCookies map[string]string, last bool) (result attemptResult) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorContext(ctx, "check-in attempt panicked", "panic", rec)
			result = attemptResult{retryable: true}
		}
	}()

	prepared, err := cookies.Prepare(ctx, logger, provider, userCookies, r.source)
	if err != nil {
		logger.WarnContext(ctx, "unable to prepare cookies", "error", err)
		return attemptResult{retryable: true}
	}

	client, err := NewClient(provider, account.APIUser, prepared, r.cfg.HTTPTimeout, logger)
	if err != nil {
		logger.WarnContext(ctx, "unable to build client", "error", err)
		return attemptResult{retryable: true}
	}
	defer client.Close()

	info := client.FetchUserInfo(ctx)
	if info.Success {
		logger.InfoContext(ctx, "user info fetched", "quota", info.Quota, "used_quota", info.UsedQuota)
	} else {
		logger.WarnContext(ctx, "user info fetch failed", "error", info.Error, "verdict", info.Verdict)
		if info.Verdict == challenge.VerdictWAFBlocked {
			if inv, ok := r.source.(cookieInvalidator); ok {
				inv.Invalidate(provider.LoginURL())
			}
		}
		if info.Verdict.Retryable() && !last {
			return attemptResult{userInfo: &info, retryable: true}
		}
	}

	if provider.AutoCheckin {
		// A successful info fetch is the check-in for these providers.
		logger.InfoContext(ctx, "check-in completed automatically, triggered by user info request")
		return attemptResult{success: info.Success, userInfo: &info}
	}

	success, msg := client.PerformCheckin(ctx)
	if success {
		logger.InfoContext(ctx, "check-in successful")
	} else {
		logger.WarnContext(ctx, "check-in failed", "reason", msg)
	}
	return attemptResult{success: success, userInfo: &info}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
