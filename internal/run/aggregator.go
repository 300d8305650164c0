// Package run orchestrates a full check-in pass over every configured
// account: sequential execution with pacing, balance change detection, and
// the decision whether the run is worth notifying about.
package run

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anyrouter/checkin/internal/balance"
	"github.com/anyrouter/checkin/internal/checkin"
	"github.com/anyrouter/checkin/internal/config"
	"github.com/anyrouter/checkin/internal/notify"
)

// AccountChecker executes the check-in flow for a single account.
type AccountChecker interface {
	CheckAccount(ctx context.Context, account config.Account, index int) (bool, *checkin.UserInfoResult)
}

// Dispatcher delivers the run report. Satisfied by *notify.Kit.
type Dispatcher interface {
	SendReport(ctx context.Context, title string, data notify.ReportData) error
	Push(ctx context.Context, title, content string, skipEmail bool)
	HasChannels() bool
}

// Aggregator runs every account, accumulates outcomes, and dispatches the
// report at the end.
type Aggregator struct {
	cfg        *config.Config
	checker    AccountChecker
	tracker    *balance.Tracker
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(cfg *config.Config, checker AccountChecker, tracker *balance.Tracker, dispatcher Dispatcher, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		cfg:        cfg,
		checker:    checker,
		tracker:    tracker,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Summary is the terminal state of one run.
type Summary struct {
	Outcomes       []checkin.Outcome
	SuccessCount   int
	FailedCount    int
	BalanceChanged bool
	Notified       bool
}

// Total returns the number of accounts processed.
func (s *Summary) Total() int { return len(s.Outcomes) }

// ExitCode maps the run outcome to the process exit status. A run counts as
// successful when at least one account got through.
func (s *Summary) ExitCode() int {
	if s.SuccessCount > 0 {
		return 0
	}
	return 1
}

// Execute processes every account in order and dispatches the report when
// there is something to report. One account's failure never stops the others.
func (a *Aggregator) Execute(ctx context.Context, accounts []config.Account) *Summary {
	a.logger.InfoContext(ctx, "starting check-in run", "accounts", len(accounts))

	summary := &Summary{}
	report := newReport()
	balances := make(map[string]balance.Snapshot)

	for i, account := range accounts {
		name := account.DisplayName(i)
		success, info := a.checkAccount(ctx, account, i)

		summary.Outcomes = append(summary.Outcomes, checkin.Outcome{
			AccountName: name,
			Success:     success,
			UserInfo:    info,
		})
		if success {
			summary.SuccessCount++
		} else {
			summary.FailedCount++
			report.addFailure(name, info)
		}

		// Balances are recorded whenever the info fetch succeeded, even if
		// the check-in itself did not.
		if info != nil && info.Success {
			balances[fmt.Sprintf("account_%d", i+1)] = balance.Snapshot{
				Quota: info.Quota,
				Used:  info.UsedQuota,
			}
		}

		if i < len(accounts)-1 {
			if err := sleepCtx(ctx, a.cfg.AccountDelay); err != nil {
				a.logger.WarnContext(ctx, "run interrupted", "error", err)
				break
			}
		}
	}

	summary.BalanceChanged = a.detectBalanceChange(balances)

	needNotify := summary.FailedCount > 0 || summary.BalanceChanged
	if needNotify {
		report.backfillBalances(summary.Outcomes)
	}

	a.logger.InfoContext(ctx, "check-in run finished",
		"success", summary.SuccessCount,
		"failed", summary.FailedCount,
		"balance_changed", summary.BalanceChanged,
	)

	if !needNotify {
		a.logger.InfoContext(ctx, "no failures and no balance change, skipping notification")
		return summary
	}
	if a.dispatcher == nil || !a.dispatcher.HasChannels() {
		a.logger.InfoContext(ctx, "no notification channels configured")
		return summary
	}

	a.dispatch(ctx, summary, report)
	summary.Notified = true
	return summary
}

// checkAccount shields the run from a panicking account check. The recovered
// panic becomes a terminal failure with a truncated error message.
func (a *Aggregator) checkAccount(ctx context.Context, account config.Account, index int) (success bool, info *checkin.UserInfoResult) {
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.ErrorContext(ctx, "account check panicked",
				"account", account.DisplayName(index),
				"panic", rec,
			)
			success = false
			info = &checkin.UserInfoResult{Error: truncate(fmt.Sprint(rec))}
		}
	}()
	return a.checker.CheckAccount(ctx, account, index)
}

// detectBalanceChange compares the current fingerprint with the persisted one
// and saves the new value when they differ. An empty balance set never counts
// as a change; a missing prior fingerprint always does.
func (a *Aggregator) detectBalanceChange(balances map[string]balance.Snapshot) bool {
	if len(balances) == 0 {
		return false
	}

	current := balance.Compute(balances)
	previous := a.tracker.Load()

	if previous == current {
		a.logger.Info("balances unchanged since last run")
		return false
	}

	if previous == "" {
		a.logger.Info("first recorded balance fingerprint", "fingerprint", current)
	} else {
		a.logger.Info("balance change detected", "previous", previous, "current", current)
	}
	a.tracker.Save(current)
	return true
}

func (a *Aggregator) dispatch(ctx context.Context, summary *Summary, rep *report) {
	title := reportTitle
	content := rep.render(summary)
	data := buildReportData(summary)

	if err := a.dispatcher.SendReport(ctx, title, data); err != nil {
		a.logger.Warn("HTML report delivery failed", "error", err)
	}
	a.dispatcher.Push(ctx, title, content, true)
}

// truncate caps a message at 50 characters. Cutting on rune boundaries keeps
// multi-byte provider messages valid UTF-8.
func truncate(msg string) string {
	if runes := []rune(msg); len(runes) > 50 {
		msg = string(runes[:50])
	}
	return msg + "..."
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
