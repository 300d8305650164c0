package run

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/anyrouter/checkin/internal/balance"
	"github.com/anyrouter/checkin/internal/checkin"
	"github.com/anyrouter/checkin/internal/config"
	"github.com/anyrouter/checkin/internal/notify"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubChecker returns scripted results per account index.
type stubChecker struct {
	results map[int]stubResult
}

type stubResult struct {
	ok    bool
	info  *checkin.UserInfoResult
	panic bool
}

func (s *stubChecker) CheckAccount(ctx context.Context, account config.Account, index int) (bool, *checkin.UserInfoResult) {
	r := s.results[index]
	if r.panic {
		panic("browser exploded in a very long and detailed way that should get truncated somewhere")
	}
	return r.ok, r.info
}

// recordingDispatcher captures what was dispatched.
type recordingDispatcher struct {
	reports []notify.ReportData
	pushes  []string
}

func (d *recordingDispatcher) SendReport(ctx context.Context, title string, data notify.ReportData) error {
	d.reports = append(d.reports, data)
	return nil
}

func (d *recordingDispatcher) Push(ctx context.Context, title, content string, skipEmail bool) {
	d.pushes = append(d.pushes, content)
}

func (d *recordingDispatcher) HasChannels() bool { return true }

func successInfo(quota, used float64) *checkin.UserInfoResult {
	return &checkin.UserInfoResult{Success: true, Quota: quota, UsedQuota: used}
}

func newTestAggregator(t *testing.T, checker AccountChecker, dispatcher Dispatcher) (*Aggregator, *balance.Tracker) {
	t.Helper()
	cfg := &config.Config{AccountDelay: 0}
	tracker := balance.NewTracker(filepath.Join(t.TempDir(), "hash.txt"), discardLogger())
	return NewAggregator(cfg, checker, tracker, dispatcher, discardLogger()), tracker
}

func accounts(n int) []config.Account {
	out := make([]config.Account, n)
	for i := range out {
		out[i] = config.Account{Cookies: json.RawMessage(`{"s":"v"}`)}
	}
	return out
}

func TestExecuteFirstRunNotifies(t *testing.T) {
	checker := &stubChecker{results: map[int]stubResult{
		0: {ok: true, info: successInfo(25, 1)},
	}}
	dispatcher := &recordingDispatcher{}
	agg, _ := newTestAggregator(t, checker, dispatcher)

	summary := agg.Execute(context.Background(), accounts(1))

	if summary.SuccessCount != 1 || summary.FailedCount != 0 {
		t.Errorf("counts = %d/%d, want 1/0", summary.SuccessCount, summary.FailedCount)
	}
	if !summary.BalanceChanged {
		t.Error("BalanceChanged = false on first run, want true")
	}
	if !summary.Notified {
		t.Error("Notified = false, want true")
	}
	if len(dispatcher.reports) != 1 || len(dispatcher.pushes) != 1 {
		t.Fatalf("dispatched %d reports, %d pushes, want 1 each", len(dispatcher.reports), len(dispatcher.pushes))
	}
	if !strings.Contains(dispatcher.pushes[0], "Account 1") {
		t.Errorf("push content missing balance backfill:\n%s", dispatcher.pushes[0])
	}
	if !strings.Contains(dispatcher.pushes[0], "1/1 accounts succeeded") {
		t.Errorf("push content missing statistics:\n%s", dispatcher.pushes[0])
	}
}

func TestExecuteUnchangedBalancesStaySilent(t *testing.T) {
	checker := &stubChecker{results: map[int]stubResult{
		0: {ok: true, info: successInfo(25, 1)},
	}}

	first := &recordingDispatcher{}
	agg, tracker := newTestAggregator(t, checker, first)
	agg.Execute(context.Background(), accounts(1))

	// Second run against the same persisted fingerprint; only the used
	// amount moved, which must not count as a change.
	checker.results[0] = stubResult{ok: true, info: successInfo(25, 20)}
	second := &recordingDispatcher{}
	agg2 := NewAggregator(&config.Config{}, checker, tracker, second, discardLogger())

	summary := agg2.Execute(context.Background(), accounts(1))

	if summary.BalanceChanged {
		t.Error("BalanceChanged = true, want false when only used moved")
	}
	if summary.Notified {
		t.Error("Notified = true, want false")
	}
	if len(second.reports) != 0 || len(second.pushes) != 0 {
		t.Errorf("dispatched %d reports, %d pushes, want none", len(second.reports), len(second.pushes))
	}
}

func TestExecuteFailureAlwaysNotifies(t *testing.T) {
	checker := &stubChecker{results: map[int]stubResult{
		0: {ok: true, info: successInfo(25, 1)},
		1: {ok: false, info: &checkin.UserInfoResult{Error: "WAF verification page detected"}},
	}}
	dispatcher := &recordingDispatcher{}
	agg, _ := newTestAggregator(t, checker, dispatcher)

	summary := agg.Execute(context.Background(), accounts(2))

	if summary.SuccessCount != 1 || summary.FailedCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", summary.SuccessCount, summary.FailedCount)
	}
	if !summary.Notified {
		t.Fatal("Notified = false, want true")
	}

	content := dispatcher.pushes[0]
	if !strings.Contains(content, "❌ Account 2: Check-in failed - WAF verification page detected") {
		t.Errorf("push content missing failure line:\n%s", content)
	}
	if !strings.Contains(content, "Some accounts failed") {
		t.Errorf("push content missing partial-failure status:\n%s", content)
	}

	data := dispatcher.reports[0]
	if data.Total != 2 || data.SuccessCount != 1 || data.FailedCount != 1 {
		t.Errorf("report data counts = %d/%d/%d", data.Total, data.SuccessCount, data.FailedCount)
	}
	if data.SuccessRate != 50 {
		t.Errorf("SuccessRate = %v, want 50", data.SuccessRate)
	}
	if data.Accounts[1].Error == "" {
		t.Error("failed account carries no error in report data")
	}
}

func TestExecuteRecoverFromPanic(t *testing.T) {
	checker := &stubChecker{results: map[int]stubResult{
		0: {panic: true},
		1: {ok: true, info: successInfo(10, 0)},
	}}
	dispatcher := &recordingDispatcher{}
	agg, _ := newTestAggregator(t, checker, dispatcher)

	summary := agg.Execute(context.Background(), accounts(2))

	if summary.FailedCount != 1 || summary.SuccessCount != 1 {
		t.Errorf("counts = %d/%d, want 1 failed, 1 success", summary.FailedCount, summary.SuccessCount)
	}

	failed := summary.Outcomes[0]
	if failed.Success {
		t.Error("panicked account reported as success")
	}
	if failed.UserInfo == nil || !strings.HasSuffix(failed.UserInfo.Error, "...") {
		t.Errorf("panic error = %+v, want truncated message", failed.UserInfo)
	}
	if len(failed.UserInfo.Error) > 53 {
		t.Errorf("panic error too long: %q", failed.UserInfo.Error)
	}
}

func TestExecuteAllFailedStatusLine(t *testing.T) {
	checker := &stubChecker{results: map[int]stubResult{
		0: {ok: false, info: nil},
	}}
	dispatcher := &recordingDispatcher{}
	agg, _ := newTestAggregator(t, checker, dispatcher)

	summary := agg.Execute(context.Background(), accounts(1))

	if summary.SuccessCount != 0 {
		t.Errorf("SuccessCount = %d, want 0", summary.SuccessCount)
	}
	if summary.ExitCode() != 1 {
		t.Errorf("ExitCode() = %d, want 1", summary.ExitCode())
	}
	if !strings.Contains(dispatcher.pushes[0], "All accounts failed") {
		t.Errorf("push content missing all-failed status:\n%s", dispatcher.pushes[0])
	}
}

func TestSummaryExitCode(t *testing.T) {
	tests := []struct {
		name    string
		success int
		failed  int
		want    int
	}{
		{name: "all succeeded", success: 3, failed: 0, want: 0},
		{name: "partial success", success: 1, failed: 2, want: 0},
		{name: "all failed", success: 0, failed: 3, want: 1},
		{name: "no accounts", success: 0, failed: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Summary{SuccessCount: tt.success, FailedCount: tt.failed}
			if got := s.ExitCode(); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	msg := strings.Repeat("签", 60)
	got := truncate(msg)

	if !utf8.ValidString(got) {
		t.Errorf("truncate() produced invalid UTF-8: %q", got)
	}
	if utf8.RuneCountInString(got) != 53 {
		t.Errorf("rune count = %d, want 50 + ellipsis", utf8.RuneCountInString(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncate() = %q, want ellipsis suffix", got)
	}
}

func TestBackfillSkipsAccountsAlreadyMentioned(t *testing.T) {
	r := newReport()
	r.addFailure("team", &checkin.UserInfoResult{Error: "boom"})

	outcomes := []checkin.Outcome{
		// "team" is a substring of the failure line already queued, so this
		// success line is suppressed even though it belongs to "team" itself.
		{AccountName: "team", Success: true, UserInfo: successInfo(5, 0)},
		{AccountName: "other", Success: true, UserInfo: successInfo(7, 0)},
	}
	r.backfillBalances(outcomes)

	joined := strings.Join(r.lines, "\n")
	if strings.Count(joined, "team") != 1 {
		t.Errorf("expected single mention of team:\n%s", joined)
	}
	if !strings.Contains(joined, "other") {
		t.Errorf("missing backfill for unmentioned account:\n%s", joined)
	}
}
