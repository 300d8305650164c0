package run

import (
	"fmt"
	"strings"
	"time"

	"github.com/anyrouter/checkin/internal/checkin"
	"github.com/anyrouter/checkin/internal/notify"
)

const reportTitle = "🤖 Check-in Results"

// report accumulates the plain-text notification lines for one run. Failure
// lines are added as they happen; balance lines for successful accounts are
// backfilled at the end so the message stays short when nothing went wrong.
type report struct {
	lines []string
}

func newReport() *report {
	return &report{}
}

func (r *report) addFailure(name string, info *checkin.UserInfoResult) {
	line := fmt.Sprintf("❌ %s: Check-in failed", name)
	if info != nil && info.Error != "" {
		line += " - " + info.Error
	}
	r.lines = append(r.lines, line)
}

// backfillBalances appends a balance line for every successful account that
// does not already appear in the accumulated content. The containment check
// is a plain substring match, so an account whose name is a prefix of another
// account's name can be skipped by mistake; names should be kept distinct.
func (r *report) backfillBalances(outcomes []checkin.Outcome) {
	for _, outcome := range outcomes {
		if !outcome.Success || outcome.UserInfo == nil || !outcome.UserInfo.Success {
			continue
		}
		if strings.Contains(strings.Join(r.lines, "\n"), outcome.AccountName) {
			continue
		}
		r.lines = append(r.lines, fmt.Sprintf("✅ %s: Check-in successful\n%s",
			outcome.AccountName, outcome.UserInfo.Display()))
	}
}

// render builds the final plain-text message.
func (r *report) render(summary *Summary) string {
	var sb strings.Builder
	for _, line := range r.lines {
		sb.WriteString(line)
		sb.WriteString("\n\n")
	}

	fmt.Fprintf(&sb, "📊 Statistics: %d/%d accounts succeeded\n", summary.SuccessCount, summary.Total())
	fmt.Fprintf(&sb, "⏰ Time: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))

	switch {
	case summary.FailedCount == 0:
		sb.WriteString("🎉 All accounts checked in successfully!")
	case summary.SuccessCount > 0:
		sb.WriteString("⚠️ Some accounts failed, please check the configuration.")
	default:
		sb.WriteString("💥 All accounts failed, action required.")
	}
	return sb.String()
}

// buildReportData converts the run outcomes into the structured payload the
// HTML report renders from.
func buildReportData(summary *Summary) notify.ReportData {
	data := notify.ReportData{
		Total:        summary.Total(),
		SuccessCount: summary.SuccessCount,
		FailedCount:  summary.FailedCount,
		Timestamp:    time.Now().Format("2006-01-02 15:04:05"),
	}
	if data.Total > 0 {
		data.SuccessRate = float64(data.SuccessCount) / float64(data.Total) * 100
	}

	for _, outcome := range summary.Outcomes {
		result := notify.AccountResult{
			Name:    outcome.AccountName,
			Success: outcome.Success,
		}
		if outcome.UserInfo != nil {
			if outcome.UserInfo.Success {
				result.Quota = outcome.UserInfo.Quota
				result.UsedQuota = outcome.UserInfo.UsedQuota
			}
			result.Error = outcome.UserInfo.Error
		}
		if !result.Success && result.Error == "" {
			result.Error = "Check-in failed"
		}
		data.Accounts = append(data.Accounts, result)
	}
	return data
}
