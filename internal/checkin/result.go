package checkin

import (
	"fmt"
	"strconv"

	"github.com/anyrouter/checkin/internal/challenge"
)

// UserInfoResult is the classified outcome of one user-info fetch. Quota and
// UsedQuota are in currency units (raw API units divided by 500000, rounded
// to two decimals).
type UserInfoResult struct {
	Success   bool
	Quota     float64
	UsedQuota float64
	Error     string
	Verdict   challenge.Verdict
}

// Display returns the balance line used in notifications.
func (r UserInfoResult) Display() string {
	return fmt.Sprintf("💰 Current balance: $%s, Used: $%s", formatAmount(r.Quota), formatAmount(r.UsedQuota))
}

// Outcome is the terminal result for one account in a run. Never persisted;
// built fresh each run.
type Outcome struct {
	AccountName string
	Success     bool
	UserInfo    *UserInfoResult
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// truncateError caps diagnostic detail that could end up in notifications.
// Cutting on rune boundaries keeps multi-byte provider messages valid UTF-8.
func truncateError(err error) string {
	msg := err.Error()
	if runes := []rune(msg); len(runes) > 50 {
		msg = string(runes[:50])
	}
	return msg + "..."
}
