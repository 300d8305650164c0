package checkin

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDisplay(t *testing.T) {
	tests := []struct {
		info UserInfoResult
		want string
	}{
		{UserInfoResult{Quota: 25, UsedQuota: 3.5}, "💰 Current balance: $25, Used: $3.5"},
		{UserInfoResult{Quota: 0.5, UsedQuota: 0}, "💰 Current balance: $0.5, Used: $0"},
	}
	for _, tt := range tests {
		if got := tt.info.Display(); got != tt.want {
			t.Errorf("Display() = %q, want %q", got, tt.want)
		}
	}
}

func TestTruncateError(t *testing.T) {
	short := truncateError(errors.New("timeout"))
	if short != "timeout..." {
		t.Errorf("truncateError(short) = %q", short)
	}

	long := truncateError(errors.New(strings.Repeat("x", 200)))
	if len(long) != 53 {
		t.Errorf("len(truncateError(long)) = %d, want 53", len(long))
	}
	if !strings.HasSuffix(long, "...") {
		t.Errorf("truncateError(long) = %q, want ellipsis suffix", long)
	}

	// Multi-byte server messages must be cut on rune boundaries.
	wide := truncateError(errors.New(strings.Repeat("签到失败", 30)))
	if !utf8.ValidString(wide) {
		t.Errorf("truncateError(wide) produced invalid UTF-8: %q", wide)
	}
	if utf8.RuneCountInString(wide) != 53 {
		t.Errorf("rune count = %d, want 50 + ellipsis", utf8.RuneCountInString(wide))
	}
}
