package cookies

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/anyrouter/checkin/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{
			name: "json object",
			raw:  `{"session": "abc", "token": "xyz"}`,
			want: map[string]string{"session": "abc", "token": "xyz"},
		},
		{
			name: "header string",
			raw:  `"session=abc; token=xyz"`,
			want: map[string]string{"session": "abc", "token": "xyz"},
		},
		{
			name: "empty",
			raw:  "",
			want: map[string]string{},
		},
		{
			name: "invalid",
			raw:  `42`,
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(json.RawMessage(tt.raw))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseHeader(t *testing.T) {
	got := ParseHeader("a=1; b=2;c=3; malformed")
	want := map[string]string{"a": "1", "b": "2", "c": "3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseHeader() = %v, want %v", got, want)
	}
}

func TestFilterWAF(t *testing.T) {
	all := map[string]string{
		"acw_tc":     "token-1",
		"cdn_sec_tc": "token-2",
		"session":    "user-session",
		"acw_sc__v2": "",
	}
	got := FilterWAF(all)
	want := map[string]string{"acw_tc": "token-1", "cdn_sec_tc": "token-2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterWAF() = %v, want %v", got, want)
	}
}

// stubSource is a canned WAFCookieSource for tests.
type stubSource struct {
	cookies map[string]string
	err     error
	calls   int
}

func (s *stubSource) FetchWAFCookies(ctx context.Context, loginURL string) (map[string]string, error) {
	s.calls++
	return s.cookies, s.err
}

func TestPrepare(t *testing.T) {
	logger := discardLogger()
	userCookies := map[string]string{"session": "user-session"}

	t.Run("no WAF needed skips source", func(t *testing.T) {
		source := &stubSource{}
		provider := config.Provider{RequiresWAF: false}

		got, err := Prepare(context.Background(), logger, provider, userCookies, source)
		if err != nil {
			t.Fatalf("Prepare() error = %v", err)
		}
		if !reflect.DeepEqual(got, userCookies) {
			t.Errorf("Prepare() = %v, want user cookies unchanged", got)
		}
		if source.calls != 0 {
			t.Errorf("source invoked %d times, want 0", source.calls)
		}
	})

	t.Run("partial WAF cookies are enough", func(t *testing.T) {
		source := &stubSource{cookies: map[string]string{"acw_tc": "waf-token"}}
		provider := config.Provider{Domain: "https://example.com", RequiresWAF: true}

		got, err := Prepare(context.Background(), logger, provider, userCookies, source)
		if err != nil {
			t.Fatalf("Prepare() error = %v", err)
		}
		if got["acw_tc"] != "waf-token" || got["session"] != "user-session" {
			t.Errorf("Prepare() = %v, want merged WAF and user cookies", got)
		}
	})

	t.Run("user cookies win on collision", func(t *testing.T) {
		source := &stubSource{cookies: map[string]string{"acw_tc": "waf-token"}}
		provider := config.Provider{RequiresWAF: true}
		user := map[string]string{"acw_tc": "user-value"}

		got, err := Prepare(context.Background(), logger, provider, user, source)
		if err != nil {
			t.Fatalf("Prepare() error = %v", err)
		}
		if got["acw_tc"] != "user-value" {
			t.Errorf("acw_tc = %q, want user value to win", got["acw_tc"])
		}
	})

	t.Run("no allow-listed cookies", func(t *testing.T) {
		source := &stubSource{cookies: map[string]string{"unrelated": "x"}}
		provider := config.Provider{RequiresWAF: true}

		if _, err := Prepare(context.Background(), logger, provider, userCookies, source); !errors.Is(err, ErrNoWAFCookies) {
			t.Errorf("Prepare() error = %v, want ErrNoWAFCookies", err)
		}
	})

	t.Run("source failure propagates", func(t *testing.T) {
		wantErr := errors.New("browser crashed")
		source := &stubSource{err: wantErr}
		provider := config.Provider{RequiresWAF: true}

		if _, err := Prepare(context.Background(), logger, provider, userCookies, source); !errors.Is(err, wantErr) {
			t.Errorf("Prepare() error = %v, want %v", err, wantErr)
		}
	})
}
