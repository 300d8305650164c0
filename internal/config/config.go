// Package config provides configuration management for the check-in service.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a check-in run.
type Config struct {
	LogLevel string

	// Retry / pacing settings
	MaxRetries   int
	RetryDelay   time.Duration
	AccountDelay time.Duration

	// Network settings
	HTTPTimeout     time.Duration
	PageLoadTimeout time.Duration
	ChromePath      string

	// State settings
	BalanceHashFile string
	WAFCookieCache  string // SQLite path; empty disables the cache
	WAFCookieTTL    time.Duration

	// Provider overlay
	ProvidersFile string

	Notify NotifyConfig
}

// NotifyConfig holds credentials for the notification channels. A channel is
// attempted only when its configuration is present.
type NotifyConfig struct {
	EmailUser  string
	EmailPass  string
	EmailTo    string
	SMTPServer string

	PushPlusToken    string
	ServerChanKey    string
	DingTalkWebhook  string
	FeishuWebhook    string
	WeComWebhook     string
	TelegramBotToken string
	TelegramChatID   string
}

// Load creates a Config from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		MaxRetries:      getEnvInt("MAX_RETRIES", 2),
		RetryDelay:      getEnvDuration("RETRY_DELAY", 5*time.Second),
		AccountDelay:    getEnvDuration("DELAY_BETWEEN_ACCOUNTS", 5*time.Second),
		HTTPTimeout:     getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		PageLoadTimeout: getEnvDuration("PAGE_LOAD_TIMEOUT", 30*time.Second),
		ChromePath:      getEnv("CHROME_PATH", ""),
		BalanceHashFile: getEnv("BALANCE_HASH_FILE", "balance_hash.txt"),
		WAFCookieCache:  getEnv("WAF_COOKIE_CACHE", ""),
		WAFCookieTTL:    getEnvDuration("WAF_COOKIE_TTL", 10*time.Minute),
		ProvidersFile:   getEnv("PROVIDERS_FILE", ""),
		Notify: NotifyConfig{
			EmailUser:        getEnv("EMAIL_USER", ""),
			EmailPass:        getEnv("EMAIL_PASS", ""),
			EmailTo:          getEnv("EMAIL_TO", ""),
			SMTPServer:       getEnv("CUSTOM_SMTP_SERVER", ""),
			PushPlusToken:    getEnv("PUSHPLUS_TOKEN", ""),
			ServerChanKey:    getEnv("SERVERPUSHKEY", ""),
			DingTalkWebhook:  getEnv("DINGDING_WEBHOOK", ""),
			FeishuWebhook:    getEnv("FEISHU_WEBHOOK", ""),
			WeComWebhook:     getEnv("WEIXIN_WEBHOOK", ""),
			TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		},
	}
}

// Provider describes one check-in backend.
type Provider struct {
	Domain        string `yaml:"domain"`
	LoginPath     string `yaml:"login_path"`
	UserInfoPath  string `yaml:"user_info_path"`
	SignInPath    string `yaml:"sign_in_path"`
	APIUserHeader string `yaml:"api_user_header"`
	RequiresWAF   bool   `yaml:"requires_waf"`
	// AutoCheckin means fetching user info performs the check-in server-side,
	// so no explicit sign-in call is made.
	AutoCheckin bool `yaml:"auto_checkin"`
}

// LoginURL returns the full login page URL.
func (p Provider) LoginURL() string { return p.Domain + p.LoginPath }

// UserInfoURL returns the full user info endpoint URL.
func (p Provider) UserInfoURL() string { return p.Domain + p.UserInfoPath }

// SignInURL returns the full sign-in endpoint URL.
func (p Provider) SignInURL() string { return p.Domain + p.SignInPath }

// BuiltinProviders returns the default provider catalog.
func BuiltinProviders() map[string]Provider {
	return map[string]Provider{
		"anyrouter": {
			Domain:        "https://anyrouter.top",
			LoginPath:     "/login",
			UserInfoPath:  "/api/user/self",
			SignInPath:    "/api/user/sign_in",
			APIUserHeader: "new-api-user",
			RequiresWAF:   true,
			AutoCheckin:   true,
		},
		"agentrouter": {
			Domain:        "https://agentrouter.org",
			LoginPath:     "/login",
			UserInfoPath:  "/api/user/self",
			SignInPath:    "/api/user/sign_in",
			APIUserHeader: "new-api-user",
			RequiresWAF:   false,
			AutoCheckin:   false,
		},
	}
}

// LoadProviders returns the builtin catalog, optionally overlaid with
// definitions from a YAML file. File entries replace builtin entries with the
// same name and may add new providers.
func LoadProviders(path string) (map[string]Provider, error) {
	providers := BuiltinProviders()
	if path == "" {
		return providers, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	var overlay map[string]Provider
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse providers file: %w", err)
	}

	for name, p := range overlay {
		providers[name] = p
	}
	return providers, nil
}

// Account describes one account to check in. Cookies is kept raw because the
// source material may be either a JSON object or a ";"-delimited string.
type Account struct {
	Name     string          `json:"name"`
	Provider string          `json:"provider"`
	Cookies  json.RawMessage `json:"cookies"`
	APIUser  string          `json:"api_user"`
}

// DisplayName returns the configured name or a positional fallback.
func (a Account) DisplayName(index int) string {
	if a.Name != "" {
		return a.Name
	}
	return fmt.Sprintf("Account %d", index+1)
}

// ProviderName returns the configured provider or the default.
func (a Account) ProviderName() string {
	if a.Provider != "" {
		return a.Provider
	}
	return "anyrouter"
}

// ErrNoAccounts is returned when no account configuration is present.
var ErrNoAccounts = errors.New("no accounts configured")

// LoadAccounts reads the account list from CHECKIN_ACCOUNTS (JSON array),
// falling back to the legacy ANYROUTER_ACCOUNTS variable.
func LoadAccounts() ([]Account, error) {
	raw := os.Getenv("CHECKIN_ACCOUNTS")
	if raw == "" {
		raw = os.Getenv("ANYROUTER_ACCOUNTS")
	}
	if raw == "" {
		return nil, ErrNoAccounts
	}

	var accounts []Account
	if err := json.Unmarshal([]byte(raw), &accounts); err != nil {
		return nil, fmt.Errorf("parse accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	return accounts, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		// Bare numbers are treated as seconds for compatibility with the
		// cron-style integer tunables (RETRY_DELAY=5).
		if n, err := strconv.Atoi(val); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return defaultVal
}
