// Package notify fans check-in results out to the configured notification
// channels. Channels are independent: one failing delivery never blocks the
// others, and no channel is mandatory.
package notify

import (
	"context"
	"log/slog"

	"github.com/anyrouter/checkin/internal/config"
)

// Kind selects the content type of a delivery.
type Kind string

const (
	// KindText is a plain-text delivery.
	KindText Kind = "text"
	// KindHTML is an HTML delivery.
	KindHTML Kind = "html"
)

// Channel is one notification transport.
type Channel interface {
	// Name returns the channel's display name for logs.
	Name() string

	// Deliver sends one message. kind is advisory; text-only channels
	// deliver the content as-is.
	Deliver(ctx context.Context, title, content string, kind Kind) error
}

// AccountResult is one account's entry in the structured report payload.
type AccountResult struct {
	Name      string
	Success   bool
	Quota     float64
	UsedQuota float64
	Error     string
}

// ReportData is the structured payload for rich (HTML) rendering.
type ReportData struct {
	Accounts     []AccountResult
	Total        int
	SuccessCount int
	FailedCount  int
	SuccessRate  float64
	Timestamp    string
}

// Kit holds every configured channel. Channel selection is purely "is its
// configuration present".
type Kit struct {
	mailer   *Mailer
	channels []Channel
	logger   *slog.Logger
}

// NewKit builds a Kit from the notification configuration.
func NewKit(cfg config.NotifyConfig, logger *slog.Logger) *Kit {
	kit := &Kit{logger: logger}

	if cfg.EmailUser != "" && cfg.EmailPass != "" && cfg.EmailTo != "" {
		kit.mailer = NewMailer(cfg)
	}
	if cfg.PushPlusToken != "" {
		kit.channels = append(kit.channels, &PushPlus{Token: cfg.PushPlusToken})
	}
	if cfg.ServerChanKey != "" {
		kit.channels = append(kit.channels, &ServerChan{Key: cfg.ServerChanKey})
	}
	if cfg.DingTalkWebhook != "" {
		kit.channels = append(kit.channels, &DingTalk{Webhook: cfg.DingTalkWebhook})
	}
	if cfg.FeishuWebhook != "" {
		kit.channels = append(kit.channels, &Feishu{Webhook: cfg.FeishuWebhook})
	}
	if cfg.WeComWebhook != "" {
		kit.channels = append(kit.channels, &WeCom{Webhook: cfg.WeComWebhook})
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		kit.channels = append(kit.channels, &Telegram{BotToken: cfg.TelegramBotToken, ChatID: cfg.TelegramChatID})
	}

	return kit
}

// SendReport renders the structured payload as an HTML email and sends it on
// the email channel. Returns nil without sending when email is unconfigured.
func (k *Kit) SendReport(ctx context.Context, title string, data ReportData) error {
	if k.mailer == nil {
		k.logger.Info("email not configured, skipping HTML report")
		return nil
	}

	html, err := RenderReport(data)
	if err != nil {
		return err
	}
	if err := k.mailer.Send(ctx, title, html, KindHTML); err != nil {
		return err
	}
	k.logger.Info("HTML report email sent")
	return nil
}

// Push delivers the plain-text summary to every configured channel. skipEmail
// avoids a duplicate email when the HTML report was already sent. Each
// channel's failure is logged and swallowed; fan-out is best effort.
func (k *Kit) Push(ctx context.Context, title, content string, skipEmail bool) {
	channels := k.channels
	if !skipEmail && k.mailer != nil {
		channels = append([]Channel{k.mailer}, channels...)
	}

	for _, ch := range channels {
		if err := ch.Deliver(ctx, title, content, KindText); err != nil {
			k.logger.Warn("message push failed", "channel", ch.Name(), "error", err)
			continue
		}
		k.logger.Info("message push successful", "channel", ch.Name())
	}
}

// HasChannels reports whether any channel at all is configured.
func (k *Kit) HasChannels() bool {
	return k.mailer != nil || len(k.channels) > 0
}
