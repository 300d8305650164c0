package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// webhookTimeout bounds every webhook delivery.
const webhookTimeout = 30 * time.Second

var webhookClient = &http.Client{Timeout: webhookTimeout}

// postJSON posts a JSON payload and fails on non-2xx statuses.
func postJSON(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := webhookClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// PushPlus delivers via pushplus.plus.
type PushPlus struct {
	Token string
}

func (p *PushPlus) Name() string { return "PushPlus" }

func (p *PushPlus) Deliver(ctx context.Context, title, content string, _ Kind) error {
	return postJSON(ctx, "http://www.pushplus.plus/send", map[string]string{
		"token":    p.Token,
		"title":    title,
		"content":  content,
		"template": "html",
	})
}

// ServerChan delivers via the Server 酱 push service.
type ServerChan struct {
	Key string
}

func (s *ServerChan) Name() string { return "Server Push" }

func (s *ServerChan) Deliver(ctx context.Context, title, content string, _ Kind) error {
	url := fmt.Sprintf("https://sctapi.ftqq.com/%s.send", s.Key)
	return postJSON(ctx, url, map[string]string{
		"title": title,
		"desp":  content,
	})
}

// DingTalk delivers to a DingTalk group robot webhook.
type DingTalk struct {
	Webhook string
}

func (d *DingTalk) Name() string { return "DingTalk" }

func (d *DingTalk) Deliver(ctx context.Context, title, content string, _ Kind) error {
	return postJSON(ctx, d.Webhook, map[string]any{
		"msgtype": "text",
		"text":    map[string]string{"content": title + "\n" + content},
	})
}

// Feishu delivers an interactive card to a Feishu bot webhook.
type Feishu struct {
	Webhook string
}

func (f *Feishu) Name() string { return "Feishu" }

func (f *Feishu) Deliver(ctx context.Context, title, content string, _ Kind) error {
	return postJSON(ctx, f.Webhook, map[string]any{
		"msg_type": "interactive",
		"card": map[string]any{
			"elements": []map[string]any{
				{"tag": "markdown", "content": content, "text_align": "left"},
			},
			"header": map[string]any{
				"template": "blue",
				"title":    map[string]string{"content": title, "tag": "plain_text"},
			},
		},
	})
}

// WeCom delivers to a WeChat Work group robot webhook.
type WeCom struct {
	Webhook string
}

func (w *WeCom) Name() string { return "WeChat Work" }

func (w *WeCom) Deliver(ctx context.Context, title, content string, _ Kind) error {
	return postJSON(ctx, w.Webhook, map[string]any{
		"msgtype": "text",
		"text":    map[string]string{"content": title + "\n" + content},
	})
}

// Telegram delivers via the Telegram bot API.
type Telegram struct {
	BotToken string
	ChatID   string
	// BaseURL overrides the API host, for tests.
	BaseURL string
}

func (t *Telegram) Name() string { return "Telegram" }

func (t *Telegram) Deliver(ctx context.Context, title, content string, _ Kind) error {
	base := t.BaseURL
	if base == "" {
		base = "https://api.telegram.org"
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", base, t.BotToken)
	return postJSON(ctx, url, map[string]string{
		"chat_id":    t.ChatID,
		"text":       fmt.Sprintf("<b>%s</b>\n\n%s", title, content),
		"parse_mode": "HTML",
	})
}
