// Package mailer 通过 Brevo 兼容的事务邮件 API 发送通知。
// 未配置 API Key 时退化为 no-op，worker 只记日志不发信。
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"traincomp/internal/config"
)

// Mailer 是 worker 依赖的发信边界，测试用假实现替换。
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Recipient 是一个收件人。
type Recipient struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Message 是一封待发送的邮件。
type Message struct {
	To       []Recipient
	Subject  string
	HTMLBody string
}

// Client 调用 Brevo 的 smtp/email 接口。
type Client struct {
	cfg  config.MailConfig
	http *http.Client
}

func NewClient(cfg config.MailConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

type sendRequest struct {
	Sender      Recipient   `json:"sender"`
	To          []Recipient `json:"to"`
	Subject     string      `json:"subject"`
	HTMLContent string      `json:"htmlContent"`
}

// Send 发送一封事务邮件。收件人为空时直接返回。
func (c *Client) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return nil
	}
	if !c.cfg.Enabled() {
		return fmt.Errorf("mailer not configured")
	}

	base := strings.TrimRight(strings.TrimSpace(c.cfg.APIBaseURL), "/")
	if base == "" {
		base = "https://api.brevo.com"
	}

	payload, err := json.Marshal(sendRequest{
		Sender:      Recipient{Name: c.cfg.SenderName, Email: c.cfg.SenderEmail},
		To:          msg.To,
		Subject:     msg.Subject,
		HTMLContent: msg.HTMLBody,
	})
	if err != nil {
		return fmt.Errorf("encode mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v3/smtp/email", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return fmt.Errorf("mail api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
