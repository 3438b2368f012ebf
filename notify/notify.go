// Package notify renders lending notices and hands them to a transport:
// SMTP when configured, an HTTP webhook, or the process log.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/smtp"
	"strings"
	"time"
)

type Config struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	From         string
	WebhookURL   string
	WebhookToken string
}

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// Notifier turns lending events into messages.
type Notifier struct {
	sender Sender
}

func NewNotifier(s Sender) *Notifier { return &Notifier{sender: s} }

// New picks SMTP when a host is configured, else a webhook, else the log.
func New(cfg Config) *Notifier {
	switch {
	case cfg.SMTPHost != "":
		port := cfg.SMTPPort
		if port == "" {
			port = "587"
		}
		return NewNotifier(&SMTPSender{
			Addr: cfg.SMTPHost + ":" + port,
			Host: cfg.SMTPHost,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPassword,
			From: cfg.From,
		})
	case cfg.WebhookURL != "":
		return NewNotifier(&WebhookSender{URL: cfg.WebhookURL, Token: cfg.WebhookToken, Client: &http.Client{Timeout: 5 * time.Second}})
	default:
		return NewNotifier(LogSender{})
	}
}

func (n *Notifier) ApprovalGranted(ctx context.Context, toEmail, equipmentName, approverName string) error {
	subject := "Your equipment request was approved"
	body := fmt.Sprintf("Your request for %s was approved by %s.\r\nPlease pick it up and return it by the due date.", equipmentName, approverName)
	return n.sender.Send(ctx, []string{toEmail}, subject, body)
}

func (n *Notifier) OverdueReminder(ctx context.Context, toEmail, equipmentName string, due time.Time) error {
	subject := "Overdue equipment: " + equipmentName
	body := fmt.Sprintf("%s was due back on %s. Please return it as soon as possible.", equipmentName, due.Format("2006-01-02"))
	return n.sender.Send(ctx, []string{toEmail}, subject, body)
}

func (n *Notifier) LowStockAlert(ctx context.Context, to []string, groupKey, name string, available, threshold int) error {
	subject := fmt.Sprintf("Low stock: %s (%s)", name, groupKey)
	body := fmt.Sprintf("%s (%s) has %d unit(s) available, threshold is %d.", name, groupKey, available, threshold)
	return n.sender.Send(ctx, to, subject, body)
}

// LogSender writes messages to the process log.
type LogSender struct{}

func (LogSender) Send(_ context.Context, to []string, subject, body string) error {
	log.Printf("notify: to=%s subject=%q body=%q", strings.Join(to, ","), subject, body)
	return nil
}

type SMTPSender struct {
	Addr string
	Host string
	User string
	Pass string
	From string

	// send defaults to smtp.SendMail
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (s *SMTPSender) Send(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return errors.New("notify: no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}
	from := s.From
	if from == "" {
		from = s.User
	}
	send := s.send
	if send == nil {
		send = smtp.SendMail
	}
	if err := send(s.Addr, auth, from, to, buildMessage(from, to, subject, body)); err != nil {
		return fmt.Errorf("notify: smtp: %w", err)
	}
	return nil
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// WebhookSender posts each message as JSON.
type WebhookSender struct {
	URL    string
	Token  string
	Client *http.Client
}

func (w *WebhookSender) Send(ctx context.Context, to []string, subject, body string) error {
	payload, err := json.Marshal(map[string]any{
		"recipients": to,
		"subject":    subject,
		"message":    body,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.Token)
	}
	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook rejected request: %s", resp.Status)
	}
	return nil
}
