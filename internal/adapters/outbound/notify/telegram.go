package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noxaudit/noxaudit/internal/domain"
)

const telegramBaseURL = "https://api.telegram.org"

// Telegram implements domain.Notifier through the Bot API sendMessage call.
type Telegram struct {
	token   string
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// TelegramOption customises a Telegram notifier.
type TelegramOption func(*Telegram)

// WithBaseURL points the notifier at another Bot API host.
func WithBaseURL(u string) TelegramOption {
	return func(t *Telegram) { t.baseURL = strings.TrimSuffix(u, "/") }
}

// WithToken sets the bot token instead of reading TELEGRAM_BOT_TOKEN.
func WithToken(token string) TelegramOption {
	return func(t *Telegram) { t.token = token }
}

// NewTelegram creates a notifier. A missing token is reported on Notify so
// that audits without notifications configured never need one.
func NewTelegram(log zerolog.Logger, opts ...TelegramOption) *Telegram {
	t := &Telegram{
		token:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		baseURL: telegramBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("component", "telegram").Logger(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

type sendMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// Notify sends the summary of r to target. Targets for other channels are
// ignored.
func (t *Telegram) Notify(ctx context.Context, target domain.NotificationTarget, r domain.AuditResult) error {
	if target.Channel != "telegram" {
		return nil
	}
	if t.token == "" {
		return domain.NewConfigurationError("notify", "telegram", fmt.Errorf("TELEGRAM_BOT_TOKEN is not set"))
	}

	payload, err := json.Marshal(sendMessage{
		ChatID:                target.Target,
		Text:                  FormatNotification(r),
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode, string(body))
	}
	t.log.Debug().Str("repo", r.Repo).Str("chat_id", target.Target).Msg("notification sent")
	return nil
}

// FormatNotification renders a short chat summary of r.
func FormatNotification(r domain.AuditResult) string {
	var b strings.Builder
	high, medium, low := domain.CountBySeverity(r.NewFindings)
	fmt.Fprintf(&b, "*noxaudit* %s: *%s*", r.Repo, r.Focus)
	if c := r.ShortCommit(); c != "" {
		fmt.Fprintf(&b, " @ `%s`", c)
	}
	b.WriteString("\n")

	if r.Outcome != "" && r.Outcome != domain.OutcomeSucceeded {
		fmt.Fprintf(&b, "Batch ended as %s, no findings produced.\n", r.Outcome)
		return b.String()
	}
	if len(r.NewFindings) == 0 {
		b.WriteString("No new findings")
		if r.ResolvedCount > 0 {
			fmt.Fprintf(&b, " (%d already decided)", r.ResolvedCount)
		}
		b.WriteString(".\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%d new: %d high, %d medium, %d low", len(r.NewFindings), high, medium, low)
	if r.ResolvedCount > 0 {
		fmt.Fprintf(&b, " (%d resolved)", r.ResolvedCount)
	}
	b.WriteString("\n")

	shown := 0
	for _, f := range r.NewFindings {
		if f.Severity != domain.SeverityHigh {
			continue
		}
		if shown == 5 {
			fmt.Fprintf(&b, "…and %d more high\n", high-shown)
			break
		}
		fmt.Fprintf(&b, "• `%s` %s\n", f.File, f.Title)
		shown++
	}
	return b.String()
}
