package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	config "github.com/NordCoder/Upwatch/internal/config/notifier"
	"github.com/NordCoder/Upwatch/internal/domain/notification"
)

var _ notification.Sender = (*Discord)(nil)

// discord rejects content longer than this
const discordMaxContent = 2000

// Discord posts notifications to a channel webhook. Target is the webhook url.
type Discord struct {
	client   *http.Client
	username string
	log      *zap.Logger
}

func NewDiscord(cfg config.Discord) *Discord {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Discord{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		username: cfg.Username,
		log:      zap.L().With(zap.String("component", "notifier.discord")),
	}
}

func (d *Discord) WithLogger(l *zap.Logger) *Discord {
	if l == nil {
		return d
	}
	cp := *d
	cp.log = l.With(zap.String("component", "notifier.discord"))
	return &cp
}

type discordPayload struct {
	Username string `json:"username,omitempty"`
	Content  string `json:"content"`
}

func (d *Discord) Send(ctx context.Context, webhookURL string, msg notification.Message) error {
	content := "**" + msg.Subject + "**\n" + msg.Body
	if r := []rune(content); len(r) > discordMaxContent {
		content = string(r[:discordMaxContent])
	}
	body, err := json.Marshal(discordPayload{Username: d.username, Content: content})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.log.Warn("webhook rejected", zap.Int("status", resp.StatusCode), zap.ByteString("body", snippet))
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	d.log.Debug("webhook delivered", zap.Int("status", resp.StatusCode))
	return nil
}
