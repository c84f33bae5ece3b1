package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"biabot/internal/config"
	"biabot/internal/domain"
)

const twilioAPIBase = "https://api.twilio.com"

// Twilio implements domain.Notifier via the Twilio Messages API.
type Twilio struct {
	apiBase    string
	accountSID string
	authToken  string
	from       string
	client     *http.Client
	logger     *slog.Logger
}

type TwilioConfig struct {
	Config config.TwilioConfig
	// APIBase overrides the Twilio endpoint, used by tests.
	APIBase string
	Logger  *slog.Logger
}

func NewTwilio(cfg TwilioConfig) *Twilio {
	base := cfg.APIBase
	if base == "" {
		base = twilioAPIBase
	}
	return &Twilio{
		apiBase:    base,
		accountSID: cfg.Config.AccountSID,
		authToken:  cfg.Config.AuthToken,
		from:       cfg.Config.WhatsAppNumber,
		client:     &http.Client{Timeout: 15 * time.Second},
		logger:     cfg.Logger,
	}
}

// Send posts one outbound WhatsApp text. Twilio expects form-encoded
// bodies, basic auth, and whatsapp:-prefixed addresses.
func (t *Twilio) Send(ctx context.Context, msg domain.ReplyMessage) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.apiBase, t.accountSID)

	form := url.Values{}
	form.Set("From", whatsAppAddr(t.from))
	form.Set("To", whatsAppAddr(msg.To))
	form.Set("Body", msg.Body)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.accountSID, t.authToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("twilio API %d: %s", resp.StatusCode, string(body))
	}

	t.logger.Info("reply sent", "via", "twilio", "to", msg.To)
	return nil
}

// whatsAppAddr ensures the whatsapp: channel prefix Twilio requires.
func whatsAppAddr(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
