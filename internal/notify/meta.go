package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"biabot/internal/config"
	"biabot/internal/domain"
)

const metaAPIBase = "https://graph.facebook.com/v19.0"

// Meta implements domain.Notifier via the WhatsApp Business Cloud API.
type Meta struct {
	apiBase       string
	accessToken   string
	phoneNumberID string
	client        *http.Client
	logger        *slog.Logger
}

type MetaConfig struct {
	Config config.MetaConfig
	// APIBase overrides the Graph endpoint, used by tests.
	APIBase string
	Logger  *slog.Logger
}

func NewMeta(cfg MetaConfig) *Meta {
	base := cfg.APIBase
	if base == "" {
		base = metaAPIBase
	}
	return &Meta{
		apiBase:       base,
		accessToken:   cfg.Config.AccessToken,
		phoneNumberID: cfg.Config.PhoneNumberID,
		client:        &http.Client{Timeout: 15 * time.Second},
		logger:        cfg.Logger,
	}
}

func (m *Meta) Send(ctx context.Context, msg domain.ReplyMessage) error {
	endpoint := fmt.Sprintf("%s/%s/messages", m.apiBase, m.phoneNumberID)

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                strings.TrimPrefix(msg.To, "whatsapp:"),
		"type":              "text",
		"text":              map[string]string{"body": msg.Body},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.accessToken)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("meta send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("meta API %d: %s", resp.StatusCode, string(respBody))
	}

	m.logger.Info("reply sent", "via", "meta", "to", msg.To)
	return nil
}
