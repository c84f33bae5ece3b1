// Package extract pulls plain text out of receipt images. The original
// extraction engine is an external capability; this implementation
// downloads the media and transcribes it with a vision-capable chat model.
package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"biabot/internal/provider"
)

// Media attachments above this size are rejected rather than shipped to
// the model.
const maxMediaBytes = 10 << 20

const defaultGraphAPIBase = "https://graph.facebook.com/"

// VisionExtractor implements domain.TextExtractor with a multimodal chat
// call.
type VisionExtractor struct {
	client   *provider.Client
	model    string
	language string
	download *http.Client
	// Twilio media URLs require basic auth with account credentials.
	basicUser string
	basicPass string
	// Cloud API media URLs point at the Graph API and require the Meta
	// access token.
	metaToken    string
	graphAPIBase string
	logger       *slog.Logger
}

type VisionExtractorConfig struct {
	Client    *provider.Client
	Model     string
	Language  string // ISO 639-2 hint for the transcription prompt, e.g. "por"
	Timeout   time.Duration
	BasicUser string
	BasicPass string
	MetaToken string
	// GraphAPIBase overrides the Graph endpoint prefix, used by tests.
	GraphAPIBase string
	Logger       *slog.Logger
}

func NewVisionExtractor(cfg VisionExtractorConfig) *VisionExtractor {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Language == "" {
		cfg.Language = "por"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.GraphAPIBase == "" {
		cfg.GraphAPIBase = defaultGraphAPIBase
	}
	return &VisionExtractor{
		client:       cfg.Client,
		model:        cfg.Model,
		language:     cfg.Language,
		download:     &http.Client{Timeout: cfg.Timeout},
		basicUser:    cfg.BasicUser,
		basicPass:    cfg.BasicPass,
		metaToken:    cfg.MetaToken,
		graphAPIBase: cfg.GraphAPIBase,
		logger:       cfg.Logger,
	}
}

// ExtractText downloads the media and asks the model for a verbatim
// transcription of its text content.
func (v *VisionExtractor) ExtractText(ctx context.Context, mediaURL, mediaType string) (string, error) {
	data, err := v.fetchMedia(ctx, mediaURL)
	if err != nil {
		return "", err
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data))

	prompt := fmt.Sprintf(
		"Transcreva todo o texto visível nesta imagem de comprovante ou recibo (idioma: %s). "+
			"Responda apenas com o texto transcrito, sem comentários.", v.language)

	text, err := v.client.Chat(ctx, provider.ChatRequest{
		Model: v.model,
		Messages: []provider.Message{
			{Role: "user", Content: []provider.ContentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &provider.ImageURL{URL: dataURL}},
			}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("transcription call: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("no text extracted from %s media", mediaType)
	}
	v.logger.Info("text extracted from image", "chars", len(text))
	return text, nil
}

func (v *VisionExtractor) fetchMedia(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, v.graphAPIBase) {
		return v.fetchGraphMedia(ctx, url)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("build media request: %w", err)
	}
	if v.basicUser != "" {
		req.SetBasicAuth(v.basicUser, v.basicPass)
	}
	return v.doFetch(req)
}

// fetchGraphMedia resolves a Cloud API media reference. The media endpoint
// returns JSON metadata holding a short-lived download URL; both requests
// carry the access token.
func (v *VisionExtractor) fetchGraphMedia(ctx context.Context, url string) ([]byte, error) {
	if v.metaToken == "" {
		return nil, fmt.Errorf("graph media %s requires meta.accessToken", url)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("build media metadata request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+v.metaToken)

	raw, err := v.doFetch(req)
	if err != nil {
		return nil, fmt.Errorf("media metadata: %w", err)
	}

	var meta struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode media metadata: %w", err)
	}
	if meta.URL == "" {
		return nil, fmt.Errorf("media metadata carries no download url")
	}

	dl, err := http.NewRequestWithContext(ctx, "GET", meta.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build media download request: %w", err)
	}
	dl.Header.Set("Authorization", "Bearer "+v.metaToken)
	return v.doFetch(dl)
}

func (v *VisionExtractor) doFetch(req *http.Request) ([]byte, error) {
	resp, err := v.download.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media download returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read media: %w", err)
	}
	if len(data) > maxMediaBytes {
		return nil, fmt.Errorf("media exceeds %d bytes", maxMediaBytes)
	}
	return data, nil
}
