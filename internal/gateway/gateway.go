// Package gateway is the HTTP ingress: it accepts WhatsApp provider
// webhooks (Twilio and Meta Cloud API) and enqueues raw inbound events for
// the pipeline workers.
package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"biabot/internal/config"
	"biabot/internal/domain"
	"biabot/internal/metrics"
)

// Gateway mounts the webhook endpoints and publishes accepted messages to
// the work queue.
type Gateway struct {
	publisher domain.Publisher
	meta      config.MetaConfig
	logger    *slog.Logger
	now       func() time.Time
}

type GatewayConfig struct {
	Publisher domain.Publisher
	Meta      config.MetaConfig
	Logger    *slog.Logger
	Now       func() time.Time // defaults to time.Now
}

func New(cfg GatewayConfig) *Gateway {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Gateway{
		publisher: cfg.Publisher,
		meta:      cfg.Meta,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
}

// Router builds the chi mux with webhook, health, and metrics endpoints.
func (g *Gateway) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/webhook", g.handleTwilio)

	metaPath := g.meta.WebhookPath
	if metaPath == "" {
		metaPath = "/webhook/whatsapp"
	}
	r.Get(metaPath, g.handleMetaVerification)
	r.Post(metaPath, g.handleMetaIncoming)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method("GET", "/metrics", metrics.Handler())

	return r
}

// handleTwilio accepts Twilio's form-encoded WhatsApp webhook.
func (g *Gateway) handleTwilio(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	from := strings.TrimPrefix(r.PostFormValue("From"), "whatsapp:")
	if from == "" {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	event := domain.InboundEvent{
		From:      from,
		Text:      r.PostFormValue("Body"),
		Timestamp: g.now().Unix(),
	}
	if r.PostFormValue("NumMedia") != "" && r.PostFormValue("NumMedia") != "0" {
		event.MediaURL = r.PostFormValue("MediaUrl0")
		event.MediaType = r.PostFormValue("MediaContentType0")
	}

	if err := g.publisher.Publish(r.Context(), event); err != nil {
		g.logger.Error("enqueue failed", "source", "twilio", "sender", from, "err", err)
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}

	metrics.EventsPublished.WithLabelValues("twilio").Inc()
	g.logger.Info("message enqueued", "source", "twilio", "sender", from, "has_media", event.MediaURL != "")

	// Twilio expects TwiML; an empty response means "no immediate reply".
	w.Header().Set("Content-Type", "text/xml")
	w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Response></Response>`))
}

// handleMetaVerification answers the Cloud API webhook subscription
// challenge.
func (g *Gateway) handleMetaVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == g.meta.VerifyToken {
		g.logger.Info("meta webhook verified")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, html.EscapeString(challenge))
		return
	}

	g.logger.Warn("meta webhook verification failed", "mode", mode)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// handleMetaIncoming processes Cloud API message notifications.
func (g *Gateway) handleMetaIncoming(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if g.meta.AppSecret != "" {
		sig := r.Header.Get("X-Hub-Signature-256")
		if !g.verifySignature(body, sig) {
			g.logger.Warn("meta webhook invalid signature")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	var payload metaPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		g.logger.Warn("meta webhook bad payload", "err", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				event, ok := g.metaEvent(msg)
				if !ok {
					continue
				}
				if err := g.publisher.Publish(r.Context(), event); err != nil {
					g.logger.Error("enqueue failed", "source", "meta", "sender", event.From, "err", err)
					http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
					return
				}
				metrics.EventsPublished.WithLabelValues("meta").Inc()
				g.logger.Info("message enqueued", "source", "meta", "sender", event.From)
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}

// metaEvent maps one Cloud API message to an inbound event. Only text and
// image messages become work; everything else is dropped here.
func (g *Gateway) metaEvent(msg metaMessage) (domain.InboundEvent, bool) {
	event := domain.InboundEvent{
		From:      "+" + strings.TrimPrefix(msg.From, "+"),
		Timestamp: g.now().Unix(),
	}
	switch {
	case msg.Type == "text" && msg.Text != nil:
		event.Text = msg.Text.Body
	case msg.Type == "image" && msg.Image != nil:
		// Cloud API media is fetched by ID through the Graph API.
		event.MediaURL = fmt.Sprintf("https://graph.facebook.com/v19.0/%s", msg.Image.ID)
		event.MediaType = msg.Image.MimeType
		event.Text = msg.Image.Caption
	default:
		return event, false
	}
	return event, true
}

// verifySignature checks the X-Hub-Signature-256 header.
func (g *Gateway) verifySignature(body []byte, signature string) bool {
	if len(signature) < 7 || signature[:7] != "sha256=" {
		return false
	}
	expected := signature[7:]

	mac := hmac.New(sha256.New, []byte(g.meta.AppSecret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(computed))
}

// --- Cloud API webhook payload types ---

type metaPayload struct {
	Object string      `json:"object"`
	Entry  []metaEntry `json:"entry"`
}

type metaEntry struct {
	ID      string       `json:"id"`
	Changes []metaChange `json:"changes"`
}

type metaChange struct {
	Value metaValue `json:"value"`
	Field string    `json:"field"`
}

type metaValue struct {
	MessagingProduct string        `json:"messaging_product"`
	Messages         []metaMessage `json:"messages"`
}

type metaMessage struct {
	From  string     `json:"from"`
	ID    string     `json:"id"`
	Type  string     `json:"type"`
	Text  *metaText  `json:"text,omitempty"`
	Image *metaImage `json:"image,omitempty"`
}

type metaText struct {
	Body string `json:"body"`
}

type metaImage struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
}
