package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"biabot/internal/config"
	"biabot/internal/domain"
)

type fakePublisher struct {
	events []domain.InboundEvent
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, event domain.InboundEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func newTestGateway(pub *fakePublisher, meta config.MetaConfig) *Gateway {
	return New(GatewayConfig{
		Publisher: pub,
		Meta:      meta,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       func() time.Time { return time.Unix(1756380000, 0) },
	})
}

func TestTwilioWebhook_Text(t *testing.T) {
	pub := &fakePublisher{}
	g := newTestGateway(pub, config.MetaConfig{})

	form := url.Values{}
	form.Set("From", "whatsapp:+5511999990000")
	form.Set("Body", "Gastei 150 no mercado")
	form.Set("NumMedia", "0")

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	g.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected one enqueued event, got %d", len(pub.events))
	}
	ev := pub.events[0]
	if ev.From != "+5511999990000" {
		t.Fatalf("whatsapp: prefix must be stripped, got %q", ev.From)
	}
	if ev.Text != "Gastei 150 no mercado" || ev.MediaURL != "" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Timestamp != 1756380000 {
		t.Fatalf("event must carry the receipt time, got %d", ev.Timestamp)
	}
}

func TestTwilioWebhook_Media(t *testing.T) {
	pub := &fakePublisher{}
	g := newTestGateway(pub, config.MetaConfig{})

	form := url.Values{}
	form.Set("From", "whatsapp:+5511999990000")
	form.Set("NumMedia", "1")
	form.Set("MediaUrl0", "https://api.twilio.com/media/abc")
	form.Set("MediaContentType0", "image/jpeg")

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	g.Router().ServeHTTP(rec, req)

	if len(pub.events) != 1 {
		t.Fatalf("expected one event, got %d", len(pub.events))
	}
	ev := pub.events[0]
	if ev.MediaURL != "https://api.twilio.com/media/abc" || ev.MediaType != "image/jpeg" {
		t.Fatalf("media fields must be carried through, got %+v", ev)
	}
	if !ev.HasImage() {
		t.Fatal("event must classify as image media")
	}
}

func TestTwilioWebhook_MissingSender(t *testing.T) {
	pub := &fakePublisher{}
	g := newTestGateway(pub, config.MetaConfig{})

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader("Body=oi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	g.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(pub.events) != 0 {
		t.Fatal("nothing must be enqueued without a sender")
	}
}

func TestTwilioWebhook_QueueDown(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker gone")}
	g := newTestGateway(pub, config.MetaConfig{})

	form := url.Values{}
	form.Set("From", "whatsapp:+5511999990000")
	form.Set("Body", "oi")

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	g.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the queue is down, got %d", rec.Code)
	}
}

func TestMetaVerification(t *testing.T) {
	g := newTestGateway(&fakePublisher{}, config.MetaConfig{VerifyToken: "seg", WebhookPath: "/webhook/whatsapp"})

	req := httptest.NewRequest("GET", "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=seg&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	g.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "12345" {
		t.Fatalf("expected challenge echo, got %d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest("GET", "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=errado&hub.challenge=1", nil)
	rec = httptest.NewRecorder()
	g.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("wrong token must be rejected, got %d", rec.Code)
	}
}

const metaTextPayload = `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{"messaging_product":"whatsapp","messages":[{"from":"5511999990000","id":"wamid.1","type":"text","text":{"body":"Recebi 2000 de salário"}}]}}]}]}`

func TestMetaWebhook_Text(t *testing.T) {
	pub := &fakePublisher{}
	g := newTestGateway(pub, config.MetaConfig{WebhookPath: "/webhook/whatsapp"})

	req := httptest.NewRequest("POST", "/webhook/whatsapp", strings.NewReader(metaTextPayload))
	rec := httptest.NewRecorder()
	g.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected one event, got %d", len(pub.events))
	}
	if pub.events[0].From != "+5511999990000" {
		t.Fatalf("sender must be normalized to +E.164, got %q", pub.events[0].From)
	}
	if pub.events[0].Text != "Recebi 2000 de salário" {
		t.Fatalf("unexpected text %q", pub.events[0].Text)
	}
}

func TestMetaWebhook_Signature(t *testing.T) {
	pub := &fakePublisher{}
	g := newTestGateway(pub, config.MetaConfig{AppSecret: "s3cret", WebhookPath: "/webhook/whatsapp"})

	// Valid signature accepted.
	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write([]byte(metaTextPayload))
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest("POST", "/webhook/whatsapp", strings.NewReader(metaTextPayload))
	req.Header.Set("X-Hub-Signature-256", sig)
	rec := httptest.NewRecorder()
	g.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid signature rejected: %d", rec.Code)
	}

	// Bad signature refused.
	req = httptest.NewRequest("POST", "/webhook/whatsapp", strings.NewReader(metaTextPayload))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec = httptest.NewRecorder()
	g.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("invalid signature must be rejected, got %d", rec.Code)
	}
	if len(pub.events) != 1 {
		t.Fatalf("only the signed request may enqueue, got %d events", len(pub.events))
	}
}

func TestHealth(t *testing.T) {
	g := newTestGateway(&fakePublisher{}, config.MetaConfig{})

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	g.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
}
