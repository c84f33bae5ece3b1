package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"biabot/internal/config"
	"biabot/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTwilioSend(t *testing.T) {
	var form map[string][]string
	var user, pass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form = r.PostForm
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM123"}`))
	}))
	defer srv.Close()

	tw := NewTwilio(TwilioConfig{
		Config: config.TwilioConfig{
			AccountSID:     "AC1",
			AuthToken:      "secret",
			WhatsAppNumber: "+14155238886",
		},
		APIBase: srv.URL,
		Logger:  discardLogger(),
	})

	err := tw.Send(context.Background(), domain.ReplyMessage{To: "+5511999990000", Body: "oi"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if user != "AC1" || pass != "secret" {
		t.Fatalf("expected basic auth AC1/secret, got %s/%s", user, pass)
	}
	if got := form["To"]; len(got) != 1 || got[0] != "whatsapp:+5511999990000" {
		t.Fatalf("To must be whatsapp-prefixed, got %v", got)
	}
	if got := form["From"]; len(got) != 1 || got[0] != "whatsapp:+14155238886" {
		t.Fatalf("From must be whatsapp-prefixed, got %v", got)
	}
}

func TestTwilioSend_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tw := NewTwilio(TwilioConfig{APIBase: srv.URL, Logger: discardLogger()})
	if err := tw.Send(context.Background(), domain.ReplyMessage{To: "+55", Body: "x"}); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestMetaSend(t *testing.T) {
	var payload map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	m := NewMeta(MetaConfig{
		Config:  config.MetaConfig{AccessToken: "tok", PhoneNumberID: "123"},
		APIBase: srv.URL,
		Logger:  discardLogger(),
	})

	err := m.Send(context.Background(), domain.ReplyMessage{To: "whatsapp:+5511999990000", Body: "oi"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if auth != "Bearer tok" {
		t.Fatalf("expected bearer token, got %q", auth)
	}
	if payload["to"] != "+5511999990000" {
		t.Fatalf("meta address must be bare, got %v", payload["to"])
	}
	if payload["messaging_product"] != "whatsapp" {
		t.Fatalf("unexpected payload %v", payload)
	}
}
