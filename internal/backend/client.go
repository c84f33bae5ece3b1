// Package backend is the HTTP client for the financial-tracking backend:
// sender authentication and ledger submission.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"biabot/internal/config"
	"biabot/internal/domain"
)

// Client talks to the ZetaFin-style backend. It implements
// domain.Authenticator and domain.Ledger.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

type ClientConfig struct {
	Config config.BackendConfig
	Logger *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	timeout := time.Duration(cfg.Config.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.Config.BaseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  cfg.Logger,
	}
}

type authRequest struct {
	WhatsAppNumber string `json:"whatsAppNumber"`
}

// Authenticate resolves a WhatsApp number to a backend session. A 404 means
// the number is not linked to any account; that is an expected outcome and
// is reported as domain.ErrNotLinked, distinct from transport failures.
func (c *Client) Authenticate(ctx context.Context, whatsAppNumber string) (domain.AuthSession, error) {
	var session domain.AuthSession

	body, err := json.Marshal(authRequest{WhatsAppNumber: whatsAppNumber})
	if err != nil {
		return session, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/authenticate", bytes.NewReader(body))
	if err != nil {
		return session, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return session, &domain.SubmissionError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return session, domain.ErrNotLinked
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		drainBody(resp.Body)
		return session, &domain.SubmissionError{Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return session, &domain.SubmissionError{Err: fmt.Errorf("decode session: %w", err)}
	}
	if session.Token == "" {
		return session, &domain.SubmissionError{Err: fmt.Errorf("backend returned empty token")}
	}
	return session, nil
}

// ledgerPayload is the wire form of a validated transaction. Value is sent
// as a JSON number; expenseType is omitted entirely for income.
type ledgerPayload struct {
	Type        int         `json:"type"`
	Value       json.Number `json:"value"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Date        string      `json:"date"`
	HasReceipt  bool        `json:"hasReceipt"`
	ExpenseType *int        `json:"expenseType,omitempty"`
}

// Submit posts a validated transaction under the session token. A 404 is
// classified as session-stale (the account was unlinked mid-flight) and
// mapped to domain.ErrNotLinked so the caller sends the same linking
// guidance; any other non-2xx or transport failure is a SubmissionError.
func (c *Client) Submit(ctx context.Context, token string, tx domain.ValidatedTransaction) (domain.LedgerRecord, error) {
	var record domain.LedgerRecord

	payload := ledgerPayload{
		Type:        tx.Type,
		Value:       json.Number(tx.Value.String()),
		Description: tx.Description,
		Category:    tx.Category,
		Date:        tx.Date,
		HasReceipt:  tx.HasReceipt,
		ExpenseType: tx.ExpenseType,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return record, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/Transactions", bytes.NewReader(body))
	if err != nil {
		return record, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return record, &domain.SubmissionError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return record, domain.ErrNotLinked
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		drainBody(resp.Body)
		return record, &domain.SubmissionError{Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		// The transaction is persisted at this point; a broken echo is
		// not worth a dead-letter.
		c.logger.Warn("could not decode ledger response", "err", err)
	}
	return record, nil
}

func drainBody(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 4096))
}
