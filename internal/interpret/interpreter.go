// Package interpret turns free-form pt-BR financial statements into typed
// transaction drafts via an OpenAI-compatible model.
package interpret

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"biabot/internal/domain"
	"biabot/internal/provider"
)

const systemPrompt = "Você é um assistente que gera JSONs válidos."

// Interpreter implements domain.Interpreter on top of a chat model.
type Interpreter struct {
	client      *provider.Client
	model       string
	temperature float64
	maxTokens   int
	categories  []string
	logger      *slog.Logger
}

type InterpreterConfig struct {
	Client      *provider.Client
	Model       string
	Temperature float64
	MaxTokens   int
	// Categories overrides the built-in catalog; nil keeps the default.
	Categories []string
	Logger     *slog.Logger
}

func NewInterpreter(cfg InterpreterConfig) *Interpreter {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	cats := cfg.Categories
	if len(cats) == 0 {
		cats = defaultCategories
	}
	return &Interpreter{
		client:      cfg.Client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		categories:  cats,
		logger:      cfg.Logger,
	}
}

// buildPrompt renders the BIA instruction block for one message. today is
// the default transaction date when the text names none.
func (i *Interpreter) buildPrompt(text string, today time.Time) string {
	var b strings.Builder
	b.WriteString("Você é uma assistente financeira chamada BIA.\n")
	b.WriteString("Sua tarefa é transformar frases do usuário em um JSON de transação.\n\n")
	b.WriteString("REGRAS:\n")
	b.WriteString(`- "type": 0 se for receita (ex: recebi, ganhei, entrou, depósito), 1 se for despesa (ex: gastei, paguei, comprei, saí).` + "\n")
	b.WriteString(`- "value": valor numérico extraído da frase (ex: 250.75), ou null se não houver valor.` + "\n")
	b.WriteString(`- "description": breve descrição do gasto ou ganho.` + "\n")
	b.WriteString(`- "category": escolha uma entre: ` + strings.Join(i.categories, ", ") + ".\n")
	b.WriteString(`- "expenseType": apenas para despesas: 0 para gastos fixos (aluguel, contas), 1 para gastos variáveis (mercado, transporte), 2 para gastos eventuais. Use null para receitas.` + "\n")
	b.WriteString(`- "date": a data mencionada no formato AAAA-MM-DD, ou a data de hoje se não houver.` + "\n")
	b.WriteString(`- "hasReceipt": true se a frase mencionar comprovante ou recibo, senão false.` + "\n\n")
	b.WriteString("IMPORTANTE: retorne apenas o JSON puro, sem texto adicional.\n\n")
	fmt.Fprintf(&b, "Frase: %q\nHoje é %s.\n", text, today.Format("2006-01-02"))
	return b.String()
}

// draftPayload is the strict decode target for the model response. Pointer
// fields distinguish "absent" from zero values.
type draftPayload struct {
	Type        *int             `json:"type"`
	Value       *decimal.Decimal `json:"value"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	ExpenseType *int             `json:"expenseType"`
	Date        string           `json:"date"`
	HasReceipt  bool             `json:"hasReceipt"`
}

// Interpret produces a transaction draft from free text. Any model response
// that cannot be reduced to one well-formed object with a positive value is
// domain.ErrUninterpretable; transport failures pass through untouched so
// the pipeline classifies them as stage failures.
func (i *Interpreter) Interpret(ctx context.Context, text string, today time.Time) (domain.TransactionDraft, error) {
	var draft domain.TransactionDraft

	content, err := i.client.Chat(ctx, provider.ChatRequest{
		Model: i.model,
		Messages: []provider.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: i.buildPrompt(text, today)},
		},
		Temperature: i.temperature,
		MaxTokens:   i.maxTokens,
	})
	if err != nil {
		return draft, fmt.Errorf("interpretation call: %w", err)
	}

	raw := extractJSONObject(content)
	if raw == "" {
		i.logger.Warn("model response contains no JSON object", "content_len", len(content))
		return draft, domain.ErrUninterpretable
	}

	var payload draftPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		i.logger.Warn("model JSON does not decode", "err", err)
		return draft, domain.ErrUninterpretable
	}

	if payload.Type == nil || (*payload.Type != domain.TypeIncome && *payload.Type != domain.TypeExpense) {
		return draft, domain.ErrUninterpretable
	}
	if payload.Value == nil || !payload.Value.IsPositive() {
		return draft, domain.ErrUninterpretable
	}

	draft = domain.TransactionDraft{
		Type:        *payload.Type,
		Value:       *payload.Value,
		Description: strings.TrimSpace(payload.Description),
		Category:    strings.TrimSpace(payload.Category),
		ExpenseType: payload.ExpenseType,
		Date:        strings.TrimSpace(payload.Date),
		HasReceipt:  payload.HasReceipt,
	}
	if draft.Date == "" {
		draft.Date = today.Format("2006-01-02")
	}
	return draft, nil
}
