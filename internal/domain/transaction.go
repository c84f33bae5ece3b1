package domain

import "github.com/shopspring/decimal"

// Transaction type as the ledger backend encodes it.
const (
	TypeIncome  = 0
	TypeExpense = 1
)

// Expense subtype, required by the backend for expenses only.
const (
	ExpenseFixed      = 0
	ExpenseVariable   = 1
	ExpenseOccasional = 2
)

// TransactionDraft is the unvalidated result of interpreting a message.
// ExpenseType is nil for income and must be set for expenses.
type TransactionDraft struct {
	Type        int             `json:"type"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	ExpenseType *int            `json:"expenseType"`
	Date        string          `json:"date"`
	HasReceipt  bool            `json:"hasReceipt"`
}

// ValidatedTransaction is a draft that passed every structural check.
type ValidatedTransaction struct {
	TransactionDraft
}

// AuthSession is a per-message authenticated identity. It lives for the
// duration of one pipeline run and is never cached across messages.
type AuthSession struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// LedgerRecord is the backend's persisted representation of a submitted
// transaction. Opaque beyond the assigned ID and the echoed fields.
type LedgerRecord struct {
	ID          string          `json:"id"`
	Type        int             `json:"type"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
}

// TypeLabel returns the pt-BR label for a transaction type.
func TypeLabel(t int) string {
	if t == TypeIncome {
		return "Receita"
	}
	return "Despesa"
}
