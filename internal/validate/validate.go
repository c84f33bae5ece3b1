// Package validate enforces the structural invariants a transaction draft
// must satisfy before it may be submitted to the ledger.
package validate

import (
	"strings"
	"time"

	"biabot/internal/domain"
)

// Validate checks the draft's fields in a fixed order and reports the first
// missing or invalid one by name.
func Validate(draft domain.TransactionDraft) (domain.ValidatedTransaction, error) {
	var tx domain.ValidatedTransaction

	if strings.TrimSpace(draft.Description) == "" {
		return tx, &domain.ValidationError{Field: "description"}
	}
	if strings.TrimSpace(draft.Category) == "" {
		return tx, &domain.ValidationError{Field: "category"}
	}
	if !draft.Value.IsPositive() {
		return tx, &domain.ValidationError{Field: "value"}
	}

	switch draft.Type {
	case domain.TypeExpense:
		if draft.ExpenseType == nil {
			return tx, &domain.ValidationError{Field: "expenseType"}
		}
		switch *draft.ExpenseType {
		case domain.ExpenseFixed, domain.ExpenseVariable, domain.ExpenseOccasional:
			// valid
		default:
			return tx, &domain.ValidationError{Field: "expenseType"}
		}
	case domain.TypeIncome:
		if draft.ExpenseType != nil {
			return tx, &domain.ValidationError{Field: "expenseType"}
		}
	default:
		return tx, &domain.ValidationError{Field: "type"}
	}

	if _, err := time.Parse("2006-01-02", draft.Date); err != nil {
		return tx, &domain.ValidationError{Field: "date"}
	}

	tx.TransactionDraft = draft
	return tx, nil
}
