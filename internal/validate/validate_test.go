package validate

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"biabot/internal/domain"
)

func validExpense() domain.TransactionDraft {
	et := domain.ExpenseVariable
	return domain.TransactionDraft{
		Type:        domain.TypeExpense,
		Value:       decimal.NewFromInt(100),
		Description: "Teste",
		Category:    "Alimentação",
		ExpenseType: &et,
		Date:        "2026-08-28",
	}
}

func failingField(t *testing.T, draft domain.TransactionDraft) string {
	t.Helper()
	_, err := Validate(draft)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	return vErr.Field
}

func TestValidate_ValidExpense(t *testing.T) {
	tx, err := Validate(validExpense())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if tx.Category != "Alimentação" {
		t.Fatalf("validated transaction must carry the draft fields, got %+v", tx)
	}
}

func TestValidate_ValidIncomeWithoutExpenseType(t *testing.T) {
	draft := validExpense()
	draft.Type = domain.TypeIncome
	draft.ExpenseType = nil
	draft.Category = "Salário"

	if _, err := Validate(draft); err != nil {
		t.Fatalf("income without expenseType must validate: %v", err)
	}
}

func TestValidate_MissingDescription(t *testing.T) {
	draft := validExpense()
	draft.Description = "  "
	if field := failingField(t, draft); field != "description" {
		t.Fatalf("expected description, got %q", field)
	}
}

func TestValidate_MissingCategory(t *testing.T) {
	draft := validExpense()
	draft.Category = ""
	if field := failingField(t, draft); field != "category" {
		t.Fatalf("expected category, got %q", field)
	}
}

func TestValidate_NonPositiveValue(t *testing.T) {
	draft := validExpense()
	draft.Value = decimal.Zero
	if field := failingField(t, draft); field != "value" {
		t.Fatalf("expected value, got %q", field)
	}
}

func TestValidate_ExpenseMissingExpenseType(t *testing.T) {
	draft := validExpense()
	draft.ExpenseType = nil
	if field := failingField(t, draft); field != "expenseType" {
		t.Fatalf("expected expenseType, got %q", field)
	}
}

func TestValidate_ExpenseTypeOutOfRange(t *testing.T) {
	draft := validExpense()
	bad := 7
	draft.ExpenseType = &bad
	if field := failingField(t, draft); field != "expenseType" {
		t.Fatalf("expected expenseType, got %q", field)
	}
}

func TestValidate_IncomeWithExpenseType(t *testing.T) {
	draft := validExpense()
	draft.Type = domain.TypeIncome
	if field := failingField(t, draft); field != "expenseType" {
		t.Fatalf("expected expenseType, got %q", field)
	}
}

func TestValidate_BadDate(t *testing.T) {
	draft := validExpense()
	draft.Date = "28/08/2026"
	if field := failingField(t, draft); field != "date" {
		t.Fatalf("expected date, got %q", field)
	}
}

func TestValidate_OrderReportsFirstFailure(t *testing.T) {
	draft := validExpense()
	draft.Description = ""
	draft.Category = ""
	draft.Value = decimal.Zero
	if field := failingField(t, draft); field != "description" {
		t.Fatalf("description is checked first, got %q", field)
	}
}
