// Package notify composes user-facing replies and delivers them over
// WhatsApp (Twilio or Meta Cloud API).
package notify

import (
	"fmt"
	"strings"
	"time"

	"biabot/internal/domain"
)

// Canonical reply bodies for the expected, user-facing outcomes.
const (
	// LinkingInstructions is sent when the sender has no linked account,
	// and also when the ledger reports the session stale mid-flight.
	LinkingInstructions = "Seu número ainda não está vinculado a uma conta. " +
		"Abra o aplicativo, acesse Configurações > WhatsApp e vincule este número para registrar transações por aqui."

	// RephraseGuidance is sent when the message could not be interpreted.
	RephraseGuidance = "Não consegui entender sua mensagem. 🤔 " +
		"Tente algo como: \"Gastei 50 no mercado\" ou \"Recebi 2000 de salário\"."

	// RetryLater is the best-effort diagnostic for internal failures.
	RetryLater = "Tivemos um problema ao registrar sua transação. 😕 " +
		"Tente novamente em alguns minutos."
)

func expenseTypeLabel(et int) string {
	switch et {
	case domain.ExpenseFixed:
		return "Fixa"
	case domain.ExpenseVariable:
		return "Variável"
	case domain.ExpenseOccasional:
		return "Eventual"
	}
	return ""
}

// Confirmation renders the success reply for a persisted transaction:
// type label, currency value, category (with the expense subtype for
// expenses), description and localized date.
func Confirmation(tx domain.ValidatedTransaction, userName string) string {
	var b strings.Builder

	greeting := ""
	if userName != "" {
		greeting = ", " + firstName(userName)
	}
	fmt.Fprintf(&b, "✅ %s registrada%s!\n", domain.TypeLabel(tx.Type), greeting)
	fmt.Fprintf(&b, "💰 R$ %s\n", tx.Value.StringFixed(2))

	category := tx.Category
	if tx.Type == domain.TypeExpense && tx.ExpenseType != nil {
		if label := expenseTypeLabel(*tx.ExpenseType); label != "" {
			category = fmt.Sprintf("%s (%s)", category, label)
		}
	}
	fmt.Fprintf(&b, "📂 %s\n", category)

	if tx.Description != "" {
		fmt.Fprintf(&b, "📝 %s\n", tx.Description)
	}
	fmt.Fprintf(&b, "📅 %s", localDate(tx.Date))

	return b.String()
}

// localDate renders an ISO date the way Brazilian users read it.
func localDate(iso string) string {
	d, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return d.Format("02/01/2006")
}

func firstName(full string) string {
	if i := strings.IndexByte(full, ' '); i > 0 {
		return full[:i]
	}
	return full
}
