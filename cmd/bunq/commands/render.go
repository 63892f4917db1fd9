package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/goliatone/go-bunq/core"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	creditStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	debitStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
)

func renderStatus(w io.Writer, status *core.Status) {
	if status == nil {
		fmt.Fprintln(w, mutedStyle.Render("no data loaded"))
		return
	}

	fmt.Fprintln(w, headingStyle.Render("Accounts"))
	if len(status.Accounts) == 0 {
		fmt.Fprintln(w, "  "+mutedStyle.Render("none"))
	}
	for _, account := range status.Accounts {
		fmt.Fprintf(w, "  %s  %-20s %14s  %s\n",
			idStyle.Render(account.IDString()),
			account.Description,
			formatAmount(account.Balance),
			mutedStyle.Render(iban(account)),
		)
		transactions, ok := status.Transactions(account.IDString())
		if !ok {
			continue
		}
		for _, transaction := range transactions {
			renderTransaction(w, transaction)
		}
	}

	fmt.Fprintln(w, headingStyle.Render("Cards"))
	if len(status.Cards) == 0 {
		fmt.Fprintln(w, "  "+mutedStyle.Render("none"))
	}
	for _, card := range status.Cards {
		linked := "unlinked"
		if accountID, ok := card.PrimaryAccountID(); ok {
			linked = fmt.Sprintf("primary %d", accountID)
		}
		fmt.Fprintf(w, "  %s  %-18s %-10s %s\n",
			idStyle.Render(card.IDString()),
			card.ProductType,
			card.Status,
			linked,
		)
	}
}

func renderTransaction(w io.Writer, transaction core.Transaction) {
	amount := formatAmount(transaction.Amount)
	if transaction.Amount.Value.IsNegative() {
		amount = debitStyle.Render(amount)
	} else {
		amount = creditStyle.Render(amount)
	}
	counterparty := ""
	if transaction.CounterpartyAlias != nil {
		counterparty = transaction.CounterpartyAlias.DisplayName
	}
	fmt.Fprintf(w, "      %s  %-20s %s  %s\n",
		mutedStyle.Render(shortDate(transaction.Created)),
		transaction.Description,
		amount,
		counterparty,
	)
}

func renderDegraded(w io.Writer, err error) {
	fmt.Fprintln(w, warnStyle.Render("degraded: "+core.ErrorMessage(err)+" (showing last known data)"))
}

func formatAmount(amount core.Amount) string {
	return strings.TrimSpace(amount.Value.StringFixed(2) + " " + amount.Currency)
}

func iban(account core.Account) string {
	for _, alias := range account.Alias {
		if strings.EqualFold(alias.Type, "IBAN") {
			return alias.Value
		}
	}
	return ""
}

func shortDate(created string) string {
	if len(created) >= 10 {
		return created[:10]
	}
	return created
}
