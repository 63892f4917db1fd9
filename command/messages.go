package command

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	TypeTransfer = "bunq.command.transfer"
	TypeLinkCard = "bunq.command.card.link"
)

// TransferMessage moves Amount from one of the user's accounts to another,
// in the recipient account's currency.
type TransferMessage struct {
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
	Description   string
}

func (TransferMessage) Type() string { return TypeTransfer }

func (m TransferMessage) Validate() error {
	if strings.TrimSpace(m.FromAccountID) == "" {
		return invalidMessageError(TypeTransfer, "from_account_id", "from account id is required")
	}
	if strings.TrimSpace(m.ToAccountID) == "" {
		return invalidMessageError(TypeTransfer, "to_account_id", "to account id is required")
	}
	if !m.Amount.IsPositive() {
		return invalidMessageError(TypeTransfer, "amount", "amount must be greater than zero")
	}
	return nil
}

type LinkCardMessage struct {
	CardID    string
	AccountID string
}

func (LinkCardMessage) Type() string { return TypeLinkCard }

func (m LinkCardMessage) Validate() error {
	if strings.TrimSpace(m.CardID) == "" {
		return invalidMessageError(TypeLinkCard, "card_id", "card id is required")
	}
	if strings.TrimSpace(m.AccountID) == "" {
		return invalidMessageError(TypeLinkCard, "account_id", "account id is required")
	}
	return nil
}

type TransferResult struct {
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
	Response      any
}

type LinkCardResult struct {
	CardID    string
	AccountID string
	Response  any
}
