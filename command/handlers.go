package command

import (
	"context"
	"strings"

	gocmd "github.com/goliatone/go-command"
	"github.com/shopspring/decimal"
)

// MutatingService is the write side of a bunq client. *core.Client
// satisfies it.
type MutatingService interface {
	Transfer(ctx context.Context, fromAccountID, toAccountID string, amount decimal.Decimal, message string) (any, error)
	LinkAccountToCard(ctx context.Context, cardID string, accountID string) (any, error)
}

type TransferCommand struct {
	service MutatingService
}

func NewTransferCommand(service MutatingService) *TransferCommand {
	return &TransferCommand{service: service}
}

func (c *TransferCommand) Execute(ctx context.Context, msg TransferMessage) error {
	if c == nil || c.service == nil {
		return missingServiceError(TypeTransfer)
	}
	from := strings.TrimSpace(msg.FromAccountID)
	to := strings.TrimSpace(msg.ToAccountID)
	out, err := c.service.Transfer(ctx, from, to, msg.Amount, msg.Description)
	if err != nil {
		return err
	}
	storeResult(ctx, TransferResult{
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        msg.Amount,
		Response:      out,
	})
	return nil
}

type LinkCardCommand struct {
	service MutatingService
}

func NewLinkCardCommand(service MutatingService) *LinkCardCommand {
	return &LinkCardCommand{service: service}
}

func (c *LinkCardCommand) Execute(ctx context.Context, msg LinkCardMessage) error {
	if c == nil || c.service == nil {
		return missingServiceError(TypeLinkCard)
	}
	cardID := strings.TrimSpace(msg.CardID)
	accountID := strings.TrimSpace(msg.AccountID)
	out, err := c.service.LinkAccountToCard(ctx, cardID, accountID)
	if err != nil {
		return err
	}
	storeResult(ctx, LinkCardResult{CardID: cardID, AccountID: accountID, Response: out})
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
