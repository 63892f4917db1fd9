package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-bunq/core"
)

type StatusRefresher interface {
	Update(ctx context.Context) (*core.Status, error)
}

type TransactionReader interface {
	Status() *core.Status
	UpdateAccountTransactions(ctx context.Context, accountID string) ([]core.Transaction, error)
}

type RefreshStatusQuery struct {
	refresher StatusRefresher
}

func NewRefreshStatusQuery(refresher StatusRefresher) *RefreshStatusQuery {
	return &RefreshStatusQuery{refresher: refresher}
}

// Query returns the refreshed snapshot. On failure the partially refreshed
// snapshot is returned alongside the error.
func (q *RefreshStatusQuery) Query(ctx context.Context, _ RefreshStatusMessage) (*core.Status, error) {
	if q == nil || q.refresher == nil {
		return nil, missingReaderError(TypeRefreshStatus)
	}
	return q.refresher.Update(ctx)
}

type AccountTransactionsQuery struct {
	reader TransactionReader
}

func NewAccountTransactionsQuery(reader TransactionReader) *AccountTransactionsQuery {
	return &AccountTransactionsQuery{reader: reader}
}

func (q *AccountTransactionsQuery) Query(
	ctx context.Context,
	msg AccountTransactionsMessage,
) ([]core.Transaction, error) {
	if q == nil || q.reader == nil {
		return nil, missingReaderError(TypeAccountTransactions)
	}
	accountID := strings.TrimSpace(msg.AccountID)
	if msg.Refresh {
		return q.reader.UpdateAccountTransactions(ctx, accountID)
	}
	transactions, ok := q.reader.Status().Transactions(accountID)
	if !ok {
		return nil, notLoadedError(accountID)
	}
	return append([]core.Transaction(nil), transactions...), nil
}
