package query

import "strings"

const (
	TypeRefreshStatus       = "bunq.query.status.refresh"
	TypeAccountTransactions = "bunq.query.account.transactions"
)

// RefreshStatusMessage asks for a full refresh of the snapshot before it is
// returned.
type RefreshStatusMessage struct{}

func (RefreshStatusMessage) Type() string { return TypeRefreshStatus }

func (RefreshStatusMessage) Validate() error { return nil }

// AccountTransactionsMessage reads the payments of one account. With Refresh
// set they are fetched again first, otherwise the snapshot is returned as is.
type AccountTransactionsMessage struct {
	AccountID string
	Refresh   bool
}

func (AccountTransactionsMessage) Type() string { return TypeAccountTransactions }

func (m AccountTransactionsMessage) Validate() error {
	if strings.TrimSpace(m.AccountID) == "" {
		return invalidMessageError(TypeAccountTransactions, "account_id", "account id is required")
	}
	return nil
}
