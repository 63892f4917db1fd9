package query

import (
	"github.com/goliatone/go-bunq/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[RefreshStatusMessage, *core.Status]             = (*RefreshStatusQuery)(nil)
	_ gocmd.Querier[AccountTransactionsMessage, []core.Transaction] = (*AccountTransactionsQuery)(nil)

	_ StatusRefresher   = (*core.Client)(nil)
	_ TransactionReader = (*core.Client)(nil)
)
