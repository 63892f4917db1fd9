package bunq

import (
	"fmt"

	"github.com/goliatone/go-bunq/adapters/gocommand"
	bunqcommand "github.com/goliatone/go-bunq/command"
	"github.com/goliatone/go-bunq/core"
	bunqquery "github.com/goliatone/go-bunq/query"
)

type CommandQueryService interface {
	bunqcommand.MutatingService
	bunqquery.StatusRefresher
	bunqquery.TransactionReader
}

type Commands struct {
	Transfer *bunqcommand.TransferCommand
	LinkCard *bunqcommand.LinkCardCommand
}

type Queries struct {
	RefreshStatus       *bunqquery.RefreshStatusQuery
	AccountTransactions *bunqquery.AccountTransactionsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("bunq: command/query service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			Transfer: bunqcommand.NewTransferCommand(service),
			LinkCard: bunqcommand.NewLinkCardCommand(service),
		},
		queries: Queries{
			RefreshStatus:       bunqquery.NewRefreshStatusQuery(service),
			AccountTransactions: bunqquery.NewAccountTransactionsQuery(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// Register adds every command and query to the registry and subscribes them
// to the dispatcher. On failure the subscriptions made so far are released.
func (f *Facade) Register(adapter *gocommand.RegistryAdapter) (gocommand.Subscriptions, error) {
	if f == nil {
		return nil, fmt.Errorf("bunq: facade is nil")
	}
	subscriptions := gocommand.Subscriptions{}
	fail := func(err error) (gocommand.Subscriptions, error) {
		subscriptions.Unsubscribe()
		return nil, err
	}

	transfer, err := gocommand.RegisterAndSubscribe[bunqcommand.TransferMessage](adapter, f.commands.Transfer)
	if err != nil {
		return fail(err)
	}
	subscriptions = append(subscriptions, transfer)

	link, err := gocommand.RegisterAndSubscribe[bunqcommand.LinkCardMessage](adapter, f.commands.LinkCard)
	if err != nil {
		return fail(err)
	}
	subscriptions = append(subscriptions, link)

	refresh, err := gocommand.RegisterAndSubscribeQuery[bunqquery.RefreshStatusMessage, *core.Status](adapter, f.queries.RefreshStatus)
	if err != nil {
		return fail(err)
	}
	subscriptions = append(subscriptions, refresh)

	transactions, err := gocommand.RegisterAndSubscribeQuery[bunqquery.AccountTransactionsMessage, []core.Transaction](adapter, f.queries.AccountTransactions)
	if err != nil {
		return fail(err)
	}
	subscriptions = append(subscriptions, transactions)

	return subscriptions, nil
}
