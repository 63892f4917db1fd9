package core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-bunq/security"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/shopspring/decimal"
)

// Client talks to the bunq API on behalf of a single user and keeps the
// resulting Status snapshot. It is not safe for concurrent use.
type Client struct {
	config           Config
	status           *Status
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorMapper      ErrorMapper
	transport        TransportAdapter
	transportFactory TransportFactory
	ownsTransport    bool
	tokenSource      TokenSource
	keyGenerator     security.KeyGenerator
	rateLimitPolicy  RateLimitPolicy
	requestID        string
	keys             *security.KeyPair
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	builder := defaultClientBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("bunq", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("bunq"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.keyGenerator == nil {
		builder.keyGenerator = security.GenerateKeyPair
	}
	if builder.status == nil {
		builder.status = NewStatus()
	}
	if builder.status.AccountTransactions == nil {
		builder.status.AccountTransactions = map[string][]Transaction{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig = finalConfig.normalized()

	if finalConfig.Secret == "" && builder.tokenSource == nil {
		return nil, mapBuildError(builder.errorMapper, &ValidationError{
			Field:  "secret",
			Reason: "is required when no token source is configured",
		})
	}
	if builder.transport == nil && builder.transportFactory == nil {
		return nil, fmt.Errorf("core: a transport or transport factory is required")
	}

	return &Client{
		config:           finalConfig,
		status:           builder.status,
		logger:           logger,
		loggerProvider:   provider,
		metricsRecorder:  builder.metricsRecorder,
		errorMapper:      builder.errorMapper,
		transport:        builder.transport,
		transportFactory: builder.transportFactory,
		tokenSource:      builder.tokenSource,
		keyGenerator:     builder.keyGenerator,
		rateLimitPolicy:  builder.rateLimitPolicy,
		requestID:        NewRequestID(),
	}, nil
}

func (c *Client) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.config
}

func (c *Client) Status() *Status {
	if c == nil {
		return nil
	}
	return c.status
}

func (c *Client) RequestID() string {
	if c == nil {
		return ""
	}
	return c.requestID
}

func (c *Client) Logger() Logger {
	if c == nil {
		return glog.Nop()
	}
	return c.logger
}

// MapError converts a client error with the configured error mapper.
func (c *Client) MapError(err error) error {
	if c == nil {
		return err
	}
	return mapBuildError(c.errorMapper, err)
}

// Close releases the transport when the client built it. A transport passed
// in with WithTransport belongs to the caller and is left open.
func (c *Client) Close() error {
	if c == nil || !c.ownsTransport || c.transport == nil {
		return nil
	}
	transport := c.transport
	c.transport = nil
	c.ownsTransport = false
	if closer, ok := transport.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("core: close transport: %w", err)
		}
	}
	c.logger.Debug("bunq transport closed", "kind", transport.Kind())
	return nil
}

func (c *Client) transportFor() TransportAdapter {
	if c.transport == nil {
		c.transport = c.transportFactory(c.config.RequestTimeout)
		c.ownsTransport = true
		c.logger.Debug("bunq transport created", "kind", c.transport.Kind())
	}
	return c.transport
}

// Update refreshes the snapshot: accounts, then the payments of every
// account in order, then cards. The first failure stops the sequence and is
// returned together with the partially refreshed Status.
func (c *Client) Update(ctx context.Context) (status *Status, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"run_id": newRunID()}
	defer func() {
		c.observeOperation(ctx, startedAt, "update", err, fields)
	}()

	if err := c.ensureSession(ctx); err != nil {
		return c.status, err
	}
	if err := c.withSessionRetry(ctx, "accounts", c.refreshAccounts); err != nil {
		return c.status, err
	}

	accounts := append([]Account(nil), c.status.Accounts...)
	for _, account := range accounts {
		accountID := account.IDString()
		err := c.withSessionRetry(ctx, "transactions", func(ctx context.Context) error {
			return c.refreshTransactions(ctx, accountID)
		})
		if err != nil {
			fields["account_id"] = accountID
			return c.status, err
		}
	}
	c.status.pruneTransactions()

	if err := c.withSessionRetry(ctx, "cards", c.refreshCards); err != nil {
		return c.status, err
	}

	fields["accounts"] = len(c.status.Accounts)
	fields["cards"] = len(c.status.Cards)
	return c.status, nil
}

// UpdateAccountTransactions refreshes and returns the payments of a single
// account.
func (c *Client) UpdateAccountTransactions(ctx context.Context, accountID string) (transactions []Transaction, err error) {
	startedAt := time.Now().UTC()
	accountID = normalizeID(accountID)
	fields := map[string]any{"run_id": newRunID(), "account_id": accountID}
	defer func() {
		c.observeOperation(ctx, startedAt, "update_account_transactions", err, fields)
	}()

	if accountID == "" {
		return nil, &ValidationError{Field: "account_id", Reason: "is required"}
	}
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	err = c.withSessionRetry(ctx, "transactions", func(ctx context.Context) error {
		return c.refreshTransactions(ctx, accountID)
	})
	if err != nil {
		return nil, err
	}
	transactions, _ = c.status.Transactions(accountID)
	fields["transactions"] = len(transactions)
	return transactions, nil
}

// withSessionRetry runs fetch once more after a fresh bootstrap when the
// first attempt was rejected with 401.
func (c *Client) withSessionRetry(ctx context.Context, operation string, fetch func(context.Context) error) error {
	err := fetch(ctx)
	if err == nil || !IsUnauthorized(err) {
		return err
	}
	c.logger.Debug("bunq session rejected, bootstrapping again", "operation", operation)
	c.resetSession()
	if err := c.ensureSession(ctx); err != nil {
		return err
	}
	return fetch(ctx)
}

func (c *Client) refreshAccounts(ctx context.Context) error {
	path := "/v1/user/" + c.status.Session.UserID + "/monetary-account"
	res, err := c.do(ctx, apiCall{
		Operation: "accounts",
		Method:    http.MethodGet,
		Path:      path,
		Token:     c.status.Session.SessionToken,
	})
	if err != nil {
		return err
	}
	if res.NoContent() {
		return nil
	}
	items, err := DecodeEnvelope(path, res.Body)
	if err != nil {
		return err
	}
	accounts, err := ActiveAccounts(path, items)
	if err != nil {
		return err
	}
	c.status.replaceAccounts(accounts)
	return nil
}

func (c *Client) refreshTransactions(ctx context.Context, accountID string) error {
	path := "/v1/user/" + c.status.Session.UserID + "/monetary-account/" + accountID + "/payment"
	res, err := c.do(ctx, apiCall{
		Operation: "transactions",
		Method:    http.MethodGet,
		Path:      path,
		Token:     c.status.Session.SessionToken,
	})
	if err != nil {
		return err
	}
	if res.NoContent() {
		return nil
	}
	items, err := DecodeEnvelope(path, res.Body)
	if err != nil {
		return err
	}
	transactions, err := Payments(path, items)
	if err != nil {
		return err
	}
	c.status.replaceTransactions(accountID, transactions)
	return nil
}

func (c *Client) refreshCards(ctx context.Context) error {
	path := "/v1/user/" + c.status.Session.UserID + "/card"
	res, err := c.do(ctx, apiCall{
		Operation: "cards",
		Method:    http.MethodGet,
		Path:      path,
		Token:     c.status.Session.SessionToken,
	})
	if err != nil {
		return err
	}
	if res.NoContent() {
		return nil
	}
	items, err := DecodeEnvelope(path, res.Body)
	if err != nil {
		return err
	}
	cards, err := ActiveCards(path, items)
	if err != nil {
		return err
	}
	c.status.replaceCards(cards)
	return nil
}

type paymentBody struct {
	Amount            paymentAmount `json:"amount"`
	CounterpartyAlias Pointer       `json:"counterparty_alias"`
	Description       string        `json:"description"`
}

type paymentAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Transfer pays amount from one of the user's accounts to another account in
// the snapshot. The recipient is checked locally before any request is sent.
func (c *Client) Transfer(
	ctx context.Context,
	fromAccountID string,
	toAccountID string,
	amount decimal.Decimal,
	message string,
) (result any, err error) {
	startedAt := time.Now().UTC()
	fromAccountID = normalizeID(fromAccountID)
	toAccountID = normalizeID(toAccountID)
	fields := map[string]any{
		"run_id":        newRunID(),
		"account_id":    fromAccountID,
		"to_account_id": toAccountID,
		"amount":        amount.StringFixed(2),
	}
	defer func() {
		c.observeOperation(ctx, startedAt, "transfer", err, fields)
	}()

	if fromAccountID == "" {
		return nil, &ValidationError{Field: "from_account_id", Reason: "is required"}
	}
	recipient, ok := c.status.Account(toAccountID)
	if !ok {
		return nil, &ValidationError{Field: "to_account_id", Value: toAccountID, Reason: "is not a known account"}
	}
	if len(recipient.Alias) == 0 {
		return nil, &ValidationError{Field: "to_account_id", Value: toAccountID, Reason: "has no alias"}
	}
	currency := strings.TrimSpace(recipient.Currency)
	if currency == "" {
		return nil, &ValidationError{Field: "to_account_id", Value: toAccountID, Reason: "has no currency"}
	}
	if !amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Value: amount.String(), Reason: "must be positive"}
	}
	fields["currency"] = currency

	if err := c.ensureSigningSession(ctx); err != nil {
		return nil, err
	}
	res, err := c.do(ctx, apiCall{
		Operation: "payment",
		Method:    http.MethodPost,
		Path:      "/v1/user/" + c.status.Session.UserID + "/monetary-account/" + fromAccountID + "/payment",
		Token:     c.status.Session.SessionToken,
		Sign:      true,
		Keys:      c.keys,
		Body: paymentBody{
			Amount: paymentAmount{
				Value:    amount.StringFixed(2),
				Currency: currency,
			},
			CounterpartyAlias: recipient.Alias[0],
			Description:       message,
		},
	})
	if err != nil {
		return nil, err
	}
	return res.Payload()
}

// LinkAccountToCard points the card's PRIMARY pin assignment at accountID.
// bunq replaces the whole assignment list, so every entry is sent back with
// its server-managed fields removed.
func (c *Client) LinkAccountToCard(ctx context.Context, cardID string, accountID string) (result any, err error) {
	startedAt := time.Now().UTC()
	cardID = normalizeID(cardID)
	accountID = normalizeID(accountID)
	fields := map[string]any{
		"run_id":     newRunID(),
		"card_id":    cardID,
		"account_id": accountID,
	}
	defer func() {
		c.observeOperation(ctx, startedAt, "link_account_to_card", err, fields)
	}()

	card, ok := c.status.Card(cardID)
	if !ok {
		return nil, &ValidationError{Field: "card_id", Value: cardID, Reason: "is not a known card"}
	}
	monetaryAccountID, parseErr := strconv.ParseInt(accountID, 10, 64)
	if parseErr != nil {
		return nil, &ValidationError{Field: "account_id", Value: accountID, Reason: "must be a numeric account id"}
	}

	if err := c.ensureSigningSession(ctx); err != nil {
		return nil, err
	}
	res, err := c.do(ctx, apiCall{
		Operation: "card_update",
		Method:    http.MethodPut,
		Path:      "/v1/user/" + c.status.Session.UserID + "/card/" + cardID,
		Token:     c.status.Session.SessionToken,
		Sign:      true,
		Keys:      c.keys,
		Body: map[string]any{
			"pin_code_assignment": BuildPinAssignments(card, monetaryAccountID),
		},
	})
	if err != nil {
		return nil, err
	}
	return res.Payload()
}

var serverManagedPinFields = []string{"id", "created", "updated", "status"}

// BuildPinAssignments returns the full pin assignment list of card with the
// PRIMARY entry moved to accountID.
func BuildPinAssignments(card Card, accountID int64) []map[string]any {
	pins := make([]map[string]any, 0, len(card.PinCodeAssignment))
	for _, pin := range card.PinCodeAssignment {
		entry := cloneRaw(pin.Raw)
		if len(pin.Raw) == 0 {
			entry["type"] = pin.Type
			entry["monetary_account_id"] = pin.MonetaryAccountID
		}
		for _, field := range serverManagedPinFields {
			delete(entry, field)
		}
		if strings.EqualFold(pin.Type, PinTypePrimary) {
			entry["monetary_account_id"] = accountID
		}
		pins = append(pins, entry)
	}
	return pins
}
