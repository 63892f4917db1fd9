// Package bunq is a client for the bunq banking API. It establishes and
// renews the signed API session, keeps a snapshot of the user's accounts,
// payments and cards, and performs transfers and card relinking.
package bunq

import (
	"github.com/goliatone/go-bunq/core"
	"github.com/goliatone/go-bunq/transport"
)

type Config = core.Config

type Environment = core.Environment

type Option = core.Option

type Client = core.Client

type Status = core.Status
type Session = core.Session
type Account = core.Account
type Card = core.Card
type Transaction = core.Transaction
type Amount = core.Amount
type Pointer = core.Pointer

type TransportAdapter = core.TransportAdapter
type TransportFactory = core.TransportFactory
type TokenSource = core.TokenSource
type RateLimitPolicy = core.RateLimitPolicy
type MetricsRecorder = core.MetricsRecorder

type APIError = core.APIError
type RateLimitError = core.RateLimitError
type ConnectionError = core.ConnectionError
type ConnectionTimeoutError = core.ConnectionTimeoutError
type ValidationError = core.ValidationError
type ResponseError = core.ResponseError

const (
	EnvironmentSandbox    = core.EnvironmentSandbox
	EnvironmentProduction = core.EnvironmentProduction
)

var (
	WithLogger           = core.WithLogger
	WithLoggerProvider   = core.WithLoggerProvider
	WithMetricsRecorder  = core.WithMetricsRecorder
	WithErrorMapper      = core.WithErrorMapper
	WithConfigProvider   = core.WithConfigProvider
	WithOptionsResolver  = core.WithOptionsResolver
	WithTransport        = core.WithTransport
	WithTransportFactory = core.WithTransportFactory
	WithTokenSource      = core.WithTokenSource
	WithKeyGenerator     = core.WithKeyGenerator
	WithRateLimitPolicy  = core.WithRateLimitPolicy
	WithStatus           = core.WithStatus
)

var (
	ErrorMessage  = core.ErrorMessage
	MapError      = core.MapError
	IsValidation  = core.IsValidation
	IsRateLimited = core.IsRateLimited
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewClient builds a client that talks to bunq over the REST transport. The
// client creates and owns that transport unless WithTransport or
// WithTransportFactory supplies another one.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	base := []Option{core.WithTransportFactory(transport.NewFactory())}
	return core.NewClient(cfg, append(base, opts...)...)
}
