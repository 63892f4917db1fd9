package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-bunq/core"
	"github.com/goliatone/go-bunq/devkit"
	gocmd "github.com/goliatone/go-command"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/shopspring/decimal"
)

func TestTransferCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	called := false
	svc := stubMutatingService{
		transferFn: func(_ context.Context, from, to string, amount decimal.Decimal, message string) (any, error) {
			called = true
			if from != "101" || to != "103" {
				t.Fatalf("expected trimmed account ids, got %q -> %q", from, to)
			}
			if !amount.Equal(decimal.RequireFromString("12.5")) || message != "rent" {
				t.Fatalf("unexpected transfer payload: %s %q", amount, message)
			}
			return map[string]any{"id": 42}, nil
		},
	}

	cmd := NewTransferCommand(svc)
	collector := gocmd.NewResult[TransferResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, TransferMessage{
		FromAccountID: " 101 ",
		ToAccountID:   "103",
		Amount:        decimal.RequireFromString("12.5"),
		Description:   "rent",
	})
	if err != nil {
		t.Fatalf("execute transfer: %v", err)
	}
	if !called {
		t.Fatalf("expected transfer service invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.FromAccountID != "101" || result.ToAccountID != "103" {
		t.Fatalf("unexpected result: %#v", result)
	}
	if response, _ := result.Response.(map[string]any); response["id"] != 42 {
		t.Fatalf("expected service response in result, got %#v", result.Response)
	}
}

func TestLinkCardCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	svc := stubMutatingService{
		linkFn: func(_ context.Context, cardID string, accountID string) (any, error) {
			if cardID != "501" || accountID != "103" {
				t.Fatalf("unexpected link payload: %q %q", cardID, accountID)
			}
			return "ok", nil
		},
	}

	collector := gocmd.NewResult[LinkCardResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := NewLinkCardCommand(svc).Execute(ctx, LinkCardMessage{CardID: "501", AccountID: "103"}); err != nil {
		t.Fatalf("execute link card: %v", err)
	}
	result, ok := collector.Load()
	if !ok || result.Response != "ok" || result.CardID != "501" {
		t.Fatalf("unexpected link result: %#v (stored=%v)", result, ok)
	}
}

func TestCommands_PropagateServiceErrors(t *testing.T) {
	expected := &core.APIError{StatusCode: http.StatusBadRequest, Body: map[string]any{"message": "nope"}}
	svc := stubMutatingService{
		transferFn: func(context.Context, string, string, decimal.Decimal, string) (any, error) {
			return nil, expected
		},
		linkFn: func(context.Context, string, string) (any, error) {
			return nil, expected
		},
	}

	collector := gocmd.NewResult[TransferResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewTransferCommand(svc).Execute(ctx, TransferMessage{FromAccountID: "1", ToAccountID: "2", Amount: decimal.NewFromInt(1)})
	if !errors.Is(err, expected) {
		t.Fatalf("expected service error, got %v", err)
	}
	if _, ok := collector.Load(); ok {
		t.Fatalf("expected no result on failure")
	}

	err = NewLinkCardCommand(svc).Execute(context.Background(), LinkCardMessage{CardID: "1", AccountID: "2"})
	if !errors.Is(err, expected) {
		t.Fatalf("expected service error, got %v", err)
	}
}

func TestCommands_WorkWithoutResultCollector(t *testing.T) {
	svc := stubMutatingService{
		transferFn: func(context.Context, string, string, decimal.Decimal, string) (any, error) {
			return nil, nil
		},
	}
	if err := NewTransferCommand(svc).Execute(context.Background(), TransferMessage{
		FromAccountID: "1",
		ToAccountID:   "2",
		Amount:        decimal.NewFromInt(1),
	}); err != nil {
		t.Fatalf("execute transfer without collector: %v", err)
	}
}

func TestMessages_Validate(t *testing.T) {
	cases := []struct {
		name    string
		message interface{ Validate() error }
		wantErr bool
	}{
		{name: "transfer ok", message: TransferMessage{FromAccountID: "1", ToAccountID: "2", Amount: decimal.NewFromFloat(0.01)}},
		{name: "transfer missing from", message: TransferMessage{ToAccountID: "2", Amount: decimal.NewFromInt(1)}, wantErr: true},
		{name: "transfer missing to", message: TransferMessage{FromAccountID: "1", Amount: decimal.NewFromInt(1)}, wantErr: true},
		{name: "transfer zero amount", message: TransferMessage{FromAccountID: "1", ToAccountID: "2"}, wantErr: true},
		{name: "transfer negative amount", message: TransferMessage{FromAccountID: "1", ToAccountID: "2", Amount: decimal.NewFromInt(-5)}, wantErr: true},
		{name: "link ok", message: LinkCardMessage{CardID: "1", AccountID: "2"}},
		{name: "link missing card", message: LinkCardMessage{AccountID: "2"}, wantErr: true},
		{name: "link missing account", message: LinkCardMessage{CardID: "1", AccountID: "  "}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.message.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestTransferCommand_AgainstClient(t *testing.T) {
	adapter := devkit.NewFakeTransport("https://bunq.test").Bootstrap(7).Household(7).
		On(http.MethodPost, devkit.PaymentsPath(7, 101), devkit.JSON(http.StatusOK, `{"Response":[{"Id":{"id":77}}]}`))
	client := newDevkitClient(t, adapter)
	if _, err := client.Update(context.Background()); err != nil {
		t.Fatalf("update: %v", err)
	}

	collector := gocmd.NewResult[TransferResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewTransferCommand(client).Execute(ctx, TransferMessage{
		FromAccountID: "101",
		ToAccountID:   "103",
		Amount:        decimal.RequireFromString("5"),
		Description:   "savings",
	})
	if err != nil {
		t.Fatalf("execute transfer: %v", err)
	}

	payments := adapter.RequestsFor(http.MethodPost, devkit.PaymentsPath(7, 101))
	if len(payments) != 1 {
		t.Fatalf("expected one payment request, got %d", len(payments))
	}
	if payments[0].Headers[core.HeaderSignature] == "" {
		t.Fatalf("expected signed payment request")
	}
	result, _ := collector.Load()
	if result.Response == nil {
		t.Fatalf("expected decoded payment response")
	}
}

func TestLinkCardCommand_AgainstClientRejectsUnknownCard(t *testing.T) {
	adapter := devkit.NewFakeTransport("https://bunq.test").Bootstrap(7).Household(7)
	client := newDevkitClient(t, adapter)
	if _, err := client.Update(context.Background()); err != nil {
		t.Fatalf("update: %v", err)
	}
	before := len(adapter.Requests())

	err := NewLinkCardCommand(client).Execute(context.Background(), LinkCardMessage{CardID: "999", AccountID: "103"})
	if !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if after := len(adapter.Requests()); after != before {
		t.Fatalf("expected no network calls, got %d", after-before)
	}
}

func newDevkitClient(t *testing.T, adapter core.TransportAdapter) *core.Client {
	t.Helper()
	client, err := core.NewClient(core.Config{
		APIURL:         "https://bunq.test",
		Secret:         "api-key",
		RequestTimeout: time.Second,
	}, core.WithTransport(adapter), core.WithLogger(glog.Nop()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

type stubMutatingService struct {
	transferFn func(ctx context.Context, from, to string, amount decimal.Decimal, message string) (any, error)
	linkFn     func(ctx context.Context, cardID string, accountID string) (any, error)
}

func (s stubMutatingService) Transfer(ctx context.Context, from, to string, amount decimal.Decimal, message string) (any, error) {
	if s.transferFn == nil {
		return nil, fmt.Errorf("transfer not configured")
	}
	return s.transferFn(ctx, from, to, amount, message)
}

func (s stubMutatingService) LinkAccountToCard(ctx context.Context, cardID string, accountID string) (any, error) {
	if s.linkFn == nil {
		return nil, fmt.Errorf("link account to card not configured")
	}
	return s.linkFn(ctx, cardID, accountID)
}

var _ MutatingService = stubMutatingService{}
