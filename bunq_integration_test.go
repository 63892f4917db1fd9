package bunq_test

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	bunq "github.com/goliatone/go-bunq"
	"github.com/goliatone/go-bunq/adapters/gocommand"
	bunqcommand "github.com/goliatone/go-bunq/command"
	"github.com/goliatone/go-bunq/core"
	"github.com/goliatone/go-bunq/devkit"
	bunqquery "github.com/goliatone/go-bunq/query"
	"github.com/goliatone/go-bunq/security"
	"github.com/goliatone/go-bunq/transport"
	gocmd "github.com/goliatone/go-command"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/shopspring/decimal"
)

const (
	fakeUserID    = 7
	fakeAPISecret = "api-key"
)

// fakeBunq emulates the bunq endpoints the client uses. It checks the auth
// token on every call and the body signature on every signed call, so a
// request that would be rejected upstream fails here too.
type fakeBunq struct {
	mu              sync.Mutex
	clientKey       *rsa.PublicKey
	sessions        int
	sessionToken    string
	expireNextFetch bool
	requestIDs      map[string]struct{}
	payments        []map[string]any
	cardUpdates     []map[string]any
	unverified      []string
}

func newFakeBunq(t *testing.T) (*fakeBunq, *httptest.Server) {
	t.Helper()
	fake := &fakeBunq{requestIDs: map[string]struct{}{}}
	server := httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(server.Close)
	return fake, server
}

func (f *fakeBunq) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.requestIDs[r.Header.Get(core.HeaderRequestID)] = struct{}{}
	auth := r.Header.Get(core.HeaderAuthentication)

	route := r.Method + " " + r.URL.Path
	switch {
	case route == "POST /v1/installation":
		var in struct {
			ClientPublicKey string `json:"client_public_key"`
		}
		if err := json.Unmarshal(body, &in); err != nil {
			f.fail(w, http.StatusBadRequest, "bad installation body")
			return
		}
		key, err := security.ParsePublicKeyPEM(in.ClientPublicKey)
		if err != nil {
			f.fail(w, http.StatusBadRequest, "bad public key")
			return
		}
		f.clientKey = key
		f.write(w, devkit.InstallationEnvelope(devkit.InstallationToken))

	case route == "POST /v1/device-server":
		var in map[string]any
		_ = json.Unmarshal(body, &in)
		if auth != devkit.InstallationToken || in["secret"] != fakeAPISecret {
			f.fail(w, http.StatusUnauthorized, "device registration rejected")
			return
		}
		f.write(w, devkit.DeviceServerEnvelope(3))

	case route == "POST /v1/session-server":
		if auth != devkit.InstallationToken || !f.verify(r, body) {
			f.fail(w, http.StatusUnauthorized, "session rejected")
			return
		}
		f.sessions++
		f.sessionToken = fmt.Sprintf("session-%d", f.sessions)
		f.write(w, devkit.SessionServerEnvelope("UserApiKey", fakeUserID, f.sessionToken))

	case auth == "" || auth != f.sessionToken:
		f.fail(w, http.StatusUnauthorized, "Insufficient authorisation.")

	case route == "GET "+devkit.AccountsPath(fakeUserID):
		if f.expireNextFetch {
			f.expireNextFetch = false
			f.sessionToken = ""
			f.fail(w, http.StatusUnauthorized, "Insufficient authorisation.")
			return
		}
		f.write(w, devkit.AccountsEnvelope(
			devkit.AccountFixture{ID: 101, Description: "Main", Balance: "250.75", IBAN: "NL01BUNQ0000000101"},
			devkit.AccountFixture{ID: 102, Description: "Closed", Status: "CANCELLED"},
			devkit.AccountFixture{ID: 103, Kind: core.AccountKindSavings, Description: "Savings", Balance: "1000.00", IBAN: "NL01BUNQ0000000103"},
		))

	case route == "GET "+devkit.PaymentsPath(fakeUserID, 101):
		f.write(w, devkit.PaymentsEnvelope(devkit.PaymentFixture{ID: 9001, Description: "Groceries", Amount: "-42.10", Counterparty: "Market"}))

	case route == "GET "+devkit.PaymentsPath(fakeUserID, 103):
		f.write(w, devkit.PaymentsEnvelope())

	case route == "GET "+devkit.CardsPath(fakeUserID):
		f.write(w, devkit.CardsEnvelope(devkit.CardFixture{ID: 501, Pins: []devkit.PinFixture{
			{Type: core.PinTypePrimary, AccountID: 101},
			{Type: "SECONDARY", AccountID: 103},
		}}))

	case route == "POST "+devkit.PaymentsPath(fakeUserID, 101):
		if !f.verify(r, body) {
			f.fail(w, http.StatusBadRequest, "signature mismatch")
			return
		}
		var payment map[string]any
		_ = json.Unmarshal(body, &payment)
		f.payments = append(f.payments, payment)
		f.write(w, devkit.Envelope(map[string]any{"Id": map[string]any{"id": 77}}))

	case route == "PUT "+devkit.CardPath(fakeUserID, 501):
		if !f.verify(r, body) {
			f.fail(w, http.StatusBadRequest, "signature mismatch")
			return
		}
		var update map[string]any
		_ = json.Unmarshal(body, &update)
		f.cardUpdates = append(f.cardUpdates, update)
		f.write(w, devkit.Envelope(map[string]any{"Id": map[string]any{"id": 501}}))

	default:
		f.fail(w, http.StatusNotFound, "unknown route "+route)
	}
}

func (f *fakeBunq) verify(r *http.Request, body []byte) bool {
	if f.clientKey == nil {
		f.unverified = append(f.unverified, r.URL.Path)
		return false
	}
	if err := security.Verify(f.clientKey, string(body), r.Header.Get(core.HeaderSignature)); err != nil {
		f.unverified = append(f.unverified, r.URL.Path)
		return false
	}
	return true
}

func (f *fakeBunq) write(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func (f *fakeBunq) fail(w http.ResponseWriter, status int, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"Error":[{"error_description":%q}]}`, description)
}

func (f *fakeBunq) snapshot() (sessions int, requestIDs int, unverified []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions, len(f.requestIDs), append([]string(nil), f.unverified...)
}

func newIntegrationClient(t *testing.T, serverURL string) *bunq.Client {
	t.Helper()
	cfg := bunq.DefaultConfig()
	cfg.APIURL = serverURL
	cfg.Secret = fakeAPISecret
	cfg.RequestTimeout = 5 * time.Second
	client, err := bunq.NewClient(cfg, bunq.WithLogger(glog.Nop()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIntegration_BootstrapAndUpdate(t *testing.T) {
	fake, server := newFakeBunq(t)
	client := newIntegrationClient(t, server.URL)

	status, err := client.Update(context.Background())
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if status.Session.UserID != "7" || status.Session.SessionToken != "session-1" {
		t.Fatalf("expected session for user 7, got %+v", status.Session)
	}
	if len(status.Accounts) != 2 {
		t.Fatalf("expected only ACTIVE accounts, got %d", len(status.Accounts))
	}
	for _, account := range status.Accounts {
		if account.Status != core.StatusActive {
			t.Fatalf("unexpected inactive account %d", account.ID)
		}
		if _, ok := status.Transactions(account.IDString()); !ok {
			t.Fatalf("expected transactions loaded for account %d", account.ID)
		}
	}
	if _, ok := status.Transactions("102"); ok {
		t.Fatalf("expected no transactions for the closed account")
	}
	if len(status.Cards) != 1 {
		t.Fatalf("expected one active card, got %d", len(status.Cards))
	}

	sessions, requestIDs, unverified := fake.snapshot()
	if sessions != 1 {
		t.Fatalf("expected one session, got %d", sessions)
	}
	if requestIDs != 1 {
		t.Fatalf("expected a single request id across calls, got %d", requestIDs)
	}
	if len(unverified) != 0 {
		t.Fatalf("expected every signed call to verify, failed: %v", unverified)
	}

	if _, err := client.Update(context.Background()); err != nil {
		t.Fatalf("second update: %v", err)
	}
	if sessions, _, _ := fake.snapshot(); sessions != 1 {
		t.Fatalf("expected the session to be reused, got %d sessions", sessions)
	}
}

func TestIntegration_ExpiredSessionIsRenewedOnce(t *testing.T) {
	fake, server := newFakeBunq(t)
	client := newIntegrationClient(t, server.URL)

	if _, err := client.Update(context.Background()); err != nil {
		t.Fatalf("first update: %v", err)
	}
	fake.mu.Lock()
	fake.expireNextFetch = true
	fake.mu.Unlock()

	status, err := client.Update(context.Background())
	if err != nil {
		t.Fatalf("update after expiry: %v", err)
	}
	if status.Session.SessionToken != "session-2" {
		t.Fatalf("expected renewed session token, got %q", status.Session.SessionToken)
	}
	if len(status.Accounts) != 2 {
		t.Fatalf("expected accounts after retry, got %d", len(status.Accounts))
	}
}

func TestIntegration_TransferAndLinkCardAreSigned(t *testing.T) {
	fake, server := newFakeBunq(t)
	client := newIntegrationClient(t, server.URL)
	if _, err := client.Update(context.Background()); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := client.Transfer(context.Background(), "101", "103", decimal.RequireFromString("12.5"), "to savings"); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := client.LinkAccountToCard(context.Background(), "501", "103"); err != nil {
		t.Fatalf("link card: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.unverified) != 0 {
		t.Fatalf("expected signed mutations to verify, failed: %v", fake.unverified)
	}
	if len(fake.payments) != 1 {
		t.Fatalf("expected one payment, got %d", len(fake.payments))
	}
	amount, _ := fake.payments[0]["amount"].(map[string]any)
	if amount["value"] != "12.50" || amount["currency"] != "EUR" {
		t.Fatalf("unexpected payment amount: %#v", amount)
	}
	alias, _ := fake.payments[0]["counterparty_alias"].(map[string]any)
	if alias["value"] != "NL01BUNQ0000000103" {
		t.Fatalf("expected recipient IBAN alias, got %#v", alias)
	}

	if len(fake.cardUpdates) != 1 {
		t.Fatalf("expected one card update, got %d", len(fake.cardUpdates))
	}
	pins, _ := fake.cardUpdates[0]["pin_code_assignment"].([]any)
	if len(pins) != 2 {
		t.Fatalf("expected the full pin list, got %#v", pins)
	}
	for _, raw := range pins {
		pin := raw.(map[string]any)
		for _, field := range []string{"id", "created", "updated", "status"} {
			if _, ok := pin[field]; ok {
				t.Fatalf("expected %s to be stripped from %#v", field, pin)
			}
		}
		if pin["type"] == core.PinTypePrimary && pin["monetary_account_id"] != float64(103) {
			t.Fatalf("expected PRIMARY pin on account 103, got %#v", pin)
		}
	}
}

func TestIntegration_FacadeDispatch(t *testing.T) {
	fake, server := newFakeBunq(t)
	client := newIntegrationClient(t, server.URL)

	facade, err := bunq.NewFacade(client)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	subscriptions, err := facade.Register(gocommand.NewRegistryAdapter(nil))
	if err != nil {
		t.Fatalf("register facade: %v", err)
	}
	defer subscriptions.Unsubscribe()

	status, err := gocommand.Query[bunqquery.RefreshStatusMessage, *core.Status](context.Background(), bunqquery.RefreshStatusMessage{})
	if err != nil {
		t.Fatalf("dispatch refresh query: %v", err)
	}
	if len(status.Accounts) != 2 {
		t.Fatalf("expected refreshed accounts, got %d", len(status.Accounts))
	}

	collector := gocmd.NewResult[bunqcommand.TransferResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := gocommand.Dispatch(ctx, bunqcommand.TransferMessage{
		FromAccountID: "101",
		ToAccountID:   "103",
		Amount:        decimal.NewFromInt(3),
		Description:   "dispatched",
	}); err != nil {
		t.Fatalf("dispatch transfer: %v", err)
	}
	if _, ok := collector.Load(); !ok {
		t.Fatalf("expected transfer result to be collected")
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.payments) != 1 || fake.payments[0]["description"] != "dispatched" {
		t.Fatalf("expected dispatched payment, got %#v", fake.payments)
	}
}

func TestIntegration_UnknownRecipientMakesNoCalls(t *testing.T) {
	calls := 0
	counting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "unexpected", http.StatusInternalServerError)
	}))
	defer counting.Close()

	client := newIntegrationClient(t, counting.URL)
	_, err := client.Transfer(context.Background(), "101", "999", decimal.NewFromInt(1), "nope")
	if !bunq.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(bunq.ErrorMessage(err), "to_account_id") {
		t.Fatalf("expected message to name the field, got %q", bunq.ErrorMessage(err))
	}
	if calls != 0 {
		t.Fatalf("expected no network calls, got %d", calls)
	}
}

func TestIntegration_OversizedResponseIsNotAConnectionError(t *testing.T) {
	_, server := newFakeBunq(t)
	adapter := transport.NewRESTAdapter(server.Client())
	adapter.MaxResponseBodyBytes = 32

	cfg := bunq.DefaultConfig()
	cfg.APIURL = server.URL
	cfg.Secret = fakeAPISecret
	cfg.RequestTimeout = 5 * time.Second
	client, err := bunq.NewClient(cfg, bunq.WithLogger(glog.Nop()), bunq.WithTransport(adapter))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	_, err = client.Update(context.Background())
	if err == nil {
		t.Fatalf("expected oversized response to fail")
	}
	var connErr *bunq.ConnectionError
	if errors.As(err, &connErr) {
		t.Fatalf("expected oversized response not to be a connection error, got %v", err)
	}
	if mapped := bunq.MapError(err); mapped.TextCode != core.ErrorInvalidResponse {
		t.Fatalf("expected %q, got %q", core.ErrorInvalidResponse, mapped.TextCode)
	}
}
