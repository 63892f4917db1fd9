package devkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/goliatone/go-bunq/core"
)

const (
	InstallationToken = "installation-token"
	SessionToken      = "session-token"
)

type AccountFixture struct {
	ID          int64
	Kind        core.AccountKind
	Description string
	Status      string
	Balance     string
	Currency    string
	IBAN        string
}

type PaymentFixture struct {
	ID           int64
	Created      string
	Description  string
	Amount       string
	Currency     string
	Counterparty string
}

type PinFixture struct {
	Type      string
	Status    string
	AccountID int64
}

type CardFixture struct {
	ID     int64
	Kind   core.CardKind
	Status string
	Pins   []PinFixture
}

// JSON scripts a JSON response with the given status and body.
func JSON(status int, body string) TransportScript {
	return TransportScript{Response: core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(body),
	}}
}

func NoContent() TransportScript {
	return TransportScript{Response: core.TransportResponse{
		StatusCode: http.StatusNoContent,
		Headers:    map[string]string{},
	}}
}

func Failure(err error) TransportScript {
	return TransportScript{Err: err}
}

// Unauthorized is the body bunq returns once a session token has expired.
func Unauthorized() TransportScript {
	return JSON(http.StatusUnauthorized, `{"Error":[{"error_description":"Insufficient authorisation.","error_description_translated":"Insufficient authorisation."}]}`)
}

func RateLimited(retryAfterSeconds int) TransportScript {
	script := JSON(http.StatusTooManyRequests, `{"Error":[{"error_description":"Too many requests."}]}`)
	script.Response.Headers["Retry-After"] = strconv.Itoa(retryAfterSeconds)
	return script
}

func Envelope(items ...map[string]any) string {
	if items == nil {
		items = []map[string]any{}
	}
	data, err := json.Marshal(map[string]any{"Response": items})
	if err != nil {
		panic(fmt.Sprintf("devkit: encode envelope: %v", err))
	}
	return string(data)
}

func InstallationEnvelope(token string) string {
	return Envelope(
		map[string]any{"Id": map[string]any{"id": 1}},
		map[string]any{"Token": map[string]any{"id": 2, "token": token}},
		map[string]any{"ServerPublicKey": map[string]any{"server_public_key": "-----BEGIN PUBLIC KEY-----"}},
	)
}

func DeviceServerEnvelope(id int64) string {
	return Envelope(map[string]any{"Id": map[string]any{"id": id}})
}

func SessionServerEnvelope(userTag string, userID int64, token string) string {
	return Envelope(
		map[string]any{"Id": map[string]any{"id": 10}},
		map[string]any{"Token": map[string]any{"id": 11, "token": token}},
		map[string]any{userTag: map[string]any{"id": userID, "display_name": "Fixture User"}},
	)
}

func AccountsEnvelope(accounts ...AccountFixture) string {
	items := make([]map[string]any, 0, len(accounts))
	for _, account := range accounts {
		kind := account.Kind
		if kind == "" {
			kind = core.AccountKindBank
		}
		status := account.Status
		if status == "" {
			status = core.StatusActive
		}
		currency := account.Currency
		if currency == "" {
			currency = "EUR"
		}
		balance := account.Balance
		if balance == "" {
			balance = "0.00"
		}
		alias := []map[string]any{}
		if account.IBAN != "" {
			alias = append(alias, map[string]any{"type": "IBAN", "value": account.IBAN, "name": account.Description})
		}
		items = append(items, map[string]any{string(kind): map[string]any{
			"id":          account.ID,
			"description": account.Description,
			"status":      status,
			"currency":    currency,
			"balance":     map[string]any{"value": balance, "currency": currency},
			"alias":       alias,
		}})
	}
	return Envelope(items...)
}

func PaymentsEnvelope(payments ...PaymentFixture) string {
	items := make([]map[string]any, 0, len(payments))
	for _, payment := range payments {
		currency := payment.Currency
		if currency == "" {
			currency = "EUR"
		}
		items = append(items, map[string]any{"Payment": map[string]any{
			"id":          payment.ID,
			"created":     payment.Created,
			"type":        "BUNQ",
			"description": payment.Description,
			"amount":      map[string]any{"value": payment.Amount, "currency": currency},
			"counterparty_alias": map[string]any{
				"display_name": payment.Counterparty,
			},
		}})
	}
	return Envelope(items...)
}

func CardsEnvelope(cards ...CardFixture) string {
	items := make([]map[string]any, 0, len(cards))
	for _, card := range cards {
		kind := card.Kind
		if kind == "" {
			kind = core.CardKindDebit
		}
		status := card.Status
		if status == "" {
			status = core.StatusActive
		}
		pins := make([]map[string]any, 0, len(card.Pins))
		for index, pin := range card.Pins {
			pinStatus := pin.Status
			if pinStatus == "" {
				pinStatus = core.StatusActive
			}
			pins = append(pins, map[string]any{
				"id":                  index + 1,
				"created":             "2024-01-01 00:00:00.000000",
				"updated":             "2024-01-01 00:00:00.000000",
				"type":                pin.Type,
				"status":              pinStatus,
				"monetary_account_id": pin.AccountID,
			})
		}
		items = append(items, map[string]any{string(kind): map[string]any{
			"id":                  card.ID,
			"status":              status,
			"product_type":        "MASTERCARD_DEBIT",
			"expiry_date":         "2030-12-31",
			"card_limit":          map[string]any{"value": "500.00", "currency": "EUR"},
			"card_limit_atm":      map[string]any{"value": "250.00", "currency": "EUR"},
			"pin_code_assignment": pins,
		}})
	}
	return Envelope(items...)
}

func AccountsPath(userID int64) string {
	return fmt.Sprintf("/v1/user/%d/monetary-account", userID)
}

func PaymentsPath(userID, accountID int64) string {
	return fmt.Sprintf("/v1/user/%d/monetary-account/%d/payment", userID, accountID)
}

func CardsPath(userID int64) string {
	return fmt.Sprintf("/v1/user/%d/card", userID)
}

func CardPath(userID, cardID int64) string {
	return fmt.Sprintf("/v1/user/%d/card/%d", userID, cardID)
}

// Bootstrap scripts the installation, device-server and session-server
// exchange for userID. Each session token answers one session-server call, so
// passing two tokens scripts a re-bootstrap after a 401.
func (f *FakeTransport) Bootstrap(userID int64, sessionTokens ...string) *FakeTransport {
	if len(sessionTokens) == 0 {
		sessionTokens = []string{SessionToken}
	}
	f.On(http.MethodPost, "/v1/installation", JSON(http.StatusOK, InstallationEnvelope(InstallationToken)))
	f.On(http.MethodPost, "/v1/device-server", JSON(http.StatusOK, DeviceServerEnvelope(3)))
	for _, token := range sessionTokens {
		f.On(http.MethodPost, "/v1/session-server", JSON(http.StatusOK, SessionServerEnvelope("UserApiKey", userID, token)))
	}
	return f
}

// Household scripts a small but complete account set for userID: a main
// account with two payments, a savings account with none, a closed account
// and one debit card whose PRIMARY pin points at the main account.
func (f *FakeTransport) Household(userID int64) *FakeTransport {
	f.On(http.MethodGet, AccountsPath(userID), JSON(http.StatusOK, AccountsEnvelope(
		AccountFixture{ID: 101, Description: "Main", Balance: "250.75", IBAN: "NL01BUNQ0000000101"},
		AccountFixture{ID: 102, Description: "Closed", Status: "CANCELLED"},
		AccountFixture{ID: 103, Kind: core.AccountKindSavings, Description: "Savings", Balance: "1000.00", IBAN: "NL01BUNQ0000000103"},
	)))
	f.On(http.MethodGet, PaymentsPath(userID, 101), JSON(http.StatusOK, PaymentsEnvelope(
		PaymentFixture{ID: 9001, Created: "2024-03-01 09:00:00.000000", Description: "Groceries", Amount: "-42.10", Counterparty: "Market"},
		PaymentFixture{ID: 9002, Created: "2024-03-02 12:30:00.000000", Description: "Salary", Amount: "2500.00", Counterparty: "Employer"},
	)))
	f.On(http.MethodGet, PaymentsPath(userID, 103), JSON(http.StatusOK, PaymentsEnvelope()))
	f.On(http.MethodGet, CardsPath(userID), JSON(http.StatusOK, CardsEnvelope(
		CardFixture{ID: 501, Pins: []PinFixture{
			{Type: core.PinTypePrimary, AccountID: 101},
			{Type: "SECONDARY", AccountID: 103},
		}},
	)))
	return f
}
