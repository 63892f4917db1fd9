package core

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type AccountKind string

const (
	AccountKindBank    AccountKind = "MonetaryAccountBank"
	AccountKindJoint   AccountKind = "MonetaryAccountJoint"
	AccountKindLight   AccountKind = "MonetaryAccountLight"
	AccountKindSavings AccountKind = "MonetaryAccountSavings"
)

type CardKind string

const (
	CardKindDebit  CardKind = "CardDebit"
	CardKindCredit CardKind = "CardCredit"
)

const (
	StatusActive   = "ACTIVE"
	PinTypePrimary = "PRIMARY"
)

type Amount struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

// Pointer is a bunq alias: an IBAN, email or phone number identifying an
// account holder.
type Pointer struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

type LabelMonetaryAccount struct {
	IBAN        string `json:"iban,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// Account is the typed view of an upstream monetary account record. Raw keeps
// the record as received so callers can read fields this view does not model.
type Account struct {
	ID          int64
	Kind        AccountKind
	Description string
	Balance     Amount
	Currency    string
	Status      string
	Alias       []Pointer
	Raw         map[string]any
}

func (a Account) IDString() string { return strconv.FormatInt(a.ID, 10) }

func (a *Account) UnmarshalJSON(data []byte) error {
	var fields struct {
		ID          int64     `json:"id"`
		Description string    `json:"description"`
		Balance     Amount    `json:"balance"`
		Currency    string    `json:"currency"`
		Status      string    `json:"status"`
		Alias       []Pointer `json:"alias"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	raw, err := decodeRaw(data)
	if err != nil {
		return err
	}
	*a = Account{
		ID:          fields.ID,
		Kind:        a.Kind,
		Description: fields.Description,
		Balance:     fields.Balance,
		Currency:    fields.Currency,
		Status:      fields.Status,
		Alias:       fields.Alias,
		Raw:         raw,
	}
	return nil
}

func (a Account) MarshalJSON() ([]byte, error) {
	if a.Raw != nil {
		return json.Marshal(a.Raw)
	}
	return json.Marshal(map[string]any{
		"id":          a.ID,
		"description": a.Description,
		"balance":     a.Balance,
		"currency":    a.Currency,
		"status":      a.Status,
		"alias":       a.Alias,
	})
}

type PinAssignment struct {
	Type              string
	Status            string
	MonetaryAccountID int64
	Raw               map[string]any
}

func (p *PinAssignment) UnmarshalJSON(data []byte) error {
	var fields struct {
		Type              string `json:"type"`
		Status            string `json:"status"`
		MonetaryAccountID int64  `json:"monetary_account_id"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	raw, err := decodeRaw(data)
	if err != nil {
		return err
	}
	*p = PinAssignment{
		Type:              fields.Type,
		Status:            fields.Status,
		MonetaryAccountID: fields.MonetaryAccountID,
		Raw:               raw,
	}
	return nil
}

func (p PinAssignment) MarshalJSON() ([]byte, error) {
	if p.Raw != nil {
		return json.Marshal(p.Raw)
	}
	return json.Marshal(map[string]any{
		"type":                p.Type,
		"status":              p.Status,
		"monetary_account_id": p.MonetaryAccountID,
	})
}

type Card struct {
	ID                int64
	Kind              CardKind
	ProductType       string
	ExpiryDate        string
	Status            string
	CardLimit         Amount
	CardLimitATM      Amount
	PinCodeAssignment []PinAssignment
	Raw               map[string]any
}

func (c Card) IDString() string { return strconv.FormatInt(c.ID, 10) }

// PrimaryAccountID returns the account linked through the active PRIMARY pin
// assignment.
func (c Card) PrimaryAccountID() (int64, bool) {
	for _, pin := range c.PinCodeAssignment {
		if strings.EqualFold(pin.Type, PinTypePrimary) && strings.EqualFold(pin.Status, StatusActive) {
			return pin.MonetaryAccountID, true
		}
	}
	return 0, false
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var fields struct {
		ID                int64           `json:"id"`
		ProductType       string          `json:"product_type"`
		ExpiryDate        string          `json:"expiry_date"`
		Status            string          `json:"status"`
		CardLimit         Amount          `json:"card_limit"`
		CardLimitATM      Amount          `json:"card_limit_atm"`
		PinCodeAssignment []PinAssignment `json:"pin_code_assignment"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	raw, err := decodeRaw(data)
	if err != nil {
		return err
	}
	*c = Card{
		ID:                fields.ID,
		Kind:              c.Kind,
		ProductType:       fields.ProductType,
		ExpiryDate:        fields.ExpiryDate,
		Status:            fields.Status,
		CardLimit:         fields.CardLimit,
		CardLimitATM:      fields.CardLimitATM,
		PinCodeAssignment: fields.PinCodeAssignment,
		Raw:               raw,
	}
	return nil
}

func (c Card) MarshalJSON() ([]byte, error) {
	if c.Raw != nil {
		return json.Marshal(c.Raw)
	}
	return json.Marshal(map[string]any{
		"id":                  c.ID,
		"product_type":        c.ProductType,
		"expiry_date":         c.ExpiryDate,
		"status":              c.Status,
		"card_limit":          c.CardLimit,
		"card_limit_atm":      c.CardLimitATM,
		"pin_code_assignment": c.PinCodeAssignment,
	})
}

type Transaction struct {
	ID                int64
	Created           string
	Type              string
	Description       string
	Amount            Amount
	CounterpartyAlias *LabelMonetaryAccount
	Raw               map[string]any
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	var fields struct {
		ID                int64                 `json:"id"`
		Created           string                `json:"created"`
		Type              string                `json:"type"`
		Description       string                `json:"description"`
		Amount            Amount                `json:"amount"`
		CounterpartyAlias *LabelMonetaryAccount `json:"counterparty_alias"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	raw, err := decodeRaw(data)
	if err != nil {
		return err
	}
	*t = Transaction{
		ID:                fields.ID,
		Created:           fields.Created,
		Type:              fields.Type,
		Description:       fields.Description,
		Amount:            fields.Amount,
		CounterpartyAlias: fields.CounterpartyAlias,
		Raw:               raw,
	}
	return nil
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	if t.Raw != nil {
		return json.Marshal(t.Raw)
	}
	out := map[string]any{
		"id":          t.ID,
		"created":     t.Created,
		"type":        t.Type,
		"description": t.Description,
		"amount":      t.Amount,
	}
	if t.CounterpartyAlias != nil {
		out["counterparty_alias"] = t.CounterpartyAlias
	}
	return json.Marshal(out)
}

// CounterpartyName is the display name of the other party, empty when
// upstream omitted it.
func (t Transaction) CounterpartyName() string {
	if t.CounterpartyAlias == nil {
		return ""
	}
	return t.CounterpartyAlias.DisplayName
}

func decodeRaw(data []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	raw := map[string]any{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func cloneRaw(source map[string]any) map[string]any {
	if source == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(source))
	for key, value := range source {
		out[key] = value
	}
	return out
}
