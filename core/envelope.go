package core

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

const (
	tagToken                      = "Token"
	tagUserAPIKey                 = "UserApiKey"
	tagUserPerson                 = "UserPerson"
	tagUserCompany                = "UserCompany"
	tagUserPaymentServiceProvider = "UserPaymentServiceProvider"
	tagPayment                    = "Payment"
)

var accountTags = map[string]AccountKind{
	string(AccountKindBank):    AccountKindBank,
	string(AccountKindJoint):   AccountKindJoint,
	string(AccountKindLight):   AccountKindLight,
	string(AccountKindSavings): AccountKindSavings,
}

var cardTags = map[string]CardKind{
	string(CardKindDebit):  CardKindDebit,
	string(CardKindCredit): CardKindCredit,
}

// session-server answers with UserApiKey for API key sessions; older sessions
// carry the concrete user type instead.
var userTags = []string{
	tagUserAPIKey,
	tagUserPerson,
	tagUserCompany,
	tagUserPaymentServiceProvider,
}

// EnvelopeItem is one entry of a bunq "Response" array: a single type tag
// wrapping the record.
type EnvelopeItem struct {
	Tag     string
	Payload json.RawMessage
}

// DecodeEnvelope splits a success body into its tagged items, preserving the
// upstream order. A body without a Response array yields no items.
func DecodeEnvelope(endpoint string, body []byte) ([]EnvelopeItem, error) {
	var envelope struct {
		Response []map[string]json.RawMessage `json:"Response"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &ResponseError{Endpoint: endpoint, Reason: "malformed envelope: " + err.Error()}
	}
	items := make([]EnvelopeItem, 0, len(envelope.Response))
	for _, entry := range envelope.Response {
		tags := make([]string, 0, len(entry))
		for tag := range entry {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			items = append(items, EnvelopeItem{Tag: tag, Payload: entry[tag]})
		}
	}
	return items, nil
}

// ActiveAccounts keeps the monetary account items whose status is ACTIVE.
func ActiveAccounts(endpoint string, items []EnvelopeItem) ([]Account, error) {
	accounts := make([]Account, 0, len(items))
	for _, item := range items {
		kind, ok := accountTags[item.Tag]
		if !ok {
			continue
		}
		status, err := itemStatus(endpoint, item)
		if err != nil {
			return nil, err
		}
		if status != StatusActive {
			continue
		}
		account := Account{Kind: kind}
		if err := json.Unmarshal(item.Payload, &account); err != nil {
			return nil, &ResponseError{Endpoint: endpoint, Reason: item.Tag + ": " + err.Error()}
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// ActiveCards keeps debit and credit card items whose status is ACTIVE.
func ActiveCards(endpoint string, items []EnvelopeItem) ([]Card, error) {
	cards := make([]Card, 0, len(items))
	for _, item := range items {
		kind, ok := cardTags[item.Tag]
		if !ok {
			continue
		}
		status, err := itemStatus(endpoint, item)
		if err != nil {
			return nil, err
		}
		if status != StatusActive {
			continue
		}
		card := Card{Kind: kind}
		if err := json.Unmarshal(item.Payload, &card); err != nil {
			return nil, &ResponseError{Endpoint: endpoint, Reason: item.Tag + ": " + err.Error()}
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// itemStatus reads only the status field, so records that are filtered out
// are never decoded in full.
func itemStatus(endpoint string, item EnvelopeItem) (string, error) {
	var head struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(item.Payload, &head); err != nil {
		return "", &ResponseError{Endpoint: endpoint, Reason: item.Tag + ": " + err.Error()}
	}
	return head.Status, nil
}

func Payments(endpoint string, items []EnvelopeItem) ([]Transaction, error) {
	transactions := make([]Transaction, 0, len(items))
	for _, item := range items {
		if item.Tag != tagPayment {
			continue
		}
		var transaction Transaction
		if err := json.Unmarshal(item.Payload, &transaction); err != nil {
			return nil, &ResponseError{Endpoint: endpoint, Reason: item.Tag + ": " + err.Error()}
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

// FindToken returns the token of the first Token item.
func FindToken(items []EnvelopeItem) string {
	for _, item := range items {
		if item.Tag != tagToken {
			continue
		}
		var token struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(item.Payload, &token); err != nil {
			continue
		}
		if value := strings.TrimSpace(token.Token); value != "" {
			return value
		}
	}
	return ""
}

// FindUserID returns the id of the session user, trying the UserApiKey tag
// before the legacy user tags.
func FindUserID(items []EnvelopeItem) string {
	for _, tag := range userTags {
		for _, item := range items {
			if item.Tag != tag {
				continue
			}
			var user struct {
				ID json.Number `json:"id"`
			}
			if err := json.Unmarshal(item.Payload, &user); err != nil {
				continue
			}
			if id := normalizeID(user.ID.String()); id != "" {
				return id
			}
		}
	}
	return ""
}

func normalizeID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return strconv.FormatInt(parsed, 10)
	}
	return raw
}
