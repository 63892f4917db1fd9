package core

import "strings"

// Session is the authenticated context returned by session-server. Both
// fields empty means no session.
type Session struct {
	UserID       string
	SessionToken string
}

func (s Session) Authenticated() bool {
	return strings.TrimSpace(s.UserID) != "" && strings.TrimSpace(s.SessionToken) != ""
}

// Status is the in-memory snapshot a Client keeps up to date. It carries no
// lock: a Client must not run Update concurrently with readers of Status.
type Status struct {
	Session             Session
	Accounts            []Account
	Cards               []Card
	AccountTransactions map[string][]Transaction
}

func NewStatus() *Status {
	return &Status{AccountTransactions: map[string][]Transaction{}}
}

func (s *Status) Account(id string) (Account, bool) {
	if s == nil {
		return Account{}, false
	}
	id = normalizeID(id)
	for _, account := range s.Accounts {
		if account.IDString() == id {
			return account, true
		}
	}
	return Account{}, false
}

func (s *Status) Card(id string) (Card, bool) {
	if s == nil {
		return Card{}, false
	}
	id = normalizeID(id)
	for _, card := range s.Cards {
		if card.IDString() == id {
			return card, true
		}
	}
	return Card{}, false
}

// Transactions reports the payments loaded for an account. The second value
// is false when the account has not been loaded yet.
func (s *Status) Transactions(accountID string) ([]Transaction, bool) {
	if s == nil || s.AccountTransactions == nil {
		return nil, false
	}
	transactions, ok := s.AccountTransactions[normalizeID(accountID)]
	return transactions, ok
}

func (s *Status) setSession(userID, token string) {
	s.Session = Session{UserID: userID, SessionToken: token}
}

func (s *Status) clearSession() {
	s.Session = Session{}
}

func (s *Status) replaceAccounts(accounts []Account) {
	s.Accounts = accounts
}

func (s *Status) replaceCards(cards []Card) {
	s.Cards = cards
}

func (s *Status) replaceTransactions(accountID string, transactions []Transaction) {
	if s.AccountTransactions == nil {
		s.AccountTransactions = map[string][]Transaction{}
	}
	s.AccountTransactions[accountID] = transactions
}

// pruneTransactions drops transaction lists of accounts that are no longer
// part of the snapshot.
func (s *Status) pruneTransactions() {
	if len(s.AccountTransactions) == 0 {
		return
	}
	known := make(map[string]struct{}, len(s.Accounts))
	for _, account := range s.Accounts {
		known[account.IDString()] = struct{}{}
	}
	for key := range s.AccountTransactions {
		if _, ok := known[key]; !ok {
			delete(s.AccountTransactions, key)
		}
	}
}
