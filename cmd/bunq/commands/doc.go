// Package commands implements the bunq command line: a status view of the
// user's accounts and cards, a polling watch loop, transfers between own
// accounts and relinking a card to another account.
package commands
