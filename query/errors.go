package query

import (
	"net/http"

	"github.com/goliatone/go-bunq/core"
	goerrors "github.com/goliatone/go-errors"
)

func missingReaderError(messageType string) error {
	return goerrors.New("query: "+messageType+" has no bunq reader", goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal).
		WithMetadata(map[string]any{"message_type": messageType})
}

func invalidMessageError(messageType, field, reason string) error {
	return goerrors.NewValidation("query: invalid "+messageType+" message", goerrors.FieldError{
		Field:   field,
		Message: reason,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput).
		WithSeverity(goerrors.SeverityError).
		WithMetadata(map[string]any{"message_type": messageType})
}

// notLoadedError means the account has not been part of a refresh yet, which
// is different from an account without payments.
func notLoadedError(accountID string) error {
	return goerrors.New("query: payments of account "+accountID+" are not loaded yet", goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(core.ErrorBadInput).
		WithMetadata(map[string]any{
			"message_type": TypeAccountTransactions,
			"account_id":   accountID,
		})
}
