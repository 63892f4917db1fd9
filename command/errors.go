package command

import (
	"net/http"

	"github.com/goliatone/go-bunq/core"
	goerrors "github.com/goliatone/go-errors"
)

// missingServiceError is returned by a handler built without a client.
func missingServiceError(messageType string) error {
	return goerrors.New("command: "+messageType+" has no bunq service", goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal).
		WithMetadata(map[string]any{"message_type": messageType})
}

// invalidMessageError rejects a message before any bunq call is made. Field
// names match the ones core.ValidationError uses for the same checks.
func invalidMessageError(messageType, field, reason string) error {
	return goerrors.NewValidation("command: invalid "+messageType+" message", goerrors.FieldError{
		Field:   field,
		Message: reason,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput).
		WithSeverity(goerrors.SeverityError).
		WithMetadata(map[string]any{"message_type": messageType})
}
