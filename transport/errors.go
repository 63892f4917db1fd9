package transport

import (
	"fmt"
	"net/http"

	"github.com/goliatone/go-bunq/core"
	goerrors "github.com/goliatone/go-errors"
)

// Failures that happen before a request leaves the process or after a
// response arrived. Network failures in between are typed by
// core.ClassifyTransportError instead.

func misconfiguredError(reason string) error {
	return goerrors.New("transport: "+reason, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal).
		WithMetadata(map[string]any{"adapter": KindREST})
}

func invalidRequestError(source error, reason string, metadata map[string]any) error {
	fields := map[string]any{"adapter": KindREST}
	for key, value := range metadata {
		fields[key] = value
	}
	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, goerrors.CategoryBadInput, "transport: "+reason)
	} else {
		err = goerrors.New("transport: "+reason, goerrors.CategoryBadInput)
	}
	return err.
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput).
		WithMetadata(fields)
}

// oversizedResponseError reports a bunq response larger than the adapter
// accepts. The body is dropped, so the caller cannot decode it.
func oversizedResponseError(statusCode int, limit int64) error {
	return goerrors.New(fmt.Sprintf("transport: response body exceeds limit of %d bytes", limit), goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(core.ErrorInvalidResponse).
		WithMetadata(map[string]any{
			"adapter":          KindREST,
			"status_code":      statusCode,
			"response_limit_b": limit,
		})
}
