package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput          = "BUNQ_BAD_INPUT"
	ErrorConnectionTimeout = "BUNQ_CONNECTION_TIMEOUT"
	ErrorConnection        = "BUNQ_CONNECTION_ERROR"
	ErrorRateLimited       = "BUNQ_RATE_LIMITED"
	ErrorAPI               = "BUNQ_API_ERROR"
	ErrorInvalidResponse   = "BUNQ_INVALID_RESPONSE"
	ErrorInternal          = "BUNQ_INTERNAL_ERROR"
)

type ServiceErrorConverter interface {
	ToServiceError() *goerrors.Error
}

type ConnectionTimeoutError struct {
	Method  string
	URL     string
	Timeout time.Duration
	Cause   error
}

func (e *ConnectionTimeoutError) Error() string {
	if e == nil {
		return "core: timeout occurred while connecting to the bunq api"
	}
	msg := "core: timeout occurred while connecting to the bunq api"
	if e.Timeout > 0 {
		msg += fmt.Sprintf(" (timeout=%s)", e.Timeout)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConnectionTimeoutError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *ConnectionTimeoutError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryExternal).
		WithCode(http.StatusGatewayTimeout).
		WithTextCode(ErrorConnectionTimeout).
		WithMetadata(requestMetadata(e.Method, e.URL))
}

type ConnectionError struct {
	Method string
	URL    string
	Cause  error
}

func (e *ConnectionError) Error() string {
	msg := "core: error occurred while communicating with the bunq api"
	if e != nil && e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConnectionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *ConnectionError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorConnection).
		WithMetadata(requestMetadata(e.Method, e.URL))
}

// RateLimitError reports an upstream 429, or a call refused locally by a
// RateLimitPolicy while the bucket is still throttled.
type RateLimitError struct {
	Method     string
	URL        string
	RetryAfter time.Duration
	Local      bool
}

func (e *RateLimitError) Error() string {
	msg := "core: rate limit error has occurred with the bunq api"
	if e != nil && e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	return msg
}

func (e *RateLimitError) ToServiceError() *goerrors.Error {
	metadata := requestMetadata(e.Method, e.URL)
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	metadata["local"] = e.Local
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(ErrorRateLimited).
		WithMetadata(metadata)
}

// APIError is any non-429 4xx/5xx response. Body holds the decoded JSON error
// envelope, or {"message": <raw text>} when the body was not JSON.
type APIError struct {
	StatusCode int
	Body       map[string]any
}

func (e *APIError) Error() string {
	if e == nil {
		return "core: bunq api error"
	}
	return fmt.Sprintf("core: bunq api error (status=%d): %s", e.StatusCode, e.Message())
}

// Message extracts the human readable description: the first
// Error[].error_description entry, then a plain message, then the serialized
// body.
func (e *APIError) Message() string {
	if e == nil {
		return ""
	}
	if entries, ok := e.Body["Error"].([]any); ok {
		for _, entry := range entries {
			fields, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			if desc, ok := fields["error_description"].(string); ok && strings.TrimSpace(desc) != "" {
				return desc
			}
		}
	}
	if msg, ok := e.Body["message"].(string); ok && strings.TrimSpace(msg) != "" {
		return msg
	}
	raw, err := json.Marshal(e.Body)
	if err != nil {
		return fmt.Sprint(e.Body)
	}
	return string(raw)
}

func (e *APIError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Message(), apiErrorCategory(e.StatusCode)).
		WithCode(e.StatusCode).
		WithTextCode(ErrorAPI).
		WithMetadata(map[string]any{
			"status_code": e.StatusCode,
			"body":        RedactSensitiveMap(e.Body),
		})
}

func apiErrorCategory(status int) goerrors.Category {
	switch status {
	case http.StatusBadRequest:
		return goerrors.CategoryBadInput
	case http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case http.StatusForbidden:
		return goerrors.CategoryAuthz
	case http.StatusNotFound:
		return goerrors.CategoryNotFound
	case http.StatusConflict:
		return goerrors.CategoryConflict
	default:
		return goerrors.CategoryExternal
	}
}

// ValidationError is raised before any network call when an operation's
// target is missing from Status or lacks required fields.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "core: validation failed"
	}
	return "core: " + e.Message()
}

// Message describes the rejected field without the package prefix.
func (e *ValidationError) Message() string {
	if e == nil {
		return "validation failed"
	}
	if strings.TrimSpace(e.Value) != "" {
		return fmt.Sprintf("%s %q %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) ToServiceError() *goerrors.Error {
	return goerrors.NewValidation(e.Message(), goerrors.FieldError{
		Field:   e.Field,
		Message: e.Reason,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput)
}

// ResponseError reports a success response that lacks data the protocol
// requires, such as a session token.
type ResponseError struct {
	Endpoint string
	Reason   string
}

func (e *ResponseError) Error() string {
	if e == nil {
		return "core: invalid bunq response"
	}
	return fmt.Sprintf("core: invalid bunq response from %s: %s", e.Endpoint, e.Reason)
}

func (e *ResponseError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorInvalidResponse).
		WithMetadata(map[string]any{"endpoint": e.Endpoint})
}

func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

func IsRateLimited(err error) bool {
	var rateErr *RateLimitError
	return errors.As(err, &rateErr)
}

func IsValidation(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// ErrorMessage returns the text a caller should surface to an end user.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message()
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Message()
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && strings.TrimSpace(rich.Message) != "" {
		return rich.Message
	}
	return err.Error()
}

// MapError converts any client error into a go-errors envelope with a stable
// text code and HTTP status.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureErrorEnvelope(rich)
	}
	var converter ServiceErrorConverter
	if errors.As(err, &converter) {
		return ensureErrorEnvelope(converter.ToServiceError())
	}
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = categoryHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	case goerrors.CategoryExternal, goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryNotFound:
		return ErrorAPI
	default:
		return ErrorInternal
	}
}

func categoryHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func requestMetadata(method string, url string) map[string]any {
	metadata := map[string]any{}
	if method = strings.TrimSpace(method); method != "" {
		metadata["method"] = method
	}
	if url = strings.TrimSpace(url); url != "" {
		metadata["url"] = url
	}
	return metadata
}
