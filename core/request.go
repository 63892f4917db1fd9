package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-bunq/security"
	goerrors "github.com/goliatone/go-errors"
)

const (
	HeaderContentType    = "Content-Type"
	HeaderUserAgent      = "User-Agent"
	HeaderLanguage       = "X-Bunq-Language"
	HeaderRegion         = "X-Bunq-Region"
	HeaderGeolocation    = "X-Bunq-Geolocation"
	HeaderRequestID      = "X-Bunq-Client-Request-Id"
	HeaderSignature      = "X-Bunq-Client-Signature"
	HeaderAuthentication = "X-Bunq-Client-Authentication"
	headerRetryAfter     = "Retry-After"
)

const (
	contentTypeJSON = "application/json"
	languageTag     = "en_US"
	regionTag       = "nl_NL"
	// bunq requires the header but accepts a zeroed placeholder.
	geolocationPlaceholder = "0 0 0 0 000"
)

type apiCall struct {
	Operation string
	Method    string
	Path      string
	Body      any
	Token     string
	Sign      bool
	Keys      *security.KeyPair
}

type apiResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

func (r apiResponse) NoContent() bool {
	return r.StatusCode == http.StatusNoContent
}

func (r apiResponse) IsJSON() bool {
	return strings.Contains(strings.ToLower(headerValue(r.Headers, HeaderContentType)), contentTypeJSON)
}

// Payload returns nil for 204, the decoded document for JSON bodies, and the
// raw text otherwise.
func (r apiResponse) Payload() (any, error) {
	if r.NoContent() {
		return nil, nil
	}
	if !r.IsJSON() {
		return string(r.Body), nil
	}
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(r.Body))
	decoder.UseNumber()
	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// do executes one HTTP exchange with the bunq header set and classifies the
// outcome. Error-range statuses come back as *RateLimitError or *APIError.
func (c *Client) do(ctx context.Context, call apiCall) (apiResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.refreshSecret(ctx); err != nil {
		return apiResponse{}, err
	}

	url := c.config.BaseURL() + call.Path
	body, err := encodeBody(call.Body)
	if err != nil {
		return apiResponse{}, fmt.Errorf("core: encode %s body: %w", call.Operation, err)
	}

	signature := ""
	if call.Sign {
		signature, err = security.Sign(string(body), call.Keys)
		if err != nil {
			return apiResponse{}, fmt.Errorf("core: sign %s body: %w", call.Operation, err)
		}
	}

	headers := c.baseHeaders()
	headers[HeaderSignature] = signature
	if call.Token != "" {
		headers[HeaderAuthentication] = call.Token
	}

	c.logger.Debug("bunq request",
		"operation", call.Operation,
		"method", call.Method,
		"url", url,
		"headers", RedactHeaders(headers),
		"body", redactBody(body),
	)

	key := RateLimitKey{Method: call.Method, BucketKey: call.Operation}
	if c.rateLimitPolicy != nil {
		if err := c.rateLimitPolicy.BeforeCall(ctx, key); err != nil {
			return apiResponse{}, err
		}
	}

	transport := c.transportFor()
	timeout := c.config.RequestTimeout
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := transport.Do(callCtx, TransportRequest{
		Method:  call.Method,
		URL:     url,
		Headers: headers,
		Body:    body,
		Timeout: timeout,
		Metadata: map[string]any{
			"operation":  call.Operation,
			"request_id": c.requestID,
		},
	})
	if err != nil {
		return apiResponse{}, ClassifyTransportError(call.Method, url, timeout, err)
	}

	response := apiResponse{StatusCode: res.StatusCode, Headers: res.Headers, Body: res.Body}
	meta := ResponseMeta{StatusCode: res.StatusCode, Headers: res.Headers}
	if retryAfter, ok := parseRetryAfterHeader(res.Headers, time.Now().UTC()); ok {
		meta.RetryAfter = &retryAfter
	}
	if c.rateLimitPolicy != nil {
		if err := c.rateLimitPolicy.AfterCall(ctx, key, meta); err != nil {
			return apiResponse{}, err
		}
	}

	if status := res.StatusCode / 100; status == 4 || status == 5 {
		return apiResponse{}, classifyErrorResponse(call.Method, url, response, meta)
	}

	if response.NoContent() {
		c.logger.Warn("bunq request returned no content, data may be out of date",
			"operation", call.Operation,
			"url", url,
		)
		return response, nil
	}

	c.logger.Debug("bunq response",
		"operation", call.Operation,
		"status_code", res.StatusCode,
		"body", redactBody(res.Body),
	)
	return response, nil
}

func (c *Client) baseHeaders() map[string]string {
	return map[string]string{
		HeaderContentType: contentTypeJSON,
		HeaderUserAgent:   c.config.UserAgent,
		HeaderLanguage:    languageTag,
		HeaderRegion:      regionTag,
		HeaderGeolocation: geolocationPlaceholder,
		HeaderRequestID:   c.requestID,
	}
}

// refreshSecret asks the configured token source for the latest secret.
func (c *Client) refreshSecret(ctx context.Context) error {
	if c.tokenSource == nil {
		return nil
	}
	secret, err := c.tokenSource(ctx)
	if err != nil {
		return fmt.Errorf("core: refresh secret: %w", err)
	}
	c.config.Secret = strings.TrimSpace(secret)
	c.logger.Debug("bunq secret refreshed")
	return nil
}

func encodeBody(body any) ([]byte, error) {
	switch value := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return value, nil
	case string:
		return []byte(value), nil
	default:
		return json.Marshal(value)
	}
}

func classifyErrorResponse(method, url string, response apiResponse, meta ResponseMeta) error {
	if response.StatusCode == http.StatusTooManyRequests {
		rateErr := &RateLimitError{Method: method, URL: url}
		if meta.RetryAfter != nil {
			rateErr.RetryAfter = *meta.RetryAfter
		}
		return rateErr
	}
	body := map[string]any{}
	if response.IsJSON() {
		if err := json.Unmarshal(response.Body, &body); err == nil {
			return &APIError{StatusCode: response.StatusCode, Body: body}
		}
	}
	body = map[string]any{"message": string(response.Body)}
	return &APIError{StatusCode: response.StatusCode, Body: body}
}

// ClassifyTransportError maps a failure that happened before any response
// status was available onto *ConnectionTimeoutError or *ConnectionError.
// Errors the transport already typed (a rejected URL, an oversized body)
// keep their own classification.
func ClassifyTransportError(method, url string, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}
	var timeoutErr *ConnectionTimeoutError
	if errors.As(err, &timeoutErr) {
		return err
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &ConnectionTimeoutError{Method: method, URL: url, Timeout: timeout, Cause: err}
	}
	if isTypedError(err) {
		return err
	}
	return &ConnectionError{Method: method, URL: url, Cause: err}
}

func isTypedError(err error) bool {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return true
	}
	var converter ServiceErrorConverter
	return errors.As(err, &converter)
}

func parseRetryAfterHeader(headers map[string]string, now time.Time) (time.Duration, bool) {
	raw := headerValue(headers, headerRetryAfter)
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if retryAt, err := http.ParseTime(raw); err == nil && retryAt.After(now) {
		return retryAt.Sub(now), true
	}
	return 0, false
}

func headerValue(headers map[string]string, key string) string {
	for name, value := range headers {
		if strings.EqualFold(strings.TrimSpace(name), key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func redactBody(body []byte) any {
	if len(body) == 0 {
		return ""
	}
	var document map[string]any
	if err := json.Unmarshal(body, &document); err == nil {
		return RedactSensitiveMap(document)
	}
	var items []any
	if err := json.Unmarshal(body, &items); err == nil {
		return redactSensitiveValue(items)
	}
	return string(body)
}
