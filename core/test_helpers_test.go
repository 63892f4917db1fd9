package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-bunq/security"
	glog "github.com/goliatone/go-logger/glog"
)

const testBaseURL = "https://bunq.test"

type cannedResponse struct {
	status      int
	body        string
	contentType string
	headers     map[string]string
	err         error
}

func jsonResponse(status int, body string) cannedResponse {
	return cannedResponse{status: status, body: body, contentType: "application/json"}
}

// routeTransport answers requests by "METHOD path". Queued responses are
// consumed in order and the last one repeats.
type routeTransport struct {
	mu       sync.Mutex
	routes   map[string][]cannedResponse
	requests []TransportRequest
	closed   int
}

func newRouteTransport() *routeTransport {
	return &routeTransport{routes: map[string][]cannedResponse{}}
}

func (r *routeTransport) on(method, path string, responses ...cannedResponse) *routeTransport {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := method + " " + path
	r.routes[key] = append(r.routes[key], responses...)
	return r
}

func (r *routeTransport) Kind() string { return "route" }

func (r *routeTransport) Do(_ context.Context, req TransportRequest) (TransportResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	key := req.Method + " " + strings.TrimPrefix(req.URL, testBaseURL)
	queue := r.routes[key]
	if len(queue) == 0 {
		return TransportResponse{}, fmt.Errorf("route transport: no response for %s", key)
	}
	next := queue[0]
	if len(queue) > 1 {
		r.routes[key] = queue[1:]
	}
	if next.err != nil {
		return TransportResponse{}, next.err
	}
	headers := map[string]string{}
	for name, value := range next.headers {
		headers[name] = value
	}
	if next.contentType != "" {
		headers["Content-Type"] = next.contentType
	}
	return TransportResponse{StatusCode: next.status, Headers: headers, Body: []byte(next.body)}, nil
}

func (r *routeTransport) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func (r *routeTransport) calls(method, path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, req := range r.requests {
		if req.Method == method && strings.TrimPrefix(req.URL, testBaseURL) == path {
			count++
		}
	}
	return count
}

func (r *routeTransport) last(method, path string) (TransportRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.requests) - 1; i >= 0; i-- {
		req := r.requests[i]
		if req.Method == method && strings.TrimPrefix(req.URL, testBaseURL) == path {
			return req, true
		}
	}
	return TransportRequest{}, false
}

func (r *routeTransport) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// withBootstrap registers canned installation, device-server and
// session-server responses for user 7.
func (r *routeTransport) withBootstrap(sessionTokens ...string) *routeTransport {
	if len(sessionTokens) == 0 {
		sessionTokens = []string{"session-token"}
	}
	r.on("POST", "/v1/installation", jsonResponse(200, `{"Response":[{"Id":{"id":1}},{"Token":{"id":2,"token":"installation-token"}},{"ServerPublicKey":{"server_public_key":"pem"}}]}`))
	r.on("POST", "/v1/device-server", jsonResponse(200, `{"Response":[{"Id":{"id":3}}]}`))
	for _, token := range sessionTokens {
		r.on("POST", "/v1/session-server", jsonResponse(200, sessionServerEnvelope("UserApiKey", 7, token)))
	}
	return r
}

func sessionServerEnvelope(userTag string, userID int, token string) string {
	return fmt.Sprintf(`{"Response":[{"Id":{"id":10}},{"Token":{"id":11,"token":%q}},{%q:{"id":%d,"display_name":"Test"}}]}`, token, userTag, userID)
}

const accountsEnvelope = `{"Response":[
	{"MonetaryAccountBank":{"id":101,"description":"Main","status":"ACTIVE","currency":"EUR","balance":{"value":"12.50","currency":"EUR"},"alias":[{"type":"IBAN","value":"NL01BUNQ0000000101","name":"Main"}]}},
	{"MonetaryAccountBank":{"id":102,"description":"Old","status":"CLOSED","currency":"EUR","balance":{"value":"0.00","currency":"EUR"},"alias":[]}},
	{"MonetaryAccountSavings":{"id":103,"description":"Savings","status":"ACTIVE","currency":"EUR","balance":{"value":"1000.00","currency":"EUR"},"alias":[{"type":"IBAN","value":"NL01BUNQ0000000103","name":"Savings"}]}}
]}`

const paymentsEnvelope = `{"Response":[{"Payment":{"id":9001,"created":"2024-01-02 10:00:00.000000","type":"BUNQ","description":"coffee","amount":{"value":"-3.20","currency":"EUR"},"counterparty_alias":{"display_name":"Cafe","iban":"NL02BUNQ0000000001"}}}]}`

const cardsEnvelope = `{"Response":[
	{"CardDebit":{"id":501,"status":"ACTIVE","product_type":"MASTERCARD_DEBIT","expiry_date":"2027-01-31","card_limit":{"value":"500.00","currency":"EUR"},"card_limit_atm":{"value":"250.00","currency":"EUR"},"pin_code_assignment":[
		{"id":1,"created":"2024-01-01","updated":"2024-01-02","type":"PRIMARY","status":"ACTIVE","monetary_account_id":101},
		{"id":2,"created":"2024-01-01","updated":"2024-01-02","type":"SECONDARY","status":"ACTIVE","monetary_account_id":103}
	]}},
	{"CardCredit":{"id":502,"status":"CANCELLED","product_type":"MASTERCARD_CREDIT","pin_code_assignment":[]}}
]}`

func (r *routeTransport) withData() *routeTransport {
	r.on("GET", "/v1/user/7/monetary-account", jsonResponse(200, accountsEnvelope))
	r.on("GET", "/v1/user/7/monetary-account/101/payment", jsonResponse(200, paymentsEnvelope))
	r.on("GET", "/v1/user/7/monetary-account/103/payment", jsonResponse(200, `{"Response":[]}`))
	r.on("GET", "/v1/user/7/card", jsonResponse(200, cardsEnvelope))
	return r
}

var (
	testKeyOnce sync.Once
	testKeys    []*security.KeyPair
)

// countingKeyGenerator hands out pre-generated keypairs so tests do not pay
// for RSA generation on every bootstrap.
type countingKeyGenerator struct {
	mu     sync.Mutex
	issued []*security.KeyPair
}

func (g *countingKeyGenerator) generate() (*security.KeyPair, error) {
	testKeyOnce.Do(func() {
		for i := 0; i < 4; i++ {
			keys, err := security.GenerateKeyPair()
			if err != nil {
				panic(err)
			}
			testKeys = append(testKeys, keys)
		}
	})
	g.mu.Lock()
	defer g.mu.Unlock()
	keys := testKeys[len(g.issued)%len(testKeys)]
	g.issued = append(g.issued, keys)
	return keys, nil
}

func (g *countingKeyGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.issued)
}

func newTestClient(t *testing.T, transport TransportAdapter, opts ...Option) (*Client, *countingKeyGenerator) {
	t.Helper()
	generator := &countingKeyGenerator{}
	base := []Option{
		WithTransport(transport),
		WithLogger(glog.Nop()),
		WithKeyGenerator(generator.generate),
	}
	client, err := NewClient(Config{
		APIURL:         testBaseURL,
		Secret:         "api-key",
		RequestTimeout: 2 * time.Second,
	}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, generator
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}
