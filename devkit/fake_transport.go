package devkit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-bunq/core"
)

type TransportScript struct {
	Response core.TransportResponse
	Err      error
}

// FakeTransport answers requests by "METHOD path". Scripts queued on a route
// are consumed in order and the last one keeps repeating. Requests without a
// route fall back to the default scripts, then to an empty 200.
type FakeTransport struct {
	mu       sync.Mutex
	baseURL  string
	routes   map[string][]TransportScript
	fallback []TransportScript
	served   int
	requests []core.TransportRequest
	closed   int
}

func NewFakeTransport(baseURL string, fallback ...TransportScript) *FakeTransport {
	return &FakeTransport{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		routes:   map[string][]TransportScript{},
		fallback: append([]TransportScript(nil), fallback...),
	}
}

// On queues scripts for a route. Calling it again for the same route appends.
func (f *FakeTransport) On(method, path string, scripts ...TransportScript) *FakeTransport {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := routeKey(method, path)
	f.routes[key] = append(f.routes[key], scripts...)
	return f
}

func (f *FakeTransport) Kind() string {
	return "fake"
}

func (f *FakeTransport) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if f == nil {
		return core.TransportResponse{}, fmt.Errorf("devkit: fake transport is nil")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, cloneTransportRequest(req))
	key := routeKey(req.Method, f.pathOf(req.URL))
	if queue := f.routes[key]; len(queue) > 0 {
		script := queue[0]
		if len(queue) > 1 {
			f.routes[key] = queue[1:]
		}
		return cloneTransportResponse(script.Response), script.Err
	}
	if len(f.fallback) > 0 {
		index := f.served
		if index >= len(f.fallback) {
			index = len(f.fallback) - 1
		}
		f.served++
		script := f.fallback[index]
		return cloneTransportResponse(script.Response), script.Err
	}
	return core.TransportResponse{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(`{"Response":[]}`),
	}, nil
}

func (f *FakeTransport) Close() error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *FakeTransport) Closed() int {
	if f == nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeTransport) Requests() []core.TransportRequest {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]core.TransportRequest, 0, len(f.requests))
	for _, item := range f.requests {
		out = append(out, cloneTransportRequest(item))
	}
	return out
}

// RequestsFor returns the captured requests for one route, oldest first.
func (f *FakeTransport) RequestsFor(method, path string) []core.TransportRequest {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	want := routeKey(method, path)
	out := []core.TransportRequest{}
	for _, item := range f.requests {
		if routeKey(item.Method, f.pathOf(item.URL)) == want {
			out = append(out, cloneTransportRequest(item))
		}
	}
	return out
}

func (f *FakeTransport) pathOf(url string) string {
	if f.baseURL != "" {
		url = strings.TrimPrefix(url, f.baseURL)
	}
	if index := strings.Index(url, "?"); index >= 0 {
		url = url[:index]
	}
	return url
}

func routeKey(method, path string) string {
	return strings.ToUpper(strings.TrimSpace(method)) + " " + strings.TrimSpace(path)
}

func cloneTransportRequest(in core.TransportRequest) core.TransportRequest {
	out := core.TransportRequest{
		Method:   in.Method,
		URL:      in.URL,
		Headers:  map[string]string{},
		Body:     append([]byte(nil), in.Body...),
		Metadata: map[string]any{},
		Timeout:  in.Timeout,
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

func cloneTransportResponse(in core.TransportResponse) core.TransportResponse {
	out := core.TransportResponse{
		StatusCode: in.StatusCode,
		Headers:    map[string]string{},
		Body:       append([]byte(nil), in.Body...),
		Metadata:   map[string]any{},
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

var _ core.TransportAdapter = (*FakeTransport)(nil)
