package devkit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-bunq/core"
)

// ValidateTransportAdapterConformance checks that adapter names itself and can
// complete request.
func ValidateTransportAdapterConformance(
	ctx context.Context,
	adapter core.TransportAdapter,
	request core.TransportRequest,
) error {
	if adapter == nil {
		return fmt.Errorf("devkit: transport adapter is required")
	}
	if strings.TrimSpace(adapter.Kind()) == "" {
		return fmt.Errorf("devkit: transport adapter kind is required")
	}
	_, err := adapter.Do(ctx, request)
	return err
}

// ValidateTransportFailureConformance checks that a request which cannot be
// delivered fails with one of the typed connection errors.
func ValidateTransportFailureConformance(
	ctx context.Context,
	adapter core.TransportAdapter,
	request core.TransportRequest,
) error {
	if adapter == nil {
		return fmt.Errorf("devkit: transport adapter is required")
	}
	_, err := adapter.Do(ctx, request)
	if err == nil {
		return fmt.Errorf("devkit: expected %s %s to fail", request.Method, request.URL)
	}
	var timeoutErr *core.ConnectionTimeoutError
	var connectionErr *core.ConnectionError
	if errors.As(err, &timeoutErr) || errors.As(err, &connectionErr) {
		return nil
	}
	return fmt.Errorf("devkit: expected a connection error, got %T: %w", err, err)
}
