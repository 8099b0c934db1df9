package otel

import (
	"context"
	"testing"
)

func TestSetupNoOpWithoutEndpoint(t *testing.T) {
	t.Setenv("PMAX_STEWARD_OTEL_ENDPOINT", "")

	shutdown, err := Setup(context.Background(), "steward")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if shutdown == nil {
		t.Fatalf("expected shutdown function")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupNoOpWhenDisabled(t *testing.T) {
	t.Setenv("PMAX_STEWARD_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("PMAX_STEWARD_OTEL_ENABLED", "false")

	shutdown, err := Setup(context.Background(), "steward")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
