package services_test

import (
	"context"
	"testing"

	"tabshot/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithBatchID(ctx, "batch-7")
	ctx = services.WithURL(ctx, "https://a.test/")
	ctx = services.WithIdentity(ctx, "abc")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.BatchIDFromContext(ctx); !ok || id != "batch-7" {
		t.Fatalf("unexpected batch id: %v %v", id, ok)
	}
	if url, ok := services.URLFromContext(ctx); !ok || url != "https://a.test/" {
		t.Fatalf("unexpected url: %v %v", url, ok)
	}
	if identity, ok := services.IdentityFromContext(ctx); !ok || identity != "abc" {
		t.Fatalf("unexpected identity: %v %v", identity, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := services.WithBatchID(context.Background(), "")
	if _, ok := services.BatchIDFromContext(ctx); ok {
		t.Fatal("expected no batch id value")
	}
}
