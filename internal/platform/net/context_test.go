package net

import (
	"context"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	t.Parallel()

	if got := RequestID(context.Background()); got != "" {
		t.Fatalf("empty ctx RequestID = %q", got)
	}
	ctx := WithRequestID(context.Background(), "req-1")
	if got := RequestID(ctx); got != "req-1" {
		t.Fatalf("RequestID = %q, want req-1", got)
	}
	if WithRequestID(ctx, "") != ctx {
		t.Fatal("empty id should leave ctx untouched")
	}
}
