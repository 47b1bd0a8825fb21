package correlation

import (
	"context"
	"testing"
)

func TestID_RoundTrip(t *testing.T) {
	ctx := WithID(context.Background(), "abc-123")
	if got := ID(ctx); got != "abc-123" {
		t.Errorf("expected 'abc-123', got %q", got)
	}
}

func TestID_Missing(t *testing.T) {
	if got := ID(context.Background()); got != "" {
		t.Errorf("expected empty id, got %q", got)
	}
}

func TestNewID_Unique(t *testing.T) {
	a := NewID()
	b := NewID()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a, b)
	}
}
