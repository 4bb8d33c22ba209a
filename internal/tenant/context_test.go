package tenant

import (
	"context"
	"errors"
	"testing"
)

func TestRequire(t *testing.T) {
	if _, err := Require(context.Background()); !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
	tid, err := Require(WithTenant(context.Background(), "acme"))
	if err != nil || tid != "acme" {
		t.Fatalf("got %q %v", tid, err)
	}
}
