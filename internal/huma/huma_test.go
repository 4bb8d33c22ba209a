package huma

import (
	"net/http"
	"testing"
)

func TestError422(t *testing.T) {
	err := Error422("body.name", "name is required")
	if err.GetStatus() != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", err.GetStatus())
	}
}
