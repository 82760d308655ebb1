package apierr

import (
	"errors"
	"net/http"
	"testing"
)

func TestErrorMessageFallbacks(t *testing.T) {
	cause := errors.New("bad uuid")
	if got := BadRequest("invalid_retro_id", cause).Error(); got != "bad uuid" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := New(http.StatusBadRequest, "invalid_request", nil).Error(); got != "invalid_request" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := New(http.StatusTeapot, "", nil).Error(); got != "api error (418)" {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(BadRequest("x", cause), cause) {
		t.Fatalf("cause not unwrapped")
	}
	if Unauthorized(nil).Status != http.StatusUnauthorized {
		t.Fatalf("unexpected status")
	}
}
