package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeOf(t *testing.T) {
	if got := CodeOf(nil); got != "" {
		t.Fatalf("CodeOf(nil) = %q, want empty", got)
	}
	if got := CodeOf(NewDuplicate("taken", nil)); got != CodeDuplicate {
		t.Fatalf("CodeOf(duplicate) = %q, want %q", got, CodeDuplicate)
	}
	if got := CodeOf(errors.New("boom")); got != CodeInternal {
		t.Fatalf("CodeOf(plain error) = %q, want %q", got, CodeInternal)
	}
	wrapped := fmt.Errorf("handling command: %w", NewNotFound("mute", nil))
	if got := CodeOf(wrapped); got != CodeNotFound {
		t.Fatalf("CodeOf(wrapped) = %q, want %q", got, CodeNotFound)
	}
}

func TestToDomainError(t *testing.T) {
	if got := ToDomainError(nil); got != nil {
		t.Fatalf("ToDomainError(nil) = %v, want nil", got)
	}
	domainErr := ToDomainError(errors.New("boom"))
	if domainErr.Code != CodeInternal || domainErr.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unexpected mapping for plain error: %+v", domainErr)
	}
}
