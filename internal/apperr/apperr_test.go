package apperr

import (
	"errors"
	"fmt"
	"testing"
)

var errBase = errors.New("boom")

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", E(ExternalService, "cover.submit", errBase))
	if KindOf(err) != ExternalService {
		t.Fatalf("expected external_service, got %s", KindOf(err))
	}
	if !errors.Is(err, errBase) {
		t.Fatalf("expected chain to keep base error")
	}
	if UserVisible(err) {
		t.Fatalf("external failures should not be shown verbatim")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if KindOf(errBase) != Internal {
		t.Fatalf("plain errors are internal")
	}
	if Is(nil, Internal) {
		t.Fatalf("nil is never classified")
	}
}

func TestErrorText(t *testing.T) {
	err := New(Validation, "cover.request", "invalid source")
	if err.Error() != "cover.request: invalid source" {
		t.Fatalf("unexpected text %q", err.Error())
	}
	if !UserVisible(err) {
		t.Fatalf("validation errors are user visible")
	}
}
