package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("transfer: %w", New(CodeInsufficientFunds, "not enough money on card"))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected errors.Is to match by code, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("different codes must not match")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(CodeTransient, "storage unavailable", cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause should be reachable through Unwrap")
	}
	if MessageOf(err) != "storage unavailable" {
		t.Fatalf("MessageOf = %q", MessageOf(err))
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != CodeInternal {
		t.Fatalf("CodeOf = %s", got)
	}
	if got := MessageOf(errors.New("boom")); got != "internal error" {
		t.Fatalf("MessageOf leaked internal message: %q", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Code]int{
		CodeInvalidAmount:     http.StatusBadRequest,
		CodeSelfTransfer:      http.StatusBadRequest,
		CodeNotFound:          http.StatusNotFound,
		CodeRecipientNotFound: http.StatusNotFound,
		CodeConflict:          http.StatusConflict,
		CodeInsufficientFunds: http.StatusUnprocessableEntity,
		CodeForbidden:         http.StatusForbidden,
		CodeUnauthorized:      http.StatusUnauthorized,
		CodeTransient:         http.StatusServiceUnavailable,
		CodeInternal:          http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := code.HTTPStatus(); got != want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", code, got, want)
		}
	}
}
