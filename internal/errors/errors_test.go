package errors

import (
	"fmt"
	"testing"
)

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("decode quotes: %w", NewValidationError("price", -1, "must be positive"))

	if !Is(err, ErrInputValidation) {
		t.Fatalf("expected %v to match ErrInputValidation", err)
	}

	var ve *ValidationError
	if !As(err, &ve) {
		t.Fatal("expected ValidationError in chain")
	}
	if ve.Field != "price" {
		t.Errorf("field = %q, want price", ve.Field)
	}
}

func TestLLMErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewLLMError("prompt", "llama3.1:8b", cause)

	if !Is(err, cause) {
		t.Fatal("expected LLMError to unwrap to its cause")
	}
	want := "llm error [llama3.1:8b] prompt: connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) should be nil")
	}
	if !Is(Wrapf(ErrBotInactive, "execute %d", 2), ErrBotInactive) {
		t.Error("Wrapf should preserve the chain")
	}
}
