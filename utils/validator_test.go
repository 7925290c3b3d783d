package utils

import (
	"strings"
	"testing"
)

type validatedInput struct {
	Email string `validate:"required,email"`
	Name  string `validate:"required"`
}

func TestValidateStruct(t *testing.T) {
	if err := ValidateStruct(validatedInput{Email: "dana@example.com", Name: "Dana"}); err != nil {
		t.Errorf("ValidateStruct() unexpected error: %v", err)
	}

	err := ValidateStruct(validatedInput{})
	if err == nil {
		t.Fatal("ValidateStruct() expected error for empty input")
	}
	if got := err.Error(); !strings.Contains(got, "email is required") || !strings.Contains(got, "name is required") {
		t.Errorf("error = %q, want both fields reported", got)
	}
}

// Field values can contain formatting verbs; the flattened message must carry
// them through untouched.
func TestValidateStructMessageIsLiteral(t *testing.T) {
	err := ValidateStruct(validatedInput{Email: "%d%s%v", Name: "100%"})
	if err == nil {
		t.Fatal("ValidateStruct() expected error for malformed email")
	}
	if got := err.Error(); got != "email must be a valid email" {
		t.Errorf("error = %q, want plain message", got)
	}
}
