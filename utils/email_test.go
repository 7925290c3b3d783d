package utils

import "testing"

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"Dana@Example.COM", "dana@example.com"},
		{"  padded@example.com ", "padded@example.com"},
		{"already@example.com", "already@example.com"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeAddress(tt.in); got != tt.expected {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", tt.in, got, tt.expected)
		}
	}
}

func TestLocalPart(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"dana@example.com", "dana"},
		{"first.last@example.com", "first.last"},
		{"no-at-sign", "no-at-sign"},
	}

	for _, tt := range tests {
		if got := LocalPart(tt.in); got != tt.expected {
			t.Errorf("LocalPart(%q) = %q, want %q", tt.in, got, tt.expected)
		}
	}
}

func TestValidateChannelAddress(t *testing.T) {
	if err := ValidateChannelAddress("support@acme.test"); err != nil {
		t.Errorf("ValidateChannelAddress() unexpected error: %v", err)
	}
	if err := ValidateChannelAddress("not-an-address"); err == nil {
		t.Error("ValidateChannelAddress() expected error for malformed address")
	}
}
