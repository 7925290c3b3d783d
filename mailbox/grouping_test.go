package mailbox

import (
	"testing"
)

func newTestExtractor(t *testing.T) *ThreadKeyExtractor {
	t.Helper()
	booking, err := NewBookingRelayStrategy(`(\d+)-[^@]+@mchat\.booking\.com`, "mchat.booking.com")
	if err != nil {
		t.Fatalf("NewBookingRelayStrategy() error = %v", err)
	}
	named, err := NewNamedRelayStrategy(`@reply\.airbnb\.com$`, "reply.airbnb.com")
	if err != nil {
		t.Fatalf("NewNamedRelayStrategy() error = %v", err)
	}
	return NewThreadKeyExtractor(InReplyToStrategy{}, booking, named)
}

func TestExtractGroupingKey(t *testing.T) {
	extractor := newTestExtractor(t)

	tests := []struct {
		name     string
		mail     ProcessedMail
		expected string
	}{
		{
			name: "in-reply-to wins over everything",
			mail: ProcessedMail{
				InReplyTo:  "<abc123@mail.example.com>",
				From:       []string{"123-alias@mchat.booking.com"},
				SenderName: "Jane",
				Subject:    "Hi",
			},
			expected: "<abc123@mail.example.com>",
		},
		{
			name: "booking relay collapses alias to numeric id",
			mail: ProcessedMail{
				From: []string{"4815162342-guest-xyz@mchat.booking.com"},
			},
			expected: "4815162342@mchat.booking.com",
		},
		{
			name: "booking relay matches any sender in the list",
			mail: ProcessedMail{
				From: []string{"noreply@other.example", "99-abc@mchat.booking.com"},
			},
			expected: "99@mchat.booking.com",
		},
		{
			name: "named relay keys on display name, not local part",
			mail: ProcessedMail{
				ReplyTo:    "rotating-token-1@reply.airbnb.com",
				SenderName: "Jane Guest",
				Subject:    "Reservation question",
			},
			expected: "Jane Guest@reply.airbnb.com",
		},
		{
			name: "named relay requires a sender name",
			mail: ProcessedMail{
				ReplyTo: "rotating-token-1@reply.airbnb.com",
				Subject: "Reservation question",
			},
			expected: "",
		},
		{
			name: "named relay requires a subject",
			mail: ProcessedMail{
				ReplyTo:    "rotating-token-1@reply.airbnb.com",
				SenderName: "Jane Guest",
			},
			expected: "",
		},
		{
			name: "plain mail yields no key",
			mail: ProcessedMail{
				From:       []string{"dana@example.com"},
				SenderName: "Dana",
				Subject:    "Help",
			},
			expected: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := extractor.Extract(&tt.mail); got != tt.expected {
				t.Errorf("Extract() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestBookingRelayAliasesShareOneKey(t *testing.T) {
	extractor := newTestExtractor(t)

	first := extractor.Extract(&ProcessedMail{From: []string{"123-alias-one@mchat.booking.com"}})
	second := extractor.Extract(&ProcessedMail{From: []string{"123-totally-different@mchat.booking.com"}})

	if first != "123@mchat.booking.com" {
		t.Errorf("first key = %q, want %q", first, "123@mchat.booking.com")
	}
	if first != second {
		t.Errorf("aliases of the same conversation diverged: %q vs %q", first, second)
	}
}

func TestNamedRelayRotatingLocalPartsShareOneKey(t *testing.T) {
	extractor := newTestExtractor(t)

	first := extractor.Extract(&ProcessedMail{
		ReplyTo:    "token-aaa@reply.airbnb.com",
		SenderName: "Jane Guest",
		Subject:    "Check-in time",
	})
	second := extractor.Extract(&ProcessedMail{
		ReplyTo:    "token-bbb@reply.airbnb.com",
		SenderName: "Jane Guest",
		Subject:    "Check-in time",
	})

	if first == "" || first != second {
		t.Errorf("rotating local parts split the thread: %q vs %q", first, second)
	}
}

func TestNewBookingRelayStrategyRejectsPatternWithoutGroup(t *testing.T) {
	if _, err := NewBookingRelayStrategy(`\d+@mchat\.booking\.com`, "mchat.booking.com"); err == nil {
		t.Error("expected error for pattern without a capture group")
	}
}
