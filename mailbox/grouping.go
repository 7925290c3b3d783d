package mailbox

import (
	"fmt"
	"regexp"

	"supportmail/config"
)

// GroupingStrategy tries to derive a conversation grouping key from one
// normalized message. Returns "" when the strategy does not apply.
type GroupingStrategy interface {
	GroupingKey(pm *ProcessedMail) string
}

// InReplyToStrategy uses the client-declared reply reference as-is. Strongest
// signal when present.
type InReplyToStrategy struct{}

func (InReplyToStrategy) GroupingKey(pm *ProcessedMail) string {
	return pm.InReplyTo
}

// BookingRelayStrategy collapses chat-relay aliases that embed a numeric
// conversation id in the local part. Every alias of conversation 123 maps to
// the canonical "123@<domain>" key, so the rotating alias text never splits a
// thread.
type BookingRelayStrategy struct {
	pattern *regexp.Regexp
	domain  string
}

func NewBookingRelayStrategy(pattern, domain string) (*BookingRelayStrategy, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid booking relay pattern: %v", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("booking relay pattern needs a capture group for the conversation id")
	}
	return &BookingRelayStrategy{pattern: re, domain: domain}, nil
}

func (s *BookingRelayStrategy) GroupingKey(pm *ProcessedMail) string {
	for _, from := range pm.From {
		if match := s.pattern.FindStringSubmatch(from); match != nil {
			return fmt.Sprintf("%s@%s", match[1], s.domain)
		}
	}
	return ""
}

// NamedRelayStrategy keys on the sender display name for relays that rotate
// the Reply-To local part on every message. The local part is useless as a
// key; the display name plus relay domain is the only quasi-stable identity.
// Requires a non-empty sender name and subject.
type NamedRelayStrategy struct {
	pattern *regexp.Regexp
	domain  string
}

func NewNamedRelayStrategy(pattern, domain string) (*NamedRelayStrategy, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid reply relay pattern: %v", err)
	}
	return &NamedRelayStrategy{pattern: re, domain: domain}, nil
}

func (s *NamedRelayStrategy) GroupingKey(pm *ProcessedMail) string {
	if pm.ReplyTo == "" || !s.pattern.MatchString(pm.ReplyTo) {
		return ""
	}
	if pm.SenderName == "" || pm.Subject == "" {
		return ""
	}
	return fmt.Sprintf("%s@%s", pm.SenderName, s.domain)
}

// ThreadKeyExtractor evaluates strategies in priority order and returns the
// first non-empty key. A "" result means the message starts a conversation
// with no grouping key.
type ThreadKeyExtractor struct {
	strategies []GroupingStrategy
}

func NewThreadKeyExtractor(strategies ...GroupingStrategy) *ThreadKeyExtractor {
	return &ThreadKeyExtractor{strategies: strategies}
}

// NewDefaultThreadKeyExtractor builds the standard strategy chain from the
// configured relay patterns.
func NewDefaultThreadKeyExtractor(cfg config.GroupingConfig) (*ThreadKeyExtractor, error) {
	booking, err := NewBookingRelayStrategy(cfg.BookingRelayPattern, cfg.BookingRelayDomain)
	if err != nil {
		return nil, err
	}
	named, err := NewNamedRelayStrategy(cfg.ReplyRelayPattern, cfg.ReplyRelayDomain)
	if err != nil {
		return nil, err
	}
	return NewThreadKeyExtractor(InReplyToStrategy{}, booking, named), nil
}

func (e *ThreadKeyExtractor) Extract(pm *ProcessedMail) string {
	for _, strategy := range e.strategies {
		if key := strategy.GroupingKey(pm); key != "" {
			return key
		}
	}
	return ""
}
