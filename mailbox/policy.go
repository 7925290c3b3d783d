package mailbox

import (
	"fmt"
	"regexp"
	"strings"

	"supportmail/models"
)

// SkipReason explains why a message was deliberately dropped. Skips are
// not errors: no state is written and nothing is retried.
type SkipReason string

const (
	SkipNone             SkipReason = ""
	SkipInactiveAccount  SkipReason = "inactive_account"
	SkipNotificationLoop SkipReason = "notification_loop"
	SkipMalformedSender  SkipReason = "malformed_sender"
)

// SenderPolicy holds the skip predicates applied before any state is
// written. The notification pattern matches this system's own outbound
// notification addresses, so replies bouncing back never open spam threads.
type SenderPolicy struct {
	notificationPattern *regexp.Regexp
}

func NewSenderPolicy(notificationPattern string) (*SenderPolicy, error) {
	if notificationPattern == "" {
		return &SenderPolicy{}, nil
	}
	re, err := regexp.Compile(notificationPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid notification sender pattern: %v", err)
	}
	return &SenderPolicy{notificationPattern: re}, nil
}

// Check runs the predicates in order and returns the first that triggers.
// The malformed-sender check guards against bounce messages that carry no
// usable reply address.
func (p *SenderPolicy) Check(account *models.Account, pm *ProcessedMail) SkipReason {
	if !account.Active {
		return SkipInactiveAccount
	}
	if p.notificationPattern != nil && p.notificationPattern.MatchString(pm.OriginalSender) {
		return SkipNotificationLoop
	}
	if !strings.Contains(pm.OriginalSender, "@") {
		return SkipMalformedSender
	}
	return SkipNone
}
