package utils

import (
	"fmt"
	"strings"

	"github.com/badoux/checkmail"
)

// NormalizeAddress lower-cases and trims an email address. Contact and
// channel lookups always go through this so casing never splits identities.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// LocalPart returns the part of an address before the @. Used as a fallback
// contact name when the sender has no display name.
func LocalPart(addr string) string {
	if i := strings.Index(addr, "@"); i >= 0 {
		return addr[:i]
	}
	return addr
}

// ValidateChannelAddress checks that a configured receiving address is well
// formed before it is stored.
func ValidateChannelAddress(addr string) error {
	if err := checkmail.ValidateFormat(addr); err != nil {
		return fmt.Errorf("invalid channel address %q: %v", addr, err)
	}
	return nil
}
