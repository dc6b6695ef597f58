// Package contact classifies and normalises the email-or-phone strings users type into forms.
package contact

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/citymate-api/internal/domain"
	"github.com/citymate-api/internal/pkg/validate"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// Parse trims raw, decides its channel ("@" means email) and validates the format.
// Emails are lower-cased; phone numbers have spaces and dashes removed.
func Parse(raw string) (string, domain.Channel, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", "", fmt.Errorf("contact is required: %w", domain.ErrValidation)
	}
	if strings.Contains(s, "@") {
		s = strings.ToLower(s)
		if err := validate.Var(s, "email"); err != nil {
			return "", "", fmt.Errorf("invalid email address: %w", domain.ErrValidation)
		}
		return s, domain.ChannelEmail, nil
	}
	s = strings.NewReplacer(" ", "", "-", "").Replace(s)
	if !phonePattern.MatchString(s) {
		return "", "", fmt.Errorf("invalid phone number: %w", domain.ErrValidation)
	}
	return s, domain.ChannelPhone, nil
}

// E164 prefixes numbers lacking a "+" with countryCode unless they already start with it.
func E164(phone, countryCode string) string {
	if strings.HasPrefix(phone, "+") || countryCode == "" {
		return phone
	}
	if strings.HasPrefix(phone, countryCode) && len(phone) > 10 {
		return "+" + phone
	}
	return "+" + countryCode + phone
}

// Mask hides most of an address for display, e.g. "al***@b.com" or "******3210".
func Mask(contact string) string {
	if local, host, ok := strings.Cut(contact, "@"); ok {
		keep := 2
		if len(local) <= keep {
			keep = min(1, len(local))
		}
		return local[:keep] + "***@" + host
	}
	if len(contact) <= 4 {
		return contact
	}
	return strings.Repeat("*", len(contact)-4) + contact[len(contact)-4:]
}
