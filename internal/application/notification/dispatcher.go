// Package notification delivers one-time codes over email or SMS.
package notification

import (
	"context"
	"fmt"

	"github.com/citymate-api/internal/domain"
	"github.com/citymate-api/internal/pkg/contact"
)

const (
	emailSubject = "Your CityMate Verification Code"
	emailBody    = "Your OTP for CityMate is: %s"
	smsBody      = "Your CityMate verification code is: %s"
)

type mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// Dispatcher sends codes. Either transport may be nil, in which case that channel is unavailable.
type Dispatcher struct {
	mailer      mailer
	sms         smsSender
	countryCode string
}

func NewDispatcher(m mailer, sms smsSender, defaultCountryCode string) *Dispatcher {
	return &Dispatcher{mailer: m, sms: sms, countryCode: defaultCountryCode}
}

// Send delivers code to addr over channel. Failures wrap domain.ErrDispatch.
func (d *Dispatcher) Send(ctx context.Context, channel domain.Channel, addr, code string) error {
	switch channel {
	case domain.ChannelEmail:
		if d.mailer == nil {
			return fmt.Errorf("email is not configured: %w", domain.ErrDispatch)
		}
		if err := d.mailer.SendEmail(ctx, addr, emailSubject, fmt.Sprintf(emailBody, code)); err != nil {
			return fmt.Errorf("send email: %w: %w", domain.ErrDispatch, err)
		}
	case domain.ChannelPhone:
		if d.sms == nil {
			return fmt.Errorf("sms is not configured: %w", domain.ErrDispatch)
		}
		to := contact.E164(addr, d.countryCode)
		if err := d.sms.SendSMS(ctx, to, fmt.Sprintf(smsBody, code)); err != nil {
			return fmt.Errorf("send sms: %w: %w", domain.ErrDispatch, err)
		}
	default:
		return fmt.Errorf("unknown channel %q: %w", channel, domain.ErrDispatch)
	}
	return nil
}
