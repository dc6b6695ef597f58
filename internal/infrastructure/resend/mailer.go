package resend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/citymate-api/internal/config"
	"github.com/resendlabs/resend-go"
)

// Mailer sends email through the Resend API.
type Mailer struct {
	client *resend.Client
	from   string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{client: resend.NewClient(cfg.ResendAPIKey), from: cfg.ResendFrom}
}

func (m *Mailer) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sent, err := m.client.Emails.Send(&resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
		ReplyTo: m.from,
	})
	if err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	slog.Info("email sent", "provider", "resend", "message_id", sent.Id)
	return nil
}
