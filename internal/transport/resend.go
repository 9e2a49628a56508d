package transport

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"
)

// ResendSender delivers mailings through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (s *ResendSender) Send(ctx context.Context, subject, body string, to []string) error {
	req := &resend.SendEmailRequest{
		From:    s.from,
		To:      to,
		Subject: subject,
		Text:    body,
	}

	if _, err := s.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("resend: failed to send email: %w", err)
	}
	return nil
}

var _ Sender = (*ResendSender)(nil)
