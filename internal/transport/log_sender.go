package transport

import (
	"context"
	"log"
)

// LogSender logs instead of sending. Local/dev default when no
// provider credentials are configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, subject, body string, to []string) error {
	log.Printf("📧 [log sender] subject=%q recipients=%d", subject, len(to))
	return nil
}

var _ Sender = LogSender{}
