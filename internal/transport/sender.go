package transport

import "context"

// Sender hands a mailing to an outbound mail provider. One call, all
// recipients in a single batch, no internal retry: the caller records
// the outcome and decides what to do with a failure.
type Sender interface {
	Send(ctx context.Context, subject, body string, to []string) error
}
