// Package email delivers transactional mail. The Client interface keeps
// the provider swappable; production uses Mailgun, tests and local runs
// use the logging client.
package email

import "context"

type Client interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}
