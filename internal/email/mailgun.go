package email

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

type MailgunClient struct {
	mg      *mailgun.MailgunImpl
	from    string
	timeout time.Duration
}

func NewMailgunClient(domain, apiKey, from string, timeout time.Duration) (*MailgunClient, error) {
	if domain == "" || apiKey == "" || from == "" {
		return nil, fmt.Errorf("mailgun domain, api key and sender are required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MailgunClient{
		mg:      mailgun.NewMailgun(domain, apiKey),
		from:    from,
		timeout: timeout,
	}, nil
}

func (c *MailgunClient) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	message := c.mg.NewMessage(c.from, subject, textBody)
	message.SetHtml(htmlBody)
	if err := message.AddRecipient(to); err != nil {
		return fmt.Errorf("adding recipient: %w", err)
	}

	if _, _, err := c.mg.Send(ctx, message); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}
