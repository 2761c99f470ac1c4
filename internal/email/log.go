package email

import (
	"context"

	"github.com/lettera/lettera/internal/logging"
)

// LogClient writes mail to the log instead of sending it. Used when no
// provider is configured and in tests.
type LogClient struct {
	logger logging.Logger
}

func NewLogClient(logger logging.Logger) *LogClient {
	return &LogClient{logger: logger}
}

func (c *LogClient) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	c.logger.Info(ctx, "email not sent (log client)", "to", to, "subject", subject)
	return nil
}
