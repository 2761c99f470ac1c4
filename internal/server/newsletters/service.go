// Package newsletters delivers published issues to confirmed subscribers.
package newsletters

import (
	"context"
	"fmt"
	"net/mail"

	"golang.org/x/sync/errgroup"

	"github.com/lettera/lettera/internal/common"
	"github.com/lettera/lettera/internal/email"
	"github.com/lettera/lettera/internal/logging"
	"github.com/lettera/lettera/internal/server/models"
)

// maxConcurrentSends caps the delivery fan-out so a large list does not
// open one connection per subscriber.
const maxConcurrentSends = 8

// SubscriberLister is satisfied by the subscriptions service.
type SubscriberLister interface {
	ListConfirmed(ctx context.Context) ([]*models.Subscriber, error)
}

type Service struct {
	subscribers SubscriberLister
	mailer      email.Client
	logger      logging.Logger
}

func NewService(subscribers SubscriberLister, mailer email.Client, logger logging.Logger) *Service {
	return &Service{
		subscribers: subscribers,
		mailer:      mailer,
		logger:      logger.With("module", "newsletters"),
	}
}

// Publish sends the issue to every confirmed subscriber. A stored email
// that no longer parses is skipped with a warning; a delivery failure
// aborts the publish.
func (s *Service) Publish(ctx context.Context, title, htmlBody, textBody string) error {
	if title == "" {
		return fmt.Errorf("%w: title must not be empty", common.ErrValidation)
	}
	if htmlBody == "" && textBody == "" {
		return fmt.Errorf("%w: issue body must not be empty", common.ErrValidation)
	}

	subs, err := s.subscribers.ListConfirmed(ctx)
	if err != nil {
		return fmt.Errorf("listing confirmed subscribers: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSends)

	for _, sub := range subs {
		if _, err := mail.ParseAddress(sub.Email); err != nil {
			s.logger.Warn(ctx, "skipping subscriber with invalid stored email",
				"subscriber_id", sub.ID, "error", err)
			continue
		}

		g.Go(func() error {
			if err := s.mailer.Send(ctx, sub.Email, title, htmlBody, textBody); err != nil {
				return fmt.Errorf("delivering to %s: %w", sub.Email, err)
			}
			return nil
		})
	}

	return g.Wait()
}
