package subscriptions

import (
	"context"

	"github.com/google/uuid"

	"github.com/lettera/lettera/internal/server/models"
)

type Repository interface {
	// Insert stores a subscriber in pending_confirmation state.
	Insert(ctx context.Context, sub *models.Subscriber) (*models.Subscriber, error)
	// StoreToken attaches a confirmation token to a subscriber. Runs in
	// the same transaction as Insert during signup.
	StoreToken(ctx context.Context, subscriberID uuid.UUID, token string) error
	GetSubscriberIDByToken(ctx context.Context, token string) (uuid.UUID, error)
	ConfirmSubscriber(ctx context.Context, id uuid.UUID) error
	ListConfirmed(ctx context.Context) ([]*models.Subscriber, error)
}
