package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lettera/lettera/internal/common"
	"github.com/lettera/lettera/internal/dbx"
	"github.com/lettera/lettera/internal/server/models"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, sub *models.Subscriber) (*models.Subscriber, error) {

	query :=
		`INSERT INTO subscriptions (email, name, status)
         VALUES ($1, $2, $3)
		 RETURNING id, subscribed_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		sub.Email, sub.Name, models.StatusPendingConfirmation).Scan(&sub.ID, &sub.SubscribedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	sub.Status = models.StatusPendingConfirmation
	return sub, nil
}

func (r *PostgresRepository) StoreToken(ctx context.Context, subscriberID uuid.UUID, token string) error {

	query :=
		`INSERT INTO subscription_tokens (subscription_token, subscriber_id)
         VALUES ($1, $2)
		 `

	if _, err := r.db.ExecContext(ctx, query, token, subscriberID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetSubscriberIDByToken(ctx context.Context, token string) (uuid.UUID, error) {

	query :=
		`SELECT subscriber_id FROM subscription_tokens
		 WHERE subscription_token = $1
		 `

	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, query, token).Scan(&id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, common.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("db error: %w", err)
	}

	return id, nil
}

func (r *PostgresRepository) ConfirmSubscriber(ctx context.Context, id uuid.UUID) error {

	query :=
		`UPDATE subscriptions SET status = $2
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, models.StatusConfirmed)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) ListConfirmed(ctx context.Context) ([]*models.Subscriber, error) {

	query :=
		`SELECT id, email, name, status, subscribed_at FROM subscriptions
		 WHERE status = $1
		 `

	rows, err := r.db.QueryContext(ctx, query, models.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var subs []*models.Subscriber
	for rows.Next() {
		sub := &models.Subscriber{}
		if err := rows.Scan(&sub.ID, &sub.Email, &sub.Name, &sub.Status, &sub.SubscribedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return subs, nil
}
