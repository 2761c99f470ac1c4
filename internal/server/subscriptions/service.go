// Package subscriptions implements the double-opt-in signup flow: a new
// subscriber is stored as pending together with a confirmation token, and
// flips to confirmed only when the emailed token comes back.
package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/lettera/lettera/internal/common"
	"github.com/lettera/lettera/internal/dbx"
	"github.com/lettera/lettera/internal/email"
	"github.com/lettera/lettera/internal/server/models"
)

const (
	tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	tokenLen      = 25

	maxNameLen  = 256
	maxEmailLen = 256
)

// forbiddenNameChars would let a subscriber name break out of the HTML
// and SQL contexts it is rendered in.
const forbiddenNameChars = `/()"<>\{}`

type Service struct {
	db      *sql.DB
	newRepo func(dbx.DBTX) Repository
	mailer  email.Client
	baseURL string
}

func NewService(db *sql.DB, newRepo func(dbx.DBTX) Repository, mailer email.Client, baseURL string) *Service {
	return &Service{
		db:      db,
		newRepo: newRepo,
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name must not be empty", common.ErrValidation)
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return fmt.Errorf("%w: name is too long", common.ErrValidation)
	}
	if strings.ContainsAny(name, forbiddenNameChars) {
		return fmt.Errorf("%w: name contains forbidden characters", common.ErrValidation)
	}
	return nil
}

func validateEmail(address string) error {
	if address == "" || len(address) > maxEmailLen {
		return fmt.Errorf("%w: invalid email address", common.ErrValidation)
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return fmt.Errorf("%w: invalid email address", common.ErrValidation)
	}
	return nil
}

// Subscribe stores a pending subscriber and a confirmation token in one
// transaction, then emails the confirmation link. A failure to send
// fails the whole call; the transaction has committed by then, so a
// retry with the same email reports ErrAlreadyExists.
func (s *Service) Subscribe(ctx context.Context, name, address string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := validateEmail(address); err != nil {
		return err
	}

	token, err := gonanoid.Generate(tokenAlphabet, tokenLen)
	if err != nil {
		return common.ErrInternal
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.newRepo(tx)
		sub, err := repo.Insert(ctx, &models.Subscriber{Email: address, Name: name})
		if err != nil {
			return err
		}
		return repo.StoreToken(ctx, sub.ID, token)
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("storing subscriber: %w", err)
	}

	return s.sendConfirmation(ctx, address, token)
}

func (s *Service) sendConfirmation(ctx context.Context, address, token string) error {
	link := fmt.Sprintf("%s/api/v1/subscriptions/confirm?subscription_token=%s", s.baseURL, token)

	htmlBody := fmt.Sprintf(
		`Welcome to our newsletter!<br />Click <a href="%s">here</a> to confirm your subscription.`, link)
	textBody := fmt.Sprintf(
		"Welcome to our newsletter!\nVisit %s to confirm your subscription.", link)

	if err := s.mailer.Send(ctx, address, "Welcome!", htmlBody, textBody); err != nil {
		return fmt.Errorf("sending confirmation email: %w", err)
	}
	return nil
}

// Confirm resolves the token and marks the subscriber confirmed. An
// unknown token is an authorization failure, not an internal error.
func (s *Service) Confirm(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: missing subscription token", common.ErrValidation)
	}

	repo := s.newRepo(s.db)

	id, err := repo.GetSubscriberIDByToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrUnauthorized
		}
		return common.ErrInternal
	}

	if err := repo.ConfirmSubscriber(ctx, id); err != nil {
		return common.ErrInternal
	}
	return nil
}

// ListConfirmed returns the delivery list for a newsletter issue.
func (s *Service) ListConfirmed(ctx context.Context) ([]*models.Subscriber, error) {
	return s.newRepo(s.db).ListConfirmed(ctx)
}
