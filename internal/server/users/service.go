// Package users implements account registration and credential
// verification, and mints the two credential kinds the API serves:
// stateless bearer tokens and server-side session records.
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lettera/lettera/internal/common"
	"github.com/lettera/lettera/internal/server/auth"
	"github.com/lettera/lettera/internal/server/models"
	"github.com/lettera/lettera/internal/server/sessions"
)

const (
	minPasswordLen = 12
	maxPasswordLen = 128
)

type Service struct {
	repo       Repository
	hasher     *auth.Hasher
	codec      *auth.TokenCodec
	store      sessions.Store
	sessionTTL time.Duration
}

func NewService(repo Repository, hasher *auth.Hasher, codec *auth.TokenCodec, store sessions.Store, sessionTTL time.Duration) *Service {
	return &Service{
		repo:       repo,
		hasher:     hasher,
		codec:      codec,
		store:      store,
		sessionTTL: sessionTTL,
	}
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return fmt.Errorf("%w: password must be between %d and %d characters",
			common.ErrValidation, minPasswordLen, maxPasswordLen)
	}
	return nil
}

// Register creates a user and returns it together with a bearer token,
// so a fresh signup is immediately authenticated.
func (s *Service) Register(ctx context.Context, username, password string) (*models.User, string, error) {
	if username == "" {
		return nil, "", fmt.Errorf("%w: username must not be empty", common.ErrValidation)
	}
	if err := validatePassword(password); err != nil {
		return nil, "", err
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.repo.Create(ctx, &models.User{Username: username, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, "", common.ErrAlreadyExists
		}
		return nil, "", fmt.Errorf("creating user: %w", err)
	}

	token, err := s.codec.Issue(user.ID, time.Now())
	if err != nil {
		return nil, "", common.ErrInternal
	}

	return user, token, nil
}

// validateCredentials resolves a username/password pair to a user id.
// When the username is unknown the password is still checked against a
// fixed dummy hash, so a rejection takes the same time either way.
func (s *Service) validateCredentials(ctx context.Context, username, password string) (uuid.UUID, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			if _, verr := s.hasher.Verify(ctx, password, auth.DummyHash); verr != nil {
				return uuid.Nil, common.ErrInternal
			}
			return uuid.Nil, common.ErrInvalidCredential
		}
		return uuid.Nil, common.ErrInternal
	}

	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return uuid.Nil, common.ErrInternal
	}
	if !ok {
		return uuid.Nil, common.ErrInvalidCredential
	}

	return user.ID, nil
}

// Login verifies the credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	userID, err := s.validateCredentials(ctx, username, password)
	if err != nil {
		return "", err
	}

	token, err := s.codec.Issue(userID, time.Now())
	if err != nil {
		return "", common.ErrInternal
	}

	return token, nil
}

// SessionLogin verifies the credentials and opens a server-side session,
// returning the record whose id goes into the cookie. When the caller
// already holds a session, oldSessionID is rotated away via
// sessions.Rotate.
func (s *Service) SessionLogin(ctx context.Context, username, password, oldSessionID string) (*sessions.Record, error) {
	userID, err := s.validateCredentials(ctx, username, password)
	if err != nil {
		return nil, err
	}

	record, err := sessions.NewRecord(time.Now().Add(s.sessionTTL))
	if err != nil {
		return nil, common.ErrInternal
	}
	record.Data[sessions.UserIDKey] = userID.String()

	if oldSessionID != "" {
		record.ID = oldSessionID
		rotated, err := sessions.Rotate(ctx, s.store, record)
		if err != nil {
			return nil, fmt.Errorf("rotating session: %w", err)
		}
		return rotated, nil
	}

	if err := s.store.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	return record, nil
}

// Logout removes the session record. Unknown ids are not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.store.Delete(ctx, sessionID)
}

// ChangePassword verifies the current password before storing a hash of
// the new one.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	if err := validatePassword(next); err != nil {
		return err
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrInvalidCredential
		}
		return common.ErrInternal
	}

	ok, err := s.hasher.Verify(ctx, current, user.PasswordHash)
	if err != nil {
		return common.ErrInternal
	}
	if !ok {
		return common.ErrInvalidCredential
	}

	hash, err := s.hasher.Hash(ctx, next)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	return s.repo.UpdatePasswordHash(ctx, userID, hash)
}

// GetUsername resolves a user id to its username.
func (s *Service) GetUsername(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Username, nil
}
