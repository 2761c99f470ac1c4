package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lettera/lettera/internal/common"
	"github.com/lettera/lettera/internal/server/sessions"
)

// SchemePrefix is the accepted Authorization header scheme.
const SchemePrefix = "Bearer "

// Principal is the minimal authenticated identity any transport resolves
// to. Downstream code looks up everything else in the relational store.
type Principal struct {
	UserID uuid.UUID
}

// Carriers holds the raw transport values the HTTP layer extracted from a
// request. Empty string means the carrier was not present.
type Carriers struct {
	// Authorization is the full Authorization header value.
	Authorization string
	// TokenCookie is the value of the legacy self-contained token cookie.
	TokenCookie string
	// SessionID is the value of the session-id cookie.
	SessionID string
}

// Authenticator extracts a Principal from a request's carriers. Transports
// are tried in a fixed order (bearer header, then token cookie, then
// session id) and the first carrier that is present decides the outcome.
//
// Error contract: ErrMissingCredential when no carrier is present at all,
// ErrInvalidCredential for a present-but-unverifiable bearer or token
// cookie, ErrNotAuthenticated for a session id with no live record, and a
// wrapped ErrBackend when the session store is unreachable. The caller
// must turn that last one into a server error, not a 401.
type Authenticator struct {
	codec *TokenCodec
	store sessions.Store
	now   func() time.Time
}

func NewAuthenticator(codec *TokenCodec, store sessions.Store) *Authenticator {
	return &Authenticator{
		codec: codec,
		store: store,
		now:   time.Now,
	}
}

func (a *Authenticator) Authenticate(ctx context.Context, carriers Carriers) (Principal, error) {
	if carriers.Authorization != "" {
		return a.fromBearer(carriers.Authorization)
	}
	if carriers.TokenCookie != "" {
		return a.fromToken(carriers.TokenCookie)
	}
	if carriers.SessionID != "" {
		return a.fromSession(ctx, carriers.SessionID)
	}
	return Principal{}, common.ErrMissingCredential
}

func (a *Authenticator) fromBearer(header string) (Principal, error) {
	if !strings.HasPrefix(header, SchemePrefix) {
		return Principal{}, common.ErrInvalidCredential
	}
	return a.fromToken(strings.TrimPrefix(header, SchemePrefix))
}

func (a *Authenticator) fromToken(token string) (Principal, error) {
	userID, err := a.codec.Verify(token, a.now())
	if err != nil {
		return Principal{}, common.ErrInvalidCredential
	}
	return Principal{UserID: userID}, nil
}

func (a *Authenticator) fromSession(ctx context.Context, id string) (Principal, error) {
	record, err := a.store.Load(ctx, id)
	if err != nil {
		// A store outage is not a logged-out user.
		return Principal{}, err
	}
	if record == nil {
		return Principal{}, common.ErrNotAuthenticated
	}

	userID, err := uuid.Parse(record.Data[sessions.UserIDKey])
	if err != nil {
		return Principal{}, common.ErrNotAuthenticated
	}

	return Principal{UserID: userID}, nil
}
