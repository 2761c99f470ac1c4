// Package sessions persists server-side session state in a shared,
// TTL-based store. Records are opaque to clients: the browser only ever
// sees the session id.
package sessions

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// UserIDKey is the record data key holding the authenticated user id.
const UserIDKey = "user_id"

// Record is a single server-side session. The msgpack field names are
// part of the wire format: records written by an older build must stay
// readable after fields are added, so never rename or reuse them.
type Record struct {
	ID     string            `msgpack:"id"`
	Data   map[string]string `msgpack:"data"`
	Expiry time.Time         `msgpack:"expiry"`
}

// NewRecord mints a record with a fresh random id and the given expiry.
func NewRecord(expiry time.Time) (*Record, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	return &Record{
		ID:     id,
		Data:   make(map[string]string),
		Expiry: expiry,
	}, nil
}

// NewID returns a random 128-bit session id encoded as 32 hex characters.
func NewID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Expired reports whether the record's expiry has elapsed at now.
func (r *Record) Expired(now time.Time) bool {
	return !r.Expiry.After(now)
}
