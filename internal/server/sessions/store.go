package sessions

import (
	"context"
	"fmt"
)

// Store is the adapter over the backing cache. Implementations must treat
// a logically expired record as absent on Load even if the physical key
// still exists, and must wrap backend failures in common.ErrBackend so
// callers can tell an outage from a missing session.
type Store interface {
	// Save serializes the record and upserts it under its id, delegating
	// idle cleanup to the backing store via the record's absolute expiry.
	Save(ctx context.Context, record *Record) error

	// Load returns (nil, nil) when the id is absent or the record has
	// expired, and a non-nil error only on backend failure.
	Load(ctx context.Context, id string) (*Record, error)

	// Delete removes the record. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
}

// Rotate replaces the record's id with a fresh one: the old id is deleted
// before the new record is saved, so the old id is invalid no later than
// the new one becomes valid. Used on login to defeat session fixation.
func Rotate(ctx context.Context, s Store, record *Record) (*Record, error) {
	id, err := NewID()
	if err != nil {
		return nil, fmt.Errorf("minting session id: %w", err)
	}

	if err := s.Delete(ctx, record.ID); err != nil {
		return nil, err
	}

	rotated := &Record{
		ID:     id,
		Data:   record.Data,
		Expiry: record.Expiry,
	}
	if err := s.Save(ctx, rotated); err != nil {
		return nil, err
	}

	return rotated, nil
}
