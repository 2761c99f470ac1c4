package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/lettera/lettera/internal/common"
)

const keyPrefix = "session:"

// RedisStore keeps session records in Redis. Expiry is enforced twice:
// the key's native expiry lets Redis evict idle records, and Load
// re-checks the record's own expiry so a not-yet-evicted key still reads
// as absent.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) key(id string) string {
	return keyPrefix + id
}

func (s *RedisStore) Save(ctx context.Context, record *Record) error {
	b, err := msgpack.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: encoding session record: %v", common.ErrBackend, err)
	}

	// The value and its absolute expiry go in one command, so a saved key
	// always carries a native expiry and idle cleanup stays the store's
	// job, not ours.
	err = s.rdb.SetArgs(ctx, s.key(record.ID), b, redis.SetArgs{ExpireAt: record.Expiry}).Err()
	if err != nil {
		return fmt.Errorf("%w: saving session record: %v", common.ErrBackend, err)
	}

	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (*Record, error) {
	b, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: loading session record: %v", common.ErrBackend, err)
	}

	record := &Record{}
	if err := msgpack.Unmarshal(b, record); err != nil {
		return nil, fmt.Errorf("%w: decoding session record: %v", common.ErrBackend, err)
	}

	if record.Expired(time.Now()) {
		// Redis has not evicted the key yet; help it along.
		_ = s.rdb.Del(ctx, s.key(id)).Err()
		return nil, nil
	}

	return record, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: deleting session record: %v", common.ErrBackend, err)
	}
	return nil
}
