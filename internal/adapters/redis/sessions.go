package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
)

type SessionStore struct {
	cache *Cache
	ttl   time.Duration
}

func NewSessionStore(cache *Cache, ttl time.Duration) *SessionStore {
	return &SessionStore{cache: cache, ttl: ttl}
}

func sessionKey(id string) string {
	return "session:" + id
}

func activeSessionKey(userID uuid.UUID) string {
	return "session:active:" + userID.String()
}

func (s *SessionStore) Save(ctx context.Context, sess domain.OfferSession) error {
	return s.cache.SetJSON(ctx, sessionKey(sess.ID), sess, s.ttl)
}

func (s *SessionStore) Get(ctx context.Context, id string) (*domain.OfferSession, error) {
	var sess domain.OfferSession
	ok, err := s.cache.GetJSON(ctx, sessionKey(id), &sess)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "session %s", id)
	}
	return &sess, nil
}

// Activate records sessionID as the user's current search and returns the one it
// replaced, if any.
func (s *SessionStore) Activate(ctx context.Context, userID uuid.UUID, sessionID string) (string, error) {
	return s.cache.SwapString(ctx, activeSessionKey(userID), sessionID, s.ttl)
}

const maxSessionUpdateTries = 5

// Update applies fn to the stored session and writes it back only if nobody else
// wrote the session in between. A lost race reruns fn on the fresh copy.
func (s *SessionStore) Update(ctx context.Context, id string, fn func(*domain.OfferSession) error) error {
	key := sessionKey(id)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return errors.Wrapf(domain.ErrNotFound, "session %s", id)
		}
		if err != nil {
			return err
		}
		var sess domain.OfferSession
		if err := json.Unmarshal(data, &sess); err != nil {
			return errors.Wrapf(err, "unmarshal %s", key)
		}
		if err := fn(&sess); err != nil {
			return err
		}
		out, err := json.Marshal(sess)
		if err != nil {
			return errors.Wrapf(err, "marshal %s", key)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxSessionUpdateTries; i++ {
		err := s.cache.Client().Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return errors.Newf("session %s: gave up after %d conflicting writes", id, maxSessionUpdateTries)
}
