package idempotency

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	redisadapter "github.com/robertarktes/corporate-rail-bookings/internal/adapters/redis"
)

var ErrInFlight = errors.New("request with this idempotency key is in progress")

type Store interface {
	Get(ctx context.Context, key string) (*redisadapter.IdempResponse, error)
	Set(ctx context.Context, key string, resp redisadapter.IdempResponse, ttl time.Duration) error
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type Idempotency struct {
	store Store
	ttl   time.Duration
}

func NewIdempotency(store Store, ttl time.Duration) *Idempotency {
	return &Idempotency{store: store, ttl: ttl}
}

type Response struct {
	Status      int
	ContentType string
	Result      []byte
}

func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	stored, err := i.store.Get(ctx, key)
	if err != nil || stored == nil {
		return nil, err
	}
	return &Response{Status: stored.Status, ContentType: stored.ContentType, Result: stored.Result}, nil
}

// Begin claims key. It returns ErrInFlight while another request holds the same key.
func (i *Idempotency) Begin(ctx context.Context, key string) error {
	ok, err := i.store.Lock(ctx, key, i.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInFlight
	}
	return nil
}

// Claim takes key for a new request. When the key was already served, including
// by a request that finished after the caller's last Get, the stored response is
// returned instead and the caller must replay it. ErrInFlight means another
// request holds the key and has not finished.
func (i *Idempotency) Claim(ctx context.Context, key string) (*Response, error) {
	claimErr := i.Begin(ctx, key)
	if claimErr != nil && !errors.Is(claimErr, ErrInFlight) {
		return nil, claimErr
	}
	stored, err := i.Get(ctx, key)
	if err != nil {
		if claimErr == nil {
			_ = i.store.Unlock(ctx, key)
		}
		return nil, err
	}
	if stored != nil {
		return stored, nil
	}
	return nil, claimErr
}

// Finish stores resp for replay, failures included. The claim is kept until it
// expires together with the stored response; it is released only when the
// response could not be stored.
func (i *Idempotency) Finish(ctx context.Context, key string, resp Response) error {
	err := i.store.Set(ctx, key, redisadapter.IdempResponse{
		Status:      resp.Status,
		ContentType: resp.ContentType,
		Result:      resp.Result,
	}, i.ttl)
	if err != nil {
		_ = i.store.Unlock(ctx, key)
		return err
	}
	return nil
}
