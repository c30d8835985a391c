package profile_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
	"github.com/robertarktes/corporate-rail-bookings/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	getUser func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	getOrgs func(ctx context.Context, ids []uuid.UUID) ([]domain.Organization, error)
}

func (f fakeDirectory) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return f.getUser(ctx, id)
}

func (f fakeDirectory) GetOrganizations(ctx context.Context, ids []uuid.UUID) ([]domain.Organization, error) {
	if f.getOrgs == nil {
		return []domain.Organization{}, nil
	}
	return f.getOrgs(ctx, ids)
}

func TestService_LoadFull(t *testing.T) {
	org := domain.Organization{ID: uuid.New(), Name: "Acme"}
	user := domain.User{ID: uuid.New(), Email: "a@acme.test", OrgIDs: []uuid.UUID{org.ID}}
	svc := profile.NewService(fakeDirectory{
		getUser: func(context.Context, uuid.UUID) (*domain.User, error) { return &user, nil },
		getOrgs: func(context.Context, []uuid.UUID) ([]domain.Organization, error) {
			return []domain.Organization{org}, nil
		},
	}, time.Second, observability.NewNopLogger())

	p, err := svc.Load(t.Context(), user.ID)
	require.NoError(t, err)
	assert.False(t, p.Partial)
	assert.Equal(t, "a@acme.test", p.User.Email)
	assert.Equal(t, []domain.Organization{org}, p.Organizations)
}

func TestService_LoadSlowDirectoryIsPartial(t *testing.T) {
	svc := profile.NewService(fakeDirectory{
		getUser: func(ctx context.Context, _ uuid.UUID) (*domain.User, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}, 20*time.Millisecond, observability.NewNopLogger())

	id := uuid.New()
	p, err := svc.Load(t.Context(), id)
	require.NoError(t, err)
	assert.True(t, p.Partial)
	assert.Equal(t, id, p.User.ID)
	assert.Empty(t, p.Organizations)
}

func TestService_LoadRetriesOnce(t *testing.T) {
	calls := 0
	user := domain.User{ID: uuid.New()}
	svc := profile.NewService(fakeDirectory{
		getUser: func(context.Context, uuid.UUID) (*domain.User, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("connection reset")
			}
			return &user, nil
		},
	}, time.Second, observability.NewNopLogger())

	p, err := svc.Load(t.Context(), user.ID)
	require.NoError(t, err)
	assert.False(t, p.Partial)
	assert.Equal(t, 2, calls)
}

func TestService_LoadUnknownUser(t *testing.T) {
	svc := profile.NewService(fakeDirectory{
		getUser: func(_ context.Context, id uuid.UUID) (*domain.User, error) {
			return nil, errors.Wrapf(domain.ErrNotFound, "user %s", id)
		},
	}, time.Second, observability.NewNopLogger())

	_, err := svc.Load(t.Context(), uuid.New())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
