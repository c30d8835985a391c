package profile

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/enrich"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
)

type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetOrganizations(ctx context.Context, ids []uuid.UUID) ([]domain.Organization, error)
}

type Service struct {
	directory Directory
	timeout   time.Duration
	logger    observability.Logger
}

func NewService(directory Directory, timeout time.Duration, logger observability.Logger) *Service {
	return &Service{directory: directory, timeout: timeout, logger: logger}
}

// Load returns the user with their organizations. A slow or failing directory yields
// a partial profile holding only the id; an unknown user is still an error.
func (s *Service) Load(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	load := enrich.RetryOnce(func(ctx context.Context) (domain.Profile, error) {
		user, err := s.directory.GetUser(ctx, userID)
		if err != nil {
			return domain.Profile{}, err
		}
		orgs, err := s.directory.GetOrganizations(ctx, user.OrgIDs)
		if err != nil {
			return domain.Profile{}, err
		}
		return domain.Profile{User: *user, Organizations: orgs}, nil
	}, func(err error) bool {
		return enrich.NotTimeout(err) && !errors.Is(err, domain.ErrNotFound)
	})

	fallback := domain.Profile{User: domain.User{ID: userID}, Organizations: []domain.Organization{}, Partial: true}
	res := enrich.BestEffort(ctx, s.timeout, load, fallback)
	if res.Err != nil && errors.Is(res.Err, domain.ErrNotFound) {
		return nil, res.Err
	}
	if res.Partial {
		observability.PartialProfiles.Inc()
		observability.LoggerFromContext(ctx, s.logger).WithError(res.Err).WithField("user_id", userID).Warn("serving partial profile")
	}
	return &res.Value, nil
}
