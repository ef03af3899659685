package sqlstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/julianstephens/lectern/internal/live"
	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/internal/query"
)

// Subscribe evaluates q and keeps the subscriber current: every commit that
// touches q's table recomputes q and pushes the result on Updates. The
// initial result and the registration happen under one read lock, so no
// commit falls between them.
func (s *Store) Subscribe(ctx context.Context, q query.Query) (*live.Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	initial, err := s.findMany(ctx, s.db, q)
	if err != nil {
		return nil, err
	}
	recompute := func(ctx context.Context) ([]models.Row, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.findMany(ctx, s.db, q)
	}

	sub, err := s.hub.Register(ctx, []models.Entity{q.Entity}, initial, recompute)
	if err != nil {
		return nil, err
	}
	s.log.Debug("subscribed", "id", sub.ID, "query", q.String())
	return sub, nil
}

// Unsubscribe stops a subscription and closes its Updates channel.
func (s *Store) Unsubscribe(id uuid.UUID) bool {
	return s.hub.Unsubscribe(id)
}
