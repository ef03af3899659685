// Package live delivers fresh query results to subscribers after commits.
//
// The hub is keyed by table: a publisher announces which tables a commit
// touched, and every subscription watching one of them recomputes its result
// on its own goroutine. Notifications coalesce, so a burst of commits costs
// at most one pending recompute per subscription.
package live

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/julianstephens/lectern/internal/constants"
	"github.com/julianstephens/lectern/internal/logger"
	"github.com/julianstephens/lectern/internal/models"
)

var ErrClosed = errors.New("live: hub closed")

// Update is one recomputed result. Seq increases by one per update.
type Update struct {
	Rows []models.Row
	Err  error
	Seq  uint64
}

// RecomputeFunc re-runs a subscription's query.
type RecomputeFunc func(ctx context.Context) ([]models.Row, error)

type Subscription struct {
	ID      uuid.UUID
	Initial []models.Row

	tables    map[models.Entity]bool
	recompute RecomputeFunc
	dirty     chan struct{}
	updates   chan Update
	ctx       context.Context
	cancel    context.CancelFunc
}

// Updates is closed once the subscription stops.
func (s *Subscription) Updates() <-chan Update {
	return s.updates
}

// Done is closed when the subscription is stopped or its context ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *Subscription) watches(tables []models.Entity) bool {
	for _, t := range tables {
		if s.tables[t] {
			return true
		}
	}
	return false
}

func (s *Subscription) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]*Subscription
	closed bool
	wg     sync.WaitGroup
	log    *log.Logger
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[uuid.UUID]*Subscription),
		log:  logger.With("component", "live"),
	}
}

// Register adds a subscription watching tables. Its lifetime is bounded by
// ctx, Unsubscribe and Close. initial is handed back unchanged as
// Subscription.Initial.
func (h *Hub) Register(ctx context.Context, tables []models.Entity, initial []models.Row, recompute RecomputeFunc) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		ID:        uuid.New(),
		Initial:   initial,
		tables:    make(map[models.Entity]bool, len(tables)),
		recompute: recompute,
		dirty:     make(chan struct{}, 1),
		updates:   make(chan Update, constants.DefaultSubscriptionBacklog),
		ctx:       subCtx,
		cancel:    cancel,
	}
	for _, t := range tables {
		s.tables[t] = true
	}
	h.subs[s.ID] = s

	h.wg.Add(1)
	go h.run(s)

	h.log.Debug("subscribed", "id", s.ID, "tables", tables)
	return s, nil
}

func (h *Hub) run(s *Subscription) {
	defer h.wg.Done()
	defer close(s.updates)
	defer h.remove(s.ID)
	defer s.cancel()

	var seq uint64
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.dirty:
		}

		rows, err := s.recompute(s.ctx)
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			h.log.Warn("recompute failed", "id", s.ID, "err", err)
		}
		seq++

		select {
		case s.updates <- Update{Rows: rows, Err: err, Seq: seq}:
		case <-s.ctx.Done():
			return
		}
	}
}

func (h *Hub) remove(id uuid.UUID) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Publish marks every subscription watching one of tables for recompute.
// It never blocks on subscribers.
func (h *Hub) Publish(tables ...models.Entity) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, s := range h.subs {
		if s.watches(tables) {
			s.markDirty()
			n++
		}
	}
	if n > 0 {
		h.log.Debug("published", "tables", tables, "subscribers", n)
	}
}

// Unsubscribe stops the subscription. It reports false for an unknown id.
func (h *Hub) Unsubscribe(id uuid.UUID) bool {
	h.mu.Lock()
	s, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()

	if !ok {
		return false
	}
	s.cancel()
	h.log.Debug("unsubscribed", "id", id)
	return true
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close stops every subscription and waits for their goroutines to exit.
// Later Register calls fail with ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for _, s := range h.subs {
		s.cancel()
	}
	h.mu.Unlock()

	h.wg.Wait()
}
