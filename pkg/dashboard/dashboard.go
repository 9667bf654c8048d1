// Package dashboard implements the widget operations: notes, tasks, events,
// cash flow and subscriptions over a document store.
//
// Reads return data and an error. Writes return a core.Mutation so that a
// rejected quick entry or a storage failure reaches the caller as
// {success:false, error} instead of a transport error.
package dashboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/modoterra/lifedash/pkg/core"
	"github.com/modoterra/lifedash/pkg/events"
	"github.com/modoterra/lifedash/pkg/store"
)

// Service runs widget operations against a store.
type Service struct {
	store     store.Store
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sends a change event after every committed mutation.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger for publish failures and rejected quick entries.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a service over st.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:     st,
		publisher: events.Nop{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() store.Store { return s.store }

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.now() }

func (s *Service) insert(ctx context.Context, kind core.Kind, doc any) core.Mutation {
	id, err := s.store.Insert(ctx, kind.Collection(), doc)
	if err != nil {
		return core.Failed(err)
	}
	s.publish(ctx, kind, events.OpCreated, id)
	return core.Succeeded(id)
}

func (s *Service) update(ctx context.Context, kind core.Kind, id string, set map[string]any) core.Mutation {
	if len(set) == 0 {
		return core.Succeeded(id)
	}
	if err := s.store.Update(ctx, kind.Collection(), id, set); err != nil {
		return core.Failed(err)
	}
	s.publish(ctx, kind, events.OpUpdated, id)
	return core.Succeeded(id)
}

func (s *Service) delete(ctx context.Context, kind core.Kind, id string) core.Mutation {
	if err := s.store.Delete(ctx, kind.Collection(), id); err != nil {
		return core.Failed(err)
	}
	s.publish(ctx, kind, events.OpDeleted, id)
	return core.Succeeded(id)
}

// publish never fails the mutation; the record is already committed.
func (s *Service) publish(ctx context.Context, kind core.Kind, op events.Op, id string) {
	c := events.Change{
		Kind: kind,
		Op:   op,
		ID:   id,
		Ref:  core.RecordRef(kind, s.store.Name(), id),
		At:   s.now(),
	}
	if err := s.publisher.Publish(ctx, c); err != nil {
		s.logger.Warn("publish change failed", "kind", kind, "op", op, "id", id, "err", err)
	}
}

func list[T any](ctx context.Context, s *Service, kind core.Kind) ([]T, error) {
	return store.FindAll[T](ctx, s.store, kind.Collection(), store.Query{Limit: store.DefaultLimit})
}
