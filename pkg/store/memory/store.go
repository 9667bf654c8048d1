// Package memory is an in-process document store. Contents are lost when
// the daemon exits.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/modoterra/lifedash/pkg/store"
)

type document struct {
	id   string
	body []byte
}

// Store keeps documents per collection in insertion order.
type Store struct {
	mu          sync.Mutex
	collections map[string][]document
	closed      bool
}

// New creates an empty store.
func New() *Store {
	return &Store{collections: make(map[string][]document)}
}

func (s *Store) Name() string { return "memory" }

func (s *Store) Insert(ctx context.Context, collection string, doc any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := store.NewID()
	body, err := store.Encode(doc, id)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return "", err
	}
	s.collections[collection] = append(s.collections[collection], document{id: id, body: body})
	return id, nil
}

func (s *Store) Find(ctx context.Context, collection string, q store.Query) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q = q.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, err
	}
	docs := s.collections[collection]
	if q.Skip >= len(docs) {
		return []json.RawMessage{}, nil
	}
	docs = docs[q.Skip:]
	if len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}

	out := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		out[i] = append(json.RawMessage(nil), d.body...)
	}
	return out, nil
}

func (s *Store) FindByID(ctx context.Context, collection, id string) (json.RawMessage, error) {
	if err := store.CheckID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, err
	}
	i := s.index(collection, id)
	if i < 0 {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return append(json.RawMessage(nil), s.collections[collection][i].body...), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, set map[string]any) error {
	if err := store.CheckID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	i := s.index(collection, id)
	if i < 0 {
		return fmt.Errorf("update %s/%s: %w", collection, id, store.ErrNotFound)
	}
	body, err := store.Merge(s.collections[collection][i].body, set)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	s.collections[collection][i].body = body
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := store.CheckID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	i := s.index(collection, id)
	if i < 0 {
		return fmt.Errorf("delete %s/%s: %w", collection, id, store.ErrNotFound)
	}
	docs := s.collections[collection]
	s.collections[collection] = append(docs[:i:i], docs[i+1:]...)
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usable()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var errClosed = errors.New("memory store closed")

func (s *Store) usable() error {
	if s.closed {
		return errClosed
	}
	return nil
}

func (s *Store) index(collection, id string) int {
	for i, d := range s.collections[collection] {
		if d.id == id {
			return i
		}
	}
	return -1
}

var _ store.Store = (*Store)(nil)
