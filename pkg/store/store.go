// Package store is the document persistence layer behind the dashboard.
// Records are JSON documents grouped into collections and addressed by a
// UUID string assigned on insert.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrInvalidID = errors.New("invalid record id")
)

// DefaultLimit caps list queries that do not set their own limit.
const DefaultLimit = 100

// Query pages through a collection in insertion order.
type Query struct {
	Limit int
	Skip  int
}

// Normalize fills in defaults.
func (q Query) Normalize() Query {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	return q
}

// Store is a document store. Implementations must be safe for concurrent use.
type Store interface {
	// Name identifies the backend in record references and logs.
	Name() string
	// Insert stores doc under a freshly generated ID and returns that ID.
	// The ID is also written into the document's "id" field.
	Insert(ctx context.Context, collection string, doc any) (string, error)
	Find(ctx context.Context, collection string, q Query) ([]json.RawMessage, error)
	FindByID(ctx context.Context, collection, id string) (json.RawMessage, error)
	// Update merges set into the stored document. The "id" field cannot be
	// changed.
	Update(ctx context.Context, collection, id string, set map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Ping(ctx context.Context) error
	Close() error
}

// NewID returns a fresh record ID.
func NewID() string {
	return uuid.NewString()
}

// CheckID rejects IDs that are not UUIDs before they reach a backend.
func CheckID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w %q", ErrInvalidID, id)
	}
	return nil
}

// Encode marshals doc as a JSON object carrying id.
func Encode(doc any, id string) ([]byte, error) {
	fields, err := toFields(doc)
	if err != nil {
		return nil, err
	}
	fields["id"] = id
	return json.Marshal(fields)
}

// Merge applies set on top of the stored document body.
func Merge(body []byte, set map[string]any) ([]byte, error) {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode stored document: %w", err)
	}
	id := fields["id"]
	for k, v := range set {
		fields[k] = v
	}
	fields["id"] = id
	return json.Marshal(fields)
}

func toFields(doc any) (map[string]any, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("document must be a JSON object: %w", err)
	}
	if fields == nil {
		return nil, errors.New("document must be a JSON object")
	}
	return fields, nil
}

// FindAll decodes a page of a collection into T.
func FindAll[T any](ctx context.Context, s Store, collection string, q Query) ([]T, error) {
	raws, err := s.Find(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s document: %w", collection, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Get decodes a single document into T.
func Get[T any](ctx context.Context, s Store, collection, id string) (T, error) {
	var v T
	raw, err := s.FindByID(ctx, collection, id)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return v, nil
}
