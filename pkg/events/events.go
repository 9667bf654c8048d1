// Package events carries record change notifications out of the dashboard.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/modoterra/lifedash/pkg/core"
)

// Op is the kind of change applied to a record.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Change describes one committed mutation.
type Change struct {
	Kind core.Kind `json:"kind"`
	Op   Op        `json:"op"`
	ID   string    `json:"id"`
	Ref  string    `json:"ref,omitempty"`
	At   time.Time `json:"at"`
}

// Publisher delivers changes to interested parties.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
	Close() error
}

// Nop drops every change.
type Nop struct{}

func (Nop) Publish(context.Context, Change) error { return nil }
func (Nop) Close() error                          { return nil }

// Func adapts a function to a Publisher.
type Func func(ctx context.Context, c Change) error

func (f Func) Publish(ctx context.Context, c Change) error { return f(ctx, c) }
func (f Func) Close() error                                { return nil }

// Fanout publishes to every publisher in order. All are attempted; the
// errors are joined.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, c Change) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
