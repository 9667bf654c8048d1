// Package assist runs AI rephrasing against an upstream text-generation
// service and turns its data-stream response into plain text fragments.
package assist

import (
	"context"
	"io"
)

// Request is one generation request.
type Request struct {
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
}

// Provider starts a generation and returns the response body in the
// line-prefixed data-stream framing read by stream.Normalizer. The caller
// closes the body. Cancelling ctx aborts the upstream request.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request) (io.ReadCloser, error)
}

// FragmentProvider is a Provider that can also deliver the generated text
// directly as plain fragments. Service prefers this path when available.
type FragmentProvider interface {
	Provider
	Fragments(ctx context.Context, req Request, emit func(string) error) error
}
