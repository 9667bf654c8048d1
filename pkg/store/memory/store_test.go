package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modoterra/lifedash/pkg/store"
	"github.com/modoterra/lifedash/pkg/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New()
	})
}

func TestFindReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.Insert(ctx, "notes", map[string]any{"content": "a"})
	require.NoError(t, err)

	first, err := s.Find(ctx, "notes", store.Query{})
	require.NoError(t, err)
	first[0][2] = 'X'

	again, err := s.Find(ctx, "notes", store.Query{})
	require.NoError(t, err)
	assert.NotEqual(t, first[0], again[0])
}

func TestClosedStore(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())

	ctx := context.Background()
	assert.Error(t, s.Ping(ctx))
	_, err := s.Insert(ctx, "notes", map[string]any{})
	assert.Error(t, err)
}

func TestCanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Insert(ctx, "notes", map[string]any{})
	assert.ErrorIs(t, err, context.Canceled)
}
