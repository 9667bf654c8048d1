// Package storetest holds the behaviour every store backend must share.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modoterra/lifedash/pkg/store"
)

type note struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Priority int    `json:"priority"`
	IsRead   bool   `json:"is_read"`
}

// Run exercises open's backend. open must return an empty store.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("InsertAssignsID", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		id, err := s.Insert(ctx, "notes", note{Content: "buy milk", Priority: 2})
		require.NoError(t, err)
		require.NoError(t, store.CheckID(id))

		got, err := store.Get[note](ctx, s, "notes", id)
		require.NoError(t, err)
		assert.Equal(t, note{ID: id, Content: "buy milk", Priority: 2}, got)
	})

	t.Run("InsertRejectsNonObject", func(t *testing.T) {
		s := open(t)
		_, err := s.Insert(context.Background(), "notes", []int{1, 2})
		assert.Error(t, err)
	})

	t.Run("FindPagesInInsertionOrder", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			_, err := s.Insert(ctx, "notes", note{Content: fmt.Sprintf("n%d", i)})
			require.NoError(t, err)
		}
		_, err := s.Insert(ctx, "tasks", map[string]any{"title": "other collection"})
		require.NoError(t, err)

		all, err := store.FindAll[note](ctx, s, "notes", store.Query{})
		require.NoError(t, err)
		require.Len(t, all, 5)
		for i, n := range all {
			assert.Equal(t, fmt.Sprintf("n%d", i), n.Content)
		}

		page, err := store.FindAll[note](ctx, s, "notes", store.Query{Limit: 2, Skip: 3})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "n3", page[0].Content)
		assert.Equal(t, "n4", page[1].Content)

		past, err := s.Find(ctx, "notes", store.Query{Skip: 10})
		require.NoError(t, err)
		assert.Empty(t, past)

		none, err := s.Find(ctx, "events", store.Query{})
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("UpdateMergesFields", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		id, err := s.Insert(ctx, "notes", note{Content: "draft", Priority: 1})
		require.NoError(t, err)

		require.NoError(t, s.Update(ctx, "notes", id, map[string]any{
			"is_read": true,
			"id":      "00000000-0000-0000-0000-000000000000",
		}))

		raw, err := s.FindByID(ctx, "notes", id)
		require.NoError(t, err)
		var fields map[string]any
		require.NoError(t, json.Unmarshal(raw, &fields))
		assert.Equal(t, id, fields["id"])
		assert.Equal(t, "draft", fields["content"])
		assert.Equal(t, true, fields["is_read"])
		assert.EqualValues(t, 1, fields["priority"])
	})

	t.Run("MissingRecords", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		missing := store.NewID()

		_, err := s.FindByID(ctx, "notes", missing)
		assert.True(t, errors.Is(err, store.ErrNotFound), "find: %v", err)
		err = s.Update(ctx, "notes", missing, map[string]any{"content": "x"})
		assert.True(t, errors.Is(err, store.ErrNotFound), "update: %v", err)
		err = s.Delete(ctx, "notes", missing)
		assert.True(t, errors.Is(err, store.ErrNotFound), "delete: %v", err)
	})

	t.Run("InvalidIDs", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		for _, id := range []string{"", "42", "not-a-uuid"} {
			_, err := s.FindByID(ctx, "notes", id)
			assert.ErrorIs(t, err, store.ErrInvalidID)
			assert.ErrorIs(t, s.Update(ctx, "notes", id, nil), store.ErrInvalidID)
			assert.ErrorIs(t, s.Delete(ctx, "notes", id), store.ErrInvalidID)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		keep, err := s.Insert(ctx, "notes", note{Content: "keep"})
		require.NoError(t, err)
		drop, err := s.Insert(ctx, "notes", note{Content: "drop"})
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, "notes", drop))

		all, err := store.FindAll[note](ctx, s, "notes", store.Query{})
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, keep, all[0].ID)
	})

	t.Run("ConcurrentInserts", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.Insert(ctx, "notes", note{Content: fmt.Sprintf("c%d", i)})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		all, err := s.Find(ctx, "notes", store.Query{})
		require.NoError(t, err)
		assert.Len(t, all, 20)
	})

	t.Run("Ping", func(t *testing.T) {
		s := open(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}
