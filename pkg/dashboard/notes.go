package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/modoterra/lifedash/pkg/core"
)

const (
	MaxPriority  = 5
	HighPriority = 4
)

var ErrEmptyNote = errors.New("note content is empty")

// NoteStats summarizes the notes widget header.
type NoteStats struct {
	Total        int `json:"total"`
	Unread       int `json:"unread"`
	HighPriority int `json:"high_priority"`
}

// ListNotes returns notes unread first (highest priority first), then read,
// newest first within each group.
func (s *Service) ListNotes(ctx context.Context) ([]core.Note, error) {
	notes, err := list[core.Note](ctx, s, core.KindNote)
	if err != nil {
		return nil, err
	}
	SortNotes(notes)
	return notes, nil
}

// SortNotes orders notes for display.
func SortNotes(notes []core.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		a, b := notes[i], notes[j]
		if a.Read != b.Read {
			return !a.Read
		}
		if !a.Read && a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

// AddNote stores a new unread note with priority 0.
func (s *Service) AddNote(ctx context.Context, content string) core.Mutation {
	content = strings.TrimSpace(content)
	if content == "" {
		return core.Failed(ErrEmptyNote)
	}
	return s.insert(ctx, core.KindNote, core.Note{
		Content:   content,
		CreatedAt: s.now(),
	})
}

func (s *Service) ToggleNoteRead(ctx context.Context, id string, read bool) core.Mutation {
	return s.update(ctx, core.KindNote, id, map[string]any{"is_read": read})
}

func (s *Service) SetNotePriority(ctx context.Context, id string, priority int) core.Mutation {
	if priority < 0 || priority > MaxPriority {
		return core.Failed(fmt.Errorf("priority %d out of range 0..%d", priority, MaxPriority))
	}
	return s.update(ctx, core.KindNote, id, map[string]any{"priority": priority})
}

func (s *Service) DeleteNote(ctx context.Context, id string) core.Mutation {
	return s.delete(ctx, core.KindNote, id)
}

func (s *Service) NoteStats(ctx context.Context) (NoteStats, error) {
	notes, err := list[core.Note](ctx, s, core.KindNote)
	if err != nil {
		return NoteStats{}, err
	}
	return CountNotes(notes), nil
}

// CountNotes computes the header counters. A note is high priority when it
// is unread and its priority is at least HighPriority.
func CountNotes(notes []core.Note) NoteStats {
	st := NoteStats{Total: len(notes)}
	for _, n := range notes {
		if n.Read {
			continue
		}
		st.Unread++
		if n.Priority >= HighPriority {
			st.HighPriority++
		}
	}
	return st
}
