package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/modoterra/lifedash/pkg/core"
	"github.com/modoterra/lifedash/pkg/events"
)

var ErrEmptyTitle = errors.New("title is empty")

// TaskUpdate carries the fields to change; nil fields are left alone.
type TaskUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Progress    *int       `json:"progress,omitempty"`
	Description *string    `json:"description,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
}

// ListTasks returns tasks in their display order.
func (s *Service) ListTasks(ctx context.Context) ([]core.Task, error) {
	tasks, err := list[core.Task](ctx, s, core.KindTask)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Order < tasks[j].Order })
	return tasks, nil
}

// AddTask appends a task at the end of the list, started now, with no
// progress.
func (s *Service) AddTask(ctx context.Context, title, description string) core.Mutation {
	title = strings.TrimSpace(title)
	if title == "" {
		return core.Failed(ErrEmptyTitle)
	}
	tasks, err := list[core.Task](ctx, s, core.KindTask)
	if err != nil {
		return core.Failed(err)
	}
	return s.insert(ctx, core.KindTask, core.Task{
		Title:       title,
		Description: strings.TrimSpace(description),
		StartDate:   s.now(),
		Order:       len(tasks),
	})
}

// UpdateTask applies u. Progress is clamped to 0..100.
func (s *Service) UpdateTask(ctx context.Context, id string, u TaskUpdate) core.Mutation {
	set := map[string]any{}
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" {
			return core.Failed(ErrEmptyTitle)
		}
		set["title"] = title
	}
	if u.Progress != nil {
		set["progress"] = ClampProgress(*u.Progress)
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.StartDate != nil {
		set["start_date"] = *u.StartDate
	}
	return s.update(ctx, core.KindTask, id, set)
}

func (s *Service) DeleteTask(ctx context.Context, id string) core.Mutation {
	return s.delete(ctx, core.KindTask, id)
}

// ReorderTasks moves the task at position from to position to and rewrites
// every task's order. Updates run one by one; failures are counted and
// reported together.
func (s *Service) ReorderTasks(ctx context.Context, from, to int) core.Mutation {
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return core.Failed(err)
	}
	moved, err := MoveTask(tasks, from, to)
	if err != nil {
		return core.Failed(err)
	}

	failed := 0
	for i, t := range moved {
		if t.Order == i {
			continue
		}
		if err := s.store.Update(ctx, core.KindTask.Collection(), t.ID, map[string]any{"order": i}); err != nil {
			s.logger.Warn("update task order failed", "id", t.ID, "order", i, "err", err)
			failed++
		}
	}
	if failed > 0 {
		return core.Failed(fmt.Errorf("failed to update %d task orders", failed))
	}
	s.publish(ctx, core.KindTask, events.OpUpdated, moved[to].ID)
	return core.Succeeded(moved[to].ID)
}

// MoveTask returns a copy of tasks with the element at from moved to to.
// Order fields are not touched.
func MoveTask(tasks []core.Task, from, to int) ([]core.Task, error) {
	if from < 0 || from >= len(tasks) || to < 0 || to >= len(tasks) {
		return nil, fmt.Errorf("move %d -> %d out of range for %d tasks", from, to, len(tasks))
	}
	out := make([]core.Task, 0, len(tasks))
	out = append(out, tasks[:from]...)
	out = append(out, tasks[from+1:]...)
	moved := tasks[from]
	out = append(out[:to], append([]core.Task{moved}, out[to:]...)...)
	return out, nil
}

// ClampProgress limits p to 0..100.
func ClampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// TaskAge renders how long ago a task started, in whole days.
func TaskAge(start, now time.Time) string {
	d := now.Sub(start)
	if d < 0 {
		d = -d
	}
	days := int(d / (24 * time.Hour))
	switch days {
	case 0:
		return "Started today"
	case 1:
		return "Started 1 day ago"
	}
	return fmt.Sprintf("Started %d days ago", days)
}

// Band buckets task progress for coloring.
type Band int

const (
	BandLow Band = iota
	BandFair
	BandGood
	BandHigh
)

func ProgressBand(p int) Band {
	switch {
	case p < 25:
		return BandLow
	case p < 50:
		return BandFair
	case p < 75:
		return BandGood
	}
	return BandHigh
}
