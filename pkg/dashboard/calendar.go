package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/modoterra/lifedash/pkg/core"
	"github.com/modoterra/lifedash/pkg/quickentry"
)

// EventUpdate carries the fields to change; nil fields are left alone.
type EventUpdate struct {
	Date        *time.Time `json:"date,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
}

// DayGroup is one calendar day of upcoming events.
type DayGroup struct {
	Day    time.Time    `json:"day"`
	Label  string       `json:"label"`
	Events []core.Event `json:"events"`
}

// ListEvents returns every event in chronological order.
func (s *Service) ListEvents(ctx context.Context) ([]core.Event, error) {
	evs, err := list[core.Event](ctx, s, core.KindEvent)
	if err != nil {
		return nil, err
	}
	sortEvents(evs)
	return evs, nil
}

// UpcomingEvents returns today's and later events grouped by day.
func (s *Service) UpcomingEvents(ctx context.Context) ([]DayGroup, error) {
	evs, err := list[core.Event](ctx, s, core.KindEvent)
	if err != nil {
		return nil, err
	}
	return GroupUpcoming(evs, s.now()), nil
}

// AddEvent stores ev. The title must not be empty.
func (s *Service) AddEvent(ctx context.Context, ev core.Event) core.Mutation {
	ev.Title = strings.TrimSpace(ev.Title)
	if ev.Title == "" {
		return core.Failed(ErrEmptyTitle)
	}
	if ev.Date.IsZero() {
		return core.Failed(fmt.Errorf("event %q has no date", ev.Title))
	}
	ev.ID = ""
	return s.insert(ctx, core.KindEvent, ev)
}

// QuickAddEvent parses a quick-entry line and stores the event. A rejected
// line comes back as a failed mutation carrying the format hint.
func (s *Service) QuickAddEvent(ctx context.Context, input string) core.Mutation {
	entry, err := quickentry.ParseEvent(input, s.now())
	if err != nil {
		s.logger.Debug("quick entry rejected", "err", quickentry.Describe(err))
		return core.Failed(err)
	}
	return s.AddEvent(ctx, core.Event{
		Date:        entry.Date,
		Title:       entry.Title,
		Description: entry.Description,
	})
}

func (s *Service) UpdateEvent(ctx context.Context, id string, u EventUpdate) core.Mutation {
	set := map[string]any{}
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" {
			return core.Failed(ErrEmptyTitle)
		}
		set["title"] = title
	}
	if u.Date != nil {
		set["date"] = *u.Date
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	return s.update(ctx, core.KindEvent, id, set)
}

func (s *Service) DeleteEvent(ctx context.Context, id string) core.Mutation {
	return s.delete(ctx, core.KindEvent, id)
}

// GroupUpcoming drops events before today (in now's location), sorts the
// rest and groups them by calendar day.
func GroupUpcoming(evs []core.Event, now time.Time) []DayGroup {
	today := startOfDay(now)
	var upcoming []core.Event
	for _, ev := range evs {
		if !startOfDay(ev.Date.In(now.Location())).Before(today) {
			upcoming = append(upcoming, ev)
		}
	}
	sortEvents(upcoming)

	var groups []DayGroup
	for _, ev := range upcoming {
		day := startOfDay(ev.Date.In(now.Location()))
		if n := len(groups); n > 0 && groups[n-1].Day.Equal(day) {
			groups[n-1].Events = append(groups[n-1].Events, ev)
			continue
		}
		groups = append(groups, DayGroup{
			Day:    day,
			Label:  RelativeDay(day, now),
			Events: []core.Event{ev},
		})
	}
	return groups
}

// RelativeDay describes day relative to now's calendar day: Today,
// Tomorrow, Yesterday, In N days or N days ago.
func RelativeDay(day, now time.Time) string {
	diff := daysBetween(startOfDay(now), startOfDay(day.In(now.Location())))
	switch {
	case diff == 0:
		return "Today"
	case diff == 1:
		return "Tomorrow"
	case diff == -1:
		return "Yesterday"
	case diff > 1:
		return fmt.Sprintf("In %d days", diff)
	}
	return fmt.Sprintf("%d days ago", -diff)
}

func sortEvents(evs []core.Event) {
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].Date.Before(evs[j].Date) })
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from a to b, both at midnight. Rounding
// absorbs DST shifts.
func daysBetween(a, b time.Time) int {
	h := b.Sub(a).Hours() / 24
	if h < 0 {
		return -int(-h + 0.5)
	}
	return int(h + 0.5)
}
