package quickentry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	descriptionRe = regexp.MustCompile(`"([^"]+)"$`)
	eventDateRe   = regexp.MustCompile(`^(\d{1,4}/\d{1,2}(?:/\d{1,4})?) `)
	eventTimeRe   = regexp.MustCompile(`^(\d{1,2}:\d{2}(?::\d{2})?) `)
)

// EventEntry is the result of parsing an event quick-entry line.
type EventEntry struct {
	Date        time.Time
	Title       string
	Description string
}

// ParseEvent parses "[date] time title ["description"]" relative to now.
//
// The date is m/d (in now's year) or y/m/d with the year taken literally.
// It defaults to now's date. The time is h:mm or h:mm:ss and is mandatory.
// Numeric ranges are not checked: out-of-range months, days or hours roll
// over through calendar normalization, e.g. 13/1 is January of next year.
func ParseEvent(input string, now time.Time) (EventEntry, error) {
	remaining := strings.TrimSpace(input)

	var description string
	if loc := descriptionRe.FindStringSubmatchIndex(remaining); loc != nil {
		description = remaining[loc[2]:loc[3]]
		remaining = strings.TrimSpace(remaining[:loc[0]])
	}

	year, month, day := now.Date()
	if m := eventDateRe.FindStringSubmatch(remaining); m != nil {
		parts := atoiAll(strings.Split(m[1], "/"))
		switch len(parts) {
		case 2:
			month, day = time.Month(parts[0]), parts[1]
		case 3:
			year, month, day = parts[0], time.Month(parts[1]), parts[2]
		}
		remaining = remaining[len(m[0]):]
	}

	m := eventTimeRe.FindStringSubmatch(remaining)
	if m == nil {
		return EventEntry{}, reject(input, ErrMalformedEvent)
	}
	clock := atoiAll(strings.Split(m[1], ":"))
	sec := 0
	if len(clock) > 2 {
		sec = clock[2]
	}
	remaining = remaining[len(m[0]):]

	title := strings.TrimSpace(remaining)
	if title == "" {
		return EventEntry{}, reject(input, ErrMalformedEvent)
	}

	return EventEntry{
		Date:        time.Date(year, month, day, clock[0], clock[1], sec, 0, now.Location()),
		Title:       title,
		Description: description,
	}, nil
}

// FormatEvent renders an entry in the canonical quick-entry form
// "y/m/d h:mm:ss title "description"". ParseEvent of the result yields an
// equivalent entry as long as the description has no double quotes and the
// title does not itself end in a quoted segment.
func FormatEvent(e EventEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d/%d %d:%02d:%02d %s",
		e.Date.Year(), int(e.Date.Month()), e.Date.Day(),
		e.Date.Hour(), e.Date.Minute(), e.Date.Second(),
		e.Title)
	if e.Description != "" {
		b.WriteString(` "` + e.Description + `"`)
	}
	return b.String()
}

// atoiAll converts regex-matched digit groups; they are at most four digits
// so conversion cannot fail.
func atoiAll(ss []string) []int {
	out := make([]int, len(ss))
	for i, s := range ss {
		out[i], _ = strconv.Atoi(s)
	}
	return out
}
