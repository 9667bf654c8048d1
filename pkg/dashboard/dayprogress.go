package dashboard

import (
	"fmt"
	"time"
)

// Working window of the day progress bar.
const (
	DayStartHour = 6
	DayEndHour   = 19
)

// Phase is the part of the day relative to the working window.
type Phase string

const (
	PhaseMorning Phase = "morning"
	PhaseWorking Phase = "working"
	PhaseEvening Phase = "evening"
)

// DayProgress is the state of the working-day bar at an instant.
type DayProgress struct {
	Phase    Phase         `json:"phase"`
	Fraction float64       `json:"fraction"`
	Left     time.Duration `json:"left"`
}

// ProgressAt computes the working-day progress at now, in now's location.
// Outside the window Fraction and Left are zero.
func ProgressAt(now time.Time) DayProgress {
	switch h := now.Hour(); {
	case h < DayStartHour:
		return DayProgress{Phase: PhaseMorning}
	case h >= DayEndHour:
		return DayProgress{Phase: PhaseEvening}
	}
	y, m, d := now.Date()
	start := time.Date(y, m, d, DayStartHour, 0, 0, 0, now.Location())
	end := time.Date(y, m, d, DayEndHour, 0, 0, 0, now.Location())
	total := end.Sub(start)
	left := end.Sub(now)
	return DayProgress{
		Phase:    PhaseWorking,
		Fraction: float64(total-left) / float64(total),
		Left:     left,
	}
}

// Greeting is shown instead of the bar outside the window.
func (p DayProgress) Greeting() string {
	switch p.Phase {
	case PhaseMorning:
		return "Good Morning"
	case PhaseEvening:
		return "Good Night"
	}
	return ""
}

// FormatLeft renders the remaining time as HH:MM:SS.cc.
func (p DayProgress) FormatLeft() string {
	left := p.Left
	h := left / time.Hour
	left -= h * time.Hour
	m := left / time.Minute
	left -= m * time.Minute
	s := left / time.Second
	left -= s * time.Second
	cs := left / (10 * time.Millisecond)
	return fmt.Sprintf("%02d:%02d:%02d.%02d", h, m, s, cs)
}
