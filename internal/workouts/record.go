package workouts

import (
	"maps"
	"time"
)

// Completion status tags, as sent by the mobile client.
const (
	StatusDone    = "✔️"
	StatusNotDone = "❌"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	// RecentWindowDays is the length of the trailing window, the through-date included.
	RecentWindowDays = 7
)

// Entries maps a free-form workout name to its completion status.
type Entries map[string]string

// Merge returns a copy of e with every key of incoming written over it.
// Keys only present in e are kept.
func (e Entries) Merge(incoming Entries) Entries {
	merged := make(Entries, len(e)+len(incoming))
	maps.Copy(merged, e)
	maps.Copy(merged, incoming)
	return merged
}

func (e Entries) Equal(other Entries) bool {
	return maps.Equal(e, other)
}

// Record is the single workout record of an owner for one calendar date.
type Record struct {
	Owner           string  `json:"owner"`
	Date            string  `json:"date"`
	Entries         Entries `json:"entries"`
	LastUpdatedTime string  `json:"time"`
}

// DayWorkout is what a single day lookup returns.
type DayWorkout struct {
	Entries Entries `json:"entries"`
	Time    string  `json:"time"`
}

type SaveStatus int

const (
	StatusUnknown SaveStatus = iota
	Created
	Unchanged
	Updated
)

func (s SaveStatus) String() string {
	switch s {
	case Created:
		return "created"
	case Unchanged:
		return "unchanged"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// Message is the text the mobile client shows for a save outcome.
func (s SaveStatus) Message() string {
	if s == Unchanged {
		return "already recorded"
	}
	return s.String()
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(date string) (time.Time, error) {
	return time.Parse(DateLayout, date)
}

// RecentWindow returns the first and last date of the trailing window ending at through.
func RecentWindow(through time.Time) (from, to string) {
	start := through.AddDate(0, 0, -(RecentWindowDays - 1))
	return start.Format(DateLayout), through.Format(DateLayout)
}
