// Package history maintains the day-bucketed log of switch change events
// that is persisted with the state file.
package history

import (
	"sort"
	"time"
)

// Event is a single switch state change. Exactly one of Schedule or Input
// is set, naming the cause of the change.
type Event struct {
	Time     string  `json:"Time"` // "HH:MM:SS"
	Switch   string  `json:"Switch"`
	Schedule *string `json:"Schedule"`
	Input    *string `json:"Input"`
	State    string  `json:"State"`
}

// DayBucket holds one date's worth of events
type DayBucket struct {
	Date   string  `json:"Date"` // "YYYY-MM-DD"
	Events []Event `json:"Events"`
}

// Log is the in-memory history. It is owned by the control loop and is not
// safe for concurrent use.
type Log struct {
	days []DayBucket
}

// NewLog creates an empty history log
func NewLog() *Log {
	return &Log{}
}

// Load replaces the log contents, typically from the persisted state file
func (l *Log) Load(days []DayBucket) {
	l.days = days
}

// Days returns the underlying day buckets
func (l *Log) Days() []DayBucket {
	return l.days
}

// Record appends an event to the bucket for now's date, creating the bucket
// if it does not exist yet.
func (l *Log) Record(now time.Time, switchName, state string, scheduleName, inputName *string) {
	ev := Event{
		Time:     now.Format("15:04:05"),
		Switch:   switchName,
		Schedule: scheduleName,
		Input:    inputName,
		State:    state,
	}

	date := now.Format("2006-01-02")
	for i := range l.days {
		if l.days[i].Date == date {
			l.days[i].Events = append(l.days[i].Events, ev)
			return
		}
	}

	l.days = append(l.days, DayBucket{Date: date, Events: []Event{ev}})
}

// TrimAndSort drops buckets older than the retention window and sorts the
// remainder by date, each bucket's events by time. Runs before every save.
func (l *Log) TrimAndSort(today time.Time, retentionDays int) {
	cutoff := today.AddDate(0, 0, -retentionDays).Format("2006-01-02")

	kept := l.days[:0]
	for _, day := range l.days {
		if day.Date >= cutoff {
			kept = append(kept, day)
		}
	}
	l.days = kept

	sort.Slice(l.days, func(i, j int) bool { return l.days[i].Date < l.days[j].Date })
	for i := range l.days {
		events := l.days[i].Events
		sort.Slice(events, func(a, b int) bool { return events[a].Time < events[b].Time })
	}
}
