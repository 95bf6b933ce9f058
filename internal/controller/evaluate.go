package controller

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lightingctl/internal/config"
)

// Desired switch states
const (
	StateOn  = "ON"
	StateOff = "OFF"
)

// SwitchState is the desired state of one output for the current cycle,
// plus the live state of its override input when one is assigned.
type SwitchState struct {
	Switch     string  `json:"Switch"`
	Schedule   string  `json:"Schedule"`
	State      string  `json:"State"`
	Input      *string `json:"Input,omitempty"`
	InputState *string `json:"InputState,omitempty"`
}

// evaluateSwitchStates computes the schedule-desired state for every output.
// Outputs are evaluated in name order so repeated cycles produce identical
// logs and state files. An output mapped to a schedule that does not exist
// is a fatal configuration error.
func (c *Controller) evaluateSwitchStates() ([]SwitchState, error) {
	names := make([]string, 0, len(c.scheduleMap))
	for name := range c.scheduleMap {
		names = append(names, name)
	}
	sort.Strings(names)

	now := c.now().In(c.tz)
	weekday := now.Format("Mon")

	schedulesByName := make(map[string]*config.Schedule, len(c.cfg.Schedules))
	for i := range c.cfg.Schedules {
		schedulesByName[c.cfg.Schedules[i].Name] = &c.cfg.Schedules[i]
	}

	states := make([]SwitchState, 0, len(names))
	for _, name := range names {
		scheduleName := c.scheduleMap[name]
		if scheduleName == "" {
			// No governing schedule, so there is no desired state to
			// reconcile toward. Leave the output alone.
			log.Warn().Str("switch", name).Msg("No schedule assigned, skipping switch")
			continue
		}

		sched, ok := schedulesByName[scheduleName]
		if !ok {
			return nil, configErrorf("switch %q references unknown schedule %q", name, scheduleName)
		}
		desired, err := c.evaluateSchedule(sched, now, weekday)
		if err != nil {
			return nil, err
		}

		states = append(states, SwitchState{Switch: name, Schedule: scheduleName, State: desired})
	}

	return states, nil
}

// evaluateSchedule resolves a schedule to ON or OFF at the given instant.
// Events apply first-match-wins: the first event whose window contains now
// yields ON. A matching DatesOff range short-circuits the whole schedule to
// OFF regardless of later events.
func (c *Controller) evaluateSchedule(sched *config.Schedule, now time.Time, weekday string) (string, error) {
	nowMinutes := now.Hour()*60 + now.Minute()

	for i, event := range sched.Events {
		if !eventAppliesToday(event.DaysOfWeek, weekday) {
			continue
		}

		if dateOffMatch(event.DatesOff, now) {
			return StateOff, nil
		}

		onMinutes, err := c.resolveEventTime(event.TurnOn, event.RandomOffset, sched.Name, i, ModeOn)
		if err != nil {
			return "", err
		}
		offMinutes, err := c.resolveEventTime(event.TurnOff, event.RandomOffset, sched.Name, i, ModeOff)
		if err != nil {
			return "", err
		}

		if onMinutes < offMinutes {
			// Same-day window
			if nowMinutes >= onMinutes && nowMinutes < offMinutes {
				return StateOn, nil
			}
		} else {
			// Overnight window, e.g. on 23:00 off 06:00
			if nowMinutes >= onMinutes || nowMinutes < offMinutes {
				return StateOn, nil
			}
		}
	}

	return StateOff, nil
}

// eventAppliesToday checks the DaysOfWeek filter. Empty or "All" means the
// event applies every day; otherwise a comma-separated list of three-letter
// abbreviations (Mon, Tue, ...), matched case-insensitively.
func eventAppliesToday(daysOfWeek, weekday string) bool {
	daysOfWeek = strings.TrimSpace(daysOfWeek)
	if daysOfWeek == "" || strings.EqualFold(daysOfWeek, "All") {
		return true
	}
	for _, day := range strings.Split(daysOfWeek, ",") {
		if strings.EqualFold(strings.TrimSpace(day), weekday) {
			return true
		}
	}
	return false
}

// dateOffMatch reports whether now falls inside any of the inclusive
// DatesOff ranges. Ranges with a missing start or end date are skipped
// with an error log; silently forcing OFF on a half-open range would be
// worse than ignoring it.
func dateOffMatch(ranges []config.DateRange, now time.Time) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	for _, r := range ranges {
		if r.StartDate.IsZero() || r.EndDate.IsZero() {
			log.Error().
				Str("start", r.StartDate.Format("2006-01-02")).
				Str("end", r.EndDate.Format("2006-01-02")).
				Msg("DatesOff range has a missing date, ignoring range")
			continue
		}
		start := time.Date(r.StartDate.Year(), r.StartDate.Month(), r.StartDate.Day(), 0, 0, 0, 0, time.UTC)
		end := time.Date(r.EndDate.Year(), r.EndDate.Month(), r.EndDate.Day(), 0, 0, 0, 0, time.UTC)
		if !today.Before(start) && !today.After(end) {
			return true
		}
	}
	return false
}
