package controller

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Mode tags whether a resolved time is an event's on or off side.
// It is part of the offset cache key and the persisted state format.
const (
	ModeOn  = "On"
	ModeOff = "Off"
)

var (
	// "dawn", "dusk", optionally followed by a signed HH:MM offset
	dawnDuskPattern = regexp.MustCompile(`^(?i)(dawn|dusk)([+-])(\d{2}):(\d{2})$`)
	// Plain 24-hour clock time
	clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// offsetKey builds the day-scoped cache key for a random offset
func offsetKey(today time.Time, scheduleName string, eventIndex int, mode string) string {
	return fmt.Sprintf("%s|%s|%d|%s", today.Format("2006-01-02"), scheduleName, eventIndex, mode)
}

// resolveEventTime converts a TurnOn/TurnOff spec into minutes since
// midnight for today. Specs are either "HH:MM" or "dawn"/"dusk" with an
// optional signed HH:MM offset. When maxOffset is set, a random delta in
// [-maxOffset, +maxOffset] minutes is drawn once per (day, schedule, event,
// mode) and cached, so repeated evaluations within a day are stable.
// A malformed spec is a fatal configuration error.
func (c *Controller) resolveEventTime(spec string, maxOffset int, scheduleName string, eventIndex int, mode string) (int, error) {
	now := c.now().In(c.tz)

	var base time.Time
	lower := strings.ToLower(spec)

	switch {
	case strings.HasPrefix(lower, "dawn") || strings.HasPrefix(lower, "dusk"):
		if strings.HasPrefix(lower, "dawn") {
			base = c.dawnDusk.Dawn
		} else {
			base = c.dawnDusk.Dusk
		}

		if suffix := spec[4:]; suffix != "" {
			m := dawnDuskPattern.FindStringSubmatch(spec)
			if m == nil {
				return 0, configErrorf("invalid dawn/dusk offset %q in schedule %q, event %d (%s): use a signed HH:MM offset like \"dawn+00:10\" or \"dusk-01:30\"",
					spec, scheduleName, eventIndex, mode)
			}
			hours, _ := strconv.Atoi(m[3])
			minutes, _ := strconv.Atoi(m[4])
			total := hours*60 + minutes
			if m[2] == "-" {
				total = -total
			}
			// Calendar-aware addition so minute overflow rolls across midnight
			base = base.Add(time.Duration(total) * time.Minute)
		}

	default:
		m := clockPattern.FindStringSubmatch(spec)
		if m == nil {
			return 0, configErrorf("invalid time %q in schedule %q, event %d (%s): use \"HH:MM\" or dawn/dusk with an offset",
				spec, scheduleName, eventIndex, mode)
		}
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return 0, configErrorf("invalid time %q in schedule %q, event %d (%s): hour or minute out of range",
				spec, scheduleName, eventIndex, mode)
		}
		base = time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, c.tz)
	}

	if maxOffset > 0 {
		key := offsetKey(now, scheduleName, eventIndex, mode)
		delta, ok := c.offsetCache[key]
		if !ok {
			delta = c.randInt(2*maxOffset+1) - maxOffset
			c.offsetCache[key] = delta
		}
		base = base.Add(time.Duration(delta) * time.Minute)
	}

	return base.Hour()*60 + base.Minute(), nil
}

// pruneOffsetCache drops cached offsets from previous days. Stale keys are
// harmless but there is no reason to persist them forever.
func (c *Controller) pruneOffsetCache() {
	prefix := c.now().In(c.tz).Format("2006-01-02") + "|"
	for key := range c.offsetCache {
		if !strings.HasPrefix(key, prefix) {
			delete(c.offsetCache, key)
		}
	}
}
