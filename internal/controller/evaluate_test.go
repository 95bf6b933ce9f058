package controller

import (
	"errors"
	"testing"
	"time"

	"lightingctl/internal/config"
)

func testDate(y int, m time.Month, d int) config.Date {
	return config.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func TestEvaluateScheduleDuskWindow(t *testing.T) {
	c := newTestController(nil, newFakeDevices())
	c.dawnDusk = DawnDusk{
		Dawn: time.Date(2026, 3, 10, 6, 40, 0, 0, time.UTC),
		Dusk: time.Date(2026, 3, 10, 18, 30, 0, 0, time.UTC),
	}
	sched := &config.Schedule{
		Name: "Evening",
		Events: []config.ScheduleEvent{
			{TurnOn: "dusk-00:10", TurnOff: "22:00"},
		},
	}

	cases := []struct {
		clock string
		now   time.Time
		want  string
	}{
		{"before window", time.Date(2026, 3, 10, 18, 15, 0, 0, time.UTC), StateOff},
		{"at on boundary", time.Date(2026, 3, 10, 18, 20, 0, 0, time.UTC), StateOn},
		{"inside window", time.Date(2026, 3, 10, 18, 25, 0, 0, time.UTC), StateOn},
		{"at off boundary", time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC), StateOff},
		{"after window", time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC), StateOff},
	}

	for _, tc := range cases {
		got, err := c.evaluateSchedule(sched, tc.now, tc.now.Format("Mon"))
		if err != nil {
			t.Fatalf("%s: %v", tc.clock, err)
		}
		if got != tc.want {
			t.Errorf("%s: state = %s, want %s", tc.clock, got, tc.want)
		}
	}
}

func TestEvaluateScheduleOvernight(t *testing.T) {
	c := newTestController(nil, newFakeDevices())
	sched := &config.Schedule{
		Name: "Night",
		Events: []config.ScheduleEvent{
			{TurnOn: "23:00", TurnOff: "06:00"},
		},
	}

	cases := []struct {
		clock string
		now   time.Time
		want  string
	}{
		{"late evening", time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC), StateOn},
		{"small hours", time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC), StateOn},
		{"at off boundary", time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC), StateOff},
		{"morning", time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC), StateOff},
		{"at on boundary", time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC), StateOn},
	}

	for _, tc := range cases {
		got, err := c.evaluateSchedule(sched, tc.now, tc.now.Format("Mon"))
		if err != nil {
			t.Fatalf("%s: %v", tc.clock, err)
		}
		if got != tc.want {
			t.Errorf("%s: state = %s, want %s", tc.clock, got, tc.want)
		}
	}
}

func TestEvaluateScheduleDatesOffShortCircuits(t *testing.T) {
	c := newTestController(nil, newFakeDevices())
	sched := &config.Schedule{
		Name: "Holiday",
		Events: []config.ScheduleEvent{
			{
				TurnOn:  "18:00",
				TurnOff: "22:00",
				DatesOff: []config.DateRange{
					{StartDate: testDate(2026, 3, 8), EndDate: testDate(2026, 3, 12)},
				},
			},
			// Would match, but the dates-off range above wins
			{TurnOn: "00:00", TurnOff: "23:59"},
		},
	}

	now := time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC)
	got, err := c.evaluateSchedule(sched, now, now.Format("Mon"))
	if err != nil {
		t.Fatal(err)
	}
	if got != StateOff {
		t.Errorf("state during dates-off = %s, want %s", got, StateOff)
	}

	// Outside the range the window applies again
	later := time.Date(2026, 3, 13, 19, 0, 0, 0, time.UTC)
	got, err = c.evaluateSchedule(sched, later, later.Format("Mon"))
	if err != nil {
		t.Fatal(err)
	}
	if got != StateOn {
		t.Errorf("state after dates-off = %s, want %s", got, StateOn)
	}
}

func TestEvaluateScheduleDatesOffInclusiveBoundaries(t *testing.T) {
	c := newTestController(nil, newFakeDevices())
	sched := &config.Schedule{
		Name: "Holiday",
		Events: []config.ScheduleEvent{
			{
				TurnOn:  "00:00",
				TurnOff: "23:59",
				DatesOff: []config.DateRange{
					{StartDate: testDate(2026, 3, 10), EndDate: testDate(2026, 3, 10)},
				},
			},
		},
	}

	onDay := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	got, _ := c.evaluateSchedule(sched, onDay, onDay.Format("Mon"))
	if got != StateOff {
		t.Errorf("single-day range: state = %s, want %s", got, StateOff)
	}

	dayAfter := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	got, _ = c.evaluateSchedule(sched, dayAfter, dayAfter.Format("Mon"))
	if got != StateOn {
		t.Errorf("day after range: state = %s, want %s", got, StateOn)
	}
}

func TestEvaluateScheduleWeekdayFilter(t *testing.T) {
	c := newTestController(nil, newFakeDevices())
	// 2026-03-10 is a Tuesday
	now := time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC)

	cases := []struct {
		days string
		want string
	}{
		{"", StateOn},
		{"All", StateOn},
		{"all", StateOn},
		{"Tue", StateOn},
		{"mon, tue, fri", StateOn},
		{"Mon, Wed", StateOff},
		{"Sat, Sun", StateOff},
	}

	for _, tc := range cases {
		sched := &config.Schedule{
			Name: "Evening",
			Events: []config.ScheduleEvent{
				{TurnOn: "18:00", TurnOff: "22:00", DaysOfWeek: tc.days},
			},
		}
		got, err := c.evaluateSchedule(sched, now, now.Format("Mon"))
		if err != nil {
			t.Fatalf("days %q: %v", tc.days, err)
		}
		if got != tc.want {
			t.Errorf("days %q: state = %s, want %s", tc.days, got, tc.want)
		}
	}
}

func TestEvaluateScheduleFirstMatchWins(t *testing.T) {
	c := newTestController(nil, newFakeDevices())
	sched := &config.Schedule{
		Name: "Layered",
		Events: []config.ScheduleEvent{
			{TurnOn: "18:00", TurnOff: "20:00"},
			{TurnOn: "19:00", TurnOff: "19:30"},
		},
	}

	now := time.Date(2026, 3, 10, 19, 15, 0, 0, time.UTC)
	got, err := c.evaluateSchedule(sched, now, now.Format("Mon"))
	if err != nil {
		t.Fatal(err)
	}
	if got != StateOn {
		t.Errorf("state = %s, want %s", got, StateOn)
	}
}

func TestEvaluateScheduleEqualOnOffIsOvernight(t *testing.T) {
	c := newTestController(nil, newFakeDevices())
	sched := &config.Schedule{
		Name: "AlwaysOn",
		Events: []config.ScheduleEvent{
			{TurnOn: "18:00", TurnOff: "18:00"},
		},
	}

	// Equal times make a degenerate overnight window that covers the day
	for _, h := range []int{0, 6, 18, 23} {
		now := time.Date(2026, 3, 10, h, 30, 0, 0, time.UTC)
		got, err := c.evaluateSchedule(sched, now, now.Format("Mon"))
		if err != nil {
			t.Fatal(err)
		}
		if got != StateOn {
			t.Errorf("hour %d: state = %s, want %s", h, got, StateOn)
		}
	}
}

func TestEvaluateSwitchStates(t *testing.T) {
	devices := newFakeDevices()
	devices.addOutput("Porch", "", false, true)
	devices.addOutput("Garden", "", false, true)

	cfg := &config.Config{
		Schedules: []config.Schedule{
			{Name: "Evening", Events: []config.ScheduleEvent{{TurnOn: "18:00", TurnOff: "22:00"}}},
			{Name: "Never", Events: nil},
		},
	}
	c := newTestController(cfg, devices)
	c.scheduleMap = map[string]string{"Porch": "Evening", "Garden": "Never"}

	states, err := c.evaluateSwitchStates()
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 2 {
		t.Fatalf("got %d states, want 2", len(states))
	}

	// Name order, so Garden first
	if states[0].Switch != "Garden" || states[0].State != StateOff {
		t.Errorf("states[0] = %+v, want Garden OFF", states[0])
	}
	if states[1].Switch != "Porch" || states[1].State != StateOn {
		t.Errorf("states[1] = %+v, want Porch ON", states[1])
	}
	if states[1].Schedule != "Evening" {
		t.Errorf("Porch schedule = %q, want Evening", states[1].Schedule)
	}
}

func TestEvaluateSwitchStatesSkipsUnassigned(t *testing.T) {
	devices := newFakeDevices()
	devices.addOutput("Porch", "", true, true)

	c := newTestController(&config.Config{}, devices)
	c.scheduleMap = map[string]string{"Porch": ""}

	states, err := c.evaluateSwitchStates()
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 0 {
		t.Errorf("states = %+v, want none for an unassigned output", states)
	}
}

func TestEvaluateSwitchStatesUnknownSchedule(t *testing.T) {
	c := newTestController(&config.Config{}, newFakeDevices())
	c.scheduleMap = map[string]string{"Porch": "Missing"}

	_, err := c.evaluateSwitchStates()
	if err == nil {
		t.Fatal("expected error for unknown schedule")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("error type = %T, want *ConfigError", err)
	}
}

func TestEventAppliesToday(t *testing.T) {
	if !eventAppliesToday("  Tue  ", "Tue") {
		t.Error("whitespace around a day name should be ignored")
	}
	if eventAppliesToday("Tuesday", "Tue") {
		t.Error("full day names are not abbreviations and should not match")
	}
}
