// Package schedule holds the time-of-day setpoint schedule and decides
// which period applies at a given moment.
package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Schedule modes. In manual mode the scheduler leaves the thermostat
// alone.
const (
	ModeManual   = "manual"
	ModeSchedule = "schedule"
)

// Period is one block of the day with its setpoints. Start is a wall
// clock time formatted "HH:MM".
type Period struct {
	Label string `json:"period"`
	Start string `json:"start"`
	Heat  int    `json:"heat"`
	Cool  int    `json:"cool"`
}

// Schedule is a full week: one period list for weekdays, one for
// weekends.
type Schedule struct {
	Mode    string   `json:"mode"`
	Weekday []Period `json:"weekday"`
	Weekend []Period `json:"weekend"`
}

// Default returns the built-in schedule used until the user saves one.
func Default() Schedule {
	weekday := []Period{
		{Label: "sleep", Start: "22:00", Heat: 65, Cool: 78},
		{Label: "wake", Start: "06:30", Heat: 70, Cool: 76},
		{Label: "home", Start: "08:00", Heat: 68, Cool: 75},
		{Label: "away", Start: "17:00", Heat: 62, Cool: 80},
	}
	weekend := []Period{
		{Label: "sleep", Start: "22:00", Heat: 65, Cool: 78},
		{Label: "wake", Start: "08:00", Heat: 70, Cool: 76},
		{Label: "home", Start: "09:00", Heat: 68, Cool: 75},
		{Label: "away", Start: "17:00", Heat: 62, Cool: 80},
	}
	return Schedule{Mode: ModeManual, Weekday: weekday, Weekend: weekend}
}

// ActivePeriod returns the period in effect at now: the latest period
// whose start is at or before now. Before the day's first start the
// previous day's last period is still running, so the list wraps to the
// latest start. Returns nil when the day has no periods.
func ActivePeriod(s Schedule, now time.Time) *Period {
	periods := sortedFor(s, now)
	if len(periods) == 0 {
		return nil
	}
	minutes := now.Hour()*60 + now.Minute()
	active := periods[len(periods)-1]
	for _, p := range periods {
		if startMinutes(p.Start) <= minutes {
			active = p
		}
	}
	return &active
}

// NextTransition describes the next period change as "Label at HH:MM".
// After the day's last start it wraps to tomorrow's first period and
// says so. Returns "" when there is nothing scheduled.
func NextTransition(s Schedule, now time.Time) string {
	minutes := now.Hour()*60 + now.Minute()
	for _, p := range sortedFor(s, now) {
		if startMinutes(p.Start) > minutes {
			return fmt.Sprintf("%v at %v", title(p.Label), p.Start)
		}
	}
	tomorrow := sortedFor(s, now.AddDate(0, 0, 1))
	if len(tomorrow) == 0 {
		return ""
	}
	p := tomorrow[0]
	return fmt.Sprintf("%v at %v (tomorrow)", title(p.Label), p.Start)
}

// sortedFor returns the day's periods ordered by start time. Saturday
// and Sunday use the weekend list.
func sortedFor(s Schedule, day time.Time) []Period {
	source := s.Weekday
	if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
		source = s.Weekend
	}
	periods := append([]Period{}, source...)
	sort.SliceStable(periods, func(i, j int) bool {
		return startMinutes(periods[i].Start) < startMinutes(periods[j].Start)
	})
	return periods
}

// startMinutes parses "HH:MM" into minutes since midnight, 0 when
// malformed.
func startMinutes(start string) int {
	h, m, ok := strings.Cut(start, ":")
	if !ok {
		return 0
	}
	hours, err := strconv.Atoi(h)
	if err != nil {
		return 0
	}
	mins, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return hours*60 + mins
}

func title(label string) string {
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
