package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Weekdays is a set of days of the week, one bit per time.Weekday.
type Weekdays uint8

// AllWeekdays lists days in display order, Monday first.
var AllWeekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

var weekdayCodes = map[time.Weekday]string{
	time.Monday:    "MON",
	time.Tuesday:   "TUE",
	time.Wednesday: "WED",
	time.Thursday:  "THU",
	time.Friday:    "FRI",
	time.Saturday:  "SAT",
	time.Sunday:    "SUN",
}

// WeekdaysOf builds a set from the given days.
func WeekdaysOf(days ...time.Weekday) Weekdays {
	var w Weekdays
	for _, d := range days {
		w = w.With(d)
	}
	return w
}

// ParseWeekday accepts MON..SUN (case insensitive) or full English names.
func ParseWeekday(raw string) (time.Weekday, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	for day, code := range weekdayCodes {
		if value == code || value == strings.ToUpper(day.String()) {
			return day, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", raw)
}

// With returns the set including day.
func (w Weekdays) With(day time.Weekday) Weekdays {
	return w | 1<<uint(day)
}

// Has reports whether day is in the set.
func (w Weekdays) Has(day time.Weekday) bool {
	return w&(1<<uint(day)) != 0
}

// Intersects reports whether both sets share at least one day.
func (w Weekdays) Intersects(other Weekdays) bool {
	return w&other != 0
}

// Empty reports whether no day is set.
func (w Weekdays) Empty() bool {
	return w&0x7f == 0
}

// Days returns the set members Monday first.
func (w Weekdays) Days() []time.Weekday {
	days := make([]time.Weekday, 0, 7)
	for _, d := range AllWeekdays {
		if w.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

func (w Weekdays) String() string {
	codes := make([]string, 0, 7)
	for _, d := range w.Days() {
		codes = append(codes, weekdayCodes[d])
	}
	return strings.Join(codes, ",")
}

// MarshalJSON renders the set as a list of day codes.
func (w Weekdays) MarshalJSON() ([]byte, error) {
	codes := make([]string, 0, 7)
	for _, d := range w.Days() {
		codes = append(codes, weekdayCodes[d])
	}
	return json.Marshal(codes)
}

// UnmarshalJSON accepts a list of day codes.
func (w *Weekdays) UnmarshalJSON(data []byte) error {
	var codes []string
	if err := json.Unmarshal(data, &codes); err != nil {
		return err
	}
	var set Weekdays
	for _, code := range codes {
		day, err := ParseWeekday(code)
		if err != nil {
			return err
		}
		set = set.With(day)
	}
	*w = set
	return nil
}
