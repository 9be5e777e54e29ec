package attendance

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Day is a three letter weekday code.
type Day string

const (
	Monday    Day = "MON"
	Tuesday   Day = "TUE"
	Wednesday Day = "WED"
	Thursday  Day = "THU"
	Friday    Day = "FRI"
	Saturday  Day = "SAT"
	Sunday    Day = "SUN"
)

var dayNames = map[Day]string{
	Monday:    "Monday",
	Tuesday:   "Tuesday",
	Wednesday: "Wednesday",
	Thursday:  "Thursday",
	Friday:    "Friday",
	Saturday:  "Saturday",
	Sunday:    "Sunday",
}

// Label returns the full English day name.
func (d Day) Label() string { return dayNames[d] }

// ParseDay accepts a day code in any case. An empty string means Monday.
func ParseDay(s string) (Day, error) {
	if s == "" {
		return Monday, nil
	}
	d := Day(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := dayNames[d]; !ok {
		return "", invalid("day", "unknown day %q", s)
	}
	return d, nil
}

// TimeOfDay is a wall clock time without date or zone, stored as "HH:MM:SS".
type TimeOfDay struct {
	Hour, Minute, Second int
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	layout := "15:04:05"
	if len(s) == 5 {
		layout = "15:04"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return TimeOfDay{}, invalid("time", "expected HH:MM or HH:MM:SS, got %q", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Value implements driver.Valuer.
func (t TimeOfDay) Value() (driver.Value, error) { return t.String(), nil }

// Scan implements sql.Scanner.
func (t *TimeOfDay) Scan(v any) error {
	switch x := v.(type) {
	case string:
		return t.set(x)
	case []byte:
		return t.set(string(x))
	case time.Time:
		*t = TimeOfDay{Hour: x.Hour(), Minute: x.Minute(), Second: x.Second()}
		return nil
	case nil:
		*t = TimeOfDay{}
		return nil
	default:
		return fmt.Errorf("timeofday: unsupported scan type %T", v)
	}
}

func (t *TimeOfDay) set(s string) error {
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return t.set(s)
}

// WeekDay is one weekly occurrence of a course.
type WeekDay struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	Day  Day       `gorm:"size:3;not null;uniqueIndex:idx_week_day_slot" json:"day"`
	Time TimeOfDay `gorm:"column:start_time;type:varchar(8);not null;uniqueIndex:idx_week_day_slot" json:"time"`
}

func (w WeekDay) String() string {
	return fmt.Sprintf("day: %s, time: %s", w.Day, w.Time)
}

// WeekDayInput is the unparsed form of a WeekDay.
type WeekDayInput struct {
	Day  string `json:"day"`
	Time string `json:"time" validate:"required"`
}

// Parse converts the input into a WeekDay value.
func (in WeekDayInput) Parse() (WeekDay, error) {
	d, err := ParseDay(in.Day)
	if err != nil {
		return WeekDay{}, err
	}
	t, err := ParseTimeOfDay(in.Time)
	if err != nil {
		return WeekDay{}, err
	}
	return WeekDay{Day: d, Time: t}, nil
}
