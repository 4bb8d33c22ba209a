// Package schedule translates a sync recurrence into a cron expression.
package schedule

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Type is the recurrence kind.
type Type string

const (
	TypeInterval Type = "interval"
	TypeDaily    Type = "daily"
	TypeWeekly   Type = "weekly"
	TypeMonthly  Type = "monthly"
)

// Intervals are the minute steps offered for TypeInterval.
var Intervals = []int{15, 30, 60}

const (
	DefaultInterval   = 60
	DefaultTime       = "09:00"
	DefaultDayOfWeek  = 1
	DefaultDayOfMonth = 1
)

// Schedule is a recurrence. Only the fields relevant to Type are set.
type Schedule struct {
	Type       Type   `json:"type" yaml:"type"`
	Interval   *int   `json:"interval,omitempty" yaml:"interval,omitempty"`
	Time       string `json:"time,omitempty" yaml:"time,omitempty"`
	DayOfWeek  *int   `json:"dayOfWeek,omitempty" yaml:"dayOfWeek,omitempty"`
	DayOfMonth *int   `json:"dayOfMonth,omitempty" yaml:"dayOfMonth,omitempty"`
}

func intp(v int) *int { return &v }

// Default is the schedule a new sync starts with.
func Default() Schedule { return Schedule{}.WithType(TypeDaily) }

// WithType switches the recurrence kind. Fields that do not apply to t are
// cleared and the ones that do are kept or set to their defaults.
func (s Schedule) WithType(t Type) Schedule {
	out := Schedule{Type: t}
	switch t {
	case TypeInterval:
		out.Interval = intp(DefaultInterval)
		if s.Interval != nil {
			out.Interval = intp(*s.Interval)
		}
	case TypeDaily, TypeWeekly, TypeMonthly:
		out.Time = s.Time
		if out.Time == "" {
			out.Time = DefaultTime
		}
		if t == TypeWeekly {
			out.DayOfWeek = intp(DefaultDayOfWeek)
			if s.DayOfWeek != nil {
				out.DayOfWeek = intp(*s.DayOfWeek)
			}
		}
		if t == TypeMonthly {
			out.DayOfMonth = intp(DefaultDayOfMonth)
			if s.DayOfMonth != nil {
				out.DayOfMonth = intp(*s.DayOfMonth)
			}
		}
	}
	return out
}

// Normalize keeps only the fields relevant to s.Type.
func (s Schedule) Normalize() Schedule { return s.WithType(s.Type) }

// ParseTime splits "HH:mm". Malformed or empty input yields 0, 0.
func ParseTime(v string) (hour, minute int) {
	h, m, ok := strings.Cut(strings.TrimSpace(v), ":")
	if !ok {
		return 0, 0
	}
	hh, err1 := strconv.Atoi(h)
	mm, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return hh, mm
}

// ToCron renders the five-field cron expression. Day-of-month overflow
// (31 in February) is not checked.
func (s Schedule) ToCron() string {
	if s.Type == TypeInterval {
		n := DefaultInterval
		if s.Interval != nil {
			n = *s.Interval
		}
		return fmt.Sprintf("*/%d * * * *", n)
	}
	hour, minute := ParseTime(s.Time)
	switch s.Type {
	case TypeWeekly:
		dow := DefaultDayOfWeek
		if s.DayOfWeek != nil {
			dow = *s.DayOfWeek
		}
		return fmt.Sprintf("%d %d * * %d", minute, hour, dow)
	case TypeMonthly:
		dom := DefaultDayOfMonth
		if s.DayOfMonth != nil {
			dom = *s.DayOfMonth
		}
		return fmt.Sprintf("%d %d %d * *", minute, hour, dom)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate checks the fields set on s. Fields that do not apply to s.Type
// are checked too, so callers normalize first.
func (s Schedule) Validate() error {
	switch s.Type {
	case TypeInterval, TypeDaily, TypeWeekly, TypeMonthly:
	default:
		return fmt.Errorf("unknown schedule type %q", s.Type)
	}
	if s.Interval != nil && !slices.Contains(Intervals, *s.Interval) {
		return fmt.Errorf("interval must be one of %v minutes", Intervals)
	}
	if s.Time != "" {
		if _, err := time.Parse("15:04", s.Time); err != nil {
			return fmt.Errorf("time %q is not HH:mm", s.Time)
		}
	}
	if s.DayOfWeek != nil && (*s.DayOfWeek < 0 || *s.DayOfWeek > 6) {
		return fmt.Errorf("dayOfWeek must be between 0 and 6")
	}
	if s.DayOfMonth != nil && (*s.DayOfMonth < 1 || *s.DayOfMonth > 31) {
		return fmt.Errorf("dayOfMonth must be between 1 and 31")
	}
	return ValidateCron(s.ToCron())
}

// ValidateCron parses expr as a five-field cron expression.
func ValidateCron(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// Next returns the first activation of expr after t.
func Next(expr string, t time.Time) (time.Time, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return sched.Next(t), nil
}
