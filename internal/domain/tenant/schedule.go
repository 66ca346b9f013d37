// internal/domain/tenant/schedule.go
package tenant

import (
	"database/sql"
	"fmt"
	"time"
)

// ScheduleKind tags which variant a ScheduleDescriptor holds.
type ScheduleKind string

const (
	ScheduleDaily    ScheduleKind = "DAILY"
	ScheduleWeekly   ScheduleKind = "WEEKLY"
	ScheduleInterval ScheduleKind = "INTERVAL"
)

// ClockTime is a wall-clock time of day in the tenant's timezone.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM" (24h).
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ScheduleDescriptor is one of DailyAt, WeeklyAt or IntervalAt, selected by Kind.
// Weekday is only meaningful for WEEKLY, IntervalDays and LastDispatchedAt for INTERVAL.
type ScheduleDescriptor struct {
	Kind         ScheduleKind
	At           ClockTime
	Weekday      time.Weekday
	IntervalDays int
	// LastDispatchedAt anchors the interval. It is also the duplicate guard
	// for the text features (question, prompt), whatever their kind.
	LastDispatchedAt sql.NullTime
}

func DailyAt(at ClockTime) ScheduleDescriptor {
	return ScheduleDescriptor{Kind: ScheduleDaily, At: at}
}

func WeeklyAt(day time.Weekday, at ClockTime) ScheduleDescriptor {
	return ScheduleDescriptor{Kind: ScheduleWeekly, At: at, Weekday: day}
}

func IntervalAt(days int, at ClockTime, last sql.NullTime) ScheduleDescriptor {
	return ScheduleDescriptor{Kind: ScheduleInterval, At: at, IntervalDays: days, LastDispatchedAt: last}
}

// Validate checks the descriptor is internally consistent.
func (d ScheduleDescriptor) Validate() error {
	if d.At.Hour < 0 || d.At.Hour > 23 || d.At.Minute < 0 || d.At.Minute > 59 {
		return fmt.Errorf("invalid time of day %s", d.At)
	}
	switch d.Kind {
	case ScheduleDaily:
		return nil
	case ScheduleWeekly:
		if d.Weekday < time.Sunday || d.Weekday > time.Saturday {
			return fmt.Errorf("invalid weekday %d", d.Weekday)
		}
		return nil
	case ScheduleInterval:
		if d.IntervalDays < 1 {
			return fmt.Errorf("interval must be at least 1 day, got %d", d.IntervalDays)
		}
		return nil
	default:
		return fmt.Errorf("unknown schedule kind %q", d.Kind)
	}
}

func (d ScheduleDescriptor) String() string {
	switch d.Kind {
	case ScheduleWeekly:
		return fmt.Sprintf("every %s at %s", d.Weekday, d.At)
	case ScheduleInterval:
		return fmt.Sprintf("every %d day(s) at %s", d.IntervalDays, d.At)
	default:
		return fmt.Sprintf("daily at %s", d.At)
	}
}
