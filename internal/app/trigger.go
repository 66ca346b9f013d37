package app

import (
	"fmt"
	"strings"
	"time"

	"community_content_bot/internal/domain/tenant"
)

// MatchPolicy controls how a configured time of day is matched against poll ticks.
type MatchPolicy string

const (
	// StrictMinuteMatch fires only when the local hour and minute equal the
	// configured time. With an hourly poll a time like 09:30 is never reached.
	StrictMinuteMatch MatchPolicy = "STRICT_MINUTE_MATCH"
	// MatchWithinPollWindow fires on the first tick in [triggerAt, triggerAt+pollInterval).
	MatchWithinPollWindow MatchPolicy = "MATCH_WITHIN_POLL_WINDOW"
)

func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch p := MatchPolicy(strings.ToUpper(strings.TrimSpace(s))); p {
	case StrictMinuteMatch, MatchWithinPollWindow:
		return p, nil
	case "":
		return StrictMinuteMatch, nil
	default:
		return "", fmt.Errorf("unknown trigger match policy %q", s)
	}
}

// UnmarshalText lets the policy be read straight from the environment.
func (p *MatchPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseMatchPolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Reasons a trigger did not fire.
const (
	ReasonDisabled        = "feature disabled"
	ReasonChannelUnbound  = "no output channel bound"
	ReasonNotTriggerTime  = "not trigger time"
	ReasonWrongWeekday    = "not the configured weekday"
	ReasonIntervalPending = "interval not elapsed"
	ReasonInvalidSchedule = "invalid schedule"
)

// Decision is the trigger evaluator's verdict for one tenant feature on one tick.
type Decision struct {
	Fire bool
	// Local is the tick instant in tenant-local time.
	Local time.Time
	// TriggerAt is the local instant the matched trigger was scheduled for.
	TriggerAt time.Time
	Reason    string
}

// TriggerEvaluator decides whether a tick matches a feature's schedule in the tenant's timezone.
type TriggerEvaluator struct {
	policy       MatchPolicy
	pollInterval time.Duration
}

func NewTriggerEvaluator(policy MatchPolicy, pollInterval time.Duration) *TriggerEvaluator {
	if policy == "" {
		policy = StrictMinuteMatch
	}
	return &TriggerEvaluator{policy: policy, pollInterval: pollInterval}
}

func (e *TriggerEvaluator) Policy() MatchPolicy { return e.policy }

// Evaluate converts now into loc and compares it against fs's schedule descriptor.
func (e *TriggerEvaluator) Evaluate(now time.Time, loc *time.Location, fs *tenant.FeatureSchedule) Decision {
	local := now.In(loc)
	d := Decision{Local: local}

	if fs == nil || !fs.Enabled {
		d.Reason = ReasonDisabled
		return d
	}
	if !fs.ChannelID.Valid {
		d.Reason = ReasonChannelUnbound
		return d
	}
	sched := fs.Schedule
	if err := sched.Validate(); err != nil {
		d.Reason = ReasonInvalidSchedule
		return d
	}

	triggerAt, ok := e.matchTimeOfDay(local, sched.At)
	if !ok {
		d.Reason = ReasonNotTriggerTime
		return d
	}
	d.TriggerAt = triggerAt

	switch sched.Kind {
	case tenant.ScheduleWeekly:
		if triggerAt.Weekday() != sched.Weekday {
			d.Reason = ReasonWrongWeekday
			return d
		}
	case tenant.ScheduleInterval:
		if sched.LastDispatchedAt.Valid {
			last := sched.LastDispatchedAt.Time.In(loc)
			if calendarDaysBetween(last, triggerAt) < sched.IntervalDays {
				d.Reason = ReasonIntervalPending
				return d
			}
		}
	}

	d.Fire = true
	return d
}

func (e *TriggerEvaluator) matchTimeOfDay(local time.Time, at tenant.ClockTime) (time.Time, bool) {
	if e.policy != MatchWithinPollWindow || e.pollInterval <= time.Minute {
		if local.Hour() != at.Hour || local.Minute() != at.Minute {
			return time.Time{}, false
		}
		y, m, d := local.Date()
		return time.Date(y, m, d, at.Hour, at.Minute, 0, 0, local.Location()), true
	}

	// A window opened late yesterday can still be open just after midnight.
	y, m, d := local.Date()
	for _, back := range []int{0, -1} {
		triggerAt := time.Date(y, m, d+back, at.Hour, at.Minute, 0, 0, local.Location())
		if !local.Before(triggerAt) && local.Before(triggerAt.Add(e.pollInterval)) {
			return triggerAt, true
		}
	}
	return time.Time{}, false
}

// calendarDaysBetween counts whole local calendar days from a to b.
func calendarDaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
