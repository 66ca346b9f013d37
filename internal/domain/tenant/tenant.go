// internal/domain/tenant/tenant.go
package tenant

import (
	"database/sql"
	"fmt"
	"time"
)

// FeatureSchedule is the per-feature part of a tenant's configuration.
type FeatureSchedule struct {
	Feature   Feature
	Enabled   bool
	ChannelID sql.NullInt64 // Telegram chat the feature posts into; unset means unbound
	Schedule  ScheduleDescriptor
}

// ScheduleConfig is one community's scheduling configuration.
// Corresponds to the 'tenant_configs' and 'tenant_features' tables.
type ScheduleConfig struct {
	TenantID  string
	Timezone  string // IANA name, e.g. "America/New_York"
	Features  map[Feature]*FeatureSchedule
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location resolves the tenant's timezone.
func (c *ScheduleConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("tenant %s has invalid timezone %q: %w", c.TenantID, c.Timezone, err)
	}
	return loc, nil
}

// Feature returns the schedule for f, or nil when the tenant has none stored.
func (c *ScheduleConfig) Feature(f Feature) *FeatureSchedule {
	if c.Features == nil {
		return nil
	}
	return c.Features[f]
}

// NewDefaultConfig builds the configuration given to a tenant the first time it is seen.
// Every feature starts disabled and unbound.
func NewDefaultConfig(tenantID, timezone string) *ScheduleConfig {
	return &ScheduleConfig{
		TenantID: tenantID,
		Timezone: timezone,
		Features: map[Feature]*FeatureSchedule{
			FeatureBirthday: {
				Feature:  FeatureBirthday,
				Schedule: DailyAt(ClockTime{Hour: 9}),
			},
			FeatureSpotlight: {
				Feature:  FeatureSpotlight,
				Schedule: WeeklyAt(time.Monday, ClockTime{Hour: 12}),
			},
			FeatureQuestion: {
				Feature:  FeatureQuestion,
				Schedule: DailyAt(ClockTime{Hour: 10}),
			},
			FeaturePrompt: {
				Feature:  FeaturePrompt,
				Schedule: IntervalAt(3, ClockTime{Hour: 19}, sql.NullTime{}),
			},
		},
	}
}
