// internal/domain/delivery/entry.go
package delivery

import (
	"fmt"
	"time"

	"community_content_bot/internal/domain/tenant"
)

// Entry records one successful dispatch. It is both the idempotency record
// and the recency history for selection.
// Corresponds to the 'delivery_log' table, unique on (tenant_id, feature, period_key).
type Entry struct {
	ID            string
	TenantID      string
	Feature       tenant.Feature
	ContentItemID string
	ChannelID     int64
	DispatchedAt  time.Time
	PeriodKey     string
}

// AnnualKey identifies one item's delivery for a calendar year (birthdays).
func AnnualKey(year int, itemID string) string {
	return fmt.Sprintf("%04d:%s", year, itemID)
}

// WeekStart returns midnight of the Monday starting the ISO week containing local.
func WeekStart(local time.Time) time.Time {
	offset := (int(local.Weekday()) + 6) % 7 // Monday=0 .. Sunday=6
	y, m, d := local.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, local.Location())
}

// WeeklyKey identifies the week containing local by its Monday.
func WeeklyKey(local time.Time) string {
	return WeekStart(local).Format(time.DateOnly)
}

// DailyKey identifies the local calendar day.
func DailyKey(local time.Time) string {
	return local.Format(time.DateOnly)
}
