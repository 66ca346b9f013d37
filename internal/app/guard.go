package app

import (
	"context"
	"fmt"
	"time"

	"community_content_bot/internal/domain/delivery"
	"community_content_bot/internal/domain/tenant"
)

// IdempotencyGuard keeps a trigger period to at most one delivery.
//
// Periodic features (birthday, spotlight) are guarded by the delivery log:
// TryClaim reads for an existing entry and the Dispatcher appends one after
// the send. The read is not atomic on its own; the log's unique key on
// (tenant, feature, period key) rejects a second append with
// delivery.ErrAlreadyClaimed.
//
// Text features (question, prompt) are guarded by LastDispatchedAt on the
// tenant config, see AlreadyDispatched.
type IdempotencyGuard struct {
	history delivery.Repository
}

func NewIdempotencyGuard(history delivery.Repository) *IdempotencyGuard {
	return &IdempotencyGuard{history: history}
}

// TryClaim reports true when no delivery exists yet for the period.
func (g *IdempotencyGuard) TryClaim(ctx context.Context, tenantID string, feature tenant.Feature, periodKey string) (bool, error) {
	exists, err := g.history.Exists(ctx, tenantID, feature, periodKey)
	if err != nil {
		return false, fmt.Errorf("%w: check delivery log for %s/%s/%s: %w", ErrStoreReadFailed, tenantID, feature, periodKey, err)
	}
	return !exists, nil
}

// AlreadyDispatched reports whether LastDispatchedAt has moved past triggerAt.
func AlreadyDispatched(fs *tenant.FeatureSchedule, triggerAt time.Time) bool {
	last := fs.Schedule.LastDispatchedAt
	return last.Valid && !last.Time.Before(triggerAt)
}
