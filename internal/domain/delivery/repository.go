// internal/domain/delivery/repository.go
package delivery

import (
	"context"
	"errors"
	"time"

	"community_content_bot/internal/domain/tenant"
)

// ErrAlreadyClaimed is returned by Append when an entry for the same
// (tenant, feature, period key) already exists.
var ErrAlreadyClaimed = errors.New("delivery already recorded for this period")

// Repository defines operations on the append-only delivery log.
type Repository interface {
	// EntriesFor lists a tenant's entries for a feature, newest first.
	// A zero since returns the whole history.
	EntriesFor(ctx context.Context, tenantID string, feature tenant.Feature, since time.Time) ([]*Entry, error)
	Exists(ctx context.Context, tenantID string, feature tenant.Feature, periodKey string) (bool, error)
	// Append inserts entry atomically, failing with ErrAlreadyClaimed on a duplicate period key.
	Append(ctx context.Context, entry *Entry) error
}
