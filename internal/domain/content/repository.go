// internal/domain/content/repository.go
package content

import "context"

// Repository is the read surface over tenant content used by the delivery engine.
type Repository interface {
	// PoolFor lists every item of the given kind for a tenant.
	PoolFor(ctx context.Context, tenantID string, kind Kind) ([]*Item, error)
	// RecurringMatch lists profile items whose recurring date equals md.
	RecurringMatch(ctx context.Context, tenantID string, md MonthDay) ([]*Item, error)
}
