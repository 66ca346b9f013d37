// internal/domain/tenant/repository.go
package tenant

import (
	"context"
	"errors"
	"time"
)

// ErrTenantNotFound is returned when a tenant has no stored configuration yet.
var ErrTenantNotFound = errors.New("tenant config not found")

// Reader is the read side of the tenant config store.
type Reader interface {
	Get(ctx context.Context, tenantID string) (*ScheduleConfig, error)
	ListTenantIDs(ctx context.Context) ([]string, error)
}

// Writer is the narrow write surface the delivery engine and tenant service use.
type Writer interface {
	// CreateIfMissing stores cfg unless a config for cfg.TenantID already exists.
	// It reports whether a new config was created.
	CreateIfMissing(ctx context.Context, cfg *ScheduleConfig) (bool, error)
	UpdateLastDispatched(ctx context.Context, tenantID string, feature Feature, at time.Time) error
}

// Repository defines operations for persisting tenant scheduling configuration.
type Repository interface {
	Reader
	Writer
}
