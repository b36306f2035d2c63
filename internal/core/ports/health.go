package ports

import "context"

// HealthChecker is a dependency the payment flow cannot run without: the
// order store, the lease and dedupe cache.
type HealthChecker interface {
	Ping(ctx context.Context) error
	// Name keys the dependency in the /health report.
	Name() string
}
