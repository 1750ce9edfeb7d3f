package health

import "context"

// StorePinger checks search store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// Checker checks one external dependency.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
