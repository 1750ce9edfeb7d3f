// Package health aggregates readiness checks for the ingestion pipeline's
// dependencies: the search store, the embedding provider, and blob storage.
package health

import "context"

// Status represents the aggregated readiness status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates at least one failing component.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing check.
	CheckError CheckResult = "error"
)

// Report aggregates check results by component name.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates readiness checks.
type Service struct {
	store    StorePinger
	embedder Checker
	blob     Checker
}

// New creates a Service. embedder and blob can be nil.
func New(store StorePinger, embedder, blob Checker) *Service {
	return &Service{store: store, embedder: embedder, blob: blob}
}

// Check runs readiness checks against all configured components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = CheckError
	} else {
		checks["store"] = CheckOK
	}

	runCheck(ctx, checks, "embedder", s.embedder)
	runCheck(ctx, checks, "blob", s.blob)

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

func runCheck(ctx context.Context, checks map[string]CheckResult, name string, c Checker) {
	if c == nil {
		return
	}
	if err := c.HealthCheck(ctx); err != nil {
		checks[name] = CheckError
		return
	}
	checks[name] = CheckOK
}
