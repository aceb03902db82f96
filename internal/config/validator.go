package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is wrapped by every error Validate returns.
var ErrInvalid = errors.New("invalid config")

// maxRefinements keeps the worst-case integration cost bounded: each level
// doubles the number of integrand evaluations.
const maxRefinements = 16

// Validate checks required fields and value ranges, reporting every problem at once.
func Validate(cfg *ServiceConfig) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required: %w", ErrInvalid)
	}
	var errs []string

	e := cfg.Engine
	if e.Workers < 1 {
		errs = append(errs, fmt.Sprintf("engine.workers must be >= 1, got %d", e.Workers))
	}
	if e.QueueDepth < 1 {
		errs = append(errs, fmt.Sprintf("engine.queue_depth must be >= 1, got %d", e.QueueDepth))
	}
	if e.EditTimeoutMs < 1 {
		errs = append(errs, fmt.Sprintf("engine.edit_timeout_ms must be >= 1, got %d", e.EditTimeoutMs))
	}

	r := cfg.Reliability
	if r.Refinements < 1 || r.Refinements > maxRefinements {
		errs = append(errs, fmt.Sprintf("reliability.refinements must be in [1, %d], got %d", maxRefinements, r.Refinements))
	}
	if !(r.Tolerance > 0 && r.Tolerance < 1) {
		errs = append(errs, fmt.Sprintf("reliability.tolerance must be in (0, 1), got %g", r.Tolerance))
	}
	if r.MaxTraceSteps < 1 {
		errs = append(errs, fmt.Sprintf("reliability.max_trace_steps must be >= 1, got %d", r.MaxTraceSteps))
	}
	if r.MaxSchemaCascade < 1 {
		errs = append(errs, fmt.Sprintf("reliability.max_schema_cascade must be >= 1, got %d", r.MaxSchemaCascade))
	}

	if !cfg.Store.InMemory && cfg.Store.Path == "" {
		errs = append(errs, "store.path is required unless store.in_memory is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalid, strings.Join(errs, "\n  - "))
	}
	return nil
}
