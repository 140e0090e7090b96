package services

import "fmt"

// The engine never lets one of these abort a request: each maps to a
// deterministic degraded path so callers always receive a complete,
// well-typed structure. They exist so logs and metadata can say which
// degradation happened.

// DataGapError reports insufficient history for a category. The synthesizer
// falls back to benchmark-based defaults.
type DataGapError struct {
	Category string
	Reason   string
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("insufficient history for %q: %s", e.Category, e.Reason)
}

// ExternalServiceError reports an unreachable or misbehaving external
// collaborator (the AI refiner). The synthesizer falls back to the
// statistical path.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ConfigurationError reports missing user configuration (profile, income).
// Income-relative rules are skipped and sane defaults apply.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing configuration: %s", e.Field)
}

// ConsistencyWarning reports that the synthesized total diverges from the
// user-declared total. It is surfaced as suggestion metadata, never as an
// error to the caller.
type ConsistencyWarning struct {
	Synthesized float64
	Declared    float64
}

func (w *ConsistencyWarning) Error() string {
	return fmt.Sprintf("synthesized total %.2f diverges from declared total %.2f", w.Synthesized, w.Declared)
}
