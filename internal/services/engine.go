// Package services implements the budget reconciliation and suggestion
// engine: category normalization, income attribution, budget-vs-actual
// aggregation, recurring payment detection, available-to-spend forecasting,
// historical analysis and budget suggestion synthesis.
//
// Every entry point is a bounded, synchronous read-then-compute operation
// over one consistent core.Snapshot. The only suspension point is the
// optional AI refinement call, which runs under a timeout and whose failure
// is routine.
package services

import (
	"time"

	"cuentas/internal/cache"
	"cuentas/internal/log"
)

// EngineConfig carries the tunables of the engine. Zero values are replaced
// by the defaults below.
type EngineConfig struct {
	// SafetyBufferPercent of the balance held back from available-to-spend.
	SafetyBufferPercent float64
	// FeasibilityCeiling caps the sum of suggested budgets as a fraction of
	// monthly income.
	FeasibilityCeiling float64
	// HistoryMonths is the rolling window of the spending analyzer.
	HistoryMonths int
	// RecurringWindowMonths is the expense window mined for recurring
	// obligations.
	RecurringWindowMonths int
	// RecurringMinOccurrences is the minimum repeat count for a pattern to
	// count as recurring.
	RecurringMinOccurrences int
	// RecurringMaxCV is the maximum coefficient of variation of a recurring
	// pattern's amounts.
	RecurringMaxCV float64
}

// DefaultEngineConfig returns the engine defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SafetyBufferPercent:     10,
		FeasibilityCeiling:      0.85,
		HistoryMonths:           12,
		RecurringWindowMonths:   6,
		RecurringMinOccurrences: 3,
		RecurringMaxCV:          0.2,
	}
}

// Engine is the budget reconciliation and suggestion engine. It holds no
// per-request state; a single Engine serves all users.
type Engine struct {
	cfg      EngineConfig
	refiner  Refiner
	insights cache.Cache[string]
	logger   *log.Logger
	now      func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRefiner plugs in an AI refiner. Without one the synthesizer runs its
// deterministic statistical path only.
func WithRefiner(r Refiner) EngineOption {
	return func(e *Engine) { e.refiner = r }
}

// WithInsightCache plugs in the read-through cache memoizing per-category
// insight text.
func WithInsightCache(c cache.Cache[string]) EngineOption {
	return func(e *Engine) { e.insights = c }
}

// WithClock overrides the engine clock, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an engine with the given config and options.
func NewEngine(cfg EngineConfig, logger *log.Logger, opts ...EngineOption) *Engine {
	def := DefaultEngineConfig()
	if cfg.SafetyBufferPercent <= 0 {
		cfg.SafetyBufferPercent = def.SafetyBufferPercent
	}
	if cfg.FeasibilityCeiling <= 0 {
		cfg.FeasibilityCeiling = def.FeasibilityCeiling
	}
	if cfg.HistoryMonths <= 0 {
		cfg.HistoryMonths = def.HistoryMonths
	}
	if cfg.RecurringWindowMonths <= 0 {
		cfg.RecurringWindowMonths = def.RecurringWindowMonths
	}
	if cfg.RecurringMinOccurrences <= 0 {
		cfg.RecurringMinOccurrences = def.RecurringMinOccurrences
	}
	if cfg.RecurringMaxCV <= 0 {
		cfg.RecurringMaxCV = def.RecurringMaxCV
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	e := &Engine{
		cfg:    cfg,
		logger: logger.WithComponent(log.ComponentEngine),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
