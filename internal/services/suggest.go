package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"cuentas/internal/core"
	"cuentas/internal/log"
)

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type (
	Confidence string

	// Suggestion is one synthesized per-category budget target.
	Suggestion struct {
		Name            string     `json:"name"`
		SuggestedBudget float64    `json:"suggestedBudget"`
		RangeMin        float64    `json:"rangeMin"`
		RangeMax        float64    `json:"rangeMax"`
		Reasoning       string     `json:"reasoning"`
		Confidence      Confidence `json:"confidence"`
		Insights        []string   `json:"insights,omitempty"`
		Historical      float64    `json:"historical"`
		Benchmark       float64    `json:"benchmark"`
	}

	// OverallInsights summarizes the suggestion set.
	OverallInsights struct {
		TotalSuggested     float64  `json:"totalSuggested"`
		SavingsRate        float64  `json:"savingsRate"`
		TopRecommendations []string `json:"topRecommendations,omitempty"`
		Warnings           []string `json:"warnings,omitempty"`
		Strengths          []string `json:"strengths,omitempty"`
	}

	// SuggestionMetadata records how the suggestions were produced,
	// including whether the feasibility clamp fired. Divergence from a
	// user-declared total surfaces here, never as an error.
	SuggestionMetadata struct {
		GeneratedAt          time.Time `json:"generatedAt"`
		BasedOnTransactions  int       `json:"basedOnTransactions"`
		Income               float64   `json:"income"`
		MaxAllowedBudget     float64   `json:"maxAllowedBudget"`
		TotalSuggested       float64   `json:"totalSuggested"`
		Scaled               bool      `json:"scaled"`
		ScaleFactor          float64   `json:"scaleFactor,omitempty"`
		RescaledToDeclared   bool      `json:"rescaledToDeclared"`
		AIRefined            bool      `json:"aiRefined"`
		ConsistencyDivergent bool      `json:"consistencyDivergent"`
	}

	// BudgetSuggestions is the complete synthesized suggestion set.
	BudgetSuggestions struct {
		Suggestions     []Suggestion       `json:"suggestions"`
		OverallInsights OverallInsights    `json:"overallInsights"`
		Metadata        SuggestionMetadata `json:"metadata"`
	}
)

// Default seed categories when a user has neither history nor budgets.
var defaultSuggestionCategories = []string{
	"Alimentación > Supermercado",
	"Alimentación > Restaurante",
	"Transporte > Transportes",
	"Servicios > Otros servicios",
	"Ocio > Entretenimiento",
	"Salud > Médico",
	"Compras > Ropa",
}

// Single-category ceiling as a fraction of monthly income.
const categoryIncomeCap = 0.5

// Divergence beyond which the user-declared total overrides the synthesized
// total.
const declaredTotalTolerance = 0.10

// Suggestion range half-width when the statistics are degenerate.
const degenerateRangeFraction = 0.30

// SuggestBudgets synthesizes feasibility-clamped budget targets from
// historical behavior, demographic benchmarks, the income allocation rule
// and, when configured, the AI refiner. Every failure inside degrades to a
// deterministic default; the caller always receives a complete structure.
func (e *Engine) SuggestBudgets(ctx context.Context, snap core.Snapshot) BudgetSuggestions {
	now := e.now()
	stats := e.AnalyzeSpending(snap, core.MonthOf(now))
	recurring := e.DetectRecurring(snap, now)

	profile := snap.Profile
	income := profile.MonthlyIncome.InexactFloat64()
	if !snap.HasProfile || income <= 0 {
		// ConfigurationError path: income-relative rules are skipped.
		e.logger.Warn("profile income missing, skipping income-relative clamps",
			log.FieldOperation, log.OpSuggest)
		income = 0
	}
	familySize := profile.FamilySize
	if familySize < 1 {
		familySize = 1
	}

	allocation := allocateIncome(income, familySize)
	categories := suggestionCandidates(stats, snap.Budgets, income)

	suggestions := make([]Suggestion, 0, len(categories))
	benchmarks := make(map[string]BenchmarkRange, len(categories))
	basedOn := 0
	for _, name := range categories {
		cat := core.ParseCategory(name)
		bench, pctOfIncome := ResolveBenchmark(cat, familySize)
		benchmarks[name] = bench

		s := e.seedSuggestion(name, stats[name], bench, pctOfIncome, income)
		if income > 0 && s.SuggestedBudget > income*categoryIncomeCap {
			s.SuggestedBudget = roundTo10(income * categoryIncomeCap)
			s.Reasoning += " Capped at half of monthly income."
		}
		basedOn += stats[name].Count
		suggestions = append(suggestions, s)
	}

	insights := statisticalInsights(suggestions, allocation, income)
	aiRefined := false

	if e.refiner != nil {
		in := RefinerInput{
			FamilySize:    familySize,
			MonthlyIncome: income,
			Location:      profile.Location,
			Stats:         stats,
			Benchmarks:    benchmarks,
			Allocation:    allocation,
			Recurring:     recurring,
		}
		out, err := e.refiner.Refine(ctx, in)
		if err != nil {
			// Routine: statistical fallback with no user-visible error.
			extErr := &ExternalServiceError{Service: "ai refiner", Err: err}
			e.logger.Warn("AI refinement failed, using statistical suggestions",
				log.FieldError, extErr.Error(),
				log.FieldOperation, log.OpSuggest)
		} else {
			suggestions = overlayRefinement(suggestions, out.Categories)
			insights = out.OverallInsights
			aiRefined = true
		}
	}

	meta := SuggestionMetadata{
		GeneratedAt:         now,
		BasedOnTransactions: basedOn,
		Income:              income,
		MaxAllowedBudget:    income * e.cfg.FeasibilityCeiling,
		AIRefined:           aiRefined,
	}

	suggestions, insights, meta = e.clampFeasibility(suggestions, insights, meta, profile)

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].SuggestedBudget != suggestions[j].SuggestedBudget {
			return suggestions[i].SuggestedBudget > suggestions[j].SuggestedBudget
		}
		return suggestions[i].Name < suggestions[j].Name
	})

	insights.TotalSuggested = totalSuggested(suggestions)
	meta.TotalSuggested = insights.TotalSuggested

	return BudgetSuggestions{Suggestions: suggestions, OverallInsights: insights, Metadata: meta}
}

// seedSuggestion produces the statistical suggestion for one category:
// trailing average when history exists, benchmark-derived otherwise.
func (e *Engine) seedSuggestion(name string, s CategoryStats, bench BenchmarkRange, pctOfIncome *BenchmarkRange, income float64) Suggestion {
	out := Suggestion{Name: name, Benchmark: bench.Avg}

	if s.Count == 0 {
		// DataGapError path: benchmark-based default.
		base := bench.Avg
		if pctOfIncome != nil && income > 0 {
			target := income * pctOfIncome.Avg / 100
			if base == 0 {
				base = target
			} else {
				base = (base + target) / 2
			}
		}
		if base == 0 {
			base = genericBenchmark.Avg
		}
		out.SuggestedBudget = roundTo10(base)
		out.RangeMin = math.Max(0, roundTo10(base*(1-degenerateRangeFraction)))
		out.RangeMax = roundTo10(base * (1 + degenerateRangeFraction))
		out.Reasoning = "No spending history yet; based on typical allocations for your household."
		out.Confidence = ConfidenceLow
		return out
	}

	base := s.Last3MonthsAvg
	if base == 0 {
		base = s.Mean
	}
	out.Historical = s.Mean
	out.SuggestedBudget = roundTo10(base)
	out.Confidence = confidenceFor(s)
	out.Reasoning = fmt.Sprintf("Based on your recent spending (%s trend).", s.Trend)

	if s.Count >= 2 && s.StdDev > 0 {
		out.RangeMin = math.Max(0, roundTo10(base-s.StdDev))
		out.RangeMax = roundTo10(base + s.StdDev)
	}
	if out.RangeMax <= out.RangeMin {
		out.RangeMin = math.Max(0, roundTo10(base*(1-degenerateRangeFraction)))
		out.RangeMax = roundTo10(base * (1 + degenerateRangeFraction))
	}
	return out
}

// clampFeasibility enforces the global constraint: a user-declared total
// takes precedence when it diverges beyond tolerance, otherwise the sum of
// suggestions may not exceed income times the feasibility ceiling. Scaling
// is uniform across suggestions and their ranges.
func (e *Engine) clampFeasibility(suggestions []Suggestion, insights OverallInsights, meta SuggestionMetadata, profile core.UserProfile) ([]Suggestion, OverallInsights, SuggestionMetadata) {
	total := totalSuggested(suggestions)
	if total == 0 {
		return suggestions, insights, meta
	}

	if profile.DeclaredTotalBudget != nil && profile.DeclaredTotalBudget.IsPositive() {
		declared := profile.DeclaredTotalBudget.InexactFloat64()
		if math.Abs(total-declared)/declared > declaredTotalTolerance {
			warn := &ConsistencyWarning{Synthesized: total, Declared: declared}
			e.logger.Info("rescaling suggestions to user-declared total",
				log.FieldOperation, log.OpSuggest, "synthesized", total, "declared", declared)
			factor := declared / total
			suggestions = scaleSuggestions(suggestions, factor)
			meta.Scaled = true
			meta.ScaleFactor = factor
			meta.RescaledToDeclared = true
			meta.ConsistencyDivergent = true
			insights.Warnings = append(insights.Warnings, warn.Error())
		}
		return suggestions, insights, meta
	}

	if meta.Income <= 0 {
		return suggestions, insights, meta
	}
	ceiling := meta.Income * e.cfg.FeasibilityCeiling
	if total <= ceiling {
		return suggestions, insights, meta
	}
	factor := ceiling / total
	e.logger.Info("suggested total exceeds feasibility ceiling, scaling down",
		log.FieldOperation, log.OpSuggest, "total", total, "ceiling", ceiling, "factor", factor)
	suggestions = scaleSuggestions(suggestions, factor)
	meta.Scaled = true
	meta.ScaleFactor = factor
	insights.Warnings = append(insights.Warnings,
		fmt.Sprintf("Suggested budgets were scaled down to fit within %.0f%% of your monthly income.", e.cfg.FeasibilityCeiling*100))
	return suggestions, insights, meta
}

func scaleSuggestions(suggestions []Suggestion, factor float64) []Suggestion {
	for i := range suggestions {
		suggestions[i].SuggestedBudget = round2(suggestions[i].SuggestedBudget * factor)
		suggestions[i].RangeMin = round2(suggestions[i].RangeMin * factor)
		suggestions[i].RangeMax = round2(suggestions[i].RangeMax * factor)
	}
	return suggestions
}

// overlayRefinement folds AI per-category numbers onto the statistical
// suggestions. Only categories the synthesizer already knows are touched;
// invalid numbers are ignored.
func overlayRefinement(suggestions []Suggestion, refined []RefinerCategory) []Suggestion {
	byName := make(map[string]int, len(suggestions))
	for i, s := range suggestions {
		byName[normalizeDescription(s.Name)] = i
	}
	for _, r := range refined {
		i, ok := byName[normalizeDescription(r.Name)]
		if !ok || r.SuggestedBudget < 0 {
			continue
		}
		suggestions[i].SuggestedBudget = round2(r.SuggestedBudget)
		if r.RangeMax > r.RangeMin && r.RangeMin >= 0 {
			suggestions[i].RangeMin = round2(r.RangeMin)
			suggestions[i].RangeMax = round2(r.RangeMax)
		}
		if strings.TrimSpace(r.Reasoning) != "" {
			suggestions[i].Reasoning = r.Reasoning
		}
		if c := Confidence(r.Confidence); c == ConfidenceHigh || c == ConfidenceMedium || c == ConfidenceLow {
			suggestions[i].Confidence = c
		}
		if len(r.Insights) > 0 {
			suggestions[i].Insights = r.Insights
		}
	}
	return suggestions
}

// suggestionCandidates is the category universe: everything with history,
// everything with a budget row (transfer and parent rows excluded), or the
// default seed list when both are empty.
func suggestionCandidates(stats map[string]CategoryStats, budgets []core.BudgetRow, income float64) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name == "" || seen[name] || reviewCategoryNames[name] || pinnedLast(name) {
			return
		}
		seen[name] = true
		out = append(out, name)
	}

	for name := range stats {
		add(name)
	}
	for _, m := range NormalizeBudgets(budgets) {
		if m.IsParent {
			continue
		}
		add(m.Category.String())
	}
	if len(out) == 0 {
		for _, name := range defaultSuggestionCategories {
			add(name)
		}
	}
	sort.Strings(out)
	return out
}

// Confidence thresholds: transaction count across distinct months.
func confidenceFor(s CategoryStats) Confidence {
	switch {
	case s.Count >= 10 && s.DistinctMonths >= 3:
		return ConfidenceHigh
	case s.Count >= 5 && s.DistinctMonths >= 2:
		return ConfidenceMedium
	case s.Count >= 3 && s.DistinctMonths >= 1:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func statisticalInsights(suggestions []Suggestion, allocation IncomeAllocation, income float64) OverallInsights {
	insights := OverallInsights{
		TotalSuggested: totalSuggested(suggestions),
		TopRecommendations: []string{
			"Track spending for three months for better personalization",
			"Aim to save 20% of income",
			"Review and adjust budgets monthly",
		},
	}
	if income > 0 {
		insights.SavingsRate = allocation.Savings / income
	}
	return insights
}

func totalSuggested(suggestions []Suggestion) float64 {
	var total float64
	for _, s := range suggestions {
		total += s.SuggestedBudget
	}
	return round2(total)
}

// roundTo10 rounds to the nearest 10 currency units.
func roundTo10(v float64) float64 {
	return math.Round(v/10) * 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
