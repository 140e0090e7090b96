package services

import "context"

type (
	// IncomeAllocation is the 50/30/20 split of monthly income, with the
	// needs share scaled up for larger families.
	IncomeAllocation struct {
		Needs                float64 `json:"needs"`
		Wants                float64 `json:"wants"`
		Savings              float64 `json:"savings"`
		AdjustedNeeds        float64 `json:"adjustedNeeds"`
		AdjustedWants        float64 `json:"adjustedWants"`
		FamilySizeAdjustment float64 `json:"familySizeAdjustment"`
	}

	// RefinerInput is the full context handed to an AI refiner: computed
	// statistics, benchmarks, income allocation and family context.
	RefinerInput struct {
		FamilySize    int                       `json:"familySize"`
		MonthlyIncome float64                   `json:"monthlyIncome"`
		Location      string                    `json:"location"`
		Stats         map[string]CategoryStats  `json:"historicalAnalysis"`
		Benchmarks    map[string]BenchmarkRange `json:"benchmarks"`
		Allocation    IncomeAllocation          `json:"incomeAllocation"`
		Recurring     []RecurringPayment        `json:"recurringPatterns"`
	}

	// RefinerCategory is one per-category refinement. The numbers are
	// advisory: the feasibility clamp always has the last word.
	RefinerCategory struct {
		Name            string   `json:"name"`
		SuggestedBudget float64  `json:"suggestedBudget"`
		RangeMin        float64  `json:"rangeMin"`
		RangeMax        float64  `json:"rangeMax"`
		Reasoning       string   `json:"reasoning"`
		Confidence      string   `json:"confidence"`
		Insights        []string `json:"insights"`
	}

	// RefinerOutput is the refiner's response contract.
	RefinerOutput struct {
		Categories      []RefinerCategory `json:"categories"`
		OverallInsights OverallInsights   `json:"overallInsights"`
	}
)

// Refiner refines statistically synthesized budget suggestions. The
// network-backed implementation lives in internal/ai; any error from Refine
// is routine and triggers the statistical fallback, never a user-visible
// failure.
type Refiner interface {
	Refine(ctx context.Context, in RefinerInput) (*RefinerOutput, error)
}

// allocateIncome applies the 50/30/20 rule with the family-size adjustment:
// needs scale by 1 + 0.05 per family member beyond the first.
func allocateIncome(monthlyIncome float64, familySize int) IncomeAllocation {
	if familySize < 1 {
		familySize = 1
	}
	adj := 1 + 0.05*float64(familySize-1)
	needs := monthlyIncome * 0.50
	wants := monthlyIncome * 0.30
	return IncomeAllocation{
		Needs:                needs,
		Wants:                wants,
		Savings:              monthlyIncome * 0.20,
		AdjustedNeeds:        needs * adj,
		AdjustedWants:        wants / adj,
		FamilySizeAdjustment: adj,
	}
}
