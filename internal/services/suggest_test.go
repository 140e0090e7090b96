package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
)

type stubRefiner struct {
	out    *RefinerOutput
	err    error
	called bool
	gotIn  RefinerInput
}

func (s *stubRefiner) Refine(ctx context.Context, in RefinerInput) (*RefinerOutput, error) {
	s.called = true
	s.gotIn = in
	return s.out, s.err
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC) }
}

// historySnapshot returns three months of steady spending per category.
func historySnapshot(monthly map[string]int64, profile core.UserProfile, hasProfile bool) core.Snapshot {
	var txs []core.Transaction
	for name, amount := range monthly {
		for _, m := range []time.Month{time.April, time.May, time.June} {
			txs = append(txs, expenseAt(2025, m, 10, "PAGO "+name, name, amount))
		}
	}
	return core.Snapshot{Transactions: txs, Profile: profile, HasProfile: hasProfile}
}

func findSuggestion(t *testing.T, s []Suggestion, name string) Suggestion {
	t.Helper()
	for _, x := range s {
		if x.Name == name {
			return x
		}
	}
	names := make([]string, len(s))
	for i, x := range s {
		names[i] = x.Name
	}
	t.Fatalf("suggestion %q not found in %v", name, names)
	return Suggestion{}
}

func TestSuggestBudgetsFeasibilityClamp(t *testing.T) {
	snap := historySnapshot(map[string]int64{
		"Casa > Alquiler": 900,
		"Alimentación":    800,
		"Ocio":            800,
	}, core.UserProfile{FamilySize: 1, MonthlyIncome: decimal.NewFromInt(2000)}, true)

	e := NewEngine(EngineConfig{}, nil, WithClock(fixedClock()))
	got := e.SuggestBudgets(context.Background(), snap)

	// 2500 suggested against a 2000 income: scaled down to the 85% ceiling.
	if !got.Metadata.Scaled {
		t.Fatal("expected suggestions to be scaled down")
	}
	if got.Metadata.RescaledToDeclared {
		t.Error("no declared total was set")
	}
	if !almostEqual(got.Metadata.MaxAllowedBudget, 1700) {
		t.Errorf("MaxAllowedBudget = %f, want 1700", got.Metadata.MaxAllowedBudget)
	}
	if !almostEqual(got.Metadata.TotalSuggested, 1700) {
		t.Errorf("TotalSuggested = %f, want 1700", got.Metadata.TotalSuggested)
	}
	if !almostEqual(got.Metadata.ScaleFactor, 0.68) {
		t.Errorf("ScaleFactor = %f, want 0.68", got.Metadata.ScaleFactor)
	}

	// Scaling is uniform: the rent keeps its share.
	rent := findSuggestion(t, got.Suggestions, "Casa > Alquiler")
	if !almostEqual(rent.SuggestedBudget, 612) {
		t.Errorf("rent budget = %f, want 612 (900 x 0.68)", rent.SuggestedBudget)
	}
	if rent.RangeMax <= rent.RangeMin {
		t.Errorf("degenerate range after scaling: [%f, %f]", rent.RangeMin, rent.RangeMax)
	}

	if len(got.OverallInsights.Warnings) == 0 {
		t.Error("scaling should surface a warning")
	}

	// Sorted by suggested budget, largest first.
	for i := 1; i < len(got.Suggestions); i++ {
		if got.Suggestions[i].SuggestedBudget > got.Suggestions[i-1].SuggestedBudget {
			t.Errorf("suggestions out of order at %d", i)
		}
	}
}

func TestSuggestBudgetsDeclaredTotalOverride(t *testing.T) {
	declared := decimal.NewFromInt(1000)
	snap := historySnapshot(map[string]int64{
		"Casa > Alquiler": 900,
		"Alimentación":    800,
		"Ocio":            800,
	}, core.UserProfile{
		FamilySize:          1,
		MonthlyIncome:       decimal.NewFromInt(2000),
		DeclaredTotalBudget: &declared,
	}, true)

	e := NewEngine(EngineConfig{}, nil, WithClock(fixedClock()))
	got := e.SuggestBudgets(context.Background(), snap)

	if !got.Metadata.RescaledToDeclared {
		t.Fatal("declared total diverges by 150%, suggestions must rescale to it")
	}
	if !got.Metadata.ConsistencyDivergent {
		t.Error("divergence flag not set")
	}
	if !almostEqual(got.Metadata.TotalSuggested, 1000) {
		t.Errorf("TotalSuggested = %f, want the declared 1000", got.Metadata.TotalSuggested)
	}
	if len(got.OverallInsights.Warnings) == 0 {
		t.Error("divergence should surface a warning, never an error")
	}
}

func TestSuggestBudgetsDeclaredTotalWithinTolerance(t *testing.T) {
	declared := decimal.NewFromInt(2450) // within 10% of the 2500 synthesized
	snap := historySnapshot(map[string]int64{
		"Casa > Alquiler": 900,
		"Alimentación":    800,
		"Ocio":            800,
	}, core.UserProfile{
		FamilySize:          1,
		MonthlyIncome:       decimal.NewFromInt(2000),
		DeclaredTotalBudget: &declared,
	}, true)

	e := NewEngine(EngineConfig{}, nil, WithClock(fixedClock()))
	got := e.SuggestBudgets(context.Background(), snap)

	if got.Metadata.Scaled {
		t.Error("declared total within tolerance must suppress all scaling")
	}
	if !almostEqual(got.Metadata.TotalSuggested, 2500) {
		t.Errorf("TotalSuggested = %f, want the untouched 2500", got.Metadata.TotalSuggested)
	}
}

func TestSuggestBudgetsNoHistoryFallsBackToBenchmarks(t *testing.T) {
	snap := core.Snapshot{
		Profile:    core.UserProfile{FamilySize: 2, MonthlyIncome: decimal.NewFromInt(2000)},
		HasProfile: true,
	}

	e := NewEngine(EngineConfig{}, nil, WithClock(fixedClock()))
	got := e.SuggestBudgets(context.Background(), snap)

	if len(got.Suggestions) != len(defaultSuggestionCategories) {
		t.Fatalf("got %d suggestions, want the %d default categories",
			len(got.Suggestions), len(defaultSuggestionCategories))
	}
	for _, s := range got.Suggestions {
		if s.Confidence != ConfidenceLow {
			t.Errorf("%s: confidence = %s, want low without history", s.Name, s.Confidence)
		}
		if s.SuggestedBudget <= 0 {
			t.Errorf("%s: budget = %f, want positive benchmark default", s.Name, s.SuggestedBudget)
		}
		if s.RangeMax <= s.RangeMin {
			t.Errorf("%s: degenerate range [%f, %f]", s.Name, s.RangeMin, s.RangeMax)
		}
	}
	if got.Metadata.BasedOnTransactions != 0 {
		t.Errorf("BasedOnTransactions = %d, want 0", got.Metadata.BasedOnTransactions)
	}
}

func TestSuggestBudgetsCategoryIncomeCap(t *testing.T) {
	snap := historySnapshot(map[string]int64{
		"Casa > Alquiler": 1200,
	}, core.UserProfile{FamilySize: 1, MonthlyIncome: decimal.NewFromInt(2000)}, true)

	e := NewEngine(EngineConfig{}, nil, WithClock(fixedClock()))
	got := e.SuggestBudgets(context.Background(), snap)

	rent := findSuggestion(t, got.Suggestions, "Casa > Alquiler")
	if !almostEqual(rent.SuggestedBudget, 1000) {
		t.Errorf("budget = %f, want 1000 (capped at half of income)", rent.SuggestedBudget)
	}
	if !strings.Contains(rent.Reasoning, "Capped") {
		t.Errorf("reasoning = %q, want the cap mentioned", rent.Reasoning)
	}
}

func TestSuggestBudgetsWithoutIncome(t *testing.T) {
	snap := historySnapshot(map[string]int64{
		"Casa > Alquiler": 3000,
	}, core.UserProfile{}, false)

	e := NewEngine(EngineConfig{}, nil, WithClock(fixedClock()))
	got := e.SuggestBudgets(context.Background(), snap)

	// Income-relative clamps are skipped, not errored.
	if got.Metadata.Scaled {
		t.Error("no income, nothing to scale against")
	}
	if got.Metadata.MaxAllowedBudget != 0 {
		t.Errorf("MaxAllowedBudget = %f, want 0", got.Metadata.MaxAllowedBudget)
	}
	rent := findSuggestion(t, got.Suggestions, "Casa > Alquiler")
	if !almostEqual(rent.SuggestedBudget, 3000) {
		t.Errorf("budget = %f, want the uncapped 3000", rent.SuggestedBudget)
	}
}

func TestSuggestBudgetsRefinerOverlay(t *testing.T) {
	snap := historySnapshot(map[string]int64{
		"Alimentación": 100,
	}, core.UserProfile{FamilySize: 1, MonthlyIncome: decimal.NewFromInt(10000)}, true)

	refiner := &stubRefiner{out: &RefinerOutput{
		Categories: []RefinerCategory{
			{
				Name:            "Alimentación",
				SuggestedBudget: 150,
				RangeMin:        100,
				RangeMax:        200,
				Reasoning:       "Groceries trending up in your area.",
				Confidence:      "high",
				Insights:        []string{"consider bulk buying"},
			},
			{Name: "Desconocida", SuggestedBudget: 999},
		},
		OverallInsights: OverallInsights{Strengths: []string{"consistent tracking"}},
	}}

	e := NewEngine(EngineConfig{}, nil, WithClock(fixedClock()), WithRefiner(refiner))
	got := e.SuggestBudgets(context.Background(), snap)

	if !refiner.called {
		t.Fatal("refiner was not invoked")
	}
	if refiner.gotIn.MonthlyIncome != 10000 {
		t.Errorf("refiner income = %f, want 10000", refiner.gotIn.MonthlyIncome)
	}
	if !got.Metadata.AIRefined {
		t.Error("AIRefined flag not set")
	}

	food := findSuggestion(t, got.Suggestions, "Alimentación")
	if !almostEqual(food.SuggestedBudget, 150) {
		t.Errorf("budget = %f, want the refined 150", food.SuggestedBudget)
	}
	if food.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %s, want high", food.Confidence)
	}
	if food.Reasoning != "Groceries trending up in your area." {
		t.Errorf("reasoning = %q not overlaid", food.Reasoning)
	}

	// Categories the synthesizer does not know are ignored.
	for _, s := range got.Suggestions {
		if s.Name == "Desconocida" {
			t.Error("unknown refined category must not create a suggestion")
		}
	}
	if len(got.OverallInsights.Strengths) == 0 {
		t.Error("refined overall insights not adopted")
	}
}

func TestSuggestBudgetsRefinerFailureFallsBack(t *testing.T) {
	snap := historySnapshot(map[string]int64{
		"Alimentación": 100,
	}, core.UserProfile{FamilySize: 1, MonthlyIncome: decimal.NewFromInt(10000)}, true)

	refiner := &stubRefiner{err: errors.New("upstream timeout")}
	e := NewEngine(EngineConfig{}, nil, WithClock(fixedClock()), WithRefiner(refiner))
	got := e.SuggestBudgets(context.Background(), snap)

	if got.Metadata.AIRefined {
		t.Error("failed refinement must not be marked as AI refined")
	}
	food := findSuggestion(t, got.Suggestions, "Alimentación")
	if !almostEqual(food.SuggestedBudget, 100) {
		t.Errorf("budget = %f, want the statistical 100", food.SuggestedBudget)
	}
}

func TestSuggestBudgetsExcludesParentsAndTransfers(t *testing.T) {
	snap := core.Snapshot{
		Budgets: []core.BudgetRow{
			{Name: "Compras", Budget: decimal.NewFromInt(0), UserOwned: true},
			{Name: "Compras > Ropa", Budget: decimal.NewFromInt(100), UserOwned: true},
			{Name: "Transferencias", Budget: decimal.NewFromInt(500), UserOwned: true},
		},
		Profile:    core.UserProfile{FamilySize: 1, MonthlyIncome: decimal.NewFromInt(2000)},
		HasProfile: true,
	}

	e := NewEngine(EngineConfig{}, nil, WithClock(fixedClock()))
	got := e.SuggestBudgets(context.Background(), snap)

	for _, s := range got.Suggestions {
		if s.Name == "Compras" {
			t.Error("parent categories must not get suggestions")
		}
		if s.Name == "Transferencias" {
			t.Error("transfer bucket must not get a suggestion")
		}
	}
	if _, err := findSuggestionOK(got.Suggestions, "Compras > Ropa"); err != nil {
		t.Error("budgeted child category missing from suggestions")
	}
}

func findSuggestionOK(s []Suggestion, name string) (Suggestion, error) {
	for _, x := range s {
		if x.Name == name {
			return x, nil
		}
	}
	return Suggestion{}, errors.New("not found")
}

func TestConfidenceFor(t *testing.T) {
	tests := []struct {
		name  string
		stats CategoryStats
		want  Confidence
	}{
		{"rich history", CategoryStats{Count: 12, DistinctMonths: 4}, ConfidenceHigh},
		{"moderate history", CategoryStats{Count: 6, DistinctMonths: 2}, ConfidenceMedium},
		{"thin but repeated", CategoryStats{Count: 3, DistinctMonths: 1}, ConfidenceMedium},
		{"single observation", CategoryStats{Count: 1, DistinctMonths: 1}, ConfidenceLow},
		{"many in one burst", CategoryStats{Count: 10, DistinctMonths: 1}, ConfidenceMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := confidenceFor(tt.stats); got != tt.want {
				t.Errorf("confidenceFor(%+v) = %s, want %s", tt.stats, got, tt.want)
			}
		})
	}
}

func TestAllocateIncome(t *testing.T) {
	got := allocateIncome(2000, 3)

	if !almostEqual(got.Needs, 1000) || !almostEqual(got.Wants, 600) || !almostEqual(got.Savings, 400) {
		t.Errorf("base split = %+v, want 1000/600/400", got)
	}
	if !almostEqual(got.FamilySizeAdjustment, 1.1) {
		t.Errorf("adjustment = %f, want 1.1 for a family of three", got.FamilySizeAdjustment)
	}
	if !almostEqual(got.AdjustedNeeds, 1100) {
		t.Errorf("adjusted needs = %f, want 1100", got.AdjustedNeeds)
	}
	if !almostEqual(got.AdjustedWants, 600/1.1) {
		t.Errorf("adjusted wants = %f, want %f", got.AdjustedWants, 600/1.1)
	}
}

func TestRoundTo10(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0}, {4, 0}, {5, 10}, {14, 10}, {15, 20}, {123, 120}, {128, 130},
	}
	for _, tt := range tests {
		if got := roundTo10(tt.in); !almostEqual(got, tt.want) {
			t.Errorf("roundTo10(%f) = %f, want %f", tt.in, got, tt.want)
		}
	}
}
