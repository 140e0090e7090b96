package services

import (
	"testing"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
)

func row(name string, budget int64, userOwned bool) core.BudgetRow {
	return core.BudgetRow{Name: name, Budget: decimal.NewFromInt(budget), UserOwned: userOwned}
}

func findMerged(t *testing.T, merged []MergedBudget, name string) MergedBudget {
	t.Helper()
	for _, m := range merged {
		if m.Category.String() == name {
			return m
		}
	}
	t.Fatalf("category %q not found in %v", name, mergedNames(merged))
	return MergedBudget{}
}

func mergedNames(merged []MergedBudget) []string {
	names := make([]string, len(merged))
	for i, m := range merged {
		names[i] = m.Category.String()
	}
	return names
}

func TestNormalizeBudgetsMergesEquivalent(t *testing.T) {
	merged := NormalizeBudgets([]core.BudgetRow{
		row("Ropa", 50, true),
		row("Compras > Ropa", 100, true),
	})

	if len(merged) != 1 {
		t.Fatalf("got %d rows, want 1: %v", len(merged), mergedNames(merged))
	}
	got := merged[0]
	if got.Category.String() != "Compras > Ropa" {
		t.Errorf("canonical name = %q, want the hierarchical spelling", got.Category.String())
	}
	if !got.Budget.Equal(decimal.NewFromInt(150)) {
		t.Errorf("budget = %s, want 150", got.Budget)
	}
}

func TestNormalizeBudgetsDistinctHierarchiesNeverMerge(t *testing.T) {
	merged := NormalizeBudgets([]core.BudgetRow{
		row("Casa > Luz", 60, true),
		row("Servicios > Luz", 40, true),
	})

	if len(merged) != 2 {
		t.Fatalf("got %d rows, want 2: %v", len(merged), mergedNames(merged))
	}
}

func TestNormalizeBudgetsDeterministicMergeTarget(t *testing.T) {
	// A flat label equivalent to two hierarchies must always fold into the
	// one with the larger budget, no matter the input order.
	inputs := [][]core.BudgetRow{
		{row("Luz", 10, true), row("Casa > Luz", 60, true), row("Servicios > Luz", 40, true)},
		{row("Servicios > Luz", 40, true), row("Luz", 10, true), row("Casa > Luz", 60, true)},
		{row("Casa > Luz", 60, true), row("Servicios > Luz", 40, true), row("Luz", 10, true)},
	}

	for i, rows := range inputs {
		merged := NormalizeBudgets(rows)
		if len(merged) != 2 {
			t.Fatalf("input %d: got %d rows, want 2: %v", i, len(merged), mergedNames(merged))
		}
		casa := findMerged(t, merged, "Casa > Luz")
		if !casa.Budget.Equal(decimal.NewFromInt(70)) {
			t.Errorf("input %d: Casa > Luz budget = %s, want 70", i, casa.Budget)
		}
		servicios := findMerged(t, merged, "Servicios > Luz")
		if !servicios.Budget.Equal(decimal.NewFromInt(40)) {
			t.Errorf("input %d: Servicios > Luz budget = %s, want 40", i, servicios.Budget)
		}
	}
}

func TestNormalizeBudgetsUserShadowsShared(t *testing.T) {
	merged := NormalizeBudgets([]core.BudgetRow{
		row("Alimentación > Supermercado", 300, false),
		row("Alimentación > Supermercado", 450, true),
	})

	if len(merged) != 1 {
		t.Fatalf("got %d rows, want 1: %v", len(merged), mergedNames(merged))
	}
	if !merged[0].Budget.Equal(decimal.NewFromInt(450)) {
		t.Errorf("budget = %s, want the user-owned 450", merged[0].Budget)
	}
}

func TestNormalizeBudgetsSharedRowSurvivesAlone(t *testing.T) {
	merged := NormalizeBudgets([]core.BudgetRow{
		row("Transporte", 120, false),
	})
	if len(merged) != 1 || !merged[0].Budget.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("shared-only row should pass through, got %v", merged)
	}
}

func TestNormalizeBudgetsMarksParents(t *testing.T) {
	merged := NormalizeBudgets([]core.BudgetRow{
		row("Compras", 0, true),
		row("Compras > Ropa", 100, true),
		row("Compras > Tecnología", 80, true),
		row("Ocio", 150, true),
	})

	compras := findMerged(t, merged, "Compras")
	if !compras.IsParent {
		t.Error("Compras should be flagged as parent of Compras > Ropa")
	}
	ocio := findMerged(t, merged, "Ocio")
	if ocio.IsParent {
		t.Error("Ocio has no children and must not be a parent")
	}
	ropa := findMerged(t, merged, "Compras > Ropa")
	if ropa.IsParent {
		t.Error("hierarchical rows are never parents")
	}
}

func TestNormalizeBudgetsIdempotent(t *testing.T) {
	first := NormalizeBudgets([]core.BudgetRow{
		row("Ropa", 50, true),
		row("Compras > Ropa", 100, true),
		row("Compras", 0, true),
		row("Ocio", 150, false),
	})

	asRows := make([]core.BudgetRow, 0, len(first))
	for _, m := range first {
		asRows = append(asRows, core.BudgetRow{Name: m.Category.String(), Budget: m.Budget, UserOwned: true})
	}
	second := NormalizeBudgets(asRows)

	if len(first) != len(second) {
		t.Fatalf("row count changed on renormalization: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Category.String() != second[i].Category.String() {
			t.Errorf("row %d: name %q vs %q", i, first[i].Category.String(), second[i].Category.String())
		}
		if !first[i].Budget.Equal(second[i].Budget) {
			t.Errorf("row %d: budget %s vs %s", i, first[i].Budget, second[i].Budget)
		}
		if first[i].IsParent != second[i].IsParent {
			t.Errorf("row %d: parent flag %v vs %v", i, first[i].IsParent, second[i].IsParent)
		}
	}
}

func TestNormalizeBudgetsEmpty(t *testing.T) {
	if got := NormalizeBudgets(nil); len(got) != 0 {
		t.Errorf("expected no rows, got %v", got)
	}
}
