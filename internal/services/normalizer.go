package services

import (
	"sort"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
)

// MergedBudget is one canonical category after duplicate resolution.
// IsParent marks flat labels whose children carry the actual budgets; they
// stay listed but never feed totals.
type MergedBudget struct {
	Category core.Category
	Budget   decimal.Decimal
	IsParent bool
}

// NormalizeBudgets resolves the raw category/budget rows into canonical
// form. Three passes:
//
//  1. user-owned rows shadow shared rows with the identical name,
//  2. equivalent labels (flat vs "Group > flat") merge into one row, the
//     hierarchical spelling winning and budgets summing,
//  3. flat labels that prefix an existing hierarchy are flagged as parents.
//
// The merge order is deterministic regardless of input order: hierarchical
// rows first, larger budgets first, then alphabetical. A flat label that
// could merge into several distinct hierarchies therefore always lands in
// the one with the larger budget.
func NormalizeBudgets(rows []core.BudgetRow) []MergedBudget {
	shadowed := resolveShadowing(rows)

	sort.SliceStable(shadowed, func(i, j int) bool {
		ci := core.ParseCategory(shadowed[i].Name)
		cj := core.ParseCategory(shadowed[j].Name)
		if ci.IsHierarchical() != cj.IsHierarchical() {
			return ci.IsHierarchical()
		}
		if cmp := shadowed[i].Budget.Cmp(shadowed[j].Budget); cmp != 0 {
			return cmp > 0
		}
		return shadowed[i].Name < shadowed[j].Name
	})

	var merged []MergedBudget
	for _, row := range shadowed {
		cat := core.ParseCategory(row.Name)
		idx := -1
		for i := range merged {
			if merged[i].Category.Equivalent(cat) {
				idx = i
				break
			}
		}
		if idx < 0 {
			merged = append(merged, MergedBudget{Category: cat, Budget: row.Budget})
			continue
		}
		merged[idx].Budget = merged[idx].Budget.Add(row.Budget)
		merged[idx].Category = core.PreferCanonical(merged[idx].Category, cat)
	}

	markParents(merged)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Category.String() < merged[j].Category.String()
	})
	return merged
}

// resolveShadowing keeps the user-owned row when a user row and a shared
// row carry the identical name. Distinct names are untouched; equivalence
// merging happens later.
func resolveShadowing(rows []core.BudgetRow) []core.BudgetRow {
	byName := make(map[string]core.BudgetRow, len(rows))
	order := make([]string, 0, len(rows))
	for _, row := range rows {
		existing, seen := byName[row.Name]
		if !seen {
			byName[row.Name] = row
			order = append(order, row.Name)
			continue
		}
		if row.UserOwned && !existing.UserOwned {
			byName[row.Name] = row
		}
	}
	out := make([]core.BudgetRow, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}

func markParents(merged []MergedBudget) {
	for i := range merged {
		if merged[i].Category.IsHierarchical() {
			continue
		}
		for j := range merged {
			if merged[i].Category.IsParentOf(merged[j].Category) {
				merged[i].IsParent = true
				break
			}
		}
	}
}
