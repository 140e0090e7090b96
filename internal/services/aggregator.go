package services

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
)

// Category row status, in sort priority order.
const (
	StatusOver     Status = "over"
	StatusWarning  Status = "warning"
	StatusOK       Status = "ok"
	StatusNoBudget Status = "no_budget"
	StatusTransfer Status = "transfer"
)

type (
	Status string

	// CategoryReport is one row of the month's budget-vs-actual view.
	CategoryReport struct {
		Name             string          `json:"name"`
		Budget           decimal.Decimal `json:"budget"`
		Spent            decimal.Decimal `json:"spent"`
		Remaining        decimal.Decimal `json:"remaining"`
		Percentage       float64         `json:"percentage"`
		TransactionCount int             `json:"transactionCount"`
		Status           Status          `json:"status"`
		IsParent         bool            `json:"isParent,omitempty"`
		IsTransfer       bool            `json:"isTransfer,omitempty"`
		Note             string          `json:"note,omitempty"`
	}

	// OverviewTotals aggregates the month. Transfer rows and parent budgets
	// are excluded; Income is the month's attributed income.
	OverviewTotals struct {
		Budget     decimal.Decimal `json:"budget"`
		Spent      decimal.Decimal `json:"spent"`
		Remaining  decimal.Decimal `json:"remaining"`
		Percentage float64         `json:"percentage"`
		Income     decimal.Decimal `json:"income"`
	}

	// BudgetOverview is the month's reconciled budget-vs-actual view.
	BudgetOverview struct {
		Month      string           `json:"month"`
		Categories []CategoryReport `json:"categories"`
		Totals     OverviewTotals   `json:"totals"`
	}
)

// Categories whose spending is parked in the review bucket regardless of
// the computable flag.
var reviewCategoryNames = map[string]bool{
	"Finanzas > Transferencias": true,
	"Transferencias":            true,
	"NC":                        true,
	"nc":                        true,
}

const warningThreshold = 90.0

// Overview computes the month's budget-vs-actual view: account exclusion,
// income attribution, row deduplication, category normalization, per-row
// status and deterministic ordering.
func (e *Engine) Overview(snap core.Snapshot, month core.Month) BudgetOverview {
	txs := dedupTransactions(dropExcludedAccounts(snap.Transactions, snap.ExcludedAccountIDs()))

	merged := NormalizeBudgets(snap.Budgets)
	rows := make([]CategoryReport, len(merged))
	rowIdx := make([]core.Category, len(merged))
	for i, m := range merged {
		rows[i] = CategoryReport{Name: m.Category.String(), Budget: m.Budget, IsParent: m.IsParent}
		rowIdx[i] = m.Category
	}

	var (
		reviewSpent decimal.Decimal
		reviewCount int
		income      decimal.Decimal
	)

	for _, tx := range txs {
		switch tx.Kind {
		case core.Income:
			if tx.Computable && ApplicableMonth(tx) == month {
				income = income.Add(tx.Amount)
			}
		case core.Expense:
			// Expenses always count in their actual calendar month.
			if !month.Contains(tx.Date) {
				continue
			}
			if !tx.Computable || reviewCategoryNames[strings.TrimSpace(tx.Category)] {
				reviewSpent = reviewSpent.Add(tx.Amount)
				reviewCount++
				continue
			}
			cat := core.ParseCategory(tx.Category)
			i := findRowFor(rows, rowIdx, cat)
			if i < 0 {
				rows = append(rows, CategoryReport{Name: cat.String()})
				rowIdx = append(rowIdx, cat)
				i = len(rows) - 1
			}
			rows[i].Spent = rows[i].Spent.Add(tx.Amount)
			rows[i].TransactionCount++
		}
	}

	for i := range rows {
		rows[i].Remaining = rows[i].Budget.Sub(rows[i].Spent)
		rows[i].Percentage = percentage(rows[i].Spent, rows[i].Budget)
		rows[i].Status = rowStatus(rows[i])
		rows[i].Note = e.categoryInsight(rows[i])
	}

	if reviewCount > 0 {
		rows = append(rows, CategoryReport{
			Name:             "Transferencias",
			Spent:            reviewSpent,
			Remaining:        reviewSpent.Neg(),
			TransactionCount: reviewCount,
			Status:           StatusTransfer,
			IsTransfer:       true,
			Note:             "not included in totals; review whether these are real expenses",
		})
	}

	totals := OverviewTotals{Income: income}
	for _, row := range rows {
		if row.IsTransfer {
			continue
		}
		totals.Spent = totals.Spent.Add(row.Spent)
		if !row.IsParent && row.TransactionCount > 0 {
			totals.Budget = totals.Budget.Add(row.Budget)
		}
	}
	totals.Remaining = totals.Budget.Sub(totals.Spent)
	totals.Percentage = percentage(totals.Spent, totals.Budget)

	sortReports(rows)

	return BudgetOverview{Month: month.String(), Categories: rows, Totals: totals}
}

// findRowFor resolves a transaction category against the existing rows
// using label equivalence, so flat and hierarchical spellings of the same
// category land on one row.
func findRowFor(rows []CategoryReport, idx []core.Category, cat core.Category) int {
	for i := range idx {
		if idx[i].Equivalent(cat) {
			return i
		}
	}
	return -1
}

// dropExcludedAccounts removes transactions whose account is flagged out of
// statistics. Transactions without an account reference always stay.
func dropExcludedAccounts(txs []core.Transaction, excluded map[int64]bool) []core.Transaction {
	if len(excluded) == 0 {
		return txs
	}
	kept := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.AccountID != nil && excluded[*tx.AccountID] {
			continue
		}
		kept = append(kept, tx)
	}
	return kept
}

// dedupTransactions collapses rows identical in (date, description, amount,
// kind) to a single instance. Upstream ingestion can duplicate rows when a
// statement is uploaded twice.
func dedupTransactions(txs []core.Transaction) []core.Transaction {
	seen := make(map[string]bool, len(txs))
	kept := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		key := tx.Date.Format("2006-01-02") + "\x1f" +
			strings.TrimSpace(tx.Description) + "\x1f" +
			tx.Amount.String() + "\x1f" + string(tx.Kind)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, tx)
	}
	return kept
}

func percentage(spent, budget decimal.Decimal) float64 {
	if budget.IsZero() || !budget.IsPositive() {
		return 0
	}
	return spent.Div(budget).InexactFloat64() * 100
}

func rowStatus(row CategoryReport) Status {
	switch {
	case row.Budget.IsZero():
		return StatusNoBudget
	case row.Spent.GreaterThan(row.Budget):
		return StatusOver
	case row.Percentage >= warningThreshold:
		return StatusWarning
	default:
		return StatusOK
	}
}

var statusPriority = map[Status]int{
	StatusOver:     0,
	StatusWarning:  1,
	StatusOK:       2,
	StatusNoBudget: 3,
	StatusTransfer: 4,
}

// pinnedLast reports whether a category is pinned to the bottom of the view
// regardless of status: transfers, bank fees and the uncategorized bucket.
func pinnedLast(name string) bool {
	lower := strings.ToLower(name)
	if lower == "nc" {
		return true
	}
	for _, marker := range []string{"transferencia", "transfer", "comisión", "comision", "fee", "sin categoría", "sin categoria", "uncategorized"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// sortReports orders rows by urgency: over first (largest overage first),
// then warnings by percentage, then alphabetical within a status. Transfer,
// fee and uncategorized rows sink to the bottom no matter their status.
func sortReports(rows []CategoryReport) {
	sort.SliceStable(rows, func(i, j int) bool {
		pi, pj := pinnedLast(rows[i].Name), pinnedLast(rows[j].Name)
		if pi != pj {
			return !pi
		}
		si, sj := statusPriority[rows[i].Status], statusPriority[rows[j].Status]
		if si != sj {
			return si < sj
		}
		switch rows[i].Status {
		case StatusOver:
			oi := rows[i].Spent.Sub(rows[i].Budget)
			oj := rows[j].Spent.Sub(rows[j].Budget)
			if cmp := oi.Cmp(oj); cmp != 0 {
				return cmp > 0
			}
		case StatusWarning:
			if rows[i].Percentage != rows[j].Percentage {
				return rows[i].Percentage > rows[j].Percentage
			}
		}
		return rows[i].Name < rows[j].Name
	})
}
