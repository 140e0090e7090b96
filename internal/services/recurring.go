package services

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
)

type (
	// RecurringPayment is an expense pattern regular enough in day-of-month
	// and amount to forecast as a future obligation.
	RecurringPayment struct {
		Description string          `json:"description"`
		Category    string          `json:"category"`
		AvgAmount   decimal.Decimal `json:"avgAmount"`
		TypicalDay  int             `json:"typicalDay"`
		Frequency   int             `json:"frequency"`
		FirstSeen   time.Time       `json:"firstSeen"`
		LastSeen    time.Time       `json:"lastSeen"`
	}

	// PendingPayment is a recurring obligation not yet paid this month.
	PendingPayment struct {
		Description string          `json:"description"`
		Category    string          `json:"category"`
		Amount      decimal.Decimal `json:"amount"`
		TypicalDay  int             `json:"typicalDay"`
		DaysUntil   int             `json:"daysUntil"`
		Frequency   int             `json:"frequency"`
	}

	// PendingPayments is the month's outstanding recurring obligations.
	PendingPayments struct {
		Pending     []PendingPayment `json:"pending"`
		TotalAmount decimal.Decimal  `json:"totalAmount"`
		Count       int              `json:"count"`
		CurrentDay  int              `json:"currentDay"`
		Month       string           `json:"month"`
	}
)

// A pending payment whose typical day passed more than this many days ago
// is considered missed rather than pending.
const pendingGraceDays = 5

// DetectRecurring mines the expense window for repeating obligations:
// groups of (description, category, day-of-month) occurring at least the
// configured number of times whose amounts vary less than the coefficient
// of variation threshold.
func (e *Engine) DetectRecurring(snap core.Snapshot, now time.Time) []RecurringPayment {
	txs := dedupTransactions(dropExcludedAccounts(snap.Transactions, snap.ExcludedAccountIDs()))
	windowStart := now.AddDate(0, -e.cfg.RecurringWindowMonths, 0)

	type group struct {
		description string
		category    string
		day         int
		amounts     []float64
		total       decimal.Decimal
		first, last time.Time
	}
	groups := make(map[string]*group)

	for _, tx := range txs {
		if tx.Kind != core.Expense || !tx.Computable {
			continue
		}
		if tx.Date.Before(windowStart) || tx.Date.After(now) {
			continue
		}
		desc := normalizeDescription(tx.Description)
		cat := core.ParseCategory(tx.Category).String()
		if cat == "" {
			cat = "Uncategorized"
		}
		key := desc + "\x1f" + cat + "\x1f" + strconv.Itoa(tx.Date.Day())
		g := groups[key]
		if g == nil {
			g = &group{description: strings.TrimSpace(tx.Description), category: cat, day: tx.Date.Day(), first: tx.Date, last: tx.Date}
			groups[key] = g
		}
		g.amounts = append(g.amounts, tx.Amount.InexactFloat64())
		g.total = g.total.Add(tx.Amount)
		if tx.Date.Before(g.first) {
			g.first = tx.Date
		}
		if tx.Date.After(g.last) {
			g.last = tx.Date
		}
	}

	var recurring []RecurringPayment
	for _, g := range groups {
		if len(g.amounts) < e.cfg.RecurringMinOccurrences {
			continue
		}
		mean := 0.0
		for _, a := range g.amounts {
			mean += a
		}
		mean /= float64(len(g.amounts))
		if mean == 0 {
			continue
		}
		cv := populationStdDev(g.amounts, mean) / mean
		if cv >= e.cfg.RecurringMaxCV {
			continue
		}
		recurring = append(recurring, RecurringPayment{
			Description: g.description,
			Category:    g.category,
			AvgAmount:   g.total.Div(decimal.NewFromInt(int64(len(g.amounts)))).Round(2),
			TypicalDay:  g.day,
			Frequency:   len(g.amounts),
			FirstSeen:   g.first,
			LastSeen:    g.last,
		})
	}

	sort.SliceStable(recurring, func(i, j int) bool {
		if recurring[i].TypicalDay != recurring[j].TypicalDay {
			return recurring[i].TypicalDay < recurring[j].TypicalDay
		}
		return recurring[i].Description < recurring[j].Description
	})
	return recurring
}

// PendingPayments predicts which recurring obligations are still due this
// month: nothing with a matching description has been paid yet, and the
// typical day falls inside [today-grace, end of month].
func (e *Engine) PendingPayments(snap core.Snapshot, now time.Time) PendingPayments {
	recurring := e.DetectRecurring(snap, now)
	month := core.MonthOf(now)
	today := now.Day()

	paid := make(map[string]bool)
	for _, tx := range dropExcludedAccounts(snap.Transactions, snap.ExcludedAccountIDs()) {
		if tx.Kind != core.Expense || !tx.Computable || !month.Contains(tx.Date) {
			continue
		}
		paid[normalizeDescription(tx.Description)] = true
	}

	result := PendingPayments{CurrentDay: today, Month: month.String()}
	for _, r := range recurring {
		if paid[normalizeDescription(r.Description)] {
			continue
		}
		daysUntil := r.TypicalDay - today
		if daysUntil < -pendingGraceDays {
			continue
		}
		result.Pending = append(result.Pending, PendingPayment{
			Description: r.Description,
			Category:    r.Category,
			Amount:      r.AvgAmount,
			TypicalDay:  r.TypicalDay,
			DaysUntil:   daysUntil,
			Frequency:   r.Frequency,
		})
		result.TotalAmount = result.TotalAmount.Add(r.AvgAmount)
	}
	result.Count = len(result.Pending)
	return result
}

// normalizeDescription folds a bank description for matching: lowercase,
// trimmed, inner whitespace collapsed.
func normalizeDescription(desc string) string {
	return strings.Join(strings.Fields(strings.ToLower(desc)), " ")
}
