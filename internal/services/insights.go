package services

import "fmt"

// categoryInsight renders the short advisory note for a category row. The
// text is a pure function of (name, spent, budget), so results are memoized
// through the injected TTL cache when one is configured.
func (e *Engine) categoryInsight(row CategoryReport) string {
	if row.IsTransfer {
		return ""
	}

	key := row.Name + "|" + row.Spent.String() + "|" + row.Budget.String()
	if e.insights != nil {
		if note, ok := e.insights.Get(key); ok {
			return note
		}
	}

	note := renderInsight(row)
	if e.insights != nil && note != "" {
		e.insights.Set(key, note)
	}
	return note
}

func renderInsight(row CategoryReport) string {
	switch row.Status {
	case StatusOver:
		over := row.Spent.Sub(row.Budget)
		return fmt.Sprintf("over budget by %s; consider trimming spending or raising the budget", over.StringFixed(2))
	case StatusWarning:
		return fmt.Sprintf("%.0f%% of budget used", row.Percentage)
	case StatusNoBudget:
		if row.TransactionCount > 0 {
			return "spending without a budget; consider setting one"
		}
	}
	return ""
}
