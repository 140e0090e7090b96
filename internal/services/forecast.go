package services

import (
	"time"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
)

type (
	// AvailableToSpend is the safe-spending forecast for the rest of the
	// month.
	AvailableToSpend struct {
		TotalAvailable      decimal.Decimal `json:"totalAvailable"`
		DailyRecommended    decimal.Decimal `json:"dailyRecommended"`
		CurrentBalance      decimal.Decimal `json:"currentBalance"`
		PendingPayments     decimal.Decimal `json:"pendingPayments"`
		PendingCount        int             `json:"pendingCount"`
		SafetyBuffer        decimal.Decimal `json:"safetyBuffer"`
		SafetyBufferPercent float64         `json:"safetyBufferPercent"`
		DaysRemaining       int             `json:"daysRemaining"`
	}

	// Affordability answers "can I spend X right now".
	Affordability struct {
		CanAfford        bool            `json:"canAfford"`
		RequestedAmount  decimal.Decimal `json:"requestedAmount"`
		Available        decimal.Decimal `json:"available"`
		RemainingAfter   decimal.Decimal `json:"remainingAfter"`
		DailyBudgetAfter decimal.Decimal `json:"dailyBudgetAfter"`
		DaysRemaining    int             `json:"daysRemaining"`
	}
)

// currentBalance sums the balances of non-excluded accounts: credit card
// balances count as debt, everything else as funds.
func currentBalance(accounts []core.Account) decimal.Decimal {
	var balance decimal.Decimal
	for _, a := range accounts {
		if a.ExcludeFromStats {
			continue
		}
		if a.Type == core.Credit {
			balance = balance.Sub(a.Balance.Abs())
			continue
		}
		balance = balance.Add(a.Balance)
	}
	return balance
}

// AvailableToSpend combines current balances with this month's pending
// obligations and a safety buffer into a safe daily allowance.
func (e *Engine) AvailableToSpend(snap core.Snapshot, now time.Time) AvailableToSpend {
	balance := currentBalance(snap.Accounts)
	pending := e.PendingPayments(snap, now)

	bufferPct := decimal.NewFromFloat(e.cfg.SafetyBufferPercent / 100)
	buffer := balance.Mul(bufferPct).Round(2)

	month := core.MonthOf(now)
	daysRemaining := month.Days() - now.Day()

	available := balance.Sub(pending.TotalAmount).Sub(buffer)
	daily := available.Div(decimal.NewFromInt(int64(max(1, daysRemaining)))).Round(2)

	return AvailableToSpend{
		TotalAvailable:      decimal.Max(decimal.Zero, available),
		DailyRecommended:    decimal.Max(decimal.Zero, daily),
		CurrentBalance:      balance,
		PendingPayments:     pending.TotalAmount,
		PendingCount:        pending.Count,
		SafetyBuffer:        buffer,
		SafetyBufferPercent: e.cfg.SafetyBufferPercent,
		DaysRemaining:       daysRemaining,
	}
}

// CheckAffordability reports whether a hypothetical amount fits within the
// current available-to-spend, and what the daily budget would look like
// afterwards.
func (e *Engine) CheckAffordability(snap core.Snapshot, now time.Time, amount decimal.Decimal) Affordability {
	available := e.AvailableToSpend(snap, now)
	remaining := available.TotalAvailable.Sub(amount)

	daily := decimal.Zero
	if remaining.IsPositive() && available.DaysRemaining > 0 {
		daily = remaining.Div(decimal.NewFromInt(int64(available.DaysRemaining))).Round(2)
	}

	return Affordability{
		CanAfford:        available.TotalAvailable.GreaterThanOrEqual(amount),
		RequestedAmount:  amount,
		Available:        available.TotalAvailable,
		RemainingAfter:   decimal.Max(decimal.Zero, remaining),
		DailyBudgetAfter: daily,
		DaysRemaining:    available.DaysRemaining,
	}
}
