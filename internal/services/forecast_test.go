package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
)

func forecastAccounts() []core.Account {
	return []core.Account{
		{ID: 1, Name: "Main", Type: core.Checking, Balance: decimal.NewFromInt(1500)},
		{ID: 2, Name: "Visa", Type: core.Credit, Balance: decimal.NewFromInt(-200)},
		{ID: 3, Name: "Hucha", Type: core.Savings, Balance: decimal.NewFromInt(9000), ExcludeFromStats: true},
	}
}

func TestCurrentBalance(t *testing.T) {
	// Checking adds, credit debt subtracts regardless of sign, excluded
	// accounts are invisible.
	got := currentBalance(forecastAccounts())
	if !got.Equal(decimal.NewFromInt(1300)) {
		t.Errorf("balance = %s, want 1300", got)
	}
}

func TestAvailableToSpend(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	snap := core.Snapshot{Accounts: forecastAccounts()}

	got := testEngine().AvailableToSpend(snap, now)

	if !got.CurrentBalance.Equal(decimal.NewFromInt(1300)) {
		t.Errorf("CurrentBalance = %s, want 1300", got.CurrentBalance)
	}
	if !got.SafetyBuffer.Equal(decimal.NewFromInt(130)) {
		t.Errorf("SafetyBuffer = %s, want 130 (10%% of balance)", got.SafetyBuffer)
	}
	if got.DaysRemaining != 10 {
		t.Errorf("DaysRemaining = %d, want 10", got.DaysRemaining)
	}
	if !got.TotalAvailable.Equal(decimal.NewFromInt(1170)) {
		t.Errorf("TotalAvailable = %s, want 1170", got.TotalAvailable)
	}
	if !got.DailyRecommended.Equal(decimal.NewFromInt(117)) {
		t.Errorf("DailyRecommended = %s, want 117", got.DailyRecommended)
	}
}

func TestAvailableToSpendWithPending(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	snap := recurringSnapshot()
	snap.Accounts = forecastAccounts()

	got := testEngine().AvailableToSpend(snap, now)

	if got.PendingCount != 1 {
		t.Fatalf("PendingCount = %d, want 1 (the rent)", got.PendingCount)
	}
	if !got.PendingPayments.Equal(decimal.NewFromInt(700)) {
		t.Errorf("PendingPayments = %s, want 700", got.PendingPayments)
	}
	// 1300 - 700 pending - 130 buffer = 470.
	if !got.TotalAvailable.Equal(decimal.NewFromInt(470)) {
		t.Errorf("TotalAvailable = %s, want 470", got.TotalAvailable)
	}
	if !got.DailyRecommended.Equal(decimal.NewFromInt(47)) {
		t.Errorf("DailyRecommended = %s, want 47", got.DailyRecommended)
	}
}

func TestAvailableToSpendNeverNegative(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	snap := core.Snapshot{
		Accounts: []core.Account{
			{ID: 1, Name: "Visa", Type: core.Credit, Balance: decimal.NewFromInt(500)},
		},
	}

	got := testEngine().AvailableToSpend(snap, now)
	if !got.TotalAvailable.IsZero() {
		t.Errorf("TotalAvailable = %s, want 0 when in debt", got.TotalAvailable)
	}
	if !got.DailyRecommended.IsZero() {
		t.Errorf("DailyRecommended = %s, want 0 when in debt", got.DailyRecommended)
	}
}

func TestAvailableToSpendLastDayOfMonth(t *testing.T) {
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	snap := core.Snapshot{Accounts: []core.Account{
		{ID: 1, Name: "Main", Type: core.Checking, Balance: decimal.NewFromInt(100)},
	}}

	got := testEngine().AvailableToSpend(snap, now)
	if got.DaysRemaining != 0 {
		t.Errorf("DaysRemaining = %d, want 0", got.DaysRemaining)
	}
	// Division clamps to one day rather than exploding.
	if !got.DailyRecommended.Equal(decimal.NewFromInt(90)) {
		t.Errorf("DailyRecommended = %s, want 90", got.DailyRecommended)
	}
}

func TestCheckAffordability(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	snap := core.Snapshot{Accounts: forecastAccounts()}
	e := testEngine()

	t.Run("affordable", func(t *testing.T) {
		got := e.CheckAffordability(snap, now, decimal.NewFromInt(170))
		if !got.CanAfford {
			t.Error("170 of 1170 available should be affordable")
		}
		if !got.RemainingAfter.Equal(decimal.NewFromInt(1000)) {
			t.Errorf("RemainingAfter = %s, want 1000", got.RemainingAfter)
		}
		if !got.DailyBudgetAfter.Equal(decimal.NewFromInt(100)) {
			t.Errorf("DailyBudgetAfter = %s, want 100", got.DailyBudgetAfter)
		}
	})

	t.Run("too expensive", func(t *testing.T) {
		got := e.CheckAffordability(snap, now, decimal.NewFromInt(2000))
		if got.CanAfford {
			t.Error("2000 exceeds the 1170 available")
		}
		if !got.RemainingAfter.IsZero() {
			t.Errorf("RemainingAfter = %s, want 0", got.RemainingAfter)
		}
		if !got.DailyBudgetAfter.IsZero() {
			t.Errorf("DailyBudgetAfter = %s, want 0", got.DailyBudgetAfter)
		}
	})

	t.Run("exact amount", func(t *testing.T) {
		got := e.CheckAffordability(snap, now, decimal.NewFromInt(1170))
		if !got.CanAfford {
			t.Error("spending exactly the available amount is allowed")
		}
	})
}
