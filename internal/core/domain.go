package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TxKind = "income"
	Expense TxKind = "expense"
)

const (
	Checking   AccountType = "checking"
	Savings    AccountType = "savings"
	Investment AccountType = "investment"
	Credit     AccountType = "credit"
)

type (
	// TxKind distinguishes money coming in from money going out.
	TxKind string

	// AccountType classifies bank accounts.
	AccountType string

	// Transaction is a single bank movement as delivered by the ingestion
	// pipeline. Amount is always positive; Kind carries the direction.
	// ApplicableMonth, when set, pins income to a budgeting month and is
	// never recomputed.
	Transaction struct {
		ID              int64
		Date            time.Time
		Description     string
		Amount          decimal.Decimal
		Kind            TxKind
		Category        string
		Computable      bool
		AccountID       *int64
		ApplicableMonth *Month
	}

	// BudgetRow is one category/budget row from the CRUD layer. UserOwned
	// rows shadow shared rows of the same name.
	BudgetRow struct {
		Name      string
		Budget    decimal.Decimal
		UserOwned bool
	}

	// Account is a bank account with its current balance. Accounts flagged
	// ExcludeFromStats never feed any computation.
	Account struct {
		ID               int64
		Name             string
		Type             AccountType
		Balance          decimal.Decimal
		ExcludeFromStats bool
	}

	// UserProfile carries the demographic context used by the suggestion
	// synthesizer. DeclaredTotalBudget is the user's own total, when set.
	UserProfile struct {
		FamilySize          int
		MonthlyIncome       decimal.Decimal
		Location            string
		Ages                []int
		DeclaredTotalBudget *decimal.Decimal
	}

	// Snapshot is one consistent read of everything a computation needs.
	// All reads feeding a single request come from the same snapshot so the
	// category list cannot drift between phases.
	Snapshot struct {
		Transactions []Transaction
		Budgets      []BudgetRow
		Accounts     []Account
		Profile      UserProfile
		HasProfile   bool
	}
)

var (
	ErrInvalidKind        = errors.New("invalid transaction kind")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrEmptyDescription   = errors.New("empty description")
	ErrNegativeAmount     = errors.New("negative amount")
)

func (k TxKind) Validate() error {
	switch k {
	case Income, Expense:
		return nil
	}
	return ErrInvalidKind
}

func (t AccountType) Validate() error {
	switch t {
	case Checking, Savings, Investment, Credit:
		return nil
	}
	return ErrInvalidAccountType
}

func (t Transaction) Validate() error {
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if t.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if t.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (p UserProfile) Validate() error {
	if p.FamilySize < 1 {
		return errors.New("family size must be at least 1")
	}
	if p.MonthlyIncome.IsNegative() {
		return ErrNegativeAmount
	}
	if p.DeclaredTotalBudget != nil && p.DeclaredTotalBudget.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// ExcludedAccountIDs collects the IDs of accounts flagged out of statistics.
func (s Snapshot) ExcludedAccountIDs() map[int64]bool {
	excluded := make(map[int64]bool)
	for _, a := range s.Accounts {
		if a.ExcludeFromStats {
			excluded[a.ID] = true
		}
	}
	return excluded
}
