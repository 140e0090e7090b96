// Package storage persists transactions, budget categories, bank accounts
// and user profiles in SQLite, and assembles the consistent snapshot the
// engine computes over.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"cuentas/internal/core"
	"cuentas/internal/log"
)

type Repository struct {
	db     *sql.DB
	logger *log.Logger
}

func NewRepository(dbPath string, logger *log.Logger) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	return &Repository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Healthy reports whether the database answers.
func (r *Repository) Healthy(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Snapshot reads everything the engine needs for one user inside a single
// read transaction, so transactions, budgets, accounts and the profile are
// mutually consistent.
func (r *Repository) Snapshot(ctx context.Context, userID int64) (core.Snapshot, error) {
	var snap core.Snapshot

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return snap, fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if snap.Transactions, err = readTransactions(ctx, tx, userID); err != nil {
		return snap, err
	}
	if snap.Budgets, err = readBudgets(ctx, tx, userID); err != nil {
		return snap, err
	}
	if snap.Accounts, err = readAccounts(ctx, tx, userID); err != nil {
		return snap, err
	}
	if snap.Profile, snap.HasProfile, err = readProfile(ctx, tx, userID); err != nil {
		return snap, err
	}

	r.logger.Debug("snapshot assembled",
		log.FieldOperation, log.OpSnapshot,
		log.FieldUserID, userID,
		log.FieldCount, len(snap.Transactions))

	return snap, nil
}

func readTransactions(ctx context.Context, tx *sql.Tx, userID int64) ([]core.Transaction, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, date, description, amount, kind, category, computable, account_id, applicable_month
		FROM transactions
		WHERE user_id = ?
		ORDER BY date, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var (
			t         core.Transaction
			date      string
			amount    string
			kind      string
			accountID sql.NullInt64
			applMonth sql.NullString
		)
		if err := rows.Scan(&t.ID, &date, &t.Description, &amount, &kind, &t.Category, &t.Computable, &accountID, &applMonth); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Date, err = time.Parse("2006-01-02", date); err != nil {
			return nil, fmt.Errorf("parse transaction date %q: %w", date, err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse transaction amount %q: %w", amount, err)
		}
		t.Kind = core.TxKind(kind)
		if accountID.Valid {
			t.AccountID = &accountID.Int64
		}
		if applMonth.Valid && applMonth.String != "" {
			m, err := core.ParseMonth(applMonth.String)
			if err != nil {
				return nil, fmt.Errorf("parse applicable month %q: %w", applMonth.String, err)
			}
			t.ApplicableMonth = &m
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// readBudgets returns the user's budget rows followed by the shared defaults,
// so user-owned rows shadow shared rows of the same name downstream.
func readBudgets(ctx context.Context, tx *sql.Tx, userID int64) ([]core.BudgetRow, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT name, budget, user_id IS NOT NULL
		FROM budget_categories
		WHERE user_id = ? OR user_id IS NULL
		ORDER BY user_id IS NULL, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query budget categories: %w", err)
	}
	defer rows.Close()

	var budgets []core.BudgetRow
	for rows.Next() {
		var (
			b      core.BudgetRow
			budget string
		)
		if err := rows.Scan(&b.Name, &budget, &b.UserOwned); err != nil {
			return nil, fmt.Errorf("scan budget category: %w", err)
		}
		if b.Budget, err = decimal.NewFromString(budget); err != nil {
			return nil, fmt.Errorf("parse budget %q: %w", budget, err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func readAccounts(ctx context.Context, tx *sql.Tx, userID int64) ([]core.Account, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, type, balance, exclude_from_stats
		FROM bank_accounts
		WHERE user_id = ?
		ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query bank accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var (
			a       core.Account
			accType string
			balance string
		)
		if err := rows.Scan(&a.ID, &a.Name, &accType, &balance, &a.ExcludeFromStats); err != nil {
			return nil, fmt.Errorf("scan bank account: %w", err)
		}
		a.Type = core.AccountType(accType)
		if a.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("parse account balance %q: %w", balance, err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func readProfile(ctx context.Context, tx *sql.Tx, userID int64) (core.UserProfile, bool, error) {
	var (
		p        core.UserProfile
		income   string
		ages     sql.NullString
		declared sql.NullString
	)
	err := tx.QueryRowContext(ctx, `
		SELECT family_size, monthly_income, location, ages, declared_total_budget
		FROM user_profiles
		WHERE user_id = ?`, userID).
		Scan(&p.FamilySize, &income, &p.Location, &ages, &declared)
	if err == sql.ErrNoRows {
		return p, false, nil
	}
	if err != nil {
		return p, false, fmt.Errorf("query user profile: %w", err)
	}
	if p.MonthlyIncome, err = decimal.NewFromString(income); err != nil {
		return p, false, fmt.Errorf("parse monthly income %q: %w", income, err)
	}
	if ages.Valid && ages.String != "" {
		if err := json.Unmarshal([]byte(ages.String), &p.Ages); err != nil {
			return p, false, fmt.Errorf("parse profile ages: %w", err)
		}
	}
	if declared.Valid && declared.String != "" {
		d, err := decimal.NewFromString(declared.String)
		if err != nil {
			return p, false, fmt.Errorf("parse declared total budget %q: %w", declared.String, err)
		}
		p.DeclaredTotalBudget = &d
	}
	return p, true, nil
}

// InsertTransactions stores imported rows for a user in one transaction.
// Rows already present with the same (date, description, amount, kind) are
// skipped, so re-importing a statement is idempotent.
func (r *Repository) InsertTransactions(ctx context.Context, userID int64, txs []core.Transaction) (int, error) {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import transaction: %w", err)
	}
	defer dbtx.Rollback()

	stmt, err := dbtx.PrepareContext(ctx, `
		INSERT INTO transactions (user_id, date, description, amount, kind, category, computable, account_id, applicable_month)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM transactions
			WHERE user_id = ? AND date = ? AND description = ? AND amount = ? AND kind = ?
		)`)
	if err != nil {
		return 0, fmt.Errorf("prepare transaction insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, t := range txs {
		if err := t.Validate(); err != nil {
			return inserted, fmt.Errorf("invalid transaction %q: %w", t.Description, err)
		}
		date := t.Date.Format("2006-01-02")
		amount := t.Amount.String()
		var accountID any
		if t.AccountID != nil {
			accountID = *t.AccountID
		}
		var applMonth any
		if t.ApplicableMonth != nil {
			applMonth = t.ApplicableMonth.String()
		}
		res, err := stmt.ExecContext(ctx,
			userID, date, t.Description, amount, string(t.Kind), t.Category, t.Computable, accountID, applMonth,
			userID, date, t.Description, amount, string(t.Kind))
		if err != nil {
			return inserted, fmt.Errorf("insert transaction: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}

	if err := dbtx.Commit(); err != nil {
		return inserted, fmt.Errorf("commit import transaction: %w", err)
	}

	r.logger.Info("transactions imported",
		log.FieldOperation, log.OpImport,
		log.FieldUserID, userID,
		log.FieldCount, inserted,
		"received", len(txs))

	return inserted, nil
}

// UpsertBudget creates or updates a user-owned budget row.
func (r *Repository) UpsertBudget(ctx context.Context, userID int64, row core.BudgetRow) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_categories (user_id, name, budget)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, name) DO UPDATE SET budget = excluded.budget`,
		userID, row.Name, row.Budget.String())
	if err != nil {
		return fmt.Errorf("upsert budget category: %w", err)
	}
	return nil
}

// UpsertProfile creates or replaces a user's profile.
func (r *Repository) UpsertProfile(ctx context.Context, userID int64, p core.UserProfile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	agesJSON, err := json.Marshal(p.Ages)
	if err != nil {
		return fmt.Errorf("encode profile ages: %w", err)
	}
	var declared any
	if p.DeclaredTotalBudget != nil {
		declared = p.DeclaredTotalBudget.String()
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, family_size, monthly_income, location, ages, declared_total_budget)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			family_size = excluded.family_size,
			monthly_income = excluded.monthly_income,
			location = excluded.location,
			ages = excluded.ages,
			declared_total_budget = excluded.declared_total_budget`,
		userID, p.FamilySize, p.MonthlyIncome.String(), p.Location, string(agesJSON), declared)
	if err != nil {
		return fmt.Errorf("upsert user profile: %w", err)
	}
	return nil
}
