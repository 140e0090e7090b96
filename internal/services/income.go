package services

import (
	"strings"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
)

// Salary detection window and amount band. Payroll deposited on or after
// the 25th is budgeted to the following month.
const salaryShiftDay = 25

var (
	salaryMinAmount = decimal.NewFromInt(1200)
	salaryMaxAmount = decimal.NewFromInt(15000)
)

// salaryKeywords mark descriptions that look like payroll.
var salaryKeywords = []string{
	"nómina", "nomina", "salary", "payroll", "salario", "sueldo",
	"paga extra", "paga extraordinaria", "mensualidad", "retribución",
	"retribucion", "honorarios", "freelance", "factura", "ingreso recurrente",
}

// salaryExcludeKeywords veto the shift: transfers between own accounts and
// refunds land late in the month too but are not pay.
var salaryExcludeKeywords = []string{
	"remesa", "traspaso", "transferencia", "transfer", "bizum",
	"envío", "envio", "devolución", "devolucion", "reembolso",
}

// ApplicableMonth decides which budgeting month an income transaction
// belongs to. An explicit override on the transaction is returned unchanged
// and never recomputed. Otherwise income in the late-month salary window
// shifts to the next calendar month; everything else keeps its own month.
// Expenses always keep their calendar month.
func ApplicableMonth(tx core.Transaction) core.Month {
	if tx.ApplicableMonth != nil {
		return *tx.ApplicableMonth
	}
	month := core.MonthOf(tx.Date)
	if tx.Kind != core.Income {
		return month
	}
	if tx.Date.Day() < salaryShiftDay {
		return month
	}
	if !looksLikeSalary(tx) {
		return month
	}
	return month.Next()
}

func looksLikeSalary(tx core.Transaction) bool {
	desc := strings.ToLower(strings.TrimSpace(tx.Description))
	for _, kw := range salaryExcludeKeywords {
		if strings.Contains(desc, kw) {
			return false
		}
	}
	for _, kw := range salaryKeywords {
		if strings.Contains(desc, kw) {
			return true
		}
	}
	return tx.Amount.GreaterThanOrEqual(salaryMinAmount) &&
		tx.Amount.LessThanOrEqual(salaryMaxAmount)
}
