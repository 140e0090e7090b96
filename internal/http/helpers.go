package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
)

// parseUserID extracts the user from the query string. Single-user
// deployments can omit it.
func parseUserID(r *http.Request) (int64, bool) {
	v := strings.TrimSpace(r.URL.Query().Get("user"))
	if v == "" {
		return 1, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// parseMonth extracts a YYYY-MM month from the query string, defaulting to
// the current month.
func parseMonth(r *http.Request, now time.Time) (core.Month, bool) {
	v := strings.TrimSpace(r.URL.Query().Get("month"))
	if v == "" {
		return core.MonthOf(now), true
	}
	m, err := core.ParseMonth(v)
	if err != nil {
		return core.Month{}, false
	}
	return m, true
}

// parseAmount extracts a positive decimal amount from the query string.
func parseAmount(r *http.Request) (decimal.Decimal, bool) {
	v := strings.TrimSpace(r.URL.Query().Get("amount"))
	if v == "" {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(v)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, false
	}
	return amount, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
