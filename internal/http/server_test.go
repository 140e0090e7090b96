package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
	"cuentas/internal/services"
)

type stubStore struct {
	snap      core.Snapshot
	snapErr   error
	healthErr error
	calls     int
}

func (s *stubStore) Snapshot(ctx context.Context, userID int64) (core.Snapshot, error) {
	s.calls++
	return s.snap, s.snapErr
}

func (s *stubStore) Healthy(ctx context.Context) error {
	return s.healthErr
}

func testSnapshot() core.Snapshot {
	return core.Snapshot{
		Transactions: []core.Transaction{
			{
				Date:        time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
				Description: "MERCADONA",
				Amount:      decimal.NewFromInt(80),
				Kind:        core.Expense,
				Category:    "Alimentación > Supermercado",
				Computable:  true,
			},
		},
		Budgets: []core.BudgetRow{
			{Name: "Alimentación > Supermercado", Budget: decimal.NewFromInt(400), UserOwned: true},
		},
		Accounts: []core.Account{
			{ID: 1, Name: "Main", Type: core.Checking, Balance: decimal.NewFromInt(1500)},
		},
	}
}

func newTestServer(store Store) *Server {
	engine := services.NewEngine(services.EngineConfig{}, nil)
	return NewServer(":0", store, engine, nil)
}

func TestHandleOverview(t *testing.T) {
	store := &stubStore{snap: testSnapshot()}
	srv := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/api/budget/overview?month=2025-06", nil)
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var overview services.BudgetOverview
	if err := json.Unmarshal(rec.Body.Bytes(), &overview); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if overview.Month != "2025-06" {
		t.Errorf("Month = %q, want 2025-06", overview.Month)
	}
	if len(overview.Categories) == 0 {
		t.Error("expected at least one category row")
	}
}

func TestHandleOverviewCaching(t *testing.T) {
	store := &stubStore{snap: testSnapshot()}
	srv := newTestServer(store)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/budget/overview?month=2025-06", nil)
		rec := httptest.NewRecorder()
		srv.Server.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}

	if store.calls != 1 {
		t.Errorf("snapshot calls = %d, want 1 (repeated reads served from cache)", store.calls)
	}
}

func TestHandleOverviewBadMonth(t *testing.T) {
	srv := newTestServer(&stubStore{snap: testSnapshot()})

	req := httptest.NewRequest(http.MethodGet, "/api/budget/overview?month=junio", nil)
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleOverviewStoreError(t *testing.T) {
	srv := newTestServer(&stubStore{snapErr: errors.New("disk on fire")})

	req := httptest.NewRequest(http.MethodGet, "/api/budget/overview", nil)
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHandleAffordability(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{"valid amount", "?amount=50", http.StatusOK},
		{"missing amount", "", http.StatusBadRequest},
		{"negative amount", "?amount=-10", http.StatusBadRequest},
		{"non-numeric amount", "?amount=mucho", http.StatusBadRequest},
	}

	srv := newTestServer(&stubStore{snap: testSnapshot()})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/predictions/affordability"+tt.query, nil)
			rec := httptest.NewRecorder()
			srv.Server.Handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandlePendingPayments(t *testing.T) {
	srv := newTestServer(&stubStore{snap: testSnapshot()})

	req := httptest.NewRequest(http.MethodGet, "/api/predictions/pending-payments", nil)
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var pending services.PendingPayments
	if err := json.Unmarshal(rec.Body.Bytes(), &pending); err != nil {
		t.Fatalf("decode pending payments: %v", err)
	}
}

func TestHandleSuggestions(t *testing.T) {
	srv := newTestServer(&stubStore{snap: testSnapshot()})

	req := httptest.NewRequest(http.MethodGet, "/api/budget/suggestions", nil)
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out services.BudgetSuggestions
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode suggestions: %v", err)
	}
	if len(out.Suggestions) == 0 {
		t.Error("expected at least one suggestion")
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Run("healthz", func(t *testing.T) {
		srv := newTestServer(&stubStore{})
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		srv.Server.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("healthz status = %d, want 200", rec.Code)
		}
	})

	t.Run("readyz ready", func(t *testing.T) {
		srv := newTestServer(&stubStore{})
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		srv.Server.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("readyz status = %d, want 200", rec.Code)
		}
	})

	t.Run("readyz database down", func(t *testing.T) {
		srv := newTestServer(&stubStore{healthErr: errors.New("locked")})
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		srv.Server.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("readyz status = %d, want 503", rec.Code)
		}
	})
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(&stubStore{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}
