package http

import (
	"net/http"
	"strconv"
	"time"

	"cuentas/internal/log"
)

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user parameter")
		return
	}
	month, ok := parseMonth(r, time.Now())
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid month parameter, expected YYYY-MM")
		return
	}

	key := strconv.FormatInt(userID, 10) + "|" + month.String()
	if overview, found := s.overviewCache.Get(key); found {
		s.logger.DebugContext(r.Context(), "overview cache hit",
			log.FieldUserID, userID, log.FieldMonth, month.String())
		writeJSON(w, http.StatusOK, overview)
		return
	}

	snap, err := s.store.Snapshot(r.Context(), userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "snapshot read failed",
			log.FieldError, err.Error(),
			log.FieldOperation, log.OpOverview,
			log.FieldUserID, userID)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	overview := s.engine.Overview(snap, month)
	s.overviewCache.Set(key, overview)
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user parameter")
		return
	}

	snap, err := s.store.Snapshot(r.Context(), userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "snapshot read failed",
			log.FieldError, err.Error(),
			log.FieldOperation, log.OpSuggest,
			log.FieldUserID, userID)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	writeJSON(w, http.StatusOK, s.engine.SuggestBudgets(r.Context(), snap))
}

func (s *Server) handlePendingPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user parameter")
		return
	}

	snap, err := s.store.Snapshot(r.Context(), userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "snapshot read failed",
			log.FieldError, err.Error(),
			log.FieldOperation, log.OpRecurring,
			log.FieldUserID, userID)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	writeJSON(w, http.StatusOK, s.engine.PendingPayments(snap, time.Now()))
}

func (s *Server) handleAvailableToSpend(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user parameter")
		return
	}

	snap, err := s.store.Snapshot(r.Context(), userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "snapshot read failed",
			log.FieldError, err.Error(),
			log.FieldOperation, log.OpForecast,
			log.FieldUserID, userID)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	writeJSON(w, http.StatusOK, s.engine.AvailableToSpend(snap, time.Now()))
}

func (s *Server) handleAffordability(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user parameter")
		return
	}
	amount, ok := parseAmount(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid amount parameter, expected a positive number")
		return
	}

	snap, err := s.store.Snapshot(r.Context(), userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "snapshot read failed",
			log.FieldError, err.Error(),
			log.FieldOperation, log.OpForecast,
			log.FieldUserID, userID)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	writeJSON(w, http.StatusOK, s.engine.CheckAffordability(snap, time.Now(), amount))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Healthy(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "readiness check failed",
			log.FieldError, err.Error(),
			log.FieldOperation, log.OpHealthCheck)
		writeError(w, http.StatusServiceUnavailable, "database not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
