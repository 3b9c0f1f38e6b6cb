package http

import (
	"errors"
	"net/http"

	"spendsmart/internal/auth"
	"spendsmart/internal/core"
	"spendsmart/internal/log"
)

type idResponse struct {
	ID int64 `json:"id"`
}

// fail logs server-side failures and writes the mapped error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.errors.LogError(r.Context(), "Ledger request failed", err, log.ComponentLedger, op,
			log.NewFields().WithOperation(op))
	}
	writeError(w, status, publicMessage(status, err))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	owner := auth.OwnerFromContext(r.Context())
	txs, err := s.svc.ListTransactions(r.Context(), owner)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) decodeTransaction(w http.ResponseWriter, r *http.Request) (core.Transaction, bool) {
	var tx core.Transaction
	if err := decodeJSON(w, r, &tx); err != nil {
		status, msg := decodeStatus(err)
		writeError(w, status, msg)
		return core.Transaction{}, false
	}
	tx.Category = sanitizeInput(tx.Category)
	return tx, true
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := s.decodeTransaction(w, r)
	if !ok {
		return
	}
	id, err := s.svc.AddTransaction(r.Context(), auth.OwnerFromContext(r.Context()), tx)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tx, ok := s.decodeTransaction(w, r)
	if !ok {
		return
	}
	if err := s.svc.UpdateTransaction(r.Context(), auth.OwnerFromContext(r.Context()), id, tx); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.DeleteTransaction(r.Context(), auth.OwnerFromContext(r.Context()), id); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.svc.ListBudgets(r.Context(), auth.OwnerFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, budgets)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var b core.Budget
	if err := decodeJSON(w, r, &b); err != nil {
		status, msg := decodeStatus(err)
		if errors.Is(err, core.ErrInvalidAmount) {
			msg = core.ErrInvalidLimit.Error()
		}
		writeError(w, status, msg)
		return
	}
	b.Category = sanitizeInput(b.Category)
	if err := s.svc.SetBudget(r.Context(), auth.OwnerFromContext(r.Context()), b); err != nil {
		s.fail(w, r, log.OpBudget, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}
