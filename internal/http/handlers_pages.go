package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"spendsmart/internal/auth"
	"spendsmart/internal/core"
	"spendsmart/internal/ledger"
	"spendsmart/internal/log"
	"spendsmart/internal/ports"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.renderer.Page(&buf, name, data); err != nil {
		s.errors.LogError(r.Context(), "Template execution failed", err, log.ComponentTemplate, log.OpRender,
			log.LogFields{"template": name})
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.authenticated(r) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.render(w, r, "index.html", ledger.IndexPage{Flash: flashMessages[r.URL.Query().Get("msg")]})
}

// readCredentials accepts a JSON body or a submitted form.
func readCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	if wantsJSON(r) {
		var c credentials
		err := decodeJSON(w, r, &c)
		return c, err
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return credentials{}, err
	}
	return credentials{Username: r.PostForm.Get("username"), Password: r.PostForm.Get("password")}, nil
}

// handleLogin answers JSON clients with a token and browsers with a session
// cookie and a redirect.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	asJSON := wantsJSON(r)
	c, err := readCredentials(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	sess, err := s.svc.Login(r.Context(), sanitizeInput(c.Username), c.Password)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.errors.LogError(r.Context(), "Login failed", err, log.ComponentAuth, "login", nil)
		} else {
			s.logger.InfoContext(r.Context(), "Login rejected", log.FieldUsername, c.Username)
		}
		switch {
		case asJSON:
			writeError(w, status, publicMessage(status, err))
		case status == http.StatusUnauthorized:
			redirectWithFlash(w, r, flashBadLogin)
		case status == http.StatusNotFound:
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	s.logger.InfoContext(r.Context(), "User logged in",
		log.FieldUsername, sess.Identity.Username,
		log.FieldOwner, sess.Identity.UserID)
	if asJSON {
		writeJSON(w, http.StatusOK, sessionResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt})
		return
	}
	s.setSessionCookie(w, sess.Token, sess.ExpiresAt)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	asJSON := wantsJSON(r)
	c, err := readCredentials(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	u, err := s.svc.Register(r.Context(), sanitizeInput(c.Username), c.Password)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.errors.LogError(r.Context(), "Registration failed", err, log.ComponentAuth, log.OpCreate, nil)
		}
		switch {
		case asJSON:
			writeError(w, status, publicMessage(status, err))
		case errors.Is(err, ports.ErrUsernameTaken):
			redirectWithFlash(w, r, flashTaken)
		case core.IsValidation(err):
			redirectWithFlash(w, r, flashBadRegister)
		case status == http.StatusNotFound:
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	if asJSON {
		writeJSON(w, http.StatusCreated, userResponse{ID: u.ID, Username: u.Username})
		return
	}
	redirectWithFlash(w, r, flashRegistered)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookie(w)
	redirectWithFlash(w, r, flashLoggedOut)
}

// handleDashboard renders the ledger view of the current owner.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := auth.OwnerFromContext(ctx)
	state, err := s.loadView(ctx, owner)
	if err != nil {
		s.errors.LogError(ctx, "Dashboard load failed", err, log.ComponentLedger, log.OpRead,
			log.NewFields().WithOperation(log.OpRead))
		http.Error(w, "failed to load ledger", http.StatusInternalServerError)
		return
	}

	canvas := &ledger.HTMLCanvas{}
	if err := ledger.NewChartView(canvas).Refresh(state.ExpenseDistribution()); err != nil {
		s.logger.WarnContext(ctx, "Chart render failed", log.FieldError, err)
	}

	id, _ := auth.FromContext(ctx)
	s.render(w, r, "dashboard.html", ledger.DashboardPage{
		Username:    id.Username,
		AuthEnabled: s.svc.AuthEnabled(),
		Symbol:      s.symbol,
		View:        ledger.NewViewModel(state, canvas.HTML()),
	})
}

// loadView fetches transactions and budgets concurrently.
func (s *Server) loadView(ctx context.Context, owner int64) (*ledger.ViewState, error) {
	state := ledger.NewViewState(s.symbol)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := s.svc.ListTransactions(gctx, owner)
		if err == nil {
			state.Transactions = txs
		}
		return err
	})
	g.Go(func() error {
		budgets, err := s.svc.ListBudgets(gctx, owner)
		if err == nil {
			state.Budgets = budgets
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return state, nil
}
