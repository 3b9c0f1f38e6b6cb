package http

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"spendsmart/internal/auth"
	"spendsmart/internal/log"
)

// sessionToken returns the bearer token, or the session cookie value.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// session attaches the identity of a valid token to the request context.
// Invalid or expired tokens are treated as absent.
func (s *Server) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.svc.AuthEnabled() {
			next.ServeHTTP(w, r)
			return
		}
		token := sessionToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := s.svc.Authenticate(token)
		if err != nil {
			s.logger.DebugContext(r.Context(), "Rejected session token", log.FieldError, err)
			next.ServeHTTP(w, r)
			return
		}
		ctx := auth.WithIdentity(r.Context(), id)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldOwner, id.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) authenticated(r *http.Request) bool {
	if !s.svc.AuthEnabled() {
		return true
	}
	_, ok := auth.FromContext(r.Context())
	return ok
}

// requireSession answers 401 on the JSON endpoints when auth is enabled and
// no valid session was presented.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticated(r) {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requirePageSession redirects to the landing page instead.
func (s *Server) requirePageSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticated(r) {
			redirectWithFlash(w, r, flashLoginFirst)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// Flash codes carried in the msg query parameter of the landing page.
const (
	flashLoginFirst  = "login"
	flashLoggedOut   = "logout"
	flashRegistered  = "registered"
	flashTaken       = "taken"
	flashBadLogin    = "invalid"
	flashBadRegister = "register"
)

var flashMessages = map[string]string{
	flashLoginFirst:  "Please log in first.",
	flashLoggedOut:   "You have been logged out.",
	flashRegistered:  "Registration successful! Please log in.",
	flashTaken:       "Username already exists!",
	flashBadLogin:    "Invalid username or password.",
	flashBadRegister: "Username must be 3-30 characters and password at least 8 characters.",
}

func redirectWithFlash(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/?msg="+url.QueryEscape(code), http.StatusSeeOther)
}
