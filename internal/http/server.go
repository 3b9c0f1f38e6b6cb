// Package http serves the ledger JSON API, the login and dashboard pages
// and the operational endpoints.
package http

import (
	"context"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"spendsmart/internal/core"
	"spendsmart/internal/ledger"
	"spendsmart/internal/log"
	"spendsmart/internal/middleware/ratelimit"
	"spendsmart/internal/middleware/security"
	"spendsmart/internal/middleware/trace"
	"spendsmart/internal/services"
	appweb "spendsmart/web"
)

const (
	SessionCookie = "spendsmart_session"

	maxBodyBytes  = 64 << 10
	readyTimeout  = 5 * time.Second
	staticMaxAge  = 3600
	readTimeout   = 15 * time.Second
	writeTimeout  = 30 * time.Second
	idleTimeout   = 60 * time.Second
	headerTimeout = 5 * time.Second
)

type Options struct {
	Logger *log.Logger
	// Symbol prefixes amounts on the dashboard.
	Symbol string
	// RateLimitPerMinute caps mutating requests per client IP.
	RateLimitPerMinute int
	// TrustedProxies are CIDRs whose forwarding headers are honoured in
	// addition to loopback and private networks.
	TrustedProxies []string
	SecureCookies  bool
}

type Server struct {
	http.Server

	svc      *services.LedgerService
	renderer *ledger.Renderer
	logger   *log.Logger
	errors   *log.StructuredLogger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	symbol        string
	secureCookies bool
	started       time.Time
	shutdownOnce  sync.Once
}

// NewServer builds the router over svc and returns a server ready to
// ListenAndServe on addr.
func NewServer(addr string, svc *services.LedgerService, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Symbol == "" {
		opts.Symbol = core.DefaultCurrencySymbol
	}

	renderer, err := ledger.NewRenderer(appweb.TemplatesFS)
	if err != nil {
		return nil, err
	}
	detector, err := security.NewDetector(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}
	limitCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limitCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		svc:           svc,
		renderer:      renderer,
		logger:        logger,
		errors:        log.NewStructuredLogger(logger),
		limiter:       ratelimit.NewLimiter(limitCfg),
		detector:      detector,
		tracer:        trace.NewMiddleware(logger, detector.ClientIP),
		symbol:        opts.Symbol,
		secureCookies: opts.SecureCookies,
		started:       time.Now(),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: headerTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.limiter.Middleware(s.detector.ClientIP, s.onRateLimit))
	r.Use(s.session)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(staticMaxAge)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Get("/", s.handleIndex)
	r.Post("/login", s.handleLogin)
	r.Post("/register", s.handleRegister)
	r.Get("/logout", s.handleLogout)
	r.With(s.requirePageSession).Get("/dashboard", s.handleDashboard)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Use(middleware.AllowContentType("application/json"))

		r.Get("/get_transactions", s.handleListTransactions)
		r.Post("/add_transaction", s.handleAddTransaction)
		r.Put("/update_transaction/{id}", s.handleUpdateTransaction)
		r.Delete("/delete_transaction/{id}", s.handleDeleteTransaction)
		r.Get("/get_budgets", s.handleListBudgets)
		r.Post("/set_budget", s.handleSetBudget)
	})

	return r
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
