// Package http serves the JSON API for room settlements and expenses.
package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"conti/internal/core"
	"conti/internal/log"
	"conti/internal/metrics"
	"conti/internal/middleware/ratelimit"
	"conti/internal/middleware/security"
	"conti/internal/middleware/trace"
	"conti/internal/settlement"
)

// SettlementReader computes a room's settlement.
type SettlementReader interface {
	Settle(ctx context.Context, roomID string) (settlement.Result, error)
}

// ExpenseHandler records and lists a room's expenses.
type ExpenseHandler interface {
	Record(ctx context.Context, roomID string, e core.NewExpense) (core.ExpenseRecord, error)
	List(ctx context.Context, roomID string) ([]core.ExpenseRecord, error)
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Settlements SettlementReader
	Expenses    ExpenseHandler
	Store       Pinger
	// Metrics enables /metrics and request observations when set.
	Metrics *metrics.Metrics
	Logger  *log.Logger

	// RateLimitPerMinute caps /api requests per client; 0 disables it.
	RateLimitPerMinute int
	// CORSAllowedOrigins enables CORS for the listed origins.
	CORSAllowedOrigins []string
	TrustedProxies     []string
	AmountExponent     int32
}

type Server struct {
	http.Server
	router  *mux.Router
	opts    Options
	logger  *log.Logger
	limiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	ips, err := security.NewIPExtractor(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router: mux.NewRouter(),
		opts:   opts,
		logger: logger.WithComponent(log.ComponentHTTP),
	}
	s.routes()

	var handler http.Handler = s.router
	if opts.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
		handler = apiOnly(s.limiter.Middleware(ips.ClientIP, s.writeRateLimited)(handler), handler)
	}
	// CORS wraps the limiter so 429 responses still carry the allow headers.
	if len(opts.CORSAllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: opts.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type", trace.HeaderRequestID},
			ExposedHeaders: []string{trace.HeaderRequestID},
			MaxAge:         300,
		}).Handler(handler)
	}
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.Middleware(s.logger, trace.GetRequestID)(handler)

	traceOpts := trace.Options{ExtractIP: ips.ClientIP, RouteName: s.routeName, Logger: logger}
	if opts.Metrics != nil {
		traceOpts.Observer = opts.Metrics
	}
	handler = trace.NewMiddleware(traceOpts).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	if s.opts.Metrics != nil {
		s.router.Handle("/metrics", s.opts.Metrics.Handler()).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api/rooms/{room_id}").Subrouter()
	api.HandleFunc("/settlement", s.handleSettlement).Methods(http.MethodGet)
	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/expenses", s.handleListExpenses).Methods(http.MethodGet)
	api.HandleFunc("/expenses", s.handleCreateExpense).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = NotFoundError("not found").Write(w)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})
}

// routeName returns the matched path template so metric labels stay bounded.
func (s *Server) routeName(r *http.Request) string {
	var match mux.RouteMatch
	if s.router.Match(r, &match) && match.Route != nil {
		if tpl, err := match.Route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

func (s *Server) writeRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded", log.FieldPath, r.URL.Path)
	_ = ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
}

// apiOnly routes /api requests through limited and everything else through next.
func apiOnly(limited, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
