package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"hesab/internal/auth"
	"hesab/internal/cache"
	"hesab/internal/core"
	"hesab/internal/middleware/ratelimit"
	"hesab/internal/middleware/security"
	"hesab/internal/middleware/trace"
	"hesab/internal/services"
)

type ctxKey int

const ctxKeyUser ctxKey = iota

// Server is the API boundary. Every /api route except login goes through
// the access gate before touching the ledger.
type Server struct {
	http.Server
	ledger      *services.LedgerService
	tokens      *auth.TokenManager
	rateLimiter *ratelimit.Limiter
	headers     *security.Headers
	detector    *security.Detector

	// Short-lived cache for report responses, flushed on every write.
	reportCache  *cache.LRU[[]byte]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run http.Server.
func NewServer(addr string, ledger *services.LedgerService, tokens *auth.TokenManager) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		ledger:       ledger,
		tokens:       tokens,
		rateLimiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		headers:      security.NewHeaders(security.DefaultHeadersConfig()),
		detector:     security.NewDetector(),
		reportCache:  cache.NewLRU[[]byte](100, 30*time.Second),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.reportCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/auth/login", s.withCommon(s.handleLogin))
	mux.HandleFunc("POST /api/auth/register", s.withCommon(s.require(auth.OpManageUsers, s.handleRegister)))
	mux.HandleFunc("GET /api/auth/me", s.withCommon(s.authenticated(s.handleMe)))

	mux.HandleFunc("GET /api/transactions", s.withCommon(s.require(auth.OpViewTransactions, s.handleListTransactions)))
	mux.HandleFunc("POST /api/transactions", s.withCommon(s.require(auth.OpManageTransactions, s.handleCreateTransaction)))
	mux.HandleFunc("GET /api/transactions/{id}", s.withCommon(s.require(auth.OpViewTransactions, s.handleGetTransaction)))
	mux.HandleFunc("PUT /api/transactions/{id}", s.withCommon(s.require(auth.OpManageTransactions, s.handleUpdateTransaction)))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.withCommon(s.require(auth.OpManageTransactions, s.handleDeleteTransaction)))

	mux.HandleFunc("GET /api/categories", s.withCommon(s.authenticated(s.handleListCategories)))
	mux.HandleFunc("POST /api/categories", s.withCommon(s.require(auth.OpManageTransactions, s.handleCreateCategory)))

	mux.HandleFunc("GET /api/reports/profit-loss", s.withCommon(s.require(auth.OpViewReports, s.cached(s.handleProfitLoss))))
	mux.HandleFunc("GET /api/reports/balance-sheet", s.withCommon(s.require(auth.OpViewReports, s.cached(s.handleBalanceSheet))))
	mux.HandleFunc("GET /api/reports/cash-flow", s.withCommon(s.require(auth.OpViewReports, s.cached(s.handleCashFlow))))
	mux.HandleFunc("GET /api/reports/trends", s.withCommon(s.require(auth.OpViewTrends, s.cached(s.handleTrends))))
	mux.HandleFunc("GET /api/dashboard/stats", s.withCommon(s.require(auth.OpViewReports, s.handleDashboardStats)))

	mux.HandleFunc("GET /api/users", s.withCommon(s.require(auth.OpManageUsers, s.handleListUsers)))
	mux.HandleFunc("DELETE /api/users/{id}", s.withCommon(s.require(auth.OpManageUsers, s.handleDeleteUser)))
	mux.HandleFunc("GET /api/logs", s.withCommon(s.require(auth.OpViewLogs, s.handleListLogs)))
	mux.HandleFunc("GET /api/export/transactions", s.withCommon(s.require(auth.OpManageTransactions, s.handleExport)))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withCommon adds security headers, rate limiting, and request logging.
func (s *Server) withCommon(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := s.detector.ExtractClientIP(r)

		requestID := trace.NewRequestID()
		ctx := trace.WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		if s.detector.IsSuspicious(r) {
			slog.WarnContext(ctx, "Suspicious request pattern", "client_ip", clientIP, "url", r.URL.String())
		}

		// Rate-limit mutations only; report polling stays cheap.
		if r.Method != http.MethodGet && !s.rateLimiter.Allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, try again later"})
			return
		}

		s.headers.Apply(w, r)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

// authenticated resolves the Bearer token to an active user and stores it
// in the request context. No operation check.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.userFromRequest(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUser, user)
		next(w, r.WithContext(ctx))
	}
}

// require authenticates and then gates on a single operation. Unknown
// roles fail closed.
func (s *Server) require(op auth.Operation, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.userFromRequest(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !auth.Can(user.Role, op) {
			writeError(w, r, core.NewPermissionError(user.Role, string(op)))
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUser, user)
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) userFromRequest(r *http.Request) (core.User, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return core.User{}, auth.ErrInvalidToken
	}

	claims, err := s.tokens.Verify(strings.TrimSpace(token))
	if err != nil {
		return core.User{}, err
	}

	user, err := s.ledger.CurrentUser(r.Context(), claims.Username)
	if err != nil {
		// The account may have been deleted after the token was issued.
		return core.User{}, auth.ErrInvalidToken
	}
	if !user.IsActive {
		return core.User{}, auth.ErrInvalidToken
	}
	return user, nil
}

func currentUser(r *http.Request) core.User {
	user, _ := r.Context().Value(ctxKeyUser).(core.User)
	return user
}

// cached serves GET report responses from the LRU cache, keyed by path and
// query string.
func (s *Server) cached(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path + "?" + r.URL.RawQuery
		if body, ok := s.reportCache.Get(key); ok {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			return
		}

		rec := &recordingWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rec, r)

		if rec.statusCode == http.StatusOK {
			s.reportCache.Set(key, rec.body)
		}
	}
}

// invalidateReports flushes the report cache after a ledger write.
func (s *Server) invalidateReports() {
	s.reportCache.Clear()
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// recordingWriter additionally buffers the body for caching.
type recordingWriter struct {
	http.ResponseWriter
	statusCode int
	body       []byte
}

func (rw *recordingWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recordingWriter) Write(p []byte) (int, error) {
	rw.body = append(rw.body, p...)
	return rw.ResponseWriter.Write(p)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
