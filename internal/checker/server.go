package checker

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server handles HTTP requests for the checker
type Server struct {
	service   *Service
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, basicAuth BasicAuth) *Server {
	return NewServerWithMux(service, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.basicAuth.Password)) == 1
	return userOK && passOK
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="Invoice Checker"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// withCORS answers preflight requests and tags every response
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all routes, most specific paths first
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/periods", s.requireAuth(s.handleListPeriods))
	s.mux.HandleFunc("PUT /api/selection", s.requireAuth(s.handleSetSelection))
	s.mux.HandleFunc("GET /api/next-periods", s.requireAuth(s.handleNextPeriods))
	s.mux.HandleFunc("POST /api/refresh", s.requireAuth(s.handleRefresh))

	s.mux.HandleFunc("POST /api/check", s.requireAuth(s.handleCheck))
	s.mux.HandleFunc("POST /api/quick-check", s.requireAuth(s.handleQuickCheck))
	s.mux.HandleFunc("POST /api/keypad", s.requireAuth(s.handleKeypad))
	s.mux.HandleFunc("POST /api/voice", s.requireAuth(s.handleVoice))
	s.mux.HandleFunc("POST /api/scan", s.requireAuth(s.handleScan))
	s.mux.HandleFunc("POST /api/qr", s.requireAuth(s.handleQR))

	s.mux.HandleFunc("GET /api/pending/alerts", s.requireAuth(s.handlePendingAlerts))
	s.mux.HandleFunc("DELETE /api/pending/{id}", s.requireAuth(s.handleDeletePending))
	s.mux.HandleFunc("GET /api/pending", s.requireAuth(s.handleListPending))
	s.mux.HandleFunc("POST /api/pending", s.requireAuth(s.handleAddPending))

	s.mux.HandleFunc("GET /api/history", s.requireAuth(s.handleListHistory))
	s.mux.HandleFunc("DELETE /api/history", s.requireAuth(s.handleClearHistory))

	s.mux.Handle("GET /metrics", promhttp.Handler())

	// catch-all, registered last
	s.mux.HandleFunc("GET /{$}", s.requireAuth(s.handleIndex))
	s.mux.HandleFunc("GET /index.html", s.requireAuth(s.handleIndex))
}

// Handler returns the routes wrapped with CORS handling
func (s *Server) Handler() http.Handler {
	return withCORS(s.mux)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
