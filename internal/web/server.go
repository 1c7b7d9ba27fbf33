// Package web is the HTTP gateway for the storefront: public form and
// shopping endpoints, the chatbot, media uploads, and the schema-driven
// admin table API.
package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/throwingafit/storefront/internal/auth"
	"github.com/throwingafit/storefront/internal/forms"
	"github.com/throwingafit/storefront/internal/media"
	"github.com/throwingafit/storefront/internal/schema"
	"github.com/throwingafit/storefront/internal/shopping"
	"github.com/throwingafit/storefront/internal/table"
)

// FormService processes public form submissions.
type FormService interface {
	Submit(ctx context.Context, formID string, formData map[string]any) (forms.Result, error)
}

// ShoppingService is the upstream shopping surface the gateway proxies.
type ShoppingService interface {
	CreateCheckoutSession(ctx context.Context, products []shopping.CheckoutProduct, customerEmail, successURL, cancelURL string) (*shopping.CheckoutSession, error)
	Products(ctx context.Context) ([]shopping.Product, error)
	PurchaseDetail(ctx context.Context, sessionID string) (*shopping.PurchaseDetail, error)
}

// ChatService answers visitor messages.
type ChatService interface {
	Reply(ctx context.Context, message string) string
}

// MediaService stores uploaded files.
type MediaService interface {
	Store(ctx context.Context, prefix, filename string, r io.Reader, size int64) (*media.Upload, error)
}

// Exporter streams full result sets for CSV export.
type Exporter interface {
	Stream(ctx context.Context, q table.Query, fn func(row map[string]any) error) error
}

// Sessions resolves visitors and gates admin routes.
type Sessions interface {
	UserFromRequest(r *http.Request) (*auth.User, error)
	IsAdmin(user *auth.User) bool
	RequireUser(next http.Handler) http.Handler
	RequireAdmin(next http.Handler) http.Handler
}

// Deps wires the gateway's collaborators.
type Deps struct {
	Source   table.Source
	Exporter Exporter
	Forms    FormService
	Shopping ShoppingService
	Chat     ChatService
	Media    MediaService
	Sessions Sessions

	// MaxUploadBytes bounds multipart uploads. Zero means 10 MiB.
	MaxUploadBytes int64

	// RatePerMinute bounds requests per client IP. Zero means 100.
	RatePerMinute int

	Logger *slog.Logger
}

// Server is the storefront HTTP server.
type Server struct {
	deps   Deps
	router *chi.Mux
	server *http.Server
	log    *slog.Logger
}

// NewServer builds the gateway.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxUploadBytes == 0 {
		deps.MaxUploadBytes = 10 << 20
	}
	if deps.RatePerMinute == 0 {
		deps.RatePerMinute = 100
	}

	s := &Server{
		deps:   deps,
		router: chi.NewRouter(),
		log:    deps.Logger,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(securityHeaders)

	limiter := newRateLimiter(s.deps.RatePerMinute, time.Minute)
	s.router.Use(limiter.middleware)
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		// Public storefront surface
		r.Post("/forms/submit", s.handleFormSubmit)
		r.Post("/chatbot", s.handleChatbot)
		r.Get("/products", s.handleProducts)
		r.Get("/products/purchase-detail", s.handlePurchaseDetail)
		r.Post("/create-checkout-session", s.handleCreateCheckoutSession)

		// Table reads are public; community fit galleries browse them.
		r.Get("/tables/{tableName}", s.handleTableList)

		// Media uploads are public: community fit photos are attached
		// before any sign-in exists.
		r.Post("/upload/media", s.handleUploadMedia)

		// Admin status only needs a session; it reports whether the
		// visitor is the owner.
		r.With(s.deps.Sessions.RequireUser).Get("/admin/status", s.handleAdminStatus)

		// Everything else under admin, and all table mutations, require
		// the owner.
		r.Group(func(r chi.Router) {
			r.Use(s.deps.Sessions.RequireAdmin)
			r.Get("/admin/schemas", s.handleListSchemas)
			r.Get("/admin/schemas/{tableName}", s.handleGetSchema)

			r.Post("/upload/file", s.handleUploadFile)

			r.Get("/tables/{tableName}/export", s.handleTableExport)
			r.Post("/tables/{tableName}", s.handleTableCreate)
			r.Put("/tables/{tableName}/{id}", s.handleTableUpdate)
			r.Delete("/tables/{tableName}/{id}", s.handleTableDelete)
		})
	})
}

// controller builds a table controller for one request, or nil when the
// table has no registered schema. Controllers hold query and page state, so
// sharing one across concurrent requests would let them interleave each
// other's search, sort, and page settings.
func (s *Server) controller(tableName string) *table.Controller {
	def, ok := schema.Get(tableName)
	if !ok {
		return nil
	}
	return table.NewController(def, s.deps.Source, s.log)
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.log.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds baseline hardening headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// rateLimiter is a token bucket per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

// cleanup drops idle visitor entries so the map cannot grow unbounded.
func (rl *rateLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastReset) > rl.window*2 {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: time.Now()}
		return true
	}
	if time.Since(v.lastReset) > rl.window {
		v.tokens = rl.rate - 1
		v.lastReset = time.Now()
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			ip = realIP
		}
		if !rl.allow(ip) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, UserMessage{
				Message: "Too many requests",
				Action:  "Please wait a moment before trying again",
				Code:    "REQ003",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func encodeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
