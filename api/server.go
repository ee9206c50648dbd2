/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind the reverse proxy
  3. Logger:     Request logging (zap)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the frontend
  6. Auth:       Bearer token -> auth.Claims (on /api only)

ROLES:
  Reads need any authenticated caller. Writes need staff. Settings,
  reset and scenario loading need admin. With auth disabled every
  request runs as a local admin.

ROUTE GROUPS:
  /healthz              Liveness
  /api/events           Change notifications (SSE)
  /api/items/*          Item catalog
  /api/vendors/*        Vendor catalog
  /api/purchases        Goods received
  /api/issues           Goods issued
  /api/ledger/*         Transaction ledger, overlay, corrections
  /api/strength         Strength categories and budget
  /api/utensils/*       Utensil register
  /api/dashboard        Summary
  /api/settings/*       Settings
  /api/admin/reset      Database wipe
  /api/scenarios/*      Demo scenarios

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/provision-ledger/auth"
)

// RouterOptions configure cross-cutting behavior of the router.
type RouterOptions struct {
	// Verifier checks bearer tokens. Nil disables authentication.
	Verifier       *auth.Verifier
	AllowedOrigins []string
	Log            *zap.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(opts.Verifier))

		if h.Events != nil {
			r.Get("/events", h.Events.ServeHTTP)
		}

		// Item routes
		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.ListItems)
			r.Get("/{id}", h.GetItem)
			r.With(requireWrite).Post("/", h.CreateItem)
			r.With(requireWrite).Put("/{id}", h.UpdateItem)
			r.With(requireWrite).Delete("/{id}", h.DeactivateItem)
		})

		// Vendor routes
		r.Route("/vendors", func(r chi.Router) {
			r.Get("/", h.ListVendors)
			r.Get("/{id}", h.GetVendor)
			r.With(requireWrite).Post("/", h.CreateVendor)
			r.With(requireWrite).Put("/{id}", h.UpdateVendor)
			r.With(requireWrite).Delete("/{id}", h.DeactivateVendor)
		})

		// Stock movements
		r.Get("/purchases", h.ListPurchases)
		r.With(requireWrite).Post("/purchases", h.RecordPurchase)
		r.Get("/issues", h.ListIssues)
		r.With(requireWrite).Post("/issues", h.IssueStock)

		// Ledger routes
		r.Route("/ledger", func(r chi.Router) {
			r.Get("/", h.GetLedger)
			r.Get("/export", h.ExportLedger)
			r.Get("/annotations", h.ListAnnotations)
			r.With(requireWrite).Put("/cell", h.UpdateCell)
			r.With(requireWrite).Post("/annotations", h.Annotate)
			r.With(requireWrite).Post("/corrections", h.CorrectTransaction)
		})

		// Registers
		r.Get("/strength", h.GetStrength)
		r.With(requireWrite).Post("/strength", h.SaveStrength)
		r.Route("/utensils", func(r chi.Router) {
			r.Get("/", h.ListUtensils)
			r.With(requireWrite).Post("/", h.SaveUtensil)
			r.With(requireWrite).Delete("/{id}", h.DeleteUtensil)
		})

		r.Get("/dashboard", h.GetDashboard)

		// Settings routes
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.GetSettings)
			r.With(requireAdmin).Post("/password", h.EnablePassword)
			r.With(requireAdmin).Post("/password/off", h.DisablePassword)
			r.With(requireAdmin).Post("/previous-date", h.TogglePreviousDate)
		})

		// Admin routes
		r.With(requireAdmin).Post("/admin/reset", h.ResetDatabase)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.With(requireAdmin).Post("/load", h.LoadScenario)
		})
	})

	return r
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// localAdmin is the identity of every request when auth is disabled.
var localAdmin = &auth.Claims{Email: "local", Role: auth.RoleAdmin}

func authMiddleware(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), localAdmin)))
				return
			}
			token := r.Header.Get("Authorization")
			if token == "" {
				// EventSource cannot set headers.
				token = r.URL.Query().Get("access_token")
			}
			claims, err := v.Verify(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized", err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

func requireRole(allowed func(auth.Role) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := auth.FromContext(r.Context())
			if c == nil || !allowed(c.Role) {
				writeError(w, http.StatusForbidden, "Forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var (
	requireWrite = requireRole(auth.Role.CanWrite)
	requireAdmin = requireRole(auth.Role.CanAdmin)
)

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote", r.RemoteAddr))
		})
	}
}
