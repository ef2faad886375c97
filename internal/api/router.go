package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nitplane/nitplane/internal/airlines"
	"github.com/nitplane/nitplane/internal/auth"
	"github.com/nitplane/nitplane/internal/config"
	"github.com/nitplane/nitplane/internal/feed"
	"github.com/nitplane/nitplane/internal/websocket"
	"github.com/nitplane/nitplane/pkg/logger"
)

type contextKey string

const sessionContextKey contextKey = "session"

// Router wires handlers to routes
type Router struct {
	handler     *Handler
	authService *auth.Service
	config      *config.Config
	logger      *logger.Logger
	wsServer    *websocket.Server
}

// NewRouter creates a new API router
func NewRouter(feedService *feed.Service, authService *auth.Service, directory *airlines.Directory, cfg *config.Config, log *logger.Logger, wsServer *websocket.Server) *Router {
	return &Router{
		handler:     NewHandler(feedService, authService, directory, cfg, log, wsServer),
		authService: authService,
		config:      cfg,
		logger:      log.Named("api"),
		wsServer:    wsServer,
	}
}

// Routes returns the HTTP handler for the whole server
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(rt.config.Server.CORSAllowedOrigins)))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", rt.handler.Login)
		r.Post("/logout", rt.handler.Logout)
		r.Get("/session", rt.handler.GetSession)
		r.Get("/health", rt.handler.GetHealth)
		r.Get("/config", rt.handler.GetConfig)

		r.Group(func(r chi.Router) {
			r.Use(rt.requireSession)

			r.Get("/flights", rt.handler.GetFlights)
			r.Get("/reference", rt.handler.GetReference)
			r.Post("/reference", rt.handler.SetReference)
			r.Delete("/reference", rt.handler.ClearReference)
			r.Get("/airlines", rt.handler.ListAirlines)
			r.Get("/airlines/{callsign}", rt.handler.GetAirline)
		})
	})

	r.With(rt.requireSession).Get("/ws", rt.wsServer.HandleConnection)

	if rt.config.Server.StaticFilesDir != "" {
		r.Handle("/*", NewStaticFileHandler(rt.config.Server.StaticFilesDir, rt.logger))
	}

	return r
}

// corsOptions builds the CORS policy. With no origins configured only
// same-origin requests work; a "*" entry allows any origin but never with
// credentials, so the session cookie is not sent cross-site.
func corsOptions(origins []string) cors.Options {
	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	if len(origins) == 0 {
		// go-chi/cors treats an empty list as "allow all"
		opts.AllowOriginFunc = func(r *http.Request, origin string) bool { return false }
	}
	for _, o := range origins {
		if o == "*" {
			opts.AllowCredentials = false
			break
		}
	}
	return opts
}

// requireSession rejects requests without a live session
func (rt *Router) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := rt.authService.Authenticate(r.Context(), sessionID(r, rt.config.Auth.CookieName))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Login required")
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger logs each request at debug level
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		rt.logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// sessionID reads the session token from the cookie or a Bearer header
func sessionID(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// SessionFromContext returns the session attached by requireSession
func SessionFromContext(ctx context.Context) (*auth.Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(*auth.Session)
	return s, ok
}
