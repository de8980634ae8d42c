package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/unklstewy/skytrail/internal/auth"
	"github.com/unklstewy/skytrail/internal/logging"
	"github.com/unklstewy/skytrail/pkg/timeline"
)

// Server holds the HTTP router and its dependencies
type Server struct {
	router  *chi.Mux
	store   *timeline.Store
	authSvc *auth.Service
	hub     *hub
	logger  *logging.Logger
	origins []string
	started time.Time

	// now is the wall clock used for Peek
	now func() time.Time
}

type contextKey string

const claimsKey contextKey = "claims"

const writeWait = 5 * time.Second

// NewServer creates a server and configures its routes.
func NewServer(store *timeline.Store, authSvc *auth.Service, h *hub, logger *logging.Logger, origins []string) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		store:   store,
		authSvc: authSvc,
		hub:     h,
		logger:  logger,
		origins: origins,
		started: time.Now(),
		now:     time.Now,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/login", s.handleLogin)

		// Protected routes (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleGetCurrentUser)
			r.Get("/status", s.handleGetStatus)
			r.Get("/ws", s.handleWebSocket)

			r.Route("/aircraft", func(r chi.Router) {
				r.Use(middleware.Compress(5))
				r.Get("/", s.handleGetAircraft)
				r.Get("/{id}", s.handleGetAircraftByID)
				r.With(requireRole(auth.RoleAdmin)).Delete("/{id}", s.handleDeleteAircraft)
			})
		})
	})
}

// requestLogger logs each request through the structured logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("took", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// authMiddleware requires a valid bearer token. Browsers cannot set headers
// on websocket requests, so a token query parameter is accepted as well.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			var ok bool
			token, ok = strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				respondError(w, http.StatusUnauthorized, "Invalid authorization header format")
				return
			}
		}
		if token == "" {
			respondError(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}

		claims, err := s.authSvc.ValidateToken(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole rejects requests whose token lacks role.
func requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFrom(r.Context())
			if claims == nil || !auth.HasRole(claims.Role, role) {
				respondError(w, http.StatusForbidden, auth.ErrUnauthorized.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func claimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// handleLogin handles user login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, claims, err := s.authSvc.Login(req.Username, req.Password)
	if err != nil {
		s.logger.Info("Login failed", slog.String("username", req.Username))
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": claims.ExpiresAt.Time,
		"user": map[string]string{
			"username": claims.Username,
			"role":     claims.Role,
		},
	})
}

// handleGetCurrentUser returns the currently authenticated user
func (s *Server) handleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	respondJSON(w, http.StatusOK, map[string]string{
		"username": claims.Username,
		"role":     claims.Role,
	})
}

// handleGetAircraft returns the most recent frame.
func (s *Server) handleGetAircraft(w http.ResponseWriter, r *http.Request) {
	msg := s.hub.Latest()
	if msg.Aircraft == nil {
		msg.Aircraft = []timeline.DisplayState{}
	}
	respondJSON(w, http.StatusOK, msg)
}

// handleGetAircraftByID returns one aircraft as it would be drawn right now
// without disturbing the animation state.
func (s *Server) handleGetAircraftByID(w http.ResponseWriter, r *http.Request) {
	id := strings.ToLower(chi.URLParam(r, "id"))
	st, ok := s.store.Peek(id, s.now())
	if !ok {
		respondError(w, http.StatusNotFound, "Aircraft not found")
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// handleDeleteAircraft drops an aircraft and its history from the store.
func (s *Server) handleDeleteAircraft(w http.ResponseWriter, r *http.Request) {
	id := strings.ToLower(chi.URLParam(r, "id"))
	if err := s.store.Remove(id); err != nil {
		if errors.Is(err, timeline.ErrUnknownEntity) {
			respondError(w, http.StatusNotFound, "Aircraft not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("Aircraft removed", slog.String("id", id), slog.String("by", claimsFrom(r.Context()).Username))
	w.WriteHeader(http.StatusNoContent)
}

// handleGetStatus reports store readiness.
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	status := s.store.Status()
	respondJSON(w, http.StatusOK, map[string]any{
		"has_observations":     status.HasObservations,
		"ready_to_interpolate": status.ReadyToInterpolate,
		"aircraft":             s.store.Len(),
		"subscribers":          s.hub.Subscribers(),
		"uptime_seconds":       int(time.Since(s.started).Seconds()),
	})
}

// checkOrigin applies the allowed origins to websocket upgrades, which CORS
// does not cover. Requests without an Origin header come from non-browser
// clients and are allowed, as are same-host requests.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range s.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
		// One wildcard, as in "https://*.example.com".
		if prefix, suffix, ok := strings.Cut(strings.ToLower(allowed), "*"); ok {
			o := strings.ToLower(origin)
			if len(o) >= len(prefix)+len(suffix) && strings.HasPrefix(o, prefix) && strings.HasSuffix(o, suffix) {
				return true
			}
		}
	}
	return false
}

// handleWebSocket streams every frame to the client until it disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	frames, unsubscribe := s.hub.subscribe()
	defer unsubscribe()

	// Drain client messages so close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-frames:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
