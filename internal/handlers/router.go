package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/Cryptoprojectsfun/advisorhub/internal/logger"
	"github.com/Cryptoprojectsfun/advisorhub/internal/middleware"
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
)

// Deps is everything the router serves. Metrics, Health, RateLimiter and
// RequestRecorder are optional.
type Deps struct {
	Auth            AuthService
	Authenticator   middleware.Authenticator
	Clients         ClientService
	Recommendations RecommendationService
	Subscriptions   SubscriptionService
	Access          AccessService
	Notifications   *NotificationHandler

	Errors          *middleware.ErrorWriter
	Log             *logger.Logger
	RequestRecorder middleware.RequestRecorder
	RateLimiter     *middleware.RateLimiter
	Metrics         http.Handler
	Health          http.Handler

	AllowedOrigins []string
	MaxBodyBytes   int64
}

func NewRouter(d Deps) http.Handler {
	router := mux.NewRouter()
	authMiddleware := middleware.NewAuthMiddleware(d.Authenticator, d.Errors)

	router.Use(middleware.RequestID)
	router.Use(d.Errors.Recovery)
	router.Use(middleware.RequestLogger(d.Log, d.RequestRecorder))
	router.Use(middleware.Security(middleware.SecurityHeaders{
		CSPDirectives: []string{"default-src 'none'", "frame-ancestors 'none'"},
	}))
	if d.RateLimiter != nil {
		router.Use(d.RateLimiter.RateLimit)
	}

	if d.Health != nil {
		router.Handle("/healthz", d.Health).Methods(http.MethodGet)
	}
	if d.Metrics != nil {
		router.Handle("/metrics", d.Metrics).Methods(http.MethodGet)
	}

	if d.Notifications != nil {
		ws := router.PathPrefix("/ws").Subrouter()
		ws.Use(authMiddleware.Authenticate)
		ws.HandleFunc("", d.Notifications.Stream).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	maxBody := d.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	api.Use(middleware.MaxBodySize(maxBody))
	api.Use(middleware.ContentTypeJSON(d.Errors))

	authHandler := NewAuthHandler(d.Auth, d.Errors)
	clientHandler := NewClientHandler(d.Clients, d.Errors)
	recHandler := NewRecommendationHandler(d.Recommendations, d.Errors)
	subHandler := NewSubscriptionHandler(d.Subscriptions, d.Errors)
	accessHandler := NewAccessHandler(d.Access, d.Errors)

	// Public routes
	api.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/users", authHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/token/refresh", authHandler.Refresh).Methods(http.MethodPost)
	if d.Notifications != nil {
		api.Handle("/notifications", authMiddleware.Identify(http.HandlerFunc(d.Notifications.Broadcast))).Methods(http.MethodPost)
	}

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(authMiddleware.Authenticate)

	protected.HandleFunc("/logout", authHandler.Logout).Methods(http.MethodPost)
	protected.HandleFunc("/users/{id}", authHandler.UpdateUser).Methods(http.MethodPut)

	protected.HandleFunc("/recommendations", recHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/recommendations/{id}", recHandler.Get).Methods(http.MethodGet)
	protected.Handle("/recommendations/{id}/acknowledge",
		authMiddleware.RequireRole(models.RoleClient, http.HandlerFunc(recHandler.Acknowledge))).Methods(http.MethodPost)
	protected.HandleFunc("/subscriptions", subHandler.List).Methods(http.MethodGet)

	// Admin routes
	admin := protected.PathPrefix("").Subrouter()
	admin.Use(func(next http.Handler) http.Handler {
		return authMiddleware.RequireRole(models.RoleAdmin, next)
	})

	admin.HandleFunc("/users", authHandler.ListUsers).Methods(http.MethodGet)
	admin.Handle("/admins", authMiddleware.RequireMainAdmin(http.HandlerFunc(authHandler.CreateAdmin))).Methods(http.MethodPost)

	admin.HandleFunc("/clients", clientHandler.List).Methods(http.MethodGet)
	admin.HandleFunc("/clients", clientHandler.Create).Methods(http.MethodPost)
	admin.HandleFunc("/clients/{id}", clientHandler.Get).Methods(http.MethodGet)
	admin.HandleFunc("/clients/{id}", clientHandler.Update).Methods(http.MethodPut)
	admin.HandleFunc("/clients/{id}", clientHandler.Delete).Methods(http.MethodDelete)

	admin.HandleFunc("/recommendations", recHandler.Create).Methods(http.MethodPost)
	admin.HandleFunc("/recommendations/{id}", recHandler.Update).Methods(http.MethodPut)
	admin.HandleFunc("/recommendations/{id}", recHandler.Delete).Methods(http.MethodDelete)

	admin.HandleFunc("/subscriptions", subHandler.Create).Methods(http.MethodPost)
	admin.HandleFunc("/subscriptions/{id}", subHandler.Update).Methods(http.MethodPut)
	admin.HandleFunc("/subscriptions/{id}", subHandler.Delete).Methods(http.MethodDelete)

	admin.HandleFunc("/access-requests", accessHandler.List).Methods(http.MethodGet)
	admin.HandleFunc("/access-requests", accessHandler.Create).Methods(http.MethodPost)
	admin.HandleFunc("/access-requests/{id}", accessHandler.Resolve).Methods(http.MethodPut)

	return cors.New(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", SessionHeader, middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}).Handler(router)
}
