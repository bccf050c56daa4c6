package server

import (
	"log/slog"
	"net/http"

	"github.com/feyza/backend/internal/auth"
	"github.com/feyza/backend/internal/config"
	"github.com/feyza/backend/internal/http/handlers"
	"github.com/feyza/backend/internal/http/middleware"
	"github.com/feyza/backend/internal/observability"
	"github.com/feyza/backend/internal/version"
	"github.com/feyza/backend/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the handlers the router mounts. Nil handlers leave their
// route group unmounted.
type Dependencies struct {
	Pinger     handlers.Pinger
	Checks     []handlers.Check
	JWTManager *auth.JWTManager
	Metrics    *observability.Metrics
	Gatherer   prometheus.Gatherer

	Trust  *handlers.TrustHandler
	Vouch  *handlers.VouchHandler
	Hooks  *handlers.HooksHandler
	Admin  *handlers.AdminHandler
	Stream *ws.Handler
}

func NewRouter(cfg config.Config, logger *slog.Logger, deps Dependencies) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.RequestBodyLimit(cfg.MaxBodyBytes))

	health := handlers.NewHealthHandler(deps.Pinger, deps.Checks...)
	features := map[string]bool{
		"trust":   deps.Trust != nil,
		"vouches": deps.Vouch != nil,
		"hooks":   deps.Hooks != nil,
		"admin":   deps.Admin != nil,
		"stream":  deps.Stream != nil,
		"metrics": deps.Gatherer != nil,
	}
	for _, chk := range deps.Checks {
		features[chk.Name] = chk.Pinger != nil
	}
	meta := handlers.NewMetaHandler(cfg.Env, version.Version, features)

	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/v1/meta", meta.GetMeta)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	if deps.JWTManager != nil {
		user := r.Group("/v1")
		user.Use(middleware.RequireAuth(deps.JWTManager, cfg.AuthEnableBearer))

		if deps.Trust != nil {
			user.GET("/trust/:userId", deps.Trust.GetScore)
			user.POST("/trust/:userId/recalculate", deps.Trust.Recalculate)
			user.GET("/trust/:userId/tier", deps.Trust.GetTier)
			user.GET("/trust/:userId/events", deps.Trust.ListEvents)
		}
		if deps.Vouch != nil {
			user.POST("/vouch-requests", deps.Vouch.RequestVouch)
			user.POST("/vouch-requests/:requestId/accept", deps.Vouch.AcceptRequest)
			user.POST("/vouch-requests/:requestId/decline", deps.Vouch.DeclineRequest)
			user.POST("/vouches", deps.Vouch.CreateVouch)
			user.DELETE("/vouches/:vouchId", deps.Vouch.RevokeVouch)
			user.GET("/users/:userId/vouches", deps.Vouch.ListVouches)
			user.GET("/users/:userId/vouch-network", deps.Vouch.GetNetwork)
		}
		if deps.Stream != nil {
			user.GET("/ws", deps.Stream.HandleWebSocket)
		}
		if deps.Admin != nil {
			ops := user.Group("/admin", middleware.RequireAdmin())
			ops.GET("/system/health", deps.Admin.SystemHealth)
			ops.POST("/backfill", deps.Admin.Backfill)
			ops.POST("/reconcile", deps.Admin.Reconcile)
		}
	}

	if deps.Hooks != nil {
		hooks := r.Group("/internal/hooks")
		hooks.Use(middleware.RequireSecret(cfg.HooksSecret))
		hooks.POST("/loan-activated", deps.Hooks.LoanActivated)
		hooks.POST("/payment-completed", deps.Hooks.PaymentCompleted)
		hooks.POST("/payment-failed", deps.Hooks.PaymentFailed)
		hooks.POST("/loan-defaulted", deps.Hooks.LoanDefaulted)
	}

	// Operators without a session token use the shared admin secret.
	if deps.Admin != nil {
		admin := r.Group("/admin")
		admin.Use(middleware.RequireSecret(cfg.AdminSecret))
		admin.GET("/system/health", deps.Admin.SystemHealth)
		admin.POST("/backfill", deps.Admin.Backfill)
		admin.POST("/reconcile", deps.Admin.Reconcile)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	return r
}
