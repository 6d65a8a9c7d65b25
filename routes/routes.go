package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"storefront/config"
	"storefront/controllers"
	"storefront/middlewares"
	"storefront/utils"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handlers struct {
	Users    *controllers.UserController
	Products *controllers.ProductController
	Orders   *controllers.OrderController
}

// SetupRouter builds the HTTP surface of the storefront.
func SetupRouter(cfg *config.Config, h Handlers, tokens *utils.TokenManager, limiter *middlewares.RateLimiter, db Pinger) *gin.Engine {
	r := gin.New()
	// ClientIP feeds the rate limiter, so forwarded headers are only honoured
	// from configured proxies.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Error().Err(err).Strs("trusted_proxies", cfg.TrustedProxies).Msg("invalid TRUSTED_PROXIES, trusting none")
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.PrometheusMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middlewares.RequestIDHeader},
		ExposeHeaders:    []string{middlewares.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", healthHandler(db))
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "running"})
	})

	r.POST("/add_user", limiter.Limit("register", cfg.RegisterMaxAttempts, cfg.RegisterWindow), h.Users.Register)
	r.POST("/login", limiter.LimitFailures("login", cfg.LoginMaxAttempts, cfg.LoginWindow), h.Users.Login)
	r.POST("/forgot-password", limiter.Limit("forgot_password", cfg.ForgotPasswordMaxAttempts, cfg.ForgotPasswordWindow), h.Users.ForgotPassword)
	r.POST("/reset-password", h.Users.ResetPassword)

	r.GET("/products", h.Products.ListProducts)
	r.GET("/products/:id", h.Products.GetProduct)

	r.POST("/place_order", middlewares.OptionalAuth(tokens), h.Orders.PlaceOrder)

	authGroup := r.Group("/orders")
	authGroup.Use(middlewares.AuthMiddleware(tokens))
	{
		authGroup.GET("", h.Orders.GetUserOrders)
		authGroup.GET("/:id", h.Orders.GetOrderDetails)
		authGroup.POST("/:id/cancel", h.Orders.CancelOrder)
	}

	return r
}

func healthHandler(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			log.Error().Err(err).Msg("health check: database unreachable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "up"})
	}
}
