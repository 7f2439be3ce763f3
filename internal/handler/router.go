package handler

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/middleware"
)

// CallbackPath is the webhook route registered with the payment provider
const CallbackPath = "/api/v1/payments/mpesa/callback"

// RouterConfig wires handlers and middleware into the HTTP router
type RouterConfig struct {
	ServiceName    string
	Mode           string
	JWT            *middleware.JWTConfig
	AllowedOrigins []string
	Logger         *logger.Logger

	Health   *HealthHandler
	Bookings *BookingHandler
	Payments *PaymentHandler
	Callback *CallbackHandler
}

// NewRouter builds the gin engine
func NewRouter(cfg *RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	r := gin.New()
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestLogger(log))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(middleware.CORSWithOrigins(cfg.AllowedOrigins))
	} else {
		r.Use(middleware.CORS())
	}

	if cfg.Health != nil {
		r.GET("/health", cfg.Health.Health)
		r.GET("/ready", cfg.Health.Ready)
	}

	// the provider cannot present a bearer token
	if cfg.Callback != nil {
		r.POST(CallbackPath, cfg.Callback.MPesa)
	}

	api := r.Group("/api/v1")
	api.Use(middleware.JWTMiddleware(cfg.JWT))

	if cfg.Bookings != nil {
		bookings := api.Group("/bookings")
		bookings.POST("", cfg.Bookings.Create)
		bookings.GET("", cfg.Bookings.List)
		bookings.GET("/:id", cfg.Bookings.Get)
		bookings.POST("/:id/cancel", cfg.Bookings.Cancel)
		if cfg.Payments != nil {
			bookings.POST("/:id/payment", cfg.Payments.Initiate)
		}
	}

	if cfg.Payments != nil {
		payments := api.Group("/payments")
		payments.GET("/:id", cfg.Payments.Get)
		payments.POST("/:id/recheck", cfg.Payments.Recheck)
		payments.GET("/:id/transitions", cfg.Payments.Transitions)
	}

	return r
}
