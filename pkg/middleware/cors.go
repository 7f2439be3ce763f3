package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// DefaultCORSConfig allows any origin to call the JSON API with a bearer token
func DefaultCORSConfig() cors.Config {
	return cors.Config{
		AllowAllOrigins: true,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Content-Length",
			"Accept",
			"Authorization",
			"X-Request-ID",
		},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 24 * time.Hour,
	}
}

// CORS middleware with default configuration
func CORS() gin.HandlerFunc {
	return cors.New(DefaultCORSConfig())
}

// CORSWithOrigins restricts CORS to the given origins and allows credentials
func CORSWithOrigins(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return CORS()
	}
	cfg := DefaultCORSConfig()
	cfg.AllowAllOrigins = false
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cors.New(cfg)
}
