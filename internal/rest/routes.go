package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Guyuepp/popularity-service/internal/rest/middleware"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	AllowOrigins   []string
	RequestTimeout time.Duration
	AdminToken     string
	RateLimiter    *middleware.UserRateLimiter
	HealthChecks   map[string]HealthCheck
}

// Register wires every route of the service onto route.
func Register(route *gin.Engine, items *ItemHandler, admin *AdminHandler, cfg RouterConfig) {
	route.Use(middleware.Metrics())
	route.Use(middleware.CORS(cfg.AllowOrigins))
	if cfg.RequestTimeout > 0 {
		route.Use(middleware.SetRequestContextWithTimeout(cfg.RequestTimeout))
	}
	route.Use(middleware.Identity())

	route.GET("/healthz", health(cfg.HealthChecks))
	route.GET("/metrics", gin.WrapH(promhttp.Handler()))

	route.GET("/items/top", items.FetchTop)
	route.GET("/items/:id", items.GetByID)
	route.GET("/items/:id/projection", items.GetProjection)

	authorized := route.Group("/")
	authorized.Use(middleware.RequireUser())
	{
		authorized.POST("/items", items.Store)
		authorized.DELETE("/items/:id", items.Delete)

		likes := authorized.Group("/")
		if cfg.RateLimiter != nil {
			likes.Use(middleware.RateLimit(cfg.RateLimiter))
		}
		likes.PUT("/items/:id/like", items.Like)
		likes.DELETE("/items/:id/like", items.Unlike)
	}

	ops := route.Group("/admin")
	ops.Use(middleware.AdminToken(cfg.AdminToken))
	{
		ops.POST("/decay/:window", admin.RunDecay)
		ops.POST("/items/:id/reconcile", admin.Reconcile)
	}
}

func health(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		res := gin.H{}
		for name, check := range checks {
			if err := check(c.Request.Context()); err != nil {
				logrus.WithError(err).WithField("dependency", name).Warn("health check failed")
				res[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			res[name] = "ok"
		}
		c.JSON(status, res)
	}
}
