package router

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/osteo-api/internal/handler/health"
	"github.com/jwalitptl/osteo-api/internal/handler/prometheus"
	"github.com/jwalitptl/osteo-api/internal/middleware"
	"github.com/jwalitptl/osteo-api/pkg/auth"
	"github.com/jwalitptl/osteo-api/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(gin.IRouter)
}

type RouterConfig struct {
	CORS      middleware.CORSConfig
	Security  middleware.SecurityConfig
	SizeLimit middleware.SizeLimitConfig
	Timeout   middleware.TimeoutConfig
	// RateLimit is disabled when nil.
	RateLimit *middleware.RateLimiterConfig
}

type Router struct {
	engine   *gin.Engine
	tokens   auth.JWTService
	health   *health.Handler
	metricsH *prometheus.Handler
	handlers []Handler
}

func NewRouter(
	config RouterConfig,
	tokens auth.JWTService,
	m *metrics.Metrics,
	healthH *health.Handler,
	metricsH *prometheus.Handler,
	handlers ...Handler,
) *Router {
	engine := gin.New()

	// Logger and Metrics wrap ErrorHandler so they see the rendered status.
	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
	)
	if m != nil {
		engine.Use(middleware.Metrics(m))
	}
	engine.Use(
		middleware.Recovery(),
		middleware.ErrorHandler(),
		middleware.SecurityHeaders(config.Security),
		middleware.CORS(config.CORS),
		middleware.SizeLimit(config.SizeLimit),
		middleware.Timeout(config.Timeout),
	)
	if config.RateLimit != nil {
		engine.Use(middleware.NewRateLimiter(*config.RateLimit).RateLimit())
	}

	return &Router{
		engine:   engine,
		tokens:   tokens,
		health:   healthH,
		metricsH: metricsH,
		handlers: handlers,
	}
}

func (r *Router) Setup() {
	if r.health != nil {
		r.health.RegisterRoutes(r.engine)
	}
	if r.metricsH != nil {
		r.engine.GET("/health/metrics", r.metricsH.Handler())
	}

	api := r.engine.Group("/api/v1")
	api.Use(middleware.Authenticate(r.tokens))
	for _, h := range r.handlers {
		h.RegisterRoutes(api)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
