package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medimeet/telehealth-api/internal/handler"
	"github.com/medimeet/telehealth-api/internal/middleware"
	"github.com/medimeet/telehealth-api/pkg/identity"
)

// Handler is anything that can attach routes to the authenticated group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// PublicHandler additionally exposes routes that need no bearer token.
type PublicHandler interface {
	RegisterPublicRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
}

type Router struct {
	engine  *gin.Engine
	metrics *httpMetrics
}

type httpMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

func newHTTPMetrics() *httpMetrics {
	return &httpMetrics{
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		}, []string{"method", "path", "status"}),
		requestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
	}
}

func (m *httpMetrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// FullPath keeps the label cardinality bounded: /doctors/:id,
		// not one label value per doctor.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		m.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path, status).
			Observe(time.Since(start).Seconds())
	}
}

// New assembles the gin engine: the middleware chain, the public endpoints
// and the authenticated /api/v1 group the domain handlers hang off.
func New(cfg Config, verifier identity.Verifier, syncer middleware.UserSyncer, health *handler.HealthHandler, handlers ...Handler) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	metrics := newHTTPMetrics()

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 50
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 100
	}
	limiter := middleware.NewRateLimiter(rps, burst)

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.CORS(middleware.DefaultCORSConfig()),
		limiter.RateLimit(),
		middleware.Timeout(cfg.RequestTimeout),
		metrics.middleware(),
		middleware.ErrorHandler(),
	)

	engine.GET("/health/live", health.Live)
	engine.GET("/health/ready", health.Ready)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := engine.Group("/api/v1")
	api := engine.Group("/api/v1", middleware.Auth(verifier, syncer))
	for _, h := range handlers {
		h.RegisterRoutes(api)
		if ph, ok := h.(PublicHandler); ok {
			ph.RegisterPublicRoutes(public)
		}
	}

	return &Router{engine: engine, metrics: metrics}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
