package gateway

import (
	"github.com/climanger/relay/internal/v1/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter assembles the gin engine: correlation/tracing middleware,
// origin-reflecting CORS, the REST handlers, the WebSocket upgrade route,
// and a Prometheus scrape endpoint — grounded on the teacher's
// cmd/v1/session/main.go wiring.
func NewRouter(g *Gateway, tracingEnabled bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if tracingEnabled {
		router.Use(otelgin.Middleware("climanger-relay"))
	}
	router.Use(middleware.CorrelationID())
	router.Use(CORSMiddleware(g.AllowedOrigins))

	router.GET("/", g.Index)
	router.POST("/pin/create", g.CreatePin)
	router.POST("/auth", g.Auth)
	router.GET("/verify", g.Verify)
	router.GET("/connect/:device_id", g.Connect)
	router.GET("/device/:device_id/status", g.Status)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) { ok(c, 200, gin.H{"status": "ok"}) })

	return router
}
