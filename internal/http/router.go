package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"dispatch-service/internal/http/middleware"
)

type RouterOptions struct {
	Env             string
	RateLimit       int
	RateLimitWindow time.Duration
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func NewRouter(handler *Handler, authMiddleware gin.HandlerFunc, opts RouterOptions, log zerolog.Logger) *gin.Engine {
	if opts.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"*"},
		ExposeHeaders:   []string{"Content-Type", "Retry-After"},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	protected := router.Group("/api/v1")
	protected.Use(middleware.RateLimit(opts.RateLimit, opts.RateLimitWindow))
	protected.Use(authMiddleware)
	{
		protected.GET("/stations", handler.listStations)
		protected.POST("/stations", handler.registerStation)
		protected.GET("/stations/summary", handler.stationSummary)
		protected.GET("/map", handler.mapMarkers)

		protected.GET("/technicians", handler.listTechnicians)
		protected.POST("/technicians", handler.registerTechnician)

		protected.GET("/faults", handler.listFaults)
		protected.POST("/faults", handler.reportFault)
		protected.GET("/faults/:id", handler.getFault)
		protected.GET("/faults/:id/history", handler.faultHistory)
		protected.GET("/history", handler.recentHistory)
		protected.POST("/faults/:id/done", handler.markDone)
		protected.POST("/faults/:id/revisit", handler.markNeedsRevisit)
		protected.DELETE("/faults/:id", handler.deleteFault)
		protected.DELETE("/faults/:id/assignment", handler.cancelAssignment)

		protected.GET("/assignments", handler.listAssignments)
		protected.GET("/assignments/lookup", handler.lookupAssignment)
		protected.POST("/assignments", handler.createAssignment)
	}

	return router
}
