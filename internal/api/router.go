package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"gym-access-backend/internal/metrics"
	"gym-access-backend/internal/mw"
)

// RouterOptions tune the middleware in front of the API.
type RouterOptions struct {
	RateLimit rate.Limit
	RateBurst int
	// CacheTTL is the lifetime of cached equipment reads. Zero disables it.
	CacheTTL time.Duration
	Metrics  *metrics.Metrics
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if opts.Metrics != nil {
		r.Use(mw.Metrics(opts.Metrics))
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	r.GET("/healthz", h.Health)

	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(10)
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 5
	}

	caching := func(c *gin.Context) { c.Next() }
	api := r.Group("/api")
	api.Use(gin.Logger(), mw.Member(), mw.RateLimiter(opts.RateLimit, opts.RateBurst))
	if opts.CacheTTL > 0 {
		cacheStore := cache.New(opts.CacheTTL, 2*opts.CacheTTL)
		caching = mw.Cache(cacheStore, opts.CacheTTL, nil)
		api.Use(mw.FlushOnWrite(cacheStore))
	}
	member := mw.RequireMember()
	{
		api.GET("/equipment", caching, h.ListEquipment)
		api.POST("/equipment", h.CreateEquipment)
		api.GET("/equipment/:id", caching, h.GetEquipment)
		api.PUT("/equipment/:id/status", h.SetEquipmentStatus)
		api.GET("/equipment/:id/stats", caching, h.GetStats)

		api.POST("/equipment/:id/claim", member, h.Claim)
		api.GET("/equipment/:id/session", h.GetActiveSession)
		api.POST("/sessions/:session_id/release", member, h.Release)

		api.GET("/equipment/:id/queue", h.GetQueue)
		api.POST("/equipment/:id/queue", member, h.JoinQueue)
		api.DELETE("/queue/:entry_id", member, h.LeaveQueue)

		api.POST("/equipment/:id/issues", member, h.ReportIssue)
		api.GET("/me/sessions", member, h.ListMySessions)
		api.GET("/events", h.Events)

		api.GET("/subscriptions", member, h.GetSubscription)
		api.PUT("/subscriptions", member, h.PutSubscription)
		api.DELETE("/subscriptions", member, h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}

// Health reports whether the database answers.
func (h *Handler) Health(c *gin.Context) {
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
