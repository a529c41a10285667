package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/fawkesdbs/app-dt-lesira/config"
	"github.com/fawkesdbs/app-dt-lesira/internal/mw"
)

// NewRouter creates and configures a new Gin router around the handler.
func NewRouter(handler *Handler, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), 5)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 10*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/downtime/start", handler.StartDowntime)
		api.POST("/downtime/stop", handler.StopDowntime)
		api.GET("/downtime/log", caching, handler.GetDailyLog)

		api.POST("/operators/signin", handler.SignIn)
		api.POST("/operators/signout", handler.SignOut)
		api.GET("/stations", handler.GetStations)
		api.GET("/catalog", caching, handler.GetCatalog)

		if handler.db != nil {
			api.GET("/subscriptions", handler.GetSubscription)
			api.PUT("/subscriptions", handler.PutSubscription)
			api.DELETE("/subscriptions", handler.DeleteSubscription)
			api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
		}
	}

	return r
}
