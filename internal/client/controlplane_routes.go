package client

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmined/solvesync/internal/client/handlers"
	"github.com/openmined/solvesync/internal/client/middleware"
	"github.com/openmined/solvesync/internal/version"
)

type RouteConfig struct {
	Auth      middleware.TokenAuthConfig
	RateLimit string
}

// SyncService is the sync manager as the routes use it
type SyncService interface {
	handlers.Recorder
	handlers.SyncController
}

// RouteDeps are the services behind the control plane
type RouteDeps struct {
	Queue    handlers.Queue
	Sync     SyncService
	Importer handlers.Importer
	Events   handlers.EventSource
}

func SetupRoutes(deps *RouteDeps, routeConfig *RouteConfig) (http.Handler, error) {
	r := gin.New()

	rate := routeConfig.RateLimit
	if rate == "" {
		rate = middleware.DefaultRate
	}
	rateLimiter, err := middleware.RateLimiter(rate)
	if err != nil {
		return nil, err
	}

	statusH := handlers.NewStatusHandler(deps.Queue, deps.Sync)
	queueH := handlers.NewQueueHandler(deps.Queue)
	mutationH := handlers.NewMutationHandler(deps.Sync)
	syncH := handlers.NewSyncHandler(deps.Sync, deps.Events)
	importH := handlers.NewImportHandler(deps.Importer)

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.CORS())
	r.Use(middleware.Gzip())
	r.Use(rateLimiter)

	r.GET("/", IndexHandler)

	auth := middleware.TokenAuth(routeConfig.Auth)

	// streams share their paths with the gzip and logger skip lists
	r.GET(middleware.EventsPath, auth, syncH.Events)
	r.GET(middleware.EventsWSPath, auth, syncH.EventsWS)

	v1 := r.Group("/v1")
	v1.Use(auth)
	{
		v1.GET("/status", statusH.Status)

		v1.POST("/mutations", mutationH.Record)

		v1Queue := v1.Group("/queue")
		{
			v1Queue.GET("", queueH.List)
			v1Queue.DELETE("", queueH.Clear)
			v1Queue.DELETE("/:id", queueH.Remove)
		}

		v1Sync := v1.Group("/sync")
		{
			v1Sync.POST("/now", syncH.Now)
			v1Sync.POST("/online", syncH.Online)
			v1Sync.GET("/status", syncH.Status)
		}

		v1Import := v1.Group("/import")
		{
			v1Import.POST("", importH.Import)
			v1Import.POST("/retry", importH.Retry)
			v1Import.GET("/last", importH.Last)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":  handlers.ErrCodeNotFound,
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"code":  handlers.ErrCodeBadRequest,
			"error": "method not allowed",
		})
	})

	return r.Handler(), nil
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func IndexHandler(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}
