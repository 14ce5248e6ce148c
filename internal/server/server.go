package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	applicationdomain "github.com/smallbiznis/turfkeeper/internal/application/domain"
	"github.com/smallbiznis/turfkeeper/internal/clock"
	"github.com/smallbiznis/turfkeeper/internal/config"
	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
	lawndomain "github.com/smallbiznis/turfkeeper/internal/lawn/domain"
	locationdomain "github.com/smallbiznis/turfkeeper/internal/location/domain"
	"github.com/smallbiznis/turfkeeper/internal/observability"
	obsmiddleware "github.com/smallbiznis/turfkeeper/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/turfkeeper/internal/observability/metrics"
	obstracing "github.com/smallbiznis/turfkeeper/internal/observability/tracing"
	"github.com/smallbiznis/turfkeeper/internal/ratelimit"
	taskdomain "github.com/smallbiznis/turfkeeper/internal/task/domain"
	weatherdomain "github.com/smallbiznis/turfkeeper/internal/weather/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	if !cfg.RunsAPI() {
		return
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	clock          clock.Clock
	locationSvc    locationdomain.Service
	lawnSvc        lawndomain.Service
	weatherSvc     weatherdomain.Service
	gddSvc         gdddomain.Service
	applicationSvc applicationdomain.Service
	taskSvc        taskdomain.Service
	enqueuer       taskdomain.Enqueuer
	obsMetrics     *obsmetrics.Metrics
	weatherLimiter *ratelimit.WeatherIngestLimiter
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	Clock          clock.Clock
	LocationSvc    locationdomain.Service
	LawnSvc        lawndomain.Service
	WeatherSvc     weatherdomain.Service
	GDDSvc         gdddomain.Service
	ApplicationSvc applicationdomain.Service
	TaskSvc        taskdomain.Service
	Enqueuer       taskdomain.Enqueuer
	ObsMetrics     *obsmetrics.Metrics             `optional:"true"`
	WeatherLimiter *ratelimit.WeatherIngestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		clock:          p.Clock,
		locationSvc:    p.LocationSvc,
		lawnSvc:        p.LawnSvc,
		weatherSvc:     p.WeatherSvc,
		gddSvc:         p.GDDSvc,
		applicationSvc: p.ApplicationSvc,
		taskSvc:        p.TaskSvc,
		enqueuer:       p.Enqueuer,
		obsMetrics:     p.ObsMetrics,
		weatherLimiter: p.WeatherLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/locations", s.CreateLocation)
	api.GET("/locations", s.ListLocations)
	api.GET("/locations/:id", s.GetLocationByID)
	api.PATCH("/locations/:id", s.UpdateLocation)
	api.DELETE("/locations/:id", s.DeleteLocation)
	api.PUT("/locations/:id/weather", s.WeatherIngestRateLimit(), s.UpsertWeather)
	api.GET("/locations/:id/weather", s.ListWeather)

	api.POST("/lawns", s.CreateLawn)
	api.GET("/lawns", s.ListLawns)
	api.GET("/lawns/:id", s.GetLawnByID)
	api.PATCH("/lawns/:id", s.UpdateLawn)
	api.DELETE("/lawns/:id", s.DeleteLawn)

	api.POST("/gdd-models", s.CreateGDDModel)
	api.GET("/gdd-models", s.ListGDDModels)
	api.GET("/gdd-models/:id", s.GetGDDModelByID)
	api.PATCH("/gdd-models/:id", s.UpdateGDDModel)
	api.DELETE("/gdd-models/:id", s.DeleteGDDModel)
	api.POST("/gdd-models/:id/resets", s.CreateManualReset)
	api.GET("/gdd-models/:id/resets", s.ListResets)
	api.GET("/gdd-models/:id/parameters", s.ListParameterHistory)
	api.POST("/gdd-models/:id/parameters", s.ApplyParameters)
	api.GET("/gdd-models/:id/parameters/effective", s.GetEffectiveParameters)
	api.POST("/gdd-models/:id/recalculate", s.RequestRecalculation)
	api.GET("/gdd-models/:id/values", s.ListValues)
	api.GET("/gdd-models/:id/runs", s.ListRuns)
	api.GET("/gdd-models/:id/tasks", s.ListModelTasks)

	api.GET("/tasks/:id", s.GetTaskByID)

	api.POST("/applications", s.CreateApplication)
	api.GET("/applications", s.ListApplications)
	api.GET("/applications/:id", s.GetApplicationByID)
	api.PATCH("/applications/:id", s.UpdateApplication)
	api.DELETE("/applications/:id", s.DeleteApplication)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
