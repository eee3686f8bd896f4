package app

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/marketeam/adpilot/internal/config"
	"github.com/marketeam/adpilot/internal/handlers"
	"github.com/marketeam/adpilot/internal/middleware"
	"github.com/marketeam/adpilot/internal/services"
)

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	services, err := services.New(cfg, app.logger)
	if err != nil {
		return nil, err
	}
	app.services = services

	app.handlers = handlers.New(app.logger, services)

	app.setupRouter()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")
	return nil
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(a.config))

	// Health check endpoint
	router.GET("/health", a.handlers.Health.Check)

	// Prometheus metrics endpoint
	if a.config.Monitoring.Enabled {
		router.GET(a.config.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	// API routes
	api := router.Group("/api/v1")
	{
		campaign := api.Group("/campaign")
		{
			campaign.POST("/generate", a.handlers.Campaign.Generate)
			campaign.GET("/last", a.handlers.Campaign.Last)
			campaign.GET("/matches", a.handlers.Campaign.Matches)
			campaign.GET("/images", a.handlers.Campaign.Images)
			campaign.GET("/prompts", a.handlers.Campaign.Prompts)
		}

		trends := api.Group("/trends")
		{
			trends.GET("", a.handlers.Trend.List)
			trends.GET("/top", a.handlers.Trend.Top)
			trends.GET("/category/:category", a.handlers.Trend.ByCategory)
			trends.POST("/refresh", a.handlers.Trend.Refresh)
		}

		users := api.Group("/users")
		{
			users.GET("", a.handlers.User.List)
			users.GET("/:id", a.handlers.User.Get)
		}

		match := api.Group("/match")
		{
			match.POST("/user/:id", a.handlers.User.MatchUser)
			match.POST("/all", a.handlers.User.MatchAll)
		}
	}

	a.router = router
}
