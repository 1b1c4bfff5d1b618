package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rentscope/internal/config"
	"rentscope/internal/handler"
	"rentscope/internal/repository"
	"rentscope/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}).Info("RentScope search service starting")

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Initialize database connection
	repo, err := repository.NewPostgresRepository(
		cfg.GetPostgreSQLDSN(),
		cfg.PostgreSQL.MaxConnections,
		cfg.PostgreSQL.MaxIdleConnections,
	)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()
	logger.Info("Connected to PostgreSQL database")

	// Initialize ranking gateway
	ranking := service.NewRankingClient(&cfg.Ranking, logger)
	if ranking.Enabled() {
		logger.WithFields(logrus.Fields{
			"api_base":   cfg.Ranking.APIBase,
			"chat_model": cfg.Ranking.ChatModel,
			"timeout_s":  cfg.Ranking.Timeout,
		}).Info("Ranking gateway initialized")
	} else {
		logger.Warn("Ranking gateway disabled - smart search will degrade to filter results. Set OPENAI_API_KEY to enable it.")
	}

	// Initialize services
	sessions := service.NewSessionManager()
	bounds := service.PriceBounds{Floor: cfg.Search.PriceFloor, Ceiling: cfg.Search.PriceCeiling}
	searchService := service.NewSearchService(repo, repo, repo, ranking, ranking, sessions, bounds, logger)
	savedSearchService := service.NewSavedSearchService(repo, service.ContextIdentity{}, logger)

	// Initialize handlers
	searchHandler := handler.NewSearchHandler(searchService, cfg.Search.SimilarLimit, cfg.Search.MaxLimit)
	savedSearchHandler := handler.NewSavedSearchHandler(savedSearchService)
	feedbackHandler := handler.NewFeedbackHandler(searchService)
	embeddingHandler := handler.NewEmbeddingHandler(searchService)

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.AllowedOrigins, ",")
	corsConfig.AllowMethods = strings.Split(cfg.Server.AllowedMethods, ",")
	corsConfig.AllowHeaders = strings.Split(cfg.Server.AllowedHeaders, ",")
	router.Use(cors.New(corsConfig))
	router.Use(handler.UserContext())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "rentscope-search",
			"version": Version,
		})
	})

	// Version endpoint
	router.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// API routes
	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/search", searchHandler.Search)
		apiV1.POST("/search/smart", searchHandler.SmartSearch)
		apiV1.GET("/properties/:id", searchHandler.GetProperty)
		apiV1.GET("/properties/:id/similar", searchHandler.SimilarProperties)

		apiV1.POST("/saved-searches", savedSearchHandler.Create)
		apiV1.GET("/saved-searches", savedSearchHandler.List)
		apiV1.DELETE("/saved-searches/:id", savedSearchHandler.Delete)

		apiV1.POST("/feedback", feedbackHandler.Submit)
		apiV1.POST("/embeddings/batch", embeddingHandler.BatchUpdate)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.WithField("addr", addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown error: %v", err)
	}
	logger.Info("Server stopped")
}

// newLogger builds the process logger from config.
func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
