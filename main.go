package main

import (
	"log"

	"quizdeck/config"
	"quizdeck/handlers"
	"quizdeck/logger"
	"quizdeck/middleware"
	"quizdeck/models"
	"quizdeck/monitoring"
	"quizdeck/routes"
	"quizdeck/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	logger.Init(cfg.Mode)
	defer logger.Log.Sync()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Auto-migrate database models
	err = db.AutoMigrate(
		&models.User{},
		&models.Quiz{},
		&models.Question{},
		&models.Option{},
		&models.QuizAttempt{},
		&models.UserAnswer{},
	)
	if err != nil {
		logger.Log.Fatal("failed to migrate database", zap.Error(err))
	}

	// Initialize Redis
	redisClient := config.InitRedis(cfg)

	// Initialize services
	authService := services.NewAuthService(db, cfg.JWTSecret)
	quizService := services.NewQuizService(db, logger.Log)
	attemptService := services.NewAttemptService(db, logger.Log)
	resultsService := services.NewResultsService(db, redisClient, logger.Log)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	quizHandler := handlers.NewQuizHandler(quizService)
	attemptHandler := handlers.NewAttemptHandler(attemptService, resultsService)

	// Setup Gin router
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger.Log))
	router.Use(middleware.CORS())

	monitoring.Init()
	router.Use(monitoring.MetricsMiddleware())

	// Setup routes
	routes.SetupRoutes(router, authHandler, quizHandler, attemptHandler, cfg.JWTSecret)

	// Start server
	logger.Log.Info("server starting", zap.String("port", cfg.Port))
	if err := router.Run(cfg.BindAddress + ":" + cfg.Port); err != nil {
		logger.Log.Fatal("failed to start server", zap.Error(err))
	}
}
