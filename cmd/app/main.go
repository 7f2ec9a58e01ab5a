package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"lunaexecutor-backend/docs"
	"lunaexecutor-backend/internal/common/cache"
	"lunaexecutor-backend/internal/common/config"
	"lunaexecutor-backend/internal/common/logger"
	"lunaexecutor-backend/internal/common/metrics"
	"lunaexecutor-backend/internal/common/middleware"
	"lunaexecutor-backend/internal/common/validation"
	authHTTP "lunaexecutor-backend/internal/features/auth/delivery/http"
	authService "lunaexecutor-backend/internal/features/auth/service"
	"lunaexecutor-backend/internal/features/auth/session"
	chatHTTP "lunaexecutor-backend/internal/features/chat/delivery/http"
	"lunaexecutor-backend/internal/features/chat/hub"
	chatRepo "lunaexecutor-backend/internal/features/chat/repository/postgres"
	chatService "lunaexecutor-backend/internal/features/chat/service"
	productHTTP "lunaexecutor-backend/internal/features/product/delivery/http"
	productRepo "lunaexecutor-backend/internal/features/product/repository/postgres"
	productService "lunaexecutor-backend/internal/features/product/service"
	userHTTP "lunaexecutor-backend/internal/features/user/delivery/http"
	userRepo "lunaexecutor-backend/internal/features/user/repository/postgres"
	userService "lunaexecutor-backend/internal/features/user/service"
	"lunaexecutor-backend/internal/platform/postgres"
	"lunaexecutor-backend/internal/platform/redis"
	"lunaexecutor-backend/internal/workers"
)

const serviceName = "lunaexecutor-backend"

// @title           LunaExecutor API
// @version         1.0
// @description     Backend for the LunaExecutor site: products, accounts, dashboard statistics and live support chat.

// @BasePath  /

// @securityDefinitions.apikey SessionCookie
// @in cookie
// @name luna_sid
// @description Session cookie issued by /api/login and /api/register

// @tag.name auth
// @tag.description Registration, login and email verification

// @tag.name users
// @tag.description Profile and dashboard statistics

// @tag.name products
// @tag.description Product catalogue; mutations require an admin session

// @tag.name chat
// @tag.description Support chat history and live relay

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(serviceName, cfg.Debug)
	logger.Info().
		Str("version", "1.0.0").
		Bool("debug", cfg.Debug).
		Msg("Starting LunaExecutor backend")

	if err := validation.RegisterGinValidators(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register validators")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	postgresClient, err := postgres.NewClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer postgresClient.Close()

	if cfg.Postgres.AutoMigrate {
		if err := postgresClient.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		logger.Info().Msg("Database migrations applied")
	}

	redisClient, err := redis.NewClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	cacheService := cache.NewCacheService(redisClient)
	sessionStore := session.NewStore(redisClient, cfg.Session.TTL)

	userRepository := userRepo.NewPostgresRepository(postgresClient.GetDB())
	chatRepository := chatRepo.NewPostgresRepository(postgresClient.GetDB())
	productRepository := productRepo.NewPostgresRepository(postgresClient.GetDB())

	authSvc := authService.NewAuthService(userRepository, sessionStore,
		authService.WithAdminUsernames(cfg.IsAdminUsername))
	if err := authSvc.BootstrapAdmins(ctx, cfg.AdminUsernames); err != nil {
		logger.Error().Err(err).Msg("Admin bootstrap failed")
	}

	userSvc := userService.NewUserService(userRepository, userRepository,
		userService.WithStatsCache(cacheService, cache.UserStatsKey, cfg.Cache.UserStatsTTL))
	productSvc := productService.NewCachedProductService(productRepository, cacheService,
		cache.ProductsKey, cfg.Cache.ProductsTTL)

	chatHub := hub.New()
	var broadcaster chatService.Broadcaster = chatHub

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	if cfg.Chat.FanoutEnabled {
		broadcaster = workers.NewStreamPublisher(redisClient, cfg.Chat.FanoutStream, cfg.Chat.FanoutMaxLen)
		fanout := workers.NewChatFanoutWorker(redisClient, chatHub, cfg.Chat.FanoutStream)
		go fanout.Start(workerCtx)
	}

	chatSvc := chatService.NewChatService(chatRepository, broadcaster, chatService.Config{
		MaxContentRunes: cfg.Chat.MaxContentRunes,
		PersistTimeout:  cfg.Chat.PersistTimeout,
	})

	logger.Info().Msg("Services initialized")

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins()
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Accept", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	router.Use(middleware.Session(sessionStore, cfg.Session.CookieName))
	router.Use(middleware.CSRF(middleware.CSRFConfig{
		AllowedOrigins: cfg.CORSOrigins(),
		CookieName:     cfg.Session.CookieName,
	}))

	handlers := routeHandlers{
		auth: authHTTP.NewAuthHandler(authSvc, authHTTP.NewCookieHelper(authHTTP.CookieConfig{
			Name:   cfg.Session.CookieName,
			Domain: cfg.Session.Domain,
			Secure: cfg.Session.Secure,
			MaxAge: cfg.Session.TTL,
		})),
		user:    userHTTP.NewUserHandler(userSvc),
		product: productHTTP.NewProductHandler(productSvc, userSvc),
		chat: chatHTTP.NewChatHandler(chatSvc, chatHub, chatHTTP.Config{
			AllowAnonymous: cfg.Chat.AllowAnonymous,
			HistoryLimit:   cfg.Chat.HistoryLimit,
			AllowedOrigins: cfg.CORSOrigins(),
			Hub: hub.Options{
				WriteWait:       cfg.Chat.WriteWait,
				PongWait:        cfg.Chat.PongWait,
				PingPeriod:      cfg.Chat.PingPeriod,
				MaxMessageBytes: cfg.Chat.MaxMessageBytes,
				SendBuffer:      cfg.Chat.SendBuffer,
			},
			Admins: userSvc,
		}),
	}
	setupRoutes(router, cfg, handlers, postgresClient, redisClient)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	cancelWorkers()
	chatHub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

type routeHandlers struct {
	auth    *authHTTP.AuthHandler
	user    *userHTTP.UserHandler
	product *productHTTP.ProductHandler
	chat    *chatHTTP.ChatHandler
}

func setupRoutes(router *gin.Engine, cfg *config.Config, h routeHandlers, postgresClient *postgres.Client, redisClient *redis.Client) {
	api := router.Group("/api")
	{
		h.auth.RegisterRoutes(api)
		h.user.RegisterRoutes(api)
		h.product.RegisterRoutes(api)
		h.chat.RegisterRoutes(api)
	}

	// Paths the existing frontend still calls.
	h.user.RegisterLegacyRoutes(router)
	h.product.RegisterLegacyRoutes(router)
	h.chat.RegisterLegacyRoutes(router)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Swagger.Enabled {
		docs.SwaggerInfo.Host = cfg.Swagger.Host
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	router.GET("/health", func(c *gin.Context) {
		stats := postgresClient.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
			"db": gin.H{
				"open":   stats.OpenConnections,
				"in_use": stats.InUse,
				"idle":   stats.Idle,
			},
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := postgresClient.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "postgres unavailable",
				"details": err.Error(),
			})
			return
		}

		if err := redisClient.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "redis unavailable",
				"details": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})
}
