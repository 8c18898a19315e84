package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/classbadges/classbadges-api/api/swagger"
	"github.com/classbadges/classbadges-api/internal/handler"
	"github.com/classbadges/classbadges-api/internal/identity"
	"github.com/classbadges/classbadges-api/internal/middleware"
	"github.com/classbadges/classbadges-api/internal/models"
	"github.com/classbadges/classbadges-api/internal/repository"
	"github.com/classbadges/classbadges-api/internal/service"
	"github.com/classbadges/classbadges-api/pkg/cache"
	"github.com/classbadges/classbadges-api/pkg/config"
	"github.com/classbadges/classbadges-api/pkg/database"
	"github.com/classbadges/classbadges-api/pkg/export"
	"github.com/classbadges/classbadges-api/pkg/logger"
	corsmiddleware "github.com/classbadges/classbadges-api/pkg/middleware/cors"
	reqidmiddleware "github.com/classbadges/classbadges-api/pkg/middleware/requestid"
	"github.com/classbadges/classbadges-api/pkg/storage"
)

// @title ClassBadges API
// @version 1.0.0
// @description Badge credentialing service: catalog, evidence submissions, reviews, and the community feed
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	cacheEnabled := false
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		cacheEnabled = true
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, cacheEnabled)

	resolver := identity.NewResolver(cfg.Identity.SuperAdminEmail)
	policy := identity.NewPolicy(resolver)

	userRepo := repository.NewUserRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	earnedRepo := repository.NewEarnedBadgeRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "classbadges-api",
	})
	userSvc := service.NewUserService(userRepo, policy, validate, logr)
	badgeSvc := service.NewBadgeService(badgeRepo, cacheSvc, metricsSvc, cfg.Catalog.CacheTTL, validate, logr)
	submissionSvc := service.NewSubmissionService(submissionRepo, earnedRepo, badgeRepo, userRepo, policy, metricsSvc, validate, logr)
	earnedSvc := service.NewEarnedBadgeService(earnedRepo, cacheSvc, metricsSvc, cfg.Feed.CacheTTL, logr)

	var transcriptSvc *service.TranscriptService
	if cfg.Transcripts.Enabled {
		store, err := storage.NewLocalStorage(cfg.Transcripts.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init transcript storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Transcripts.SignedURLSecret, cfg.Transcripts.SignedURLTTL)
		transcriptSvc = service.NewTranscriptService(earnedRepo, store, signer, service.TranscriptConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Transcripts.SignedURLTTL,
		}, logr, export.NewCSVExporter(), export.NewPDFExporter())
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc, resolver)
	badgeHandler := handler.NewBadgeHandler(badgeSvc, resolver)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc, resolver)
	earnedHandler := handler.NewEarnedBadgeHandler(earnedSvc, resolver, cfg.Feed.Enabled)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	{
		users := protected.Group("/users")
		{
			users.GET("", middleware.RequireRoles(resolver, models.RoleAdmin, models.RoleTeacher), userHandler.List)
			users.GET("/:id", middleware.RBAC(resolver, "ADMIN", "TEACHER", "SELF"), userHandler.Get)
			users.POST("", middleware.RequireRoles(resolver, models.RoleAdmin), userHandler.Create)
			users.PUT("/:id", middleware.RBAC(resolver, "ADMIN", "SELF"), userHandler.Update)
			users.PUT("/:id/role", middleware.RequireRoles(resolver, models.RoleAdmin), userHandler.AssignRole)
			users.POST("/:id/reset-credential", middleware.RequireRoles(resolver, models.RoleAdmin, models.RoleTeacher), userHandler.ResetCredential)
		}

		badges := protected.Group("/badges")
		{
			badges.GET("", badgeHandler.List)
			badges.GET("/:id", badgeHandler.Get)
			badges.POST("", middleware.RequireRoles(resolver, models.RoleAdmin, models.RoleTeacher), badgeHandler.Create)
			badges.PUT("/:id", middleware.RequireRoles(resolver, models.RoleAdmin, models.RoleTeacher), badgeHandler.Update)
			badges.POST("/:id/reactions", badgeHandler.ToggleReaction)
		}

		submissions := protected.Group("/submissions")
		{
			submissions.POST("", middleware.RequireRoles(resolver, models.RoleStudent), submissionHandler.Create)
			submissions.GET("", submissionHandler.List)
			submissions.GET("/:id", submissionHandler.Get)
			submissions.POST("/:id/review", middleware.RequireRoles(resolver, models.RoleAdmin, models.RoleTeacher), submissionHandler.Review)
			submissions.POST("/bulk-review", middleware.RequireRoles(resolver, models.RoleAdmin, models.RoleTeacher), submissionHandler.BulkReview)
			submissions.PUT("/:id/visibility", submissionHandler.SetVisibility)
		}

		students := protected.Group("/students")
		{
			students.GET("/:id/earned-badges", earnedHandler.ListByStudent)
			students.GET("/:id/earned-badges/:badge_id", earnedHandler.HasBadge)
		}

		protected.POST("/earned-badges/:id/reactions", earnedHandler.ToggleReaction)
		protected.GET("/feed", earnedHandler.Feed)

		if transcriptSvc != nil {
			transcriptHandler := handler.NewTranscriptHandler(transcriptSvc, resolver)
			protected.POST("/students/:id/transcript", transcriptHandler.Generate)
			api.GET("/transcripts/download/:token",
				middleware.Audit(userRepo, models.AuditActionTranscriptFetch, "transcripts"),
				transcriptHandler.Download)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
