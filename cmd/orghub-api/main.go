package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/orghub-api/api/swagger"
	"github.com/noah-isme/orghub-api/internal/handler"
	"github.com/noah-isme/orghub-api/internal/middleware"
	"github.com/noah-isme/orghub-api/internal/repository"
	"github.com/noah-isme/orghub-api/internal/service"
	"github.com/noah-isme/orghub-api/pkg/cache"
	"github.com/noah-isme/orghub-api/pkg/config"
	"github.com/noah-isme/orghub-api/pkg/database"
	"github.com/noah-isme/orghub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/orghub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/orghub-api/pkg/middleware/requestid"
	"github.com/noah-isme/orghub-api/pkg/storage"
)

// @title OrgHub API
// @version 1.0.0
// @description Student organization hub: accounts, memberships, course-tagged file sharing and messaging
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close() //nolint:errcheck
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	fileStore, err := storage.NewFileStore(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	folderRepo := repository.NewFolderRepository(db)
	fileRepo := repository.NewFileRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "orghub-api",
	})
	membershipSvc := service.NewMembershipService(membershipRepo, orgRepo, userRepo, validate, logr)
	orgSvc := service.NewOrganizationService(orgRepo, membershipRepo, folderRepo, fileRepo, fileStore, cacheRepo, cfg.Cache.OrgTTL, validate, logr)
	fileSvc := service.NewFileService(fileRepo, folderRepo, fileStore, signer, cfg.Uploads.AllowedExtensions, cfg.Uploads.MaxFileSizeBytes, validate, logr)
	conversationSvc := service.NewConversationService(conversationRepo, userRepo, cacheRepo, cfg.Cache.InboxTTL, validate, logr)
	searchSvc := service.NewSearchService(membershipRepo, orgRepo, folderRepo, fileRepo, logr)
	categorySvc := service.NewCategoryService(categoryRepo, validate, logr)

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	orgHandler := handler.NewOrganizationHandler(orgSvc)
	membershipHandler := handler.NewMembershipHandler(membershipSvc, orgSvc)
	fileHandler := handler.NewFileHandler(fileSvc, orgSvc, metricsSvc)
	conversationHandler := handler.NewConversationHandler(conversationSvc, metricsSvc)
	searchHandler := handler.NewSearchHandler(searchSvc, metricsSvc)
	categoryHandler := handler.NewCategoryHandler(categorySvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.MaxMultipartMemory = cfg.Uploads.MaxFileSizeBytes

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)

	// Signed token downloads carry their own auth.
	api.GET("/downloads/:token", fileHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.GET("/organizations", orgHandler.Mine)
	protected.POST("/organizations", orgHandler.Create)
	protected.GET("/invitations", membershipHandler.ListInvites)
	protected.POST("/organizations/:orgID/invitations/accept", membershipHandler.Accept)
	protected.POST("/organizations/:orgID/invitations/deny", membershipHandler.Deny)
	protected.GET("/inbox", conversationHandler.Inbox)
	protected.GET("/conversations/:username", conversationHandler.Thread)
	protected.POST("/conversations/:username", conversationHandler.Send)
	protected.GET("/search", searchHandler.Search)
	protected.GET("/categories", categoryHandler.List)
	protected.POST("/categories", middleware.RequireSiteAdmin(), categoryHandler.Create)

	member := protected.Group("/organizations/:orgID")
	member.Use(middleware.RequireOrgMember(membershipSvc))
	member.GET("", orgHandler.View)
	member.GET("/members", membershipHandler.Members)
	member.POST("/invitations", membershipHandler.Invite)
	member.DELETE("/membership", membershipHandler.Leave)
	member.POST("/files", fileHandler.Upload)
	member.GET("/files/:fileID/download", fileHandler.DownloadLink)
	member.DELETE("/files/:fileID", fileHandler.Delete)
	member.GET("/folders/:folderID", fileHandler.FolderView)
	member.GET("/folders/:folderID/courses/:tag/:number", fileHandler.CourseFiles)

	admin := protected.Group("/organizations/:orgID")
	admin.Use(middleware.RequireOrgAdmin(membershipSvc))
	admin.GET("/roster/export", orgHandler.ExportRoster)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
