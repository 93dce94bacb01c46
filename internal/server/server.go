// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"localpulse/internal/cache"
	"localpulse/internal/config"
	"localpulse/internal/database"
	"localpulse/internal/middleware"
	"localpulse/internal/models"
	"localpulse/internal/moderation"
	"localpulse/internal/realtime"
	"localpulse/internal/repository"
	"localpulse/internal/service"
	"localpulse/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the already-initialized dependencies a Server is built from.
type Deps struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Objects storage.ObjectStore
	// Classifier backs the publish moderation gate. Nil approves everything.
	Classifier moderation.Classifier
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	objects        storage.ObjectStore
	broker         realtime.Broker
	hub            *realtime.Hub

	userService         *service.UserService
	graphService        *service.GraphService
	engagementService   *service.EngagementService
	notificationService *service.NotificationService
	feedService         *service.FeedService
	publishService      *service.PublishService
	contentService      *service.ContentService
}

// NewServer connects to the database, Redis and object storage named by cfg
// and builds a Server on top of them.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	objects, err := storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}

	var classifier moderation.Classifier
	if cfg.ModerationURL != "" {
		classifier = moderation.NewHTTPClassifier(moderation.HTTPConfig{
			URL:        cfg.ModerationURL,
			APIKey:     cfg.ModerationAPIKey,
			HTTPClient: &http.Client{Timeout: cfg.ModerationTimeout},
		})
	}

	return NewServerWithDeps(cfg, Deps{
		DB:         db,
		Redis:      cache.GetClient(),
		Objects:    objects,
		Classifier: classifier,
	})
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Live topics go through Redis pub/sub when a client is given so every
// replica sees every event; otherwise they stay in process.
func NewServerWithDeps(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	middleware.InitMiddleware(cfg)

	var broker realtime.Broker
	if deps.Redis != nil {
		broker = realtime.NewRedisBroker(deps.Redis)
	} else {
		broker = realtime.NewLocalBroker()
	}
	publisher := realtime.NewPublisher(broker)

	store := repository.NewStore(deps.DB, cfg.BatchMaxOps)
	userRepo := repository.NewUserRepository(deps.DB)
	contentRepo := repository.NewContentRepository(deps.DB)
	likeRepo := repository.NewLikeRepository(deps.DB)
	followRepo := repository.NewFollowRepository(deps.DB)
	commentRepo := repository.NewCommentRepository(deps.DB)
	draftRepo := repository.NewDraftRepository(deps.DB)
	notificationRepo := repository.NewNotificationRepository(deps.DB)

	s := &Server{
		config:         cfg,
		db:             deps.DB,
		redis:          deps.Redis,
		promMiddleware: middleware.InitMetrics("localpulse-api"),
		objects:        deps.Objects,
		broker:         broker,
	}

	s.userService = service.NewUserService(store, userRepo, followRepo, contentRepo, deps.Objects)
	s.notificationService = service.NewNotificationService(store, notificationRepo, followRepo, publisher,
		s.userService.IsAdmin, service.FanOutOptions{
			ChunkSize:   cfg.FanOutChunkSize,
			Concurrency: cfg.FanOutConcurrency,
		})
	s.graphService = service.NewGraphService(store, followRepo, userRepo, s.notificationService, publisher)
	s.engagementService = service.NewEngagementService(store, contentRepo, likeRepo, commentRepo, userRepo,
		s.notificationService, publisher, s.userService.IsAdmin)
	s.feedService = service.NewFeedService(contentRepo, userRepo, service.FeedOptions{
		Categories: cfg.Categories(),
		PageSize:   cfg.FeedPageSize,
		SectionCap: cfg.FeedSectionCap,
		CacheTTL:   time.Duration(cfg.FeedCacheSeconds) * time.Second,
	})
	gate := moderation.NewGate(deps.Classifier, cfg.ModerationTimeout, cfg.ModerationExcerptLn)
	s.publishService = service.NewPublishService(store, draftRepo, contentRepo, userRepo, s.notificationService,
		gate, deps.Objects, int64(cfg.MaxUploadSizeMB)*1024*1024)
	s.contentService = service.NewContentService(store, contentRepo, deps.Objects, s.userService.IsAdmin)
	s.hub = realtime.NewHub(broker, s.topicSnapshot)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	if s.config.Env != "test" {
		app.Use(limiter.New(limiter.Config{
			Max:        300,
			Expiration: time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return c.Method() == fiber.MethodOptions
			},
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "Too many requests, please try again later.",
				})
			},
		}))
	}
}

// Write budgets per user, or per IP when anonymous.
var (
	followRule  = middleware.Rule{Name: "follow", Limit: 30, Window: time.Minute}
	likeRule    = middleware.Rule{Name: "like", Limit: 60, Window: time.Minute}
	reportRule  = middleware.Rule{Name: "report", Limit: 5, Window: time.Minute}
	commentRule = middleware.Rule{Name: "comment", Limit: 10, Window: time.Minute}
	replyRule   = middleware.Rule{Name: "reply", Limit: 10, Window: time.Minute}
	publishRule = middleware.Rule{Name: "publish", Limit: 5, Window: 5 * time.Minute, Policy: middleware.FailClosed}
	uploadRule  = middleware.Rule{Name: "upload", Limit: 20, Window: time.Minute}
)

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	if local, ok := s.objects.(*storage.LocalStore); ok && s.config.MediaBaseURL != "" {
		app.Static(s.config.MediaBaseURL, local.Dir())
	}

	api := app.Group("/api")

	// Public reads; a token, when present, personalizes the response.
	api.Get("/feed", middleware.OptionalAuth, s.GetFeed)
	api.Get("/feed/categories", s.GetCategories)
	api.Get("/contents/:id", middleware.OptionalAuth, s.GetContent)
	api.Get("/contents/:id/likes", s.GetLikes)
	api.Get("/contents/:id/comments", s.GetComments)
	api.Get("/comments/:commentId/replies", s.GetReplies)
	api.Get("/users/:id", s.GetUserProfile)
	api.Get("/users/:id/followers", s.GetFollowers)
	api.Get("/users/:id/following", s.GetFollowing)
	api.Get("/users/:id/contents", middleware.OptionalAuth, s.GetUserContents)
	api.Post("/contents/:id/share", s.ShareContent)

	// Browsers cannot set headers on an upgrade, so the socket takes ?token=.
	api.Get("/ws", middleware.WebSocketAuthRequired, s.WebSocketHandler())

	protected := api.Group("", middleware.AuthRequired)

	users := protected.Group("/users")
	users.Put("/me", s.UpdateMyProfile)
	users.Get("/:id/follow", s.GetFollowStatus)
	users.Post("/:id/follow", middleware.Throttle(s.redis, followRule), s.ToggleFollow)

	contents := protected.Group("/contents")
	contents.Post("/:id/like", middleware.Throttle(s.redis, likeRule), s.ToggleLike)
	contents.Post("/:id/report", middleware.Throttle(s.redis, reportRule), s.ReportContent)
	contents.Post("/:id/comments", middleware.Throttle(s.redis, commentRule), s.CreateComment)
	contents.Put("/:id", s.UpdateContent)
	contents.Delete("/:id", s.DeleteContent)

	comments := protected.Group("/comments")
	comments.Post("/:commentId/replies", middleware.Throttle(s.redis, replyRule), s.CreateReply)
	comments.Put("/:commentId", s.UpdateComment)
	comments.Delete("/:commentId", s.DeleteComment)

	replies := protected.Group("/replies")
	replies.Put("/:replyId", s.UpdateReply)
	replies.Delete("/:replyId", s.DeleteReply)

	drafts := protected.Group("/drafts")
	drafts.Get("/", s.GetDrafts)
	drafts.Post("/", s.SaveDraft)
	drafts.Post("/:draftId/publish", middleware.Throttle(s.redis, publishRule), s.PublishDraft)
	drafts.Get("/:draftId", s.GetDraft)
	drafts.Delete("/:draftId", s.DeleteDraft)

	protected.Post("/uploads", middleware.Throttle(s.redis, uploadRule), s.UploadAsset)

	notifications := protected.Group("/notifications")
	notifications.Get("/", s.GetNotifications)
	notifications.Get("/unread-count", s.GetUnreadCount)
	notifications.Post("/read-all", s.MarkAllNotificationsRead)
	notifications.Post("/:notificationId/read", s.MarkNotificationRead)
	notifications.Delete("/:notificationId", s.DeleteNotification)
	notifications.Delete("/", s.ClearNotifications)

	admin := protected.Group("/admin", s.AdminRequired())
	admin.Post("/broadcasts", s.CreateBroadcast)
	admin.Delete("/broadcasts/:broadcastId", s.DeleteBroadcast)
	admin.Delete("/users/:id", s.DeleteUser)
	admin.Get("/contents/:id/reports", s.GetReports)
	admin.Get("/fanouts", s.GetPendingFanOuts)
	admin.Post("/fanouts/:id/retry", s.RetryFanOut)
}

// HealthCheck handles readiness check requests
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional; without it caching is off and topics stay in process.
	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"websockets": s.hub.ClientCount(),
		"time":       time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		admin, err := s.userService.IsAdmin(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// App builds the Fiber app with middleware and routes installed.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:   "LocalPulse API",
		BodyLimit: (s.config.MaxUploadSizeMB*3 + 1) * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start listens on the configured port until Shutdown is called.
func (s *Server) Start() error {
	app := s.App()
	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown stops the HTTP server and releases every connection.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		log.Printf("error shutting down %s: %v", s.hub.Name(), err)
	}
	if err := s.broker.Close(); err != nil {
		log.Printf("error closing broker: %v", err)
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
