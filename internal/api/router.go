package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/valiyev-777/Speaking/internal/api/handlers"
	"github.com/valiyev-777/Speaking/internal/api/middleware"
	"github.com/valiyev-777/Speaking/internal/config"
	"github.com/valiyev-777/Speaking/internal/repository"
	"github.com/valiyev-777/Speaking/internal/service"
	"github.com/valiyev-777/Speaking/internal/websocket"
	"github.com/valiyev-777/Speaking/pkg/database"
	"github.com/valiyev-777/Speaking/pkg/distributed"
	"github.com/valiyev-777/Speaking/pkg/logger"
)

// SetupRouter API 라우터 설정. 매칭 스케줄러를 같이 조립해서 돌려준다
// (종료 시 Stop 호출은 호출자 책임)
func SetupRouter(cfg *config.Config, db *database.DB, redisClient *redis.Client) (*gin.Engine, *service.MatchmakingService) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Repository 초기화
	userRepo := repository.NewUserRepository(db)
	queueRepo := repository.NewQueueRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	partnershipRepo := repository.NewPartnershipRepository(db)

	// WebSocket Hub 초기화 (연결 레지스트리이자 Notifier)
	wsHub := websocket.NewHub()

	// Service 초기화
	userService := service.NewUserService(userRepo)
	partnerService := service.NewPartnerService(partnershipRepo, userRepo)
	matchmakingService := service.NewMatchmakingService(
		queueRepo,
		sessionRepo,
		userRepo,
		wsHub,
		cfg.RouletteInterval,
		cfg.LevelTolerance,
	)
	if redisClient != nil {
		// 다중 인스턴스 배포에서 틱 중복 실행 방지
		matchmakingService.SetTickLock(distributed.NewTickLock(redisClient, "matchmaking:tick", cfg.RouletteInterval))
	}
	gatewayService := service.NewGatewayService(
		queueRepo,
		sessionRepo,
		userRepo,
		wsHub,
		matchmakingService,
	)

	matchmakingService.Start()
	logger.Info("MatchmakingService started", "interval", cfg.RouletteInterval.String())

	// Handler 초기화
	authHandler := handlers.NewAuthHandler(userService, cfg)
	userHandler := handlers.NewUserHandler(userService)
	queueHandler := handlers.NewQueueHandler(queueRepo, cfg.RouletteInterval)
	partnerHandler := handlers.NewPartnerHandler(partnerService)
	sessionHandler := handlers.NewSessionHandler(sessionRepo)
	wsHandler := handlers.NewWebSocketHandler(wsHub, gatewayService)
	healthHandler := handlers.NewHealthHandler(db)

	// Health check / Metrics
	router.GET("/health", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 로그인/가입은 IP 기준 레이트 리밋
	authLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Capacity:   10,
		RefillRate: 1,
		KeyFunc:    middleware.IPKeyFunc,
	})

	// API v1
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/login", authLimit, authHandler.Login)
			auth.POST("/register", authLimit, authHandler.Register)
		}

		// User routes
		users := v1.Group("/users")
		users.Use(middleware.Auth(cfg))
		{
			users.GET("", userHandler.ListUsers)
			users.GET("/me", userHandler.GetCurrentUser)
			users.PUT("/me", userHandler.UpdateCurrentUser)
			users.GET("/online/count", userHandler.OnlineCount)
			users.GET("/:id", userHandler.GetUser)
		}

		// Queue routes (WebSocket join_queue와 동일한 시맨틱)
		queue := v1.Group("/queue")
		queue.Use(middleware.Auth(cfg))
		{
			queue.POST("/roulette", queueHandler.JoinRoulette)
			queue.POST("/level-filter", queueHandler.JoinLevelFilter)
			queue.DELETE("", queueHandler.LeaveQueue)
			queue.GET("/status", queueHandler.QueueStatus)
		}

		// Partner routes
		partners := v1.Group("/partners")
		partners.Use(middleware.Auth(cfg))
		{
			partners.GET("/search", partnerHandler.Search)
			partners.GET("", partnerHandler.ListPartners)
			partners.POST("/requests", partnerHandler.SendRequest)
			partners.GET("/requests", partnerHandler.ListIncomingRequests)
			partners.POST("/requests/:id/respond", partnerHandler.Respond)
			partners.DELETE("/:id", partnerHandler.RemovePartner)
		}

		// Session history routes
		sessions := v1.Group("/sessions")
		sessions.Use(middleware.Auth(cfg))
		{
			sessions.GET("", sessionHandler.ListSessions)
			sessions.GET("/:id", sessionHandler.GetSession)
		}

		// WebSocket route
		v1.GET("/ws", middleware.Auth(cfg), wsHandler.Connect)
	}

	return router, matchmakingService
}
