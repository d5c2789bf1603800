package server

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"whiteboard-backend/internal/auth"
	"whiteboard-backend/internal/cache"
	"whiteboard-backend/internal/config"
	"whiteboard-backend/internal/handler"
	"whiteboard-backend/internal/middleware"
	"whiteboard-backend/internal/presence"
	"whiteboard-backend/internal/service"
)

// Server wires the Fiber app, the REST handlers and the board websocket hub.
type Server struct {
	app            *fiber.App
	cfg            *config.Config
	db             *gorm.DB
	authHandler    *handler.AuthHandler
	boardHandler   *handler.BoardHandler
	boardWSHandler *handler.BoardWSHandler
	assetHandler   *handler.AssetHandler
	healthHandler  *handler.HealthHandler
	boardHub       *handler.BoardHub
	boardGuard     *middleware.BoardMiddleware
	jwtManager     *auth.JWTManager
}

// New builds a fully wired server.
func New(cfg *config.Config, db *gorm.DB, cacheClient *cache.RedisClient, presenceMgr *presence.Manager) *Server {
	app := fiber.New(fiber.Config{
		AppName:        "Whiteboard Sync Gateway",
		ServerHeader:   "Fiber",
		StrictRouting:  true,
		CaseSensitive:  true,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		Prefork:        false, // incompatible with websocket state
		ReadBufferSize: 16384,
		BodyLimit:      10 * 1024 * 1024,
	})

	jwtManager := auth.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	memberService := service.NewMemberService(db)
	boardGuard := middleware.NewBoardMiddleware(memberService)

	boardHub := handler.NewBoardHub(presenceMgr)

	return &Server{
		app:            app,
		cfg:            cfg,
		db:             db,
		authHandler:    handler.NewAuthHandler(db, jwtManager, cfg.Auth.SecureCookie),
		boardHandler:   handler.NewBoardHandler(db, cacheClient, presenceMgr, boardHub),
		boardWSHandler: handler.NewBoardWSHandler(db, boardHub, presenceMgr),
		assetHandler:   handler.NewAssetHandler(db),
		healthHandler:  handler.NewHealthHandler(db, cacheClient),
		boardHub:       boardHub,
		boardGuard:     boardGuard,
		jwtManager:     jwtManager,
	}
}

// Hub exposes the board hub for background maintenance.
func (s *Server) Hub() *handler.BoardHub {
	return s.boardHub
}

// SetupMiddleware installs the global middleware stack.
func (s *Server) SetupMiddleware() {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		AllowCredentials: true,
	}))
}

// SetupRoutes installs all HTTP and websocket routes.
func (s *Server) SetupRoutes() {
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/health/ready", s.healthHandler.Readiness)

	authLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	authGroup := s.app.Group("/auth")
	authGroup.Post("/login", authLimiter, s.authHandler.Login)
	authGroup.Post("/refresh", authLimiter, s.authHandler.RefreshToken)
	authGroup.Post("/logout", auth.AuthMiddleware(s.jwtManager), s.authHandler.Logout)
	authGroup.Get("/me", auth.AuthMiddleware(s.jwtManager), s.authHandler.GetMe)

	// Asset library
	assetGroup := s.app.Group("/api/assets", auth.AuthMiddleware(s.jwtManager))
	assetGroup.Post("/", s.assetHandler.CreateAsset)
	assetGroup.Get("/", s.assetHandler.ListAssets)
	assetGroup.Get("/:id", s.assetHandler.GetAsset)
	assetGroup.Delete("/:id", s.assetHandler.DeleteAsset)

	// Boards
	boardGroup := s.app.Group("/api/boards", auth.AuthMiddleware(s.jwtManager))
	boardGroup.Post("/", s.boardHandler.CreateBoard)
	boardGroup.Get("/", s.boardHandler.ListBoards)
	boardGroup.Get("/:id", s.boardGuard.RequireMembership(), s.boardHandler.GetBoard)
	boardGroup.Patch("/:id", s.boardGuard.RequireOwnership(), s.boardHandler.UpdateBoard)
	boardGroup.Delete("/:id", s.boardGuard.RequireOwnership(), s.boardHandler.ArchiveBoard)
	boardGroup.Post("/:id/restore", s.boardGuard.RequireOwnership(), s.boardHandler.RestoreBoard)

	// Membership
	boardGroup.Post("/:id/members", s.boardGuard.RequireOwnership(), s.boardHandler.AddMember)
	boardGroup.Delete("/:id/members/:userId", s.boardGuard.RequireOwnership(), s.boardHandler.RemoveMember)

	// Element persistence. Realtime clients call these in parallel with
	// their websocket broadcasts.
	boardGroup.Post("/:id/elements", s.boardGuard.RequireEditor(), s.boardHandler.CreateElements)
	boardGroup.Put("/:id/elements/order", s.boardGuard.RequireEditor(), s.boardHandler.UpdateElementOrder)
	boardGroup.Delete("/:id/elements/:uuid", s.boardGuard.RequireEditor(), s.boardHandler.DeleteElement)

	// WebSocket upgrade check
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// Board sync endpoint. Token comes from the cookie or a query param;
	// browser websocket clients cannot set headers.
	s.app.Get("/ws/boards/:boardId", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		token := c.Cookies("access_token")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		claims, err := s.jwtManager.ValidateAccessToken(token)
		if err != nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		boardID, err := strconv.ParseInt(c.Params("boardId"), 10, 64)
		if err != nil {
			return c.SendStatus(fiber.StatusBadRequest)
		}

		var count int64
		s.db.Table("board_members").
			Where("board_id = ? AND user_id = ?", boardID, claims.UserID).
			Count(&count)
		if count == 0 {
			return c.SendStatus(fiber.StatusForbidden)
		}

		c.Locals("boardID", boardID)
		c.Locals("userID", claims.UserID)
		c.Locals("nickname", claims.Nickname)
		return c.Next()
	}, websocket.New(s.boardWSHandler.HandleWebSocket, websocket.Config{
		ReadBufferSize:  s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: s.cfg.WebSocket.WriteBufferSize,
	}))
}

// Start runs the server with graceful shutdown on SIGINT/SIGTERM.
func (s *Server) Start() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Fatalf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("[Server] Whiteboard Sync Gateway starting on %s", s.cfg.Server.Port)
	log.Printf("[Server] WebSocket endpoint: ws://localhost%s/ws/boards/:boardId", s.cfg.Server.Port)

	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(30 * time.Second)
}
