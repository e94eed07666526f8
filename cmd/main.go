package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"livechat-app/internal/config"
	"livechat-app/internal/handler"
	"livechat-app/internal/realtime"
	"livechat-app/internal/repository"
	"livechat-app/internal/services"
	"livechat-app/internal/utils"
)

func main() {
	baseCtx := context.Background()
	ctx, shutdownManager := utils.NewShutdownManager(baseCtx)
	shutdownManager.StartListening()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// MongoDB
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Mongo connection failed:", err)
	}
	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Closing MongoDB connection...")
		return mongoClient.Disconnect(ctx)
	})
	db := mongoClient.Database(cfg.MongoDB)

	// Redis
	rdb, err := utils.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Closing Redis connection...")
		return rdb.Close()
	})

	// MinIO
	minioClient, err := utils.NewMinioClient(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket)
	if err != nil {
		log.Fatal("MinIO connection failed:", err)
	}

	// Repositories and services
	chatRepo := repository.NewChatRepository(db)
	widgetRepo := repository.NewWidgetRepository(db)
	agentRepo := repository.NewAgentRepository(db)

	notifier := services.NewNotifier(cfg)
	chatService := services.NewChatService(chatRepo, agentRepo, widgetRepo, rdb, notifier)
	widgetService := services.NewWidgetService(widgetRepo)
	uploadService := services.NewUploadService(minioClient, widgetRepo, cfg.MinioBucket, cfg.MinioPublicURL)

	jwtUtil := utils.NewJWTUtil(cfg.JWTSecret)
	authService := services.NewAuthService(agentRepo, jwtUtil)

	// Realtime hub and background jobs
	hub := realtime.NewHub(rdb, chatService)
	hub.StartEventBridge(ctx)
	chatService.StartIdleSweeper(ctx, time.Duration(cfg.IdleResolveHours)*time.Hour)

	chatHandler := handler.NewChatHandler(chatService, widgetService, uploadService)
	dashboardHandler := handler.NewDashboardHandler(chatService, widgetService, authService)
	wsHandler := handler.NewWSHandler(hub)

	// Router
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
	}))

	authMiddleware := utils.AuthMiddleware(jwtUtil)

	widget := router.Group("/api/widget")
	{
		widget.GET("/config", chatHandler.GetWidgetConfig)
	}

	customer := router.Group("/api/customer")
	{
		customer.POST("/messages", chatHandler.SendMessage)
		customer.GET("/messages", chatHandler.GetMessages)
		customer.POST("/upload", chatHandler.Upload)
	}

	router.POST("/api/auth/login", dashboardHandler.Login)

	dashboard := router.Group("/api/dashboard", authMiddleware)
	{
		dashboard.GET("/conversations", dashboardHandler.ListConversations)
		dashboard.GET("/conversations/:id/messages", dashboardHandler.GetConversationMessages)
		dashboard.POST("/conversations/:id/reply", dashboardHandler.Reply)
		dashboard.PATCH("/conversations/:id", dashboardHandler.UpdateConversation)
		dashboard.PUT("/widget-settings", utils.RoleMiddleware("supervisor", "admin"), dashboardHandler.SaveWidgetSettings)
		dashboard.GET("/agents", utils.RoleMiddleware("supervisor", "admin"), dashboardHandler.ListAgents)
		dashboard.POST("/agents", utils.RoleMiddleware("supervisor", "admin"), dashboardHandler.CreateAgent)
		dashboard.PUT("/device-token", dashboardHandler.UpdateDeviceToken)
	}

	router.GET("/ws/widget", wsHandler.WidgetSocket)
	router.GET("/ws/dashboard", authMiddleware, wsHandler.DashboardSocket)

	// HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Println("Chat service running on :" + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	shutdownManager.Register(func(ctx context.Context) error {
		log.Println("[SHUTDOWN] Shutting down HTTP server...")
		return server.Shutdown(ctx)
	})

	select {}
}
