package main

import (
	"log"
	"time"

	"whiteboard-backend/internal/cache"
	"whiteboard-backend/internal/config"
	"whiteboard-backend/internal/database"
	"whiteboard-backend/internal/presence"
	"whiteboard-backend/internal/server"
)

func main() {
	cfg := config.Load()

	db, err := database.ConnectDB()
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer database.Close()

	if err := database.Ping(); err != nil {
		log.Fatalf("Database ping failed: %v", err)
	}
	log.Printf("Database connected successfully")

	cacheClient := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer cacheClient.Close()

	presenceMgr := presence.NewManager(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer presenceMgr.Close()

	srv := server.New(cfg, db, cacheClient, presenceMgr)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	// Reap rooms nobody rejoined after their last client dropped.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			srv.Hub().CleanupInactiveRooms(30 * time.Minute)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
