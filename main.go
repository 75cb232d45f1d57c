// api/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/joho/godotenv"

	"sellerpulse/api/database"
	"sellerpulse/api/handlers"
	"sellerpulse/api/middleware"
	"sellerpulse/api/store"
)

const emailCacheSize = 512

func main() {
	// Load .env file at the very start
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env: %v", err)
	}

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Initialize PostgreSQL (user accounts) ---
	dbClient, err := database.NewPostgresDB()
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL database: %v", err)
	}
	defer dbClient.Close()

	// --- Initialize MongoDB (sessions, events, user index) ---
	mongoClient, err := database.NewMongoDB()
	if err != nil {
		log.Fatalf("Failed to initialize MongoDB: %v", err)
	}
	defer mongoClient.Close()

	// --- Initialize optional ClickHouse event archive ---
	var archiveStore *store.ArchiveStore
	if os.Getenv("CLICKHOUSE_HOST") != "" {
		chClient, err := database.NewClickHouseDB()
		if err != nil {
			log.Fatalf("Failed to initialize ClickHouse archive: %v", err)
		}
		defer chClient.Close()
		archiveStore = store.NewArchiveStore(chClient)
	} else {
		log.Println("CLICKHOUSE_HOST not set; event archive disabled.")
	}

	// --- Initialize Stores ---
	emailCache, err := lru.New[string, string](emailCacheSize)
	if err != nil {
		log.Fatalf("Failed to create email cache: %v", err)
	}
	userStore := store.NewUserStore(dbClient.DB, emailCache)
	sessionStore := store.NewSessionStore(mongoClient)
	analyticsStore := store.NewAnalyticsStore(sessionStore, userStore)

	// --- Initialize Handlers ---
	authHandlers := handlers.NewAuthHandlers(userStore)
	trackHandlers := handlers.NewTrackHandlers(sessionStore, archiveStore)
	analyticsHandlers := handlers.NewAnalyticsHandlers(analyticsStore, sessionStore)

	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	api := r.Group("/api")
	{
		// Authentication Endpoints (no authentication required)
		api.POST("/signup", authHandlers.Signup)
		api.POST("/login", authHandlers.Login)
		api.POST("/logout", authHandlers.Logout)

		// Protected Routes (require a valid JWT token or the client API key)
		protected := api.Group("/")
		protected.Use(middleware.AuthRequired())
		{
			trackGroup := protected.Group("/track")
			{
				trackGroup.POST("/session", trackHandlers.StartSession)
				trackGroup.POST("/session/:id/heartbeat", trackHandlers.Heartbeat)
				trackGroup.POST("/session/:id/event", trackHandlers.LogEvent)
				trackGroup.POST("/session/:id/end", trackHandlers.EndSession)
			}

			statsGroup := protected.Group("/stats")
			{
				statsGroup.GET("/summary", analyticsHandlers.GetSummary)
				statsGroup.GET("/user-sessions", analyticsHandlers.GetUserSessions)
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		log.Printf("Go API server starting on http://localhost:%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Go API server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
