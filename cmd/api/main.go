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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollbook/internal/auth"
	"rollbook/internal/config"
	"rollbook/internal/genai"
	"rollbook/internal/handler"
	"rollbook/internal/httpmiddleware"
	"rollbook/internal/permission"
	"rollbook/internal/queue"
	"rollbook/internal/record"
	"rollbook/internal/store"
	"rollbook/internal/summary"
	"rollbook/internal/users"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	} else if err := db.Migrate(context.Background()); err != nil {
		log.Printf("warning: schema migration failed: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var records record.Store
	if cfg.RecordBackend == "memory" {
		records = record.NewMemoryStore()
	} else {
		records = record.NewRedisStore(redisClient.Client)
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "rollbook:attendance")
	}

	userRepo := users.NewRepository(db.Client)
	permRepo := permission.NewRepository(db.Client)
	llm := genai.New(cfg.GenAIBaseURL, cfg.GenAIAPIKey, cfg.GenAIModel, cfg.GenAISkip)
	summaries := summary.NewCache(redisClient.Client)

	h := handler.New(cfg, userRepo, permRepo, records, llm, q, summaries)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/auth/login", h.Login)

	authed := r.Group("/v1", auth.RequireAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authed.POST("/assistant/messages", h.AssistantMessage)
	authed.GET("/assistant/sessions/:id/messages", h.AssistantTranscript)

	authed.GET("/classes/:grade/:class/students", h.ListRoster)
	authed.POST("/classes/:grade/:class/students", h.AddStudent)
	authed.PATCH("/classes/:grade/:class/students/:studentID", h.UpdateStudent)
	authed.DELETE("/classes/:grade/:class/students/:studentID", h.RemoveStudent)

	authed.GET("/classes/:grade/:class/attendance/:date", h.GetDay)
	authed.PUT("/classes/:grade/:class/attendance/:date", h.PutDay)
	authed.GET("/classes/:grade/:class/attendance", h.GetHistory)
	authed.GET("/classes/:grade/:class/summary/:date", h.GetSummary)

	authed.POST("/permissions", h.RequestPermission)
	authed.GET("/permissions/mine", h.MyPermissionRequests)

	admin := authed.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/teachers", h.CreateTeacher)
	admin.GET("/teachers", h.ListTeachers)
	admin.PATCH("/teachers/:id", h.UpdateTeacher)
	admin.DELETE("/teachers/:id", h.DeleteTeacher)
	admin.GET("/permissions", h.ListPermissionRequests)
	admin.POST("/permissions/:id/approve", h.RespondPermission(permission.StatusApproved))
	admin.POST("/permissions/:id/reject", h.RespondPermission(permission.StatusRejected))
	admin.POST("/classes/:grade/:class/attendance/:date/migrate", h.MigrateDay)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
