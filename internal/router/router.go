package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-ingest/internal/config"
	"github.com/stemsi/exstem-ingest/internal/handler"
	"github.com/stemsi/exstem-ingest/internal/middleware"
	"github.com/stemsi/exstem-ingest/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Import  *handler.ImportHandler
	Profile *handler.ProfileHandler
	Roster  *handler.RosterHandler
	Health  *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds the background goroutines of the rate limiter.
func SetupRouter(ctx context.Context, handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	router.NoRoute(handler.NotFound)
	router.GET("/health", handlers.Health.Health)

	// Uploads parse whole files in memory; 30 per minute per IP.
	uploadLimiter := middleware.NewRateLimiter(ctx, 30, time.Minute)

	// ─── Import sessions ───────────────────────────────────────────────
	imports := router.Group("/api/v1/imports")
	imports.Use(middleware.NoStore())
	{
		imports.POST("", uploadLimiter.Middleware(), handlers.Import.CreateImport)
		imports.GET("/:session_id", handlers.Import.GetImport)
		imports.DELETE("/:session_id", handlers.Import.Abort)
		imports.PUT("/:session_id/mapping", handlers.Import.MapColumns)
		imports.POST("/:session_id/match", handlers.Import.MatchStudents)
		imports.POST("/:session_id/validate", handlers.Import.Validate)
		imports.POST("/:session_id/overrides", handlers.Import.Override)
		imports.POST("/:session_id/assignments", handlers.Import.AssignStudent)
		imports.POST("/:session_id/commit", handlers.Import.Commit)
		imports.POST("/:session_id/persist", handlers.Import.Persist)
	}

	// ─── Exam profiles ─────────────────────────────────────────────────
	exams := router.Group("/api/v1/exams/:exam_id")
	{
		exams.GET("/profile", middleware.CacheControl(60), handlers.Profile.GetProfile)
		exams.PUT("/profile", middleware.NoStore(), handlers.Profile.PutProfile)
		exams.GET("/imports", middleware.NoStore(), handlers.Profile.ListImports)
	}

	// ─── Roster ────────────────────────────────────────────────────────
	roster := router.Group("/api/v1/roster")
	roster.Use(middleware.NoStore())
	{
		roster.GET("/classes", handlers.Roster.ListClasses)
		roster.GET("/students", handlers.Roster.ListStudents)
		roster.POST("/students", handlers.Roster.CreateStudent)
	}

	return router
}
