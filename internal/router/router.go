package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/secureexam/portal-backend/internal/config"
	"github.com/secureexam/portal-backend/internal/handler"
	"github.com/secureexam/portal-backend/internal/middleware"
	"github.com/secureexam/portal-backend/internal/model"
	"github.com/secureexam/portal-backend/internal/response"
	"github.com/secureexam/portal-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth   *handler.AuthHandler
	Exam   *handler.ExamHandler
	Result *handler.ResultHandler
	Admin  *handler.AdminHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.GET("/verify-email", handlers.Auth.VerifyEmail)
		auth.POST("/login", handlers.Auth.Login)

		// Stage-one token only: password verified, session not yet issued.
		auth.POST("/send-otp", middleware.RequireTempStage(authService), handlers.Auth.SendOTP)
		auth.POST("/verify-otp", middleware.RequireTempStage(authService), handlers.Auth.VerifyOTP)

		auth.GET("/me", middleware.RequireFullSession(authService), handlers.Auth.Me)
	}

	// ─── 2. Public Verification (No Auth) ──────────────────────────────
	router.POST("/api/v1/verify-admit", handlers.Result.VerifyAdmit)

	// ─── 3. Protected API (Full Session) ───────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.RequireFullSession(authService))
	{
		// Exams: record-level policy (enrollment, window, ownership) is
		// evaluated per handler by the authorization engine.
		api.POST("/exams", handlers.Exam.Create)
		api.GET("/exams", handlers.Exam.List)
		api.GET("/exams/:id", handlers.Exam.Get)
		api.DELETE("/exams/:id", handlers.Exam.Delete)
		api.GET("/exams/:id/paper", handlers.Exam.GetPaper)
		api.POST("/exams/:id/enroll", handlers.Exam.Enroll)
		api.POST("/exams/:id/enroll/bulk", handlers.Exam.BulkEnroll)
		api.GET("/exams/:id/students", handlers.Exam.ListStudents)
		api.POST("/exams/:id/submit", handlers.Exam.Submit)
		api.GET("/exams/:id/submissions", handlers.Exam.ListSubmissions)
		api.GET("/exams/:id/results", handlers.Result.ExamResults)
		api.GET("/exams/:id/admit-card", handlers.Result.AdmitCard)

		// Submissions
		api.GET("/submissions/:id", handlers.Exam.GetSubmission)
		api.POST("/submissions/:id/grade", handlers.Exam.Grade)

		// Results
		api.GET("/results/my", handlers.Result.MyResults)
		api.GET("/results/:id", handlers.Result.GetResult)
	}

	// ─── 4. Admin Group (Full Session + Role) ──────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireFullSession(authService),
		middleware.RequireRole(model.RoleAdmin),
	)
	{
		adminAPI.GET("/stats", handlers.Admin.Stats)
		adminAPI.GET("/users", handlers.Admin.ListUsers)
		adminAPI.PATCH("/users/:id/active", handlers.Admin.SetUserActive)
		adminAPI.GET("/audit", handlers.Admin.AuditLog)
	}

	return router
}
