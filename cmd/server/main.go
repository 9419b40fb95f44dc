package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/secureexam/portal-backend/internal/clock"
	"github.com/secureexam/portal-backend/internal/config"
	"github.com/secureexam/portal-backend/internal/database"
	"github.com/secureexam/portal-backend/internal/handler"
	"github.com/secureexam/portal-backend/internal/logger"
	"github.com/secureexam/portal-backend/internal/repository"
	"github.com/secureexam/portal-backend/internal/router"
	"github.com/secureexam/portal-backend/internal/service"
	"github.com/secureexam/portal-backend/internal/validator"
	"github.com/secureexam/portal-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet; a misconfigured key must stop the process.
		panic("invalid configuration: " + err.Error())
	}

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Secure Exam Portal")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	enrollmentRepo := repository.NewEnrollmentRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	auditWriter := worker.NewAuditWriter(auditRepo, log)
	go auditWriter.Start(workerCtx)

	// ─── Initialize Services ──────────────────────────────────────────
	clk := clock.System{}

	cryptoService, err := service.NewCryptoService(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize crypto service")
	}

	codeStore := service.NewRedisCodeStore(rdb, cfg.OTCTTL)
	otcService := service.NewOTCService(codeStore, clk, cfg.OTCTTL, cfg.BcryptCost)
	mailer := service.NewSMTPMailer(cfg)

	authService := service.NewAuthService(cfg, userRepo, otcService, mailer, auditWriter, clk, log)
	authzService := service.NewAuthzService(cfg, examRepo, enrollmentRepo, submissionRepo, resultRepo, clk, log)
	examService := service.NewExamService(cfg, examRepo, enrollmentRepo, submissionRepo, resultRepo,
		userRepo, cryptoService, auditWriter, clk, log)
	adminService := service.NewAdminService(userRepo, examRepo, submissionRepo, auditRepo, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		Exam:   handler.NewExamHandler(examService, authzService),
		Result: handler.NewResultHandler(examService, authzService),
		Admin:  handler.NewAdminHandler(adminService),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the audit writer and let it flush its queue.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
