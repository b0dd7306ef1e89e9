package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openshelf/openshelf-backend/internal/clients/redis"
	"github.com/openshelf/openshelf-backend/internal/db"
	"github.com/openshelf/openshelf-backend/internal/handlers"
	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/middleware"
	"github.com/openshelf/openshelf-backend/internal/repos"
	"github.com/openshelf/openshelf-backend/internal/server"
	"github.com/openshelf/openshelf-backend/internal/services"
	"github.com/openshelf/openshelf-backend/internal/sse"
	"github.com/openshelf/openshelf-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)

	policy := services.DefaultCirculationPolicy()
	policy.LoanPeriodDays = utils.GetEnvAsInt("LOAN_PERIOD_DAYS", policy.LoanPeriodDays, log)
	policy.GraceDays = utils.GetEnvAsInt("FINE_GRACE_DAYS", policy.GraceDays, log)
	policy.DailyRate = utils.GetEnvAsFloat("FINE_DAILY_RATE", policy.DailyRate, log)
	policy.FineCeiling = utils.GetEnvAsFloat("FINE_CEILING", policy.FineCeiling, log)
	policy.HoldWindowDays = utils.GetEnvAsInt("HOLD_WINDOW_DAYS", policy.HoldWindowDays, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	profileRepo := repos.NewProfileRepo(thePG, log)
	bookRepo := repos.NewBookRepo(thePG, log)
	memberRepo := repos.NewMemberRepo(thePG, log)
	transactionRepo := repos.NewTransactionRepo(thePG, log)
	reservationRepo := repos.NewReservationRepo(thePG, log)
	fineRepo := repos.NewFineRepo(thePG, log)
	activityRepo := repos.NewActivityEventRepo(thePG, log)

	// SSE
	log.Info("Setting up SSE hub now...")
	sseHub := sse.NewSSEHub(log)

	// Services
	log.Info("Setting up Services from main...")
	statsService := services.NewStatsService(thePG, log, bookRepo, memberRepo, transactionRepo, reservationRepo, fineRepo, activityRepo)

	eventBus, err := redis.NewEventBus(log)
	if err != nil {
		log.Warn("Could not init redis event bus, events stay process-local", "error", err)
		eventBus = nil
	} else {
		if err := eventBus.StartForwarder(context.Background(), func(m sse.SSEMessage) {
			sseHub.Publish(m)
			statsService.Invalidate()
		}); err != nil {
			// Without the forwarder nothing would bring bus traffic back to
			// this node, so fall back to direct local delivery.
			log.Warn("Could not start event bus forwarder, events stay process-local", "error", err)
			eventBus.Close()
			eventBus = nil
		}
	}
	notifier := services.NewNotifier(log, sseHub, eventBus, func(m sse.SSEMessage) {
		statsService.Invalidate()
	})

	authService := services.NewAuthService(thePG, log, profileRepo, memberRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second)
	bookService := services.NewBookService(thePG, log, bookRepo, transactionRepo)
	memberService := services.NewMemberService(thePG, log, profileRepo, memberRepo, activityRepo)
	circulationService := services.NewCirculationService(thePG, log, policy, bookRepo, memberRepo, transactionRepo, reservationRepo, fineRepo, activityRepo, notifier)
	reservationService := services.NewReservationService(thePG, log, policy, bookRepo, memberRepo, reservationRepo, activityRepo, notifier)
	fineService := services.NewFineService(thePG, log, policy, fineRepo, memberRepo, transactionRepo, notifier)

	circulationService.StartSweeper(context.Background())

	// Handlers
	log.Info("Setting up Handlers from main...")
	authHandler := handlers.NewAuthHandler(log, authService)
	bookHandler := handlers.NewBookHandler(log, bookService)
	memberHandler := handlers.NewMemberHandler(log, memberService)
	circulationHandler := handlers.NewCirculationHandler(log, circulationService)
	reservationHandler := handlers.NewReservationHandler(log, reservationService)
	fineHandler := handlers.NewFineHandler(log, fineService)
	statsHandler := handlers.NewStatsHandler(log, statsService)
	streamHandler := handlers.NewStreamHandler(log, sseHub)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:        authHandler,
		AuthMiddleware:     authMiddleware,
		BookHandler:        bookHandler,
		MemberHandler:      memberHandler,
		CirculationHandler: circulationHandler,
		ReservationHandler: reservationHandler,
		FineHandler:        fineHandler,
		StatsHandler:       statsHandler,
		StreamHandler:      streamHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
