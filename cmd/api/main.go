package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/competition-api/internal/config"
	"github.com/yourusername/competition-api/internal/events"
	"github.com/yourusername/competition-api/internal/handler"
	"github.com/yourusername/competition-api/internal/middleware"
	"github.com/yourusername/competition-api/internal/realtime"
	pgRepo "github.com/yourusername/competition-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/competition-api/internal/repository/redis"
	"github.com/yourusername/competition-api/internal/service"
	"github.com/yourusername/competition-api/internal/service/competitionmanager"
	"github.com/yourusername/competition-api/pkg/auth"
	"github.com/yourusername/competition-api/pkg/database"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Loading configuration from %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Repositories
	competitionRepo := pgRepo.NewCompetitionRepo(db)
	teamRepo := pgRepo.NewTeamRepo(db)
	challengeRepo := pgRepo.NewChallengeRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Change feed: Redis pub/sub keeps multi-instance caches coherent.
	var feed events.ChangeFeed
	feed, err = events.NewRedisFeed(redisClient)
	if err != nil {
		log.Printf("Redis change feed unavailable, falling back to no-op feed: %v", err)
		feed = &events.NoOpFeed{}
	}

	dispatcher := events.NewDispatcher()

	// Realtime hub broadcasts every engine event to websocket subscribers.
	hub := realtime.NewHub()
	go hub.Run()
	dispatcher.Subscribe(hub.HandleEvent)

	// Reward gateway
	var gateway service.RewardGateway
	if cfg.Email.Enabled {
		lookup := emailLookupFromDirectory(cfg.Email.Directory)
		resendGateway, err := service.NewResendGateway(cfg.Email.APIKey, cfg.Email.From, lookup)
		if err != nil {
			log.Printf("Failed to initialize Resend gateway: %v", err)
			os.Exit(1)
		}
		gateway = resendGateway
		log.Println("Email notifications enabled via Resend")
	} else {
		gateway = &service.LogGateway{}
		log.Println("Email notifications disabled, logging gateway in use")
	}

	engineConfig := competitionmanager.DefaultConfig()
	if cfg.Engine.SweepInterval > 0 {
		engineConfig.SweepInterval = cfg.Engine.SweepInterval
	}
	if cfg.Engine.RefreshInterval > 0 {
		engineConfig.RefreshInterval = cfg.Engine.RefreshInterval
	}
	if cfg.Engine.CacheTTL > 0 {
		engineConfig.CacheTTL = cfg.Engine.CacheTTL
	}

	clock := competitionmanager.SystemClock()

	// Services
	competitionService := service.NewCompetitionService(
		competitionRepo, teamRepo, cacheRepo, dispatcher, feed, gateway, clock, engineConfig,
	)
	teamService := service.NewTeamService(
		teamRepo, cacheRepo, dispatcher, feed, gateway, clock, engineConfig.CacheTTL,
	)
	challengeService := service.NewChallengeService(challengeRepo, gateway, clock)

	// Root context governs every background goroutine.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Scheduler drives time-based lifecycle transitions and periodic
	// leaderboard refreshes.
	scheduler := competitionmanager.NewScheduler(engineConfig, &competitionmanager.Dependencies{
		CompetitionRepo:  competitionRepo,
		Lifecycle:        competitionService,
		ChallengeSweeper: challengeService,
		Clock:            clock,
	})
	scheduler.Start(ctx)

	// Cache sync consumes changes published by other instances.
	cacheSync := service.NewCacheSync(feed, cacheRepo)
	if err := cacheSync.Start(ctx); err != nil {
		log.Printf("Cache sync unavailable: %v", err)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs)

	// Handlers
	competitionHandler := handler.NewCompetitionHandler(competitionService)
	teamHandler := handler.NewTeamHandler(teamService)
	challengeHandler := handler.NewChallengeHandler(challengeService)
	wsHandler := handler.NewWSHandler(hub)

	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	router := gin.Default()

	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := router.Group("/api")
	{
		competitions := api.Group("/competitions")
		{
			competitions.GET("", competitionHandler.ListCompetitions)

			adminCreate := competitions.Group("")
			adminCreate.Use(authMiddleware.RequireAuth(), authMiddleware.AdminOnly())
			{
				adminCreate.POST("", rateLimiter.Limit(middleware.DefaultWriteRateLimitConfig()), competitionHandler.CreateCompetition)
			}

			withID := competitions.Group("/:id")
			withID.Use(middleware.ExtractUintParam("id", "competitionID"))
			{
				withID.GET("", competitionHandler.GetCompetition)
				withID.GET("/leaderboard", competitionHandler.GetLeaderboard)
				withID.GET("/leaderboard/export", competitionHandler.ExportLeaderboard)

				authed := withID.Group("")
				authed.Use(authMiddleware.RequireAuth())
				{
					authed.POST("/join", rateLimiter.Limit(middleware.DefaultWriteRateLimitConfig()), competitionHandler.JoinCompetition)
				}

				admin := withID.Group("")
				admin.Use(authMiddleware.RequireAuth(), authMiddleware.AdminOnly())
				{
					admin.POST("/publish", competitionHandler.PublishCompetition)
					admin.POST("/start", competitionHandler.StartCompetition)
					admin.POST("/end", competitionHandler.EndCompetition)
					admin.POST("/score", rateLimiter.Limit(middleware.ScoreIngestRateLimitConfig()), competitionHandler.UpdateScore)
				}
			}
		}

		teams := api.Group("/teams")
		{
			teams.GET("", teamHandler.ListTeams)

			authedTeams := teams.Group("")
			authedTeams.Use(authMiddleware.RequireAuth())
			{
				authedTeams.POST("", rateLimiter.Limit(middleware.DefaultWriteRateLimitConfig()), teamHandler.CreateTeam)
			}

			teamWithID := teams.Group("/:id")
			teamWithID.Use(middleware.ExtractUintParam("id", "teamID"))
			{
				teamWithID.GET("", teamHandler.GetTeam)

				authedTeam := teamWithID.Group("")
				authedTeam.Use(authMiddleware.RequireAuth())
				{
					authedTeam.POST("/join", rateLimiter.Limit(middleware.DefaultWriteRateLimitConfig()), teamHandler.JoinTeam)
				}
			}
		}

		challenges := api.Group("/challenges")
		{
			challenges.GET("", challengeHandler.ListActiveChallenges)

			adminChallenges := challenges.Group("")
			adminChallenges.Use(authMiddleware.RequireAuth(), authMiddleware.AdminOnly())
			{
				adminChallenges.POST("", challengeHandler.CreateChallenge)
				adminChallenges.POST("/progress", rateLimiter.Limit(middleware.ScoreIngestRateLimitConfig()), challengeHandler.RecordProgress)
			}

			challengeWithID := challenges.Group("/:id")
			challengeWithID.Use(middleware.ExtractUintParam("id", "challengeID"))
			{
				challengeWithID.GET("", challengeHandler.GetChallenge)

				authedChallenge := challengeWithID.Group("")
				authedChallenge.Use(authMiddleware.RequireAuth())
				{
					authedChallenge.POST("/join", challengeHandler.JoinChallenge)
				}
			}
		}
	}

	router.GET("/ws", wsHandler.HandleConnection)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	cancel()
	scheduler.Stop()
	cacheSync.Stop()
	hub.Close()
	if err := feed.Close(); err != nil {
		log.Printf("Error closing change feed: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}

// emailLookupFromDirectory builds the user-to-address lookup from the
// configured directory.
func emailLookupFromDirectory(directory map[string]string) service.EmailLookup {
	byID := make(map[uint]string, len(directory))
	for idStr, addr := range directory {
		id, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			log.Printf("Ignoring invalid user id %q in email directory", idStr)
			continue
		}
		byID[uint(id)] = addr
	}
	return func(userID uint) (string, bool) {
		addr, ok := byID[userID]
		return addr, ok
	}
}
