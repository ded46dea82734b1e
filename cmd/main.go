package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/andressep95/clicker-service/internal/config"
	"github.com/andressep95/clicker-service/internal/domain"
	"github.com/andressep95/clicker-service/internal/handler"
	"github.com/andressep95/clicker-service/internal/handler/middleware"
	"github.com/andressep95/clicker-service/internal/repository"
	"github.com/andressep95/clicker-service/internal/repository/memory"
	"github.com/andressep95/clicker-service/internal/repository/postgres"
	"github.com/andressep95/clicker-service/internal/service"
	"github.com/andressep95/clicker-service/pkg/captcha"
	"github.com/andressep95/clicker-service/pkg/hash"
	"github.com/andressep95/clicker-service/pkg/ratelimit"
	"github.com/andressep95/clicker-service/pkg/validator"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	readiness := map[string]handler.Pinger{}

	// Initialize storage
	var sessionRepo repository.SessionRepository
	var schoolRepo repository.SchoolRepository
	switch cfg.Database.Backend {
	case "postgres":
		db, err := initDB(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Printf("Error closing database connection: %v", err)
			}
		}()
		log.Println("✓ Database connection established")

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = postgres.Migrate(migrateCtx, db)
		cancel()
		if err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		log.Println("✓ Database schema up to date")

		sessionRepo = postgres.NewSessionRepository(db)
		schoolRepo = postgres.NewSchoolRepository(db)
		readiness["database"] = db
	default:
		log.Println("ℹ Using in-memory storage (data is lost on restart)")
		sessionRepo = memory.NewSessionRepository()
		schoolRepo = memory.NewSchoolRepository()
	}

	// Initialize rate limiter
	var limiter ratelimit.Limiter
	var memoryLimiter *ratelimit.MemoryLimiter
	switch cfg.RateLimit.Backend {
	case "redis":
		redisClient, err := initRedis(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize Redis: %v", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("Error closing Redis connection: %v", err)
			}
		}()
		log.Println("✓ Redis connection established")

		limiter = ratelimit.NewRedisLimiter(redisClient)
		readiness["cache"] = handler.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	default:
		log.Println("ℹ Using in-memory rate limiter (limits are per instance)")
		memoryLimiter = ratelimit.NewMemoryLimiter()
		limiter = memoryLimiter
	}

	// Initialize captcha verifier
	verifier, err := captcha.NewSiteVerifyClient(&captcha.Config{
		Provider:          cfg.Captcha.Provider,
		VerifyURL:         cfg.Captcha.VerifyURL,
		Secret:            cfg.Captcha.Secret,
		Timeout:           cfg.Captcha.Timeout,
		AllowUnconfigured: cfg.Captcha.AllowUnconfigured,
	})
	if err != nil {
		log.Fatalf("Failed to initialize captcha verifier: %v", err)
	}
	if cfg.Captcha.Secret == "" {
		log.Printf("⚠ Captcha secret not set, challenges will %s", passOrFail(cfg.Captcha.AllowUnconfigured))
	} else {
		log.Printf("✓ Captcha verifier initialized (%s)", cfg.Captcha.Provider)
	}

	if cfg.Session.TokenPepper == "" {
		log.Println("⚠ SESSION_TOKEN_PEPPER not set, session ids are unkeyed hashes")
	}
	hasher := hash.NewTokenHasher(cfg.Session.TokenPepper)

	// Initialize validator
	validate := validator.NewValidator()

	policies := buildPolicies(cfg)
	advisory := service.NewAdvisory()

	// Initialize services
	sessionService := service.NewSessionService(
		sessionRepo,
		limiter,
		verifier,
		hasher,
		policies,
		service.SessionConfig{
			TTL: cfg.Session.TTL,
			Friction: domain.FrictionPolicy{
				Threshold:     cfg.Session.FrictionThreshold,
				BlockDuration: cfg.Session.BlockDuration,
			},
			CaptchaProvider: cfg.Captcha.Provider,
			CaptchaSiteKey:  cfg.Captcha.SiteKey,
		},
		advisory,
	)
	scoreService := service.NewScoreService(schoolRepo)
	clickService := service.NewClickService(sessionService, scoreService, limiter, policies)
	schoolService := service.NewSchoolService(schoolRepo, limiter, policies)

	// Initialize handlers
	sessionHandler := handler.NewSessionHandler(sessionService, validate, cfg.Server.TrustProxy)
	scoreHandler := handler.NewScoreHandler(clickService, validate, cfg.Server.TrustProxy)
	schoolHandler := handler.NewSchoolHandler(schoolService, validate, cfg.Server.TrustProxy)
	healthHandler := handler.NewHealthHandler(readiness, advisory.Failures)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:               "Clicker Service v1.0",
		DisableStartupMessage: false,
		ErrorHandler:          handler.ErrorHandler,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		BodyLimit:             16 * 1024,
	})

	// Setup global middlewares
	app.Use(middleware.RecoveryMiddleware())
	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.CORSMiddleware(cfg.Server.CORSOrigins))

	// Setup routes
	handler.SetupRoutes(
		app,
		sessionHandler,
		scoreHandler,
		schoolHandler,
		healthHandler,
		middleware.ThrottleMiddleware(cfg.Server.ThrottleRPS, cfg.Server.ThrottleBurst),
	)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go startCleanupRoutine(ctx, cfg.Cleanup.Interval, sessionService, memoryLimiter)

	// Start server in goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Printf("🚀 Server starting on http://localhost%s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		if err := app.Listen(addr); err != nil {
			log.Printf("❌ Server failed to start: %v", err)
			stop()
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	log.Println("⏳ Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✓ Server stopped")
}

// initDB initializes PostgreSQL database connection with retry logic
func initDB(cfg *config.Config) (*sqlx.DB, error) {
	dsn := cfg.Database.DSN()

	var db *sqlx.DB
	var err error

	maxRetries := 5
	retryInterval := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			break
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("Error closing database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// initRedis initializes Redis client and verifies connection
func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			log.Printf("Error closing Redis after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

func buildPolicies(cfg *config.Config) domain.Policies {
	rl := cfg.RateLimit
	return domain.Policies{
		SessionCreate: ratelimit.Policy{Name: domain.PolicySessionCreate, Points: rl.SessionCreate.Points, Window: rl.SessionCreate.Window},
		SchoolCreate:  ratelimit.Policy{Name: domain.PolicySchoolCreate, Points: rl.SchoolCreate.Points, Window: rl.SchoolCreate.Window},
		ScoreIP:       ratelimit.Policy{Name: domain.PolicyScoreIP, Points: rl.ScoreIP.Points, Window: rl.ScoreIP.Window},
		ScoreSession:  ratelimit.Policy{Name: domain.PolicyScoreSession, Points: rl.ScoreSession.Points, Window: rl.ScoreSession.Window},
	}
}

// startCleanupRoutine periodically drops expired sessions and, when limits are
// kept in process, stale rate-limit windows.
func startCleanupRoutine(ctx context.Context, interval time.Duration, sessions *service.SessionService, windows *ratelimit.MemoryLimiter) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := sessions.CleanupExpired(ctx)
			if err != nil {
				log.Printf("[CLEANUP] Failed to remove expired sessions: %v", err)
			} else if removed > 0 {
				log.Printf("[CLEANUP] Removed %d expired sessions", removed)
			}

			if windows != nil {
				if n := windows.Sweep(); n > 0 {
					log.Printf("[CLEANUP] Dropped %d stale rate-limit windows", n)
				}
			}
		}
	}
}

func passOrFail(allow bool) string {
	if allow {
		return "pass"
	}
	return "fail"
}
