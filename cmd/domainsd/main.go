package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/customdomains/internal/config"
	"github.com/jmerrifield20/customdomains/internal/domains/handler"
	"github.com/jmerrifield20/customdomains/internal/domains/repository"
	"github.com/jmerrifield20/customdomains/internal/domains/service"
	"github.com/jmerrifield20/customdomains/internal/identity"
	"github.com/jmerrifield20/customdomains/internal/provider"
	"github.com/jmerrifield20/customdomains/internal/provider/cloudflare"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("domainsd exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	cfg, found, err := config.Load(config.New())
	if err != nil {
		return err
	}
	if cfg.Log.Development {
		if dev, err := zap.NewDevelopment(); err == nil {
			logger = dev
		}
	}
	if !found {
		logger.Warn("no config file found, using defaults and env vars")
	}

	// ── Database ─────────────────────────────────────────────────────────────
	db, err := pgxpool.New(context.Background(), cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = db.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("connected to postgres")

	// ── Identity ─────────────────────────────────────────────────────────────
	owners, err := identity.NewOwnerTokens([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, cfg.Auth.Audience, 0)
	if err != nil {
		return fmt.Errorf("auth.jwt_secret: %w", err)
	}

	// ── Provisioning provider ────────────────────────────────────────────────
	hp, err := newProvider(cfg.Provider, logger)
	if err != nil {
		return err
	}
	mockMode := hp == nil
	handler.SetMockMode(mockMode)

	// ── Wire up layers ────────────────────────────────────────────────────────
	repo := repository.NewDomainRepository(db)
	svc := service.NewDomainService(repo, hp, cfg.Database.Timeout, logger)

	domainHandler := handler.NewDomainHandler(svc, owners, logger)
	domainHandler.SetExposeErrorDetails(cfg.Server.ExposeErrorDetails)
	healthHandler := handler.NewHealthHandler(db, mockMode, logger)

	// ── HTTP Router ───────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsOrigins := cfg.Server.CORSOrigins
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Client-Info", "Apikey"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           12 * time.Hour,
	}))

	// Security headers
	router.Use(func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	// Request body size limit (1 MB)
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	router.Use(handler.PrometheusMiddleware())
	router.Use(requestLogger(logger))

	// Per-IP limit on everything, a tighter per-owner limit on POST /domains
	// since each one may call the provider twice.
	if rps := cfg.Server.RateLimitRPS; rps > 0 {
		router.Use(handler.RateLimiter(rps*4, rps*8, handler.ByClientIP))
		domainHandler.SetAddLimiter(handler.RateLimiter(rps, rps*2, handler.ByOwner))
	}

	healthHandler.Register(router)
	router.GET("/metrics", handler.MetricsHandler())

	v1 := router.Group("/api/v1")
	domainHandler.Register(v1)

	// ── Serve ────────────────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("domainsd HTTP listening",
			zap.Int("port", cfg.Server.Port),
			zap.Bool("mock_mode", mockMode),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ──────────────────────────────────────────────────────
	<-quit
	logger.Info("shutting down domainsd...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("domainsd stopped")
	return nil
}

// newProvider returns nil (mock mode) when the credentials are missing or
// still set to a placeholder.
func newProvider(cfg config.ProviderConfig, logger *zap.Logger) (provider.HostnameProvider, error) {
	creds := cfg.Credentials()
	if !creds.Configured() {
		logger.Warn("provider credentials missing or placeholder, running in MOCK MODE")
		return nil, nil
	}

	cf, err := cloudflare.New(cloudflare.Config{
		Credentials: creds,
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		MaxRetries:  cfg.MaxRetries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("provider setup: %w", err)
	}
	cf.SetRequestRecorder(handler.RecordProviderRequest)
	logger.Info("provider configured", zap.Duration("timeout", cfg.Timeout))
	return cf, nil
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
