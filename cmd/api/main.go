package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"workshopdesk/internal/auth"
	"workshopdesk/internal/config"
	"workshopdesk/internal/database"
	"workshopdesk/internal/job"
	"workshopdesk/internal/metrics"
	"workshopdesk/internal/middleware"
	"workshopdesk/internal/repository"
	"workshopdesk/internal/router"
	"workshopdesk/internal/service"
	"workshopdesk/internal/storage"
	"workshopdesk/internal/websocket"
	"workshopdesk/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// @title           Workshop Desk API
// @version         1.0
// @description     Back office for workshops: participants, bulk import, check-in, and role-based access.
// @host            localhost:8080
// @BasePath        /api/v1
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(&logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	}, logger.DefaultServiceName)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.Server.Mode)

	db, err := database.NewConnection(database.Config{
		DSN:             cfg.Database.GetDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	zapLogger.Info("Connected to PostgreSQL", zap.String("host", cfg.Database.Host), zap.String("database", cfg.Database.Name))

	if cfg.Database.AutoMigrate {
		err = database.AutoMigrate(db)
	} else {
		err = database.Migrate(db, zapLogger)
	}
	if err != nil {
		return err
	}

	m := metrics.New()

	// Repositories
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	workshopRepo := repository.NewWorkshopRepository(db)
	ticketTypeRepo := repository.NewTicketTypeRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	statsRepo := repository.NewStatisticsRepository(db)

	// Permission cache: Redis when configured so every instance sees invalidations
	var permCache *middleware.PermissionCache
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			zapLogger.Warn("Redis unreachable, permission lookups fall back to the database", zap.Error(err))
		}
		permCache = middleware.NewRedisPermissionCache(roleRepo, redisClient, cfg.Auth.PermissionCacheTTL, zapLogger)
	} else {
		permCache = middleware.NewMemoryPermissionCache(roleRepo, cfg.Auth.PermissionCacheTTL, zapLogger)
	}

	var archiver service.Archiver
	if cfg.S3.Enabled() {
		s3Archiver, err := storage.NewS3Archiver(ctx, cfg.S3)
		if err != nil {
			return fmt.Errorf("s3 archiver: %w", err)
		}
		archiver = s3Archiver
		zapLogger.Info("Import files are archived to S3", zap.String("bucket", cfg.S3.Bucket))
	}

	hub := websocket.NewHub(cfg.Server.AllowOrigins, zapLogger)
	go hub.Run(ctx)

	// Services
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	authService := service.NewAuthService(userRepo, tokenRepo, roleRepo, txManager, tokens,
		service.LogMailer{Logger: zapLogger},
		service.AuthConfig{
			RefreshTTL:       cfg.Auth.RefreshTokenTTL,
			PasswordResetTTL: cfg.Auth.PasswordResetTTL,
			PasswordResetURL: cfg.Auth.PasswordResetURL,
		}, zapLogger)
	roleService := service.NewRoleService(roleRepo, userRepo, auditRepo, txManager, permCache, zapLogger)
	services := router.Services{
		Auth:        authService,
		Users:       service.NewUserService(userRepo, roleRepo, tokenRepo, auditRepo, txManager),
		Roles:       roleService,
		Workshops:   service.NewWorkshopService(workshopRepo, ticketTypeRepo, auditRepo, txManager),
		TicketTypes: service.NewTicketTypeService(workshopRepo, ticketTypeRepo, auditRepo, txManager),
		Participants: service.NewParticipantService(participantRepo, workshopRepo, ticketTypeRepo, auditRepo, txManager,
			archiver, hub, m, service.ParticipantServiceConfig{ChunkSize: cfg.Import.ChunkSize}, zapLogger),
		CheckIn:    service.NewCheckInService(participantRepo, workshopRepo, auditRepo, txManager, hub, m, zapLogger),
		Statistics: service.NewStatisticsService(statsRepo, workshopRepo),
		Audit:      service.NewAuditService(auditRepo),
	}

	if err := roleService.SeedDefaults(ctx, service.BootstrapAdmin{
		Name:     cfg.Auth.AdminName,
		Email:    cfg.Auth.AdminEmail,
		Password: cfg.Auth.AdminPassword,
	}); err != nil {
		return fmt.Errorf("seed defaults: %w", err)
	}

	scheduler := job.NewScheduler(zapLogger)
	if cfg.Jobs.TokenCleanupSchedule != "" {
		if err := scheduler.AddTokenCleanup(cfg.Jobs.TokenCleanupSchedule, tokenRepo, time.Minute); err != nil {
			return err
		}
	}
	scheduler.Start()

	engine, _ := router.Setup(router.Deps{
		Config: router.Config{
			AllowOrigins: cfg.Server.AllowOrigins,
			Cookies: middleware.CookieConfig{
				Secure:     cfg.Auth.SecureCookies,
				AccessTTL:  cfg.Auth.AccessTokenTTL,
				RefreshTTL: cfg.Auth.RefreshTokenTTL,
			},
			LoginPath:     cfg.Auth.LoginPath,
			MaxUploadSize: cfg.Import.MaxUploadSize,
			EnableSwagger: cfg.Server.Mode != gin.ReleaseMode,
		},
		Logger:      zapLogger,
		Metrics:     m,
		Tokens:      tokens,
		Users:       userRepo,
		Permissions: permCache,
		Services:    services,
		Live:        hub.ServeWs,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("Server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zapLogger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	scheduler.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
