package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roofcrm-backend/config"
	"roofcrm-backend/database"
	"roofcrm-backend/googleauth"
	"roofcrm-backend/handlers"
	"roofcrm-backend/logging"
	"roofcrm-backend/notify"
	"roofcrm-backend/repository"
	"roofcrm-backend/service"
	"roofcrm-backend/storage"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Environment,
		}); err != nil {
			logger.Warn("Failed to initialize Sentry", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
			logger.Info("Sentry initialized")
		}
	}
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database.URL, logger); err != nil {
			return err
		}
	}
	db, err := database.Connect(ctx, cfg.Database.URL, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	fileRepo := repository.NewFileRepository(db)
	requestRepo := repository.NewDeletionRequestRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	// Initialize storage
	blob, err := storage.NewStorage(ctx, cfg.Blob, cfg.Google)
	if err != nil {
		return err
	}
	logger.Info("Blob storage initialized", zap.String("type", string(blob.Type())))

	fileOpts := []service.FileServiceOption{
		service.FileWithFileRepository(fileRepo),
		service.FileWithLeadRepository(leadRepo),
		service.FileWithBlobStorage(blob),
		service.FileWithCache(cfg.Cache.Size, cfg.Cache.TTL),
		service.FileWithMaxFileSize(cfg.Upload.MaxBytes),
		service.FileWithLogger(logger.Named("files")),
	}
	if cfg.Drive.Enabled {
		drive, err := initDrive(ctx, cfg)
		if err != nil {
			return err
		}
		fileOpts = append(fileOpts, service.FileWithDriveStorage(drive))
		logger.Info("Google Drive storage initialized")
	} else {
		logger.Warn("Google Drive disabled, uploads are stored in blob storage only")
	}

	notifyOpts, err := initNotifications(ctx, cfg, logger)
	if err != nil {
		return err
	}
	notifyOpts = append(notifyOpts,
		service.NotificationWithUserRepository(userRepo),
		service.NotificationWithActivityRepository(activityRepo),
		service.NotificationWithAppBaseURL(cfg.Server.AppBaseURL),
		service.NotificationWithDelivery(cfg.Notify.SendTimeout, cfg.Notify.Concurrency),
		service.NotificationWithLogger(logger.Named("notifications")),
	)

	// Initialize services
	fileService := service.NewFileService(fileOpts...)
	notificationService := service.NewNotificationService(notifyOpts...)
	leadService := service.NewLeadService(
		service.LeadWithLeadRepository(leadRepo),
		service.LeadWithActivityRepository(activityRepo),
		service.LeadWithFileService(fileService),
		service.LeadWithNotificationService(notificationService),
		service.LeadWithLogger(logger.Named("leads")),
	)
	deletionService := service.NewDeletionService(
		service.DeletionWithRequestRepository(requestRepo),
		service.DeletionWithLeadRepository(leadRepo),
		service.DeletionWithUserRepository(userRepo),
		service.DeletionWithActivityRepository(activityRepo),
		service.DeletionWithLogger(logger.Named("deletions")),
	)
	authService := service.NewAuthService(
		service.AuthWithUserRepository(userRepo),
		service.AuthWithSecret(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
	)

	// Initialize handlers
	httpLogger := logger.Named("http")
	routerCfg := handlers.RouterConfig{
		Logger:        httpLogger,
		Authenticator: authService,
		Auth:          handlers.NewAuthHandler(authService, httpLogger),
		Leads:         handlers.NewLeadHandler(leadService, httpLogger),
		Files:         handlers.NewFileHandler(fileService, notificationService, httpLogger),
		Deletions:     handlers.NewDeletionRequestHandler(deletionService, leadService, notificationService, httpLogger),
	}
	if local, ok := blob.(*storage.LocalStorage); ok {
		routerCfg.StaticPrefix = staticPrefix(cfg.Blob.PublicBaseURL)
		routerCfg.StaticDir = local.BasePath()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handlers.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
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

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func initDrive(ctx context.Context, cfg *config.Config) (*storage.DriveStorage, error) {
	ts, err := googleauth.TokenSource(ctx, cfg.Google, cfg.Google.ImpersonateUser, storage.DriveScope)
	if err != nil {
		return nil, err
	}
	return storage.NewDriveStorage(ctx, cfg.Drive.SharedFolderID, option.WithTokenSource(ts))
}

// initNotifications builds the delivery channels enabled in config
func initNotifications(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]service.NotificationServiceOption, error) {
	var opts []service.NotificationServiceOption

	if cfg.Gmail.Enabled {
		subject := cfg.Google.ImpersonateUser
		if subject == "" {
			subject = cfg.Gmail.From
		}
		ts, err := googleauth.TokenSource(ctx, cfg.Google, subject, notify.GmailScope)
		if err != nil {
			return nil, err
		}
		gmail, err := notify.NewGmailChannel(ctx, cfg.Gmail.From, cfg.Gmail.FromName, option.WithTokenSource(ts))
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.NotificationWithChannel(gmail))
		logger.Info("Gmail notifications enabled", zap.String("from", cfg.Gmail.From))
	}

	if cfg.Chat.Enabled {
		ts, err := googleauth.TokenSource(ctx, cfg.Google, "", notify.ChatBotScope)
		if err != nil {
			return nil, err
		}
		chat, err := notify.NewChatChannel(ctx, cfg.Chat.Space, option.WithTokenSource(ts))
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.NotificationWithBroadcaster(chat))
		logger.Info("Google Chat notifications enabled", zap.String("space", cfg.Chat.Space))
	}

	if cfg.Slack.Enabled {
		opts = append(opts, service.NotificationWithBroadcaster(
			notify.NewSlackChannel(cfg.Slack.WebhookURL, &http.Client{Timeout: cfg.Notify.SendTimeout}),
		))
		logger.Info("Slack notifications enabled")
	}

	if len(opts) == 0 {
		logger.Warn("No notification channels enabled, events are only logged")
	}
	return opts, nil
}

// staticPrefix is the URL path local blob objects are served under
func staticPrefix(publicBaseURL string) string {
	u, err := url.Parse(publicBaseURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return ""
	}
	return u.Path
}
