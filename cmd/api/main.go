package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"farmlink/internal/adapter/api"
	"farmlink/internal/adapter/api/handler"
	apimiddleware "farmlink/internal/adapter/api/middleware"
	"farmlink/internal/adapter/api/router"
	"farmlink/internal/adapter/repository"
	"farmlink/internal/domain/service"
	"farmlink/internal/infrastructure/events"
	"farmlink/internal/infrastructure/firebase"
	"farmlink/internal/infrastructure/ratelimit"
	"farmlink/internal/infrastructure/storage"
	"farmlink/internal/infrastructure/websocket"
	"farmlink/internal/usecase"
	"farmlink/pkg/config"
	"farmlink/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []option.ClientOption
	if cfg.NeedsGoogleCredentials() {
		opts = googleCredentials(cfg)
	}

	var repos *repository.Repositories
	switch cfg.StorageDriver {
	case config.StorageFirestore:
		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
		if err != nil {
			log.Fatalf("Failed to create Firestore client: %v", err)
		}
		defer firestoreClient.Close()
		repos = repository.NewFirestoreRepositories(firestoreClient)
	case config.StoragePostgres:
		var db *sql.DB
		db, err = repository.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to open Postgres: %v", err)
		}
		defer db.Close()
		repos = repository.NewPostgresRepositories(db)
	default:
		logger.Warn("Using in-memory storage; data is lost on restart")
		repos = repository.NewMemoryRepositories(repository.NewMemoryStore())
	}

	var verifier usecase.TokenVerifier
	if cfg.AuthMode == config.AuthDev {
		logger.Warn("AUTH_MODE=dev: bearer tokens are taken as user ids")
		verifier = firebase.NewDevTokenVerifier()
	} else {
		firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
		authClient, err := firebaseApp.Auth(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase Auth: %v", err)
		}
		verifier = firebase.NewFirebaseAuthClient(authClient)
	}

	var gateway service.PaymentGateway
	if cfg.PaymentProvider == config.PaymentStripe {
		gateway = service.NewStripePaymentService(cfg.StripeSecretKey, cfg.StripeBaseURL, cfg.PaymentTimeout)
	} else {
		logger.Warn("Using sandbox payment gateway")
		gateway = service.NewSandboxPaymentService()
	}

	var media service.MediaStore
	if cfg.StorageBucket != "" {
		storageClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, opts...)
		if err != nil {
			log.Fatalf("Failed to initialize Cloud Storage: %v", err)
		}
		defer storageClient.Close()
		media = storageClient
	}

	limiter := ratelimit.NewRateLimiter()

	profileUseCase := usecase.NewProfileUseCase(repos.Profiles)
	productUseCase := usecase.NewProductUseCase(repos.Products)
	orderUseCase := usecase.NewOrderUseCase(repos.Orders, repos.Products, repos.PaymentAttempts, gateway, limiter, usecase.PaymentSettings{
		Currency: cfg.Currency,
		Timeout:  cfg.PaymentTimeout,
	})
	conversationUseCase := usecase.NewConversationUseCase(repos.Messages, repos.Profiles, repos.Products, media, limiter)

	wsManager := websocket.NewManager(conversationUseCase)
	notificationUseCase := usecase.NewNotificationUseCase(repos.Notifications, repos.Products, repos.Profiles, wsManager)

	bus := events.NewBus()
	notificationUseCase.Register(bus)
	wsManager.Subscribe(bus)

	var sinks []events.Sink
	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
		sinks = append(sinks, publisher)
		logger.Info("Relaying events to Kafka topic %s", cfg.KafkaTopic)
	}
	relay := events.NewRelay(repos.Outbox, bus, cfg.OutboxPollInterval, sinks...)
	reconciler := usecase.NewPaymentReconciler(orderUseCase, cfg.ReconcileGrace)

	handler.Setup(cfg.StorageDriver, profileUseCase, productUseCase, orderUseCase, conversationUseCase, notificationUseCase)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: cfg.AllowedOrigins}))
	} else {
		e.Use(middleware.CORS())
	}

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(verifier, repos.Profiles)
	wsHandler := handler.NewWebSocketHandler(wsManager, cfg.AllowedOrigins)

	router.Setup(e, authMiddleware, limiter, wsHandler)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server on port %s (storage=%s, payments=%s)", cfg.ServerPort, cfg.StorageDriver, cfg.PaymentProvider)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return relay.Run(ctx) })
	g.Go(func() error { return reconciler.Run(ctx, cfg.ReconcileInterval) })
	g.Go(func() error { return limiter.Run(ctx, 10*time.Minute) })
	g.Go(func() error { return wsManager.Run(ctx) })

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

// googleCredentials prefers inline service account JSON, then a key file,
// then application default credentials.
func googleCredentials(cfg *config.Config) []option.ClientOption {
	if cfg.CredentialsJSON != "" {
		logger.Info("Using Google service account from environment variable")
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.CredentialsJSON))}
	}

	if cfg.CredentialsPath != "" {
		if _, err := os.Stat(cfg.CredentialsPath); os.IsNotExist(err) {
			log.Fatalf("Service account file does not exist: %s", cfg.CredentialsPath)
		}
		logger.Info("Using Google service account from file: %s", cfg.CredentialsPath)
		return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsPath)}
	}

	logger.Info("Using application default credentials")
	return nil
}
