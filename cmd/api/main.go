package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/citymate-api/internal/config"
	"github.com/citymate-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/citymate-api/internal/infrastructure/jwt"
	"github.com/citymate-api/internal/infrastructure/memory"
	redisinfra "github.com/citymate-api/internal/infrastructure/redis"
	"github.com/citymate-api/internal/infrastructure/resend"
	s3infra "github.com/citymate-api/internal/infrastructure/s3"
	"github.com/citymate-api/internal/infrastructure/smtp"
	"github.com/citymate-api/internal/infrastructure/sns"
	transporthttp "github.com/citymate-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg := config.Load()

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		slog.Error("JWT provider not available", "err", err)
		os.Exit(1)
	}

	deps := &transporthttp.Deps{JWT: jwtProvider}
	switch cfg.StoreBackend {
	case config.BackendMemory:
		slog.Warn("using in-memory stores, data is lost on restart")
		deps.Users = memory.NewUserStore()
		deps.Sessions = memory.NewSessionStore()
		deps.OTPs = memory.NewOTPStore()
	default:
		// Bootstrap DynamoDB tables (creates them if they don't exist).
		dynamoClient := dynamo.NewClient(cfg)
		dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)
		deps.Users = dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
		deps.Sessions = dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions)
		deps.OTPs = dynamo.NewOTPRepo(dynamoClient, cfg.DynamoTables.OneTimeCodes)
		deps.Photos = s3infra.NewStore(s3infra.NewClient(cfg), cfg.S3BucketName)
	}

	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := redisinfra.Connect(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			slog.Error("redis not available", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		deps.Verifications = redisinfra.NewVerificationStore(rdb, cfg.VerificationSessionTTL)
	} else {
		deps.Verifications = memory.NewVerificationStore(cfg.VerificationSessionTTL)
	}

	if cfg.ResendAPIKey != "" {
		deps.Mailer = resend.NewMailer(cfg)
	} else {
		deps.Mailer = smtp.NewMailer(cfg)
	}

	// SNS SMS sender (optional, phone codes report undelivered without it).
	if sender, err := sns.NewSender(cfg); err == nil {
		deps.SMS = sender
	} else {
		slog.Warn("SNS sender not available", "err", err)
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "err", err)
		return
	}
	slog.Info("server stopped")
}
