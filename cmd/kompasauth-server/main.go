// Command kompasauth-server runs the KeuzeKompas auth service: credential
// login with email 2FA, JWT sessions, and Redis-backed abuse throttling.
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

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/keuzekompas/kompasauth"
	"github.com/keuzekompas/kompasauth/credstore"
	"github.com/keuzekompas/kompasauth/httpd"
	"github.com/keuzekompas/kompasauth/mail"
)

func main() {
	// A missing .env is fine; real deployments use actual env vars.
	_ = godotenv.Load()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	secret := os.Getenv("JWT_SECRET")
	if len(secret) < 32 {
		logger.Fatal("JWT_SECRET must be set to at least 32 bytes")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     envOr("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       envInt("REDIS_DB", 0),
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Fatalf("redis ping: %v", err)
	}

	store, err := credstore.Open(envOr("MYSQL_DSN",
		"kompas:kompas@tcp(localhost:3306)/keuzekompas?charset=utf8mb4&parseTime=True&loc=Local"))
	if err != nil {
		logger.Fatalf("credential store: %v", err)
	}

	cfg := kompasauth.DefaultConfig()
	cfg.JWT.Secret = []byte(secret)

	engine, err := kompasauth.New().
		WithConfig(cfg).
		WithRedis(redisClient).
		WithCredentialStore(store).
		WithMailer(buildMailer(logger)).
		WithAuditSink(kompasauth.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		logger.Fatalf("engine: %v", err)
	}
	defer engine.Close()

	server := httpd.NewServer(engine, httpd.Config{
		SecureCookies:    envBool("SECURE_COOKIES", false),
		SessionCookieTTL: cfg.JWT.SessionTTL,
		PendingCookieTTL: cfg.JWT.PendingTTL,
		GlobalRPS:        float64(envInt("GLOBAL_RPS", 20)),
	}, logger)

	addr := envOr("ADDR", ":3001")
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Printf("listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Print("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
}

// buildMailer selects SMTP when a real host is configured, otherwise the
// log-based mock that prints the code to stderr.
func buildMailer(logger *log.Logger) kompasauth.Mailer {
	host := os.Getenv("MAIL_HOST")
	if host == "" || host == "smtp.example.com" {
		logger.Print("MAIL_HOST not configured, using mock mailer")
		return mail.NewLogMailer(logger)
	}
	return mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     host,
		Port:     envInt("MAIL_PORT", 587),
		Username: os.Getenv("MAIL_USER"),
		Password: os.Getenv("MAIL_PASS"),
		From:     envOr("MAIL_FROM", "noreply@keuzekompas.nl"),
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
