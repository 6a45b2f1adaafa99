// Command relayd runs the climanger relay service: the HTTP gateway and
// device room registry described in §4.B/§4.C. Grounded on the teacher's
// cmd/v1/session/main.go wiring (godotenv, graceful shutdown with a 5s
// drain window), generalized from Auth0-validated video rooms to
// PIN-paired device rooms.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/climanger/relay/internal/v1/auth"
	"github.com/climanger/relay/internal/v1/config"
	"github.com/climanger/relay/internal/v1/gateway"
	"github.com/climanger/relay/internal/v1/logging"
	"github.com/climanger/relay/internal/v1/tracing"
	"github.com/climanger/relay/internal/v1/transport"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	for _, path := range []string{".env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	development := os.Getenv("ENVIRONMENT") != "production"
	if err := logging.Initialize(development); err != nil {
		panic(err)
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		logging.Fatal(context.Background(), "invalid configuration", zap.Error(err))
	}

	ctx := context.Background()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "climanger-relay", cfg.OTLPCollectorAddr)
		if err != nil {
			logging.Error(ctx, "failed to initialize tracing, continuing without it", zap.Error(err))
		} else {
			defer func() { _ = tp.Shutdown(ctx) }()
		}
	}

	var pairing auth.PairingStore
	if cfg.RedisEnabled {
		store, err := auth.NewRedisPairingStore(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Fatal(ctx, "failed to connect to redis", zap.Error(err))
		}
		defer store.Close()
		pairing = store
		logging.Info(ctx, "using redis pairing store", zap.String("addr", cfg.RedisAddr))
	} else {
		store := auth.NewMemoryPairingStore(10 * time.Second)
		defer store.Close()
		pairing = store
		logging.Info(ctx, "using in-memory pairing store")
	}

	registry := transport.NewRegistry()
	g := &gateway.Gateway{
		Pairing:        pairing,
		JWTSecret:      []byte(cfg.JWTSecret),
		Rooms:          gateway.NewRoomManager(registry, cfg.MaxConnectionsPerDevice),
		AllowedOrigins: cfg.AllowedOrigins,
		PinExpiry:      cfg.PinExpiry,
		SessionExpiry:  cfg.SessionExpiry,
		MaxMobiles:     cfg.MaxConnectionsPerDevice,
		Version:        "1.0.0",
	}

	router := gateway.NewRouter(g, cfg.TracingEnabled)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logging.Info(ctx, "relay service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal(ctx, "server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down relay service")

	g.Rooms.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "forced shutdown", zap.Error(err))
	}

	logging.Info(ctx, "relay service exited")
}
