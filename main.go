package main

import (
	"chatrelay/internal/config"
	"chatrelay/internal/database/db_client"
	"chatrelay/internal/database/migrations"
	"chatrelay/internal/database/sessionlog"
	"chatrelay/internal/http/http_server"
	"chatrelay/internal/redis/presence"
	"chatrelay/internal/redis/redis_client"
	"chatrelay/internal/ws"
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	// Log may be swapped for the production logger below; sync whichever is live.
	defer func() { _ = Log.Sync() }()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var sinks []ws.PresenceSink

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	configureLogger(cfg.AppEnv)
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis presence mirror (optional)
	if cfg.RedisPresenceEnabled {
		redisClient, err := redis_client.NewRedisClient(ctx, redis_client.Options{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()

		mirror := presence.NewMirror(redisClient)
		if err := mirror.Clear(ctx); err != nil {
			Log.Fatal("presence-clear", zap.Error(err))
		}
		sinks = append(sinks, mirror)
		Log.Debug("Redis presence mirror enabled")
	}

	// 4. Postgres session log (optional)
	if cfg.SessionLogEnabled {
		pgDb, err := db_client.Open(ctx, db_client.Options{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			Database: cfg.PostgresDb,
			SSLMode:  cfg.PostgresSSLMode,
		})
		if err != nil {
			Log.Fatal("pg-open", zap.Error(err))
		}
		defer pgDb.Close()

		if err := migrations.Apply(ctx, pgDb); err != nil {
			Log.Fatal("pg-migrate", zap.Error(err))
		}
		sessions := sessionlog.New(pgDb)
		if _, err := sessions.CloseDangling(ctx, time.Now()); err != nil {
			Log.Fatal("sessionlog-close-dangling", zap.Error(err))
		}
		sinks = append(sinks, sessions)
		Log.Debug("Postgres session log enabled")
	}

	// 5. Registry + broadcast engine
	registry := ws.NewRegistry()
	hub := ws.NewHub(registry,
		ws.WithOutboundFormat(cfg.OutboundFormat),
		ws.WithPresenceSinks(sinks...),
	)
	go hub.RunSinks(ctx)

	// 6. Initialize the WS server
	wsSrv := ws.NewWsServer(hub, ws.ServerOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		MaxMessageSize: cfg.MaxMessageSize,
		SendBufferSize: cfg.SendBufferSize,
	})

	// 7. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, registry)
	go func() {
		<-ctx.Done()
		Log.Info("Shutting down")
		_ = httpServer.Dispose()
	}()
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}

// configureLogger switches Log to the production logger under APP_ENV=prod and
// installs it as the zap global.
func configureLogger(appEnv string) {
	if appEnv == "prod" {
		if prodLog, err := zap.NewProduction(); err == nil {
			Log = prodLog
		}
		gin.SetMode(gin.ReleaseMode)
	}
	zap.ReplaceGlobals(Log)
}
