package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/saschahuberzh/SeoulChat/internal/api"
	"github.com/saschahuberzh/SeoulChat/internal/config"
	"github.com/saschahuberzh/SeoulChat/internal/database"
	"github.com/saschahuberzh/SeoulChat/internal/logger"
	"github.com/saschahuberzh/SeoulChat/internal/server"
	"github.com/saschahuberzh/SeoulChat/internal/stats"
)

const shutdownTimeout = 10 * time.Second

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	envFile        string
	addr           string
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&envFile, "env-file", "", "optional .env file to load before reading the environment")
	flag.StringVar(&addr, "addr", "", "server address, overrides SERVER_ADDR")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS, overrides ALLOWED_ORIGINS")
	flag.Parse()

	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}

	cfg, err := config.Load(envFiles...)
	if err != nil {
		bootLog := logger.New("", "info")
		bootLog.Fatal().Err(err).Msg("config")
	}
	if addr != "" {
		cfg.ServerAddr = addr
	}
	if len(allowedOrigins) > 0 {
		cfg.AllowedOrigins = allowedOrigins
	}

	log := logger.New(cfg.Environment, cfg.LogLevel).With().Str("service", "seoulchat").Logger()

	dbConn, err := database.NewPgSeoulChatRepository(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db open")
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			log.Error().Err(err).Msg("db close")
		}
	}()

	if cfg.RunMigrations {
		if err := dbConn.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("db migrate")
		}
		log.Info().Msg("database migrations applied")
	}

	var broker server.Broker
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err := server.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			cancel()
			log.Fatal().Err(err).Msg("redis connect")
		}
		defer redisClient.Close()

		broker, err = server.NewRedisBroker(ctx, redisClient, server.DefaultRedisChannel, log)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("redis subscribe")
		}
		log.Info().Str("channel", server.DefaultRedisChannel).Msg("using redis broker")
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	chatServer := server.NewChatServer(log, dbConn, broker, statsUpdater)

	srv, err := api.NewSeoulChatApp(mux, log, chatServer, dbConn, statsUpdater, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("new app")
	}

	statsUpdater.Run()
	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		log.Info().Str("signal", sig.String()).Msg("received signal")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server")
		}
	}

	shutDownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown")
	}

	log.Info().Msg("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		log.Error().Err(err).Msg("chat server shutdown")
	}

	statsUpdater.Stop()
	log.Info().Msg("shutdown complete")
}
