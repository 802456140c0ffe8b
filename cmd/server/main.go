package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Wyydra/safemeet/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/safemeet/internal/adapter/driven/persistence/badger"
	"github.com/Wyydra/safemeet/internal/adapter/driven/persistence/memory"
	"github.com/Wyydra/safemeet/internal/adapter/driven/persistence/postgres"
	handler "github.com/Wyydra/safemeet/internal/adapter/driving/http"
	"github.com/Wyydra/safemeet/internal/config"
	"github.com/Wyydra/safemeet/internal/core/port"
	"github.com/Wyydra/safemeet/internal/core/service"
)

func init() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Caller().Logger()
}

func openStore(cfg config.Config) (port.MeetingRepository, error) {
	switch cfg.Store.Driver {
	case config.StoreBadger:
		return badger.Open(cfg.Store.BadgerDir)
	case config.StorePostgres:
		return postgres.Open(cfg.Store.DSN, cfg.Debug)
	case config.StoreMemory:
		return memory.NewMeetingRepository(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("An error occurred when loading settings.")
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	repo, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("An error occurred when opening meeting store.")
	}
	defer repo.Close()

	meets := service.NewMeetService(repo, service.WithCodePrefix(cfg.Meet.CodePrefix))
	relay := service.NewRelayService(meets)
	hub := ws.NewHub()

	h := handler.NewHandler(meets, relay, hub, handler.RelayLimits{
		WriteTimeout:    cfg.Relay.WriteTimeout,
		MaxMessageBytes: cfg.Relay.MaxMessageBytes,
		PingInterval:    cfg.Relay.PingInterval,
	})

	go hub.Run()

	quartz := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger)))
	if cfg.Meet.MaxLifetime > 0 {
		sweeper := service.NewSweeper(repo, meets, relay, cfg.Meet.MaxLifetime)
		if _, err := quartz.AddFunc(cfg.Meet.SweepSchedule, func() { sweeper.Sweep(context.Background()) }); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.Meet.SweepSchedule).Msg("An error occurred when scheduling meeting sweep.")
		}
	}
	quartz.Start()

	srv := &http.Server{
		Addr:    cfg.Bind,
		Handler: h.NewRouter(),
	}

	go func() {
		log.Info().Str("bind", cfg.Bind).Str("store", cfg.Store.Driver).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Info().Msg("Shutting down server...")

	<-quartz.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	relay.Stop()
	hub.Stop()
	log.Info().Msg("Server exited")
}
