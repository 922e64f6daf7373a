package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mygizmo/internal/bgremove"
	"mygizmo/internal/billing"
	"mygizmo/internal/convert"
	"mygizmo/internal/events"
	"mygizmo/internal/filestore"
	"mygizmo/internal/history"
	"mygizmo/internal/metrics"
	"mygizmo/internal/models"
	"mygizmo/internal/server"
	"mygizmo/internal/storage"
	"mygizmo/internal/studio"
)

const shutdownTimeout = 15 * time.Second

func setupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339
	if lvl > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
}

func main() {
	cfg, err := models.LoadConfig("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg.LogLevel)
	if cfg.Session.Secret == "" {
		log.Fatal().Msg("session secret is not set (JWT_SECRET)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.NewStorage(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init storage")
	}
	defer db.Close()

	files, err := filestore.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init file store")
	}

	proc, err := studio.NewProcessor(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init image studio")
	}

	poppler := convert.NewPoppler(cfg.ProcessedDir)
	if !poppler.Available() {
		log.Warn().Msg("pdftoppm not found, PDF to JPG conversion will fail")
	}

	// Account cleanup and event counters run through Kafka when a broker is
	// configured and inline otherwise.
	handler := events.Fanout(history.NewJanitor(files), metrics.EventCounter())
	var pub events.Publisher
	done := make(chan struct{})
	if cfg.Kafka.Broker != "" {
		pub = events.NewKafkaPublisher(cfg.Kafka)
		reader := events.NewReader(cfg.Kafka)
		go func() {
			defer close(done)
			defer reader.Close()
			events.Consume(ctx, reader, handler)
		}()
		log.Info().Str("broker", cfg.Kafka.Broker).Str("topic", cfg.Kafka.Topic).Msg("event consumer started")
	} else {
		pub = events.NewInlinePublisher(handler)
		close(done)
	}
	defer pub.Close()

	srv := server.NewServer(cfg, db, server.Services{
		Studio:     proc,
		History:    history.NewRecorder(db, files, pub),
		Billing:    billing.New(cfg.Stripe),
		Remover:    bgremove.NewHTTPRemover(cfg.BackgroundRemoverURL, nil),
		Rasterizer: poppler,
		Events:     pub,
	})

	go func() {
		log.Info().Str("addr", cfg.ServerAddr).Msg("server started")
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	cancel()
	<-done
}
