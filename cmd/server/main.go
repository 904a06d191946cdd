package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"parking-service/internal/barrier"
	"parking-service/internal/camera"
	"parking-service/internal/config"
	"parking-service/internal/db"
	httpapi "parking-service/internal/http"
	"parking-service/internal/logger"
	"parking-service/internal/recognition"
	"parking-service/internal/repository"
	"parking-service/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.IsProduction())

	gormDB, err := db.Open(cfg.DB.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	if cfg.Parking.SeedDemoData {
		if err := db.Seed(gormDB); err != nil {
			log.Fatal().Err(err).Msg("failed to seed demo data")
		}
	}

	store := repository.NewStore(gormDB)

	spotService := service.NewSpotService(
		store, store, store, store,
		cfg.Parking.ReservationTimeoutMinutes,
		log.With().Str("component", "spots").Logger(),
	)
	ledgerService := service.NewLedgerService(
		store, store, store, store,
		log.With().Str("component", "ledger").Logger(),
	)

	// The camera connection is scoped to one gate operation; each call
	// gets its own Source.
	cameraFactory := func() service.FrameSource {
		return camera.NewSource(
			cfg.Camera.URL, cfg.Camera.Username, cfg.Camera.Password,
			log.With().Str("component", "camera").Logger(),
		)
	}
	engine := recognition.NewALPREngine(
		cfg.Recognition.ALPRPath, cfg.Recognition.Region,
		cfg.Recognition.ConfidenceThreshold,
		log.With().Str("component", "alpr").Logger(),
	)
	recognizer := recognition.NewPlateRecognizer(engine, recognition.Config{
		MinBoxWidth:  cfg.Recognition.MinBoxWidth,
		MinBoxHeight: cfg.Recognition.MinBoxHeight,
	}, log.With().Str("component", "recognizer").Logger())
	barrierClient := barrier.NewClient(
		cfg.Barrier.URL, cfg.Barrier.APIKey,
		time.Duration(cfg.Barrier.TimeoutSeconds)*time.Second,
		log.With().Str("component", "barrier").Logger(),
	)

	gateService := service.NewGateService(
		cameraFactory, recognizer, barrierClient,
		store, spotService, store,
		log.With().Str("component", "gate").Logger(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := service.NewSweeper(
		spotService, ledgerService,
		time.Duration(cfg.Parking.SweepIntervalSeconds)*time.Second,
		cfg.Parking.EventRetentionDays,
		log.With().Str("component", "sweeper").Logger(),
	)
	go sweeper.Run(ctx)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestID())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.HTTP.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler := httpapi.NewHandler(gateService, spotService, ledgerService, barrierClient,
		log.With().Str("component", "http").Logger())
	handler.Register(router, httpapi.Auth(cfg.Auth.JWTSecret))

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
}
