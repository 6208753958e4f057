package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/woozymasta/geodash/internal/config"
	"github.com/woozymasta/geodash/internal/datasets"
	"github.com/woozymasta/geodash/internal/fetcher"
	"github.com/woozymasta/geodash/internal/geo"
	"github.com/woozymasta/geodash/internal/layerdata"
	"github.com/woozymasta/geodash/internal/logger"
	"github.com/woozymasta/geodash/internal/server"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger  logger.Logger `group:"Logger options"`
	Fetcher fetcher.Flags `group:"Fetcher options"`

	ConfigFile  string `short:"c" long:"config"      env:"CONFIG_FILE"    description:"Path to configuration file" default:"config.yaml"`
	Addr        string `short:"a" long:"addr"        env:"LISTEN_ADDRESS" description:"Address to listen on"       default:"0.0.0.0"`
	Port        int    `short:"p" long:"port"        env:"LISTEN_PORT"    description:"Port to listen on"          default:"8080"`
	Concurrency int    `short:"j" long:"concurrency" env:"CONCURRENCY"    description:"Layers resolved in parallel per batch request" default:"4"`
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Setup Logging
	opts.Logger.Setup()

	// Load Config
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	engine := layerdata.NewEngine(
		fetcher.New(opts.Fetcher.Options("geodash-server")),
		datasets.Bundled(),
	)

	// Boundaries are loaded once; joined layers fail with 409 until a restart if this fails.
	var boundaries *geo.Boundaries
	if cfg.Boundary.Path != "" {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		boundaries, err = engine.LoadBoundaries(ctx, cfg.Boundary)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("path", cfg.Boundary.Path).Msg("Failed to load boundaries")
		}
	}

	srvCtx, err := server.NewServerContext(cfg, boundaries, engine)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}
	srvCtx.PublicDir = opts.Fetcher.PublicDir
	srvCtx.Concurrency = opts.Concurrency

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	log.Info().
		Str("addr", listenAddr).
		Int("layers_loaded", len(cfg.Layers)).
		Int("boundary_features", boundaries.Len()).
		Msg("Web server started")

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           srvCtx.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
