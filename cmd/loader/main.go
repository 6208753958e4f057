package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/woozymasta/geodash/internal/config"
	"github.com/woozymasta/geodash/internal/datasets"
	"github.com/woozymasta/geodash/internal/dates"
	"github.com/woozymasta/geodash/internal/fetcher"
	"github.com/woozymasta/geodash/internal/geo"
	"github.com/woozymasta/geodash/internal/layerdata"
	"github.com/woozymasta/geodash/internal/logger"
	"github.com/woozymasta/geodash/internal/processor"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger  logger.Logger `group:"Logger options"`
	Fetcher fetcher.Flags `group:"Fetcher options"`

	ConfigFile  string   `short:"c" long:"config"      env:"CONFIG_FILE" description:"Path to configuration file" default:"config.yaml"`
	Limit       []string `short:"l" long:"limit"       env:"LIMIT_NAMES" description:"Limit processing to specific layer ids"`
	Date        string   `short:"d" long:"date"        env:"DATE"        description:"Day to resolve, YYYY-MM-DD; empty means undated"`
	OutDir      string   `short:"o" long:"out"         env:"OUT_DIR"     description:"Output directory" default:"layers"`
	Concurrency int      `short:"p" long:"concurrency" env:"CONCURRENCY" description:"Concurrency" default:"4"`
	Force       bool     `short:"f" long:"force"       description:"Force overwrite of existing files"`
}

func main() {
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	var date time.Time
	if opts.Date != "" {
		if date, err = time.Parse(dates.KeyLayout, opts.Date); err != nil {
			log.Fatal().Err(err).Str("date", opts.Date).Msg("Invalid --date")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	engine := layerdata.NewEngine(
		fetcher.New(opts.Fetcher.Options("geodash-loader")),
		datasets.Bundled(),
	)

	layers := processor.Select(cfg, opts.Limit)

	var boundaries *geo.Boundaries
	if cfg.Boundary.Path != "" && needsBoundary(layers) {
		if boundaries, err = engine.LoadBoundaries(ctx, cfg.Boundary); err != nil {
			log.Fatal().Err(err).Str("path", cfg.Boundary.Path).Msg("Failed to load boundaries")
		}
	}

	log.Info().
		Int("layers_total", len(cfg.Layers)).
		Int("layers_queued", len(layers)).
		Str("date", dates.DayKey(date)).
		Str("out", opts.OutDir).
		Msg("Starting loader")

	sum := processor.ExportAll(ctx, engine, layers, processor.Job{
		Date:       date,
		Boundaries: boundaries,
		OutDir:     opts.OutDir,
		Force:      opts.Force,
	}, opts.Concurrency)

	log.Info().
		Int("exported", sum.Exported).
		Int("skipped", sum.Skipped).
		Int("failed", len(sum.Failed)).
		Msg("Loader finished")

	if len(sum.Failed) > 0 {
		os.Exit(1)
	}
}

func needsBoundary(layers []config.Layer) bool {
	for _, l := range layers {
		if l.Type != config.TypePointData {
			return true
		}
	}
	return false
}
