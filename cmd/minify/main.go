package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/woozymasta/geodash/internal/logger"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/json"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	Dirs  []string `short:"d" long:"dir"   description:"Directory of JSON/GeoJSON files to minify in place" default:"internal/datasets/data"`
	Check bool     `short:"n" long:"check" description:"Report files that are not minified without rewriting them"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	m := minify.New()
	m.AddFunc("application/json", json.Minify)

	var changed, failed int
	for _, dir := range opts.Dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("Failed to read directory")
		}

		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if e.IsDir() || (ext != ".json" && ext != ".geojson") {
				continue
			}

			path := filepath.Join(dir, e.Name())
			raw, err := os.ReadFile(path)
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("Failed to read file")
				failed++
				continue
			}

			minified, err := m.Bytes("application/json", raw)
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("Failed to minify file")
				failed++
				continue
			}
			if len(minified) == len(raw) {
				continue
			}
			changed++

			if opts.Check {
				log.Warn().Str("path", path).Int("bytes", len(raw)).Int("minified", len(minified)).Msg("File is not minified")
				continue
			}

			if err := os.WriteFile(path, minified, 0644); err != nil {
				log.Error().Err(err).Str("path", path).Msg("Failed to write file")
				failed++
				continue
			}
			log.Info().Str("path", path).Int("saved", len(raw)-len(minified)).Msg("File minified")
		}
	}

	log.Info().Int("changed", changed).Int("failed", failed).Msg("Minify done")

	if failed > 0 || (opts.Check && changed > 0) {
		os.Exit(1)
	}
}
