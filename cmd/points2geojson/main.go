package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/woozymasta/geodash/internal/dates"
	"github.com/woozymasta/geodash/internal/geo"
	"github.com/woozymasta/geodash/internal/layerdata"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Input        string `short:"i" long:"in"           description:"Input file path (point array or WMS GeoJSON). Reads from stdin if empty"`
	Output       string `short:"o" long:"out"          description:"Output file path. Writes to stdout if empty"`
	Format       string `short:"f" long:"format"       description:"Output format" choice:"json" choice:"yaml" default:"json"`
	DataFormat   string `short:"t" long:"data-format"  description:"Input shape" choice:"base" choice:"wms" default:"base"`
	Date         string `short:"d" long:"date"         description:"Keep only points of this day, YYYY-MM-DD"`
	ValidityDays int    `short:"v" long:"validity-days" description:"Keep points within this many days around --date"`
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

	var date time.Time
	if opts.Date != "" {
		var err error
		if date, err = time.Parse(dates.KeyLayout, opts.Date); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --date %q\n", opts.Date)
			os.Exit(1)
		}
	}

	// Read Input
	var inputData []byte
	var err error

	if opts.Input != "" {
		inputData, err = os.ReadFile(opts.Input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input file: %v\n", err)
			os.Exit(1)
		}
	} else {
		inputData, err = io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
			os.Exit(1)
		}
	}

	var points []geo.Point
	if opts.DataFormat == "wms" {
		points, err = layerdata.AdaptWMS(inputData, date)
	} else {
		points, err = layerdata.AdaptBasePoints(inputData)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing points: %v\n", err)
		os.Exit(1)
	}

	if keep := layerdata.DateFilter(date, opts.ValidityDays); keep != nil {
		kept := points[:0]
		for _, p := range points {
			if keep(p.Properties["date"]) {
				kept = append(kept, p)
			}
		}
		points = kept
	}

	fc := geo.PointsToFeatureCollection(points)

	outputData, err := json.MarshalIndent(fc, "", "  ")
	if err == nil && opts.Format == "yaml" {
		// geojson types only know their JSON form
		var generic any
		if err = json.Unmarshal(outputData, &generic); err == nil {
			outputData, err = yaml.Marshal(generic)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling data: %v\n", err)
		os.Exit(1)
	}

	if opts.Output != "" {
		err = os.WriteFile(opts.Output, outputData, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Successfully converted %d points to %s (format: %s)\n", len(fc.Features), opts.Output, opts.Format)
	} else {
		fmt.Println(string(outputData))
	}
}
